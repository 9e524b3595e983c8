// Package planner holds the pure training-plan engine: generation, reflow,
// scheduling, matching and validation of plan documents. Nothing in here does
// I/O; callers load and persist plans around these calls.
package planner

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// SessionType is the closed set of session kinds a plan may contain.
type SessionType string

const (
	SessionEasy     SessionType = "easy"
	SessionTempo    SessionType = "tempo"
	SessionInterval SessionType = "interval"
	SessionLong     SessionType = "long"
	SessionRecovery SessionType = "recovery"
	SessionHill     SessionType = "hill"
	SessionStrength SessionType = "strength"
	SessionMobility SessionType = "mobility"
	SessionRace     SessionType = "race"
	SessionOther    SessionType = "other"
)

var sessionTypes = map[SessionType]struct{}{
	SessionEasy: {}, SessionTempo: {}, SessionInterval: {}, SessionLong: {}, SessionRecovery: {},
	SessionHill: {}, SessionStrength: {}, SessionMobility: {}, SessionRace: {}, SessionOther: {},
}

// Valid reports whether t belongs to the closed session type set.
func (t SessionType) Valid() bool {
	_, ok := sessionTypes[t]
	return ok
}

// IsQuality reports whether the session is a hard effort that reflow carries forward.
func (t SessionType) IsQuality() bool {
	return t == SessionInterval || t == SessionTempo
}

// Focus is the presentation label of a week.
type Focus string

const (
	FocusBase     Focus = "base"
	FocusBuild    Focus = "build"
	FocusPeak     Focus = "peak"
	FocusTaper    Focus = "taper"
	FocusRecovery Focus = "recovery"
)

func (f Focus) Valid() bool {
	switch f {
	case FocusBase, FocusBuild, FocusPeak, FocusTaper, FocusRecovery:
		return true
	}
	return false
}

// Units of the goal. Distances inside a plan are always kilometres.
type Units string

const (
	UnitsMetric   Units = "metric"
	UnitsImperial Units = "imperial"
)

// Pace is a target pace in minutes per km. It is stored as text ("5:30" or
// "5.5") but JSON input may also carry a plain number.
type Pace string

// UnmarshalJSON accepts both a JSON string and a JSON number.
func (p *Pace) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = Pace(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*p = Pace(strconv.FormatFloat(f, 'f', -1, 64))
	return nil
}

// Minutes parses the pace into decimal minutes per km. "mm:ss" is read as
// minutes + seconds/60; anything else must be a plain number.
func (p Pace) Minutes() (float64, bool) {
	s := strings.TrimSpace(string(p))
	if s == "" {
		return 0, false
	}
	if strings.Contains(s, ":") {
		parts := strings.Split(s, ":")
		minutes, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			return 0, false
		}
		seconds, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return 0, false
		}
		return float64(minutes) + float64(seconds)/60, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Goal is the race the plan builds towards.
type Goal struct {
	DistanceKM    float64  `bson:"distance_km" json:"distance_km"`
	RaceDate      string   `bson:"race_date" json:"race_date"`
	TargetTimeMin *float64 `bson:"target_time_min,omitempty" json:"target_time_min,omitempty"`
	Units         Units    `bson:"units" json:"units"`
}

// Meta carries bookkeeping about how and when a plan was produced.
type Meta struct {
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at" json:"updated_at"`
	SeedAvgKM  *float64  `bson:"seed_avg_km,omitempty" json:"seed_avg_km,omitempty"`
	WeeklyDays *int      `bson:"weekly_days,omitempty" json:"weekly_days,omitempty"`
}

// Session is a single planned workout.
type Session struct {
	ID           string      `bson:"id" json:"id"`
	Date         string      `bson:"date,omitempty" json:"date,omitempty"`
	Type         SessionType `bson:"type" json:"type"`
	Title        string      `bson:"title" json:"title"`
	Description  string      `bson:"description" json:"description"`
	DistanceKM   *float64    `bson:"distance_km,omitempty" json:"distance_km,omitempty"`
	DurationMin  *float64    `bson:"duration_min,omitempty" json:"duration_min,omitempty"`
	PaceMinPerKM Pace        `bson:"pace_min_per_km,omitempty" json:"pace_min_per_km,omitempty"`
	RPE          *int        `bson:"rpe,omitempty" json:"rpe,omitempty"`
	Planned      bool        `bson:"planned" json:"planned"`
	Done         bool        `bson:"done" json:"done"`
	// Missed is set once reflow has demoted the session, so it is never demoted twice.
	Missed bool `bson:"missed,omitempty" json:"missed,omitempty"`
}

// UnmarshalJSON defaults planned to true when the field is absent, which is
// what external generators usually omit.
func (s *Session) UnmarshalJSON(data []byte) error {
	type plain Session
	out := plain{Planned: true}
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*s = Session(out)
	return nil
}

// Week groups the sessions of one Monday-aligned calendar week.
type Week struct {
	WeekNumber int       `bson:"weekNumber" json:"weekNumber"`
	Start      string    `bson:"start" json:"start"`
	Focus      Focus     `bson:"focus" json:"focus"`
	TotalKM    float64   `bson:"total_km" json:"total_km"`
	Sessions   []Session `bson:"sessions" json:"sessions"`
}

// PlanDocument is the persisted unit: goal, metadata, weeks and, optionally,
// a materialized schedule holding manual date overrides.
type PlanDocument struct {
	Goal     Goal               `bson:"goal" json:"goal"`
	Meta     Meta               `bson:"meta" json:"meta"`
	Weeks    []Week             `bson:"weeks" json:"weeks"`
	Schedule []ScheduledSession `bson:"schedule,omitempty" json:"schedule,omitempty"`
}

// Clone returns a deep copy so transformations never alias the caller's plan.
func (p *PlanDocument) Clone() *PlanDocument {
	if p == nil {
		return nil
	}
	out := &PlanDocument{
		Goal: p.Goal,
		Meta: p.Meta,
	}
	out.Goal.TargetTimeMin = cloneFloat(p.Goal.TargetTimeMin)
	out.Meta.SeedAvgKM = cloneFloat(p.Meta.SeedAvgKM)
	if p.Meta.WeeklyDays != nil {
		v := *p.Meta.WeeklyDays
		out.Meta.WeeklyDays = &v
	}
	if p.Weeks != nil {
		out.Weeks = make([]Week, len(p.Weeks))
		for i, w := range p.Weeks {
			out.Weeks[i] = w
			out.Weeks[i].Sessions = make([]Session, len(w.Sessions))
			for j, s := range w.Sessions {
				out.Weeks[i].Sessions[j] = s.clone()
			}
		}
	}
	if p.Schedule != nil {
		out.Schedule = cloneSchedule(p.Schedule)
	}
	return out
}

func (s Session) clone() Session {
	s.DistanceKM = cloneFloat(s.DistanceKM)
	s.DurationMin = cloneFloat(s.DurationMin)
	if s.RPE != nil {
		v := *s.RPE
		s.RPE = &v
	}
	return s
}

// FindSession returns pointers to the week and session with the given id.
func (p *PlanDocument) FindSession(id string) (*Week, *Session) {
	for wi := range p.Weeks {
		for si := range p.Weeks[wi].Sessions {
			if p.Weeks[wi].Sessions[si].ID == id {
				return &p.Weeks[wi], &p.Weeks[wi].Sessions[si]
			}
		}
	}
	return nil, nil
}

// ScheduledSession is the dated calendar projection of a session.
type ScheduledSession struct {
	Date         string      `bson:"date" json:"date"`
	Type         SessionType `bson:"type" json:"type"`
	Title        string      `bson:"title,omitempty" json:"title,omitempty"`
	Description  string      `bson:"description,omitempty" json:"description,omitempty"`
	DistanceKM   *float64    `bson:"distance_km,omitempty" json:"distance_km,omitempty"`
	DurationMin  *float64    `bson:"duration_min,omitempty" json:"duration_min,omitempty"`
	PaceMinPerKM Pace        `bson:"pace_min_per_km,omitempty" json:"pace_min_per_km,omitempty"`
}

// Key identifies a scheduled session for linking purposes.
func (s ScheduledSession) Key() SessionKey {
	return SessionKey{Date: s.Date, Type: s.Type}
}

// SessionKey is how links address a session: sessions have no global dated
// identity once a schedule is rebuilt.
type SessionKey struct {
	Date string
	Type SessionType
}

func cloneSchedule(in []ScheduledSession) []ScheduledSession {
	out := make([]ScheduledSession, len(in))
	for i, s := range in {
		s.DistanceKM = cloneFloat(s.DistanceKM)
		s.DurationMin = cloneFloat(s.DurationMin)
		out[i] = s
	}
	return out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
