package planner

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// DefaultMaxPlanWeeks caps generated plans at one year.
const DefaultMaxPlanWeeks = 52

const (
	minPlanWeeks     = 6
	defaultSeedKM    = 20
	minSeedKM        = 10
	defaultDays      = 4
	weeklyRamp       = 0.08
	deloadEvery      = 4
	deloadFactor     = 0.75
	taperFactor      = 0.6
	taperFloorKM     = 10
	longRunShare     = 0.35
	qualityShare     = 0.25
	easyShare        = 0.10
	longRunSlot      = 5
	qualitySlot      = 2
	strengthSlot     = 3
	fridayOffset     = 4
	mobilityIDSuffix = "mob"
)

// Planner runs the plan transformations. The clock is injectable so that
// timestamps are deterministic in tests.
type Planner struct {
	now      func() time.Time
	maxWeeks int
}

// Option configures a Planner.
type Option func(*Planner)

// WithClock overrides the time source used for meta timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Planner) {
		p.now = now
	}
}

// WithMaxWeeks bounds the length of generated plans. Values below the
// six-week minimum are ignored.
func WithMaxWeeks(n int) Option {
	return func(p *Planner) {
		if n >= minPlanWeeks {
			p.maxWeeks = n
		}
	}
}

// New constructs a Planner.
func New(opts ...Option) *Planner {
	p := &Planner{
		now:      func() time.Time { return time.Now().UTC() },
		maxWeeks: DefaultMaxPlanWeeks,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PlanParams is the input of plan generation.
type PlanParams struct {
	StartDate     string
	RaceDate      string
	DistanceKM    float64
	SeedAvgKM     *float64
	WeeklyDays    *int
	TargetTimeMin *float64
	Units         Units
}

// PhaseLengths is the number of weeks allotted to each macro phase.
type PhaseLengths struct {
	Base  int
	Build int
	Peak  int
	Taper int
}

// Total is the sum of all phases.
func (p PhaseLengths) Total() int {
	return p.Base + p.Build + p.Peak + p.Taper
}

// AllocatePhases splits totalWeeks into base/build/peak/taper. Taper and peak
// take about 15% each, build about 35%, and base absorbs the remainder so
// the phases always add up to totalWeeks.
func AllocatePhases(totalWeeks int) PhaseLengths {
	p := PhaseLengths{
		Taper: max(1, roundInt(float64(totalWeeks)*0.15)),
		Peak:  max(1, roundInt(float64(totalWeeks)*0.15)),
		Build: max(2, roundInt(float64(totalWeeks)*0.35)),
	}
	p.Base = totalWeeks - (p.Taper + p.Peak + p.Build)
	return p
}

func (p PhaseLengths) phaseOf(weekIdx int) Focus {
	switch {
	case weekIdx < p.Base:
		return FocusBase
	case weekIdx < p.Base+p.Build:
		return FocusBuild
	case weekIdx < p.Base+p.Build+p.Peak:
		return FocusPeak
	default:
		return FocusTaper
	}
}

// Generate builds a periodized plan from startDate to raceDate.
func (p *Planner) Generate(params PlanParams) (*PlanDocument, error) {
	start, err := ParseDate(params.StartDate)
	if err != nil {
		return nil, fmt.Errorf("%w: start date: %v", ErrInvalidParams, err)
	}
	race, err := ParseDate(params.RaceDate)
	if err != nil {
		return nil, fmt.Errorf("%w: race date: %v", ErrInvalidParams, err)
	}
	if !(params.DistanceKM > 0) {
		return nil, fmt.Errorf("%w: distance must be greater than 0", ErrInvalidParams)
	}

	totalWeeks := max(minPlanWeeks, calendarWeeksBetween(start, race)+1)
	if totalWeeks > p.maxWeeks {
		return nil, fmt.Errorf("%w: race is %d weeks away, plans are limited to %d", ErrInvalidParams, totalWeeks, p.maxWeeks)
	}
	phases := AllocatePhases(totalWeeks)

	seed := float64(defaultSeedKM)
	if params.SeedAvgKM != nil && *params.SeedAvgKM != 0 {
		seed = *params.SeedAvgKM
	}
	seed = math.Max(minSeedKM, seed)

	days := defaultDays
	if params.WeeklyDays != nil && *params.WeeklyDays != 0 {
		days = *params.WeeklyDays
	}
	days = min(7, max(3, days))

	monday := MondayOf(start)
	weeks := make([]Week, 0, totalWeeks)
	for i := 0; i < totalWeeks; i++ {
		weekStart := monday.AddDate(0, 0, 7*i)
		phase := phases.phaseOf(i)
		deload := (i+1)%deloadEvery == 0 && phase != FocusTaper

		targetKM := roundInt(seed * (1 + weeklyRamp*float64(i)))
		if deload {
			targetKM = roundInt(float64(targetKM) * deloadFactor)
		}
		if phase == FocusTaper {
			targetKM = max(taperFloorKM, roundInt(float64(targetKM)*taperFactor))
		}

		sessions := make([]Session, 0, days+1)
		for d := 0; d < days; d++ {
			s := composeSession(phase, d, float64(targetKM))
			s.ID = fmt.Sprintf("%d-%d", i+1, d+1)
			s.Date = FormatDate(weekStart.AddDate(0, 0, d))
			sessions = append(sessions, s)
		}

		friday := FormatDate(weekStart.AddDate(0, 0, fridayOffset))
		if !hasSessionOn(sessions, friday) {
			sessions = append(sessions, Session{
				ID:          fmt.Sprintf("%d-%s", i+1, mobilityIDSuffix),
				Date:        friday,
				Type:        SessionMobility,
				Title:       "Mobility",
				Description: "Mobility flow 15-20 min",
				Planned:     true,
			})
		}
		sort.SliceStable(sessions, func(a, b int) bool { return sessions[a].Date < sessions[b].Date })

		focus := phase
		if deload {
			focus = FocusRecovery
		}
		weeks = append(weeks, Week{
			WeekNumber: i + 1,
			Start:      FormatDate(weekStart),
			Focus:      focus,
			TotalKM:    float64(targetKM),
			Sessions:   sessions,
		})
	}

	units := params.Units
	if units == "" {
		units = UnitsMetric
	}
	now := p.now()
	doc := &PlanDocument{
		Goal: Goal{
			DistanceKM:    params.DistanceKM,
			RaceDate:      params.RaceDate,
			TargetTimeMin: cloneFloat(params.TargetTimeMin),
			Units:         units,
		},
		Meta: Meta{
			CreatedAt:  now,
			UpdatedAt:  now,
			SeedAvgKM:  cloneFloat(params.SeedAvgKM),
			WeeklyDays: Int(days),
		},
		Weeks: weeks,
	}
	if err := Validate(doc); err != nil {
		return nil, fmt.Errorf("generated plan rejected: %w", err)
	}
	return doc, nil
}

func composeSession(phase Focus, slot int, targetKM float64) Session {
	s := Session{Planned: true}
	switch slot {
	case longRunSlot:
		s.Type = SessionLong
		s.Title = "Long Run"
		s.Description = "Steady long run. Fuel and hydrate."
		s.DistanceKM = Float(float64(roundInt(targetKM * longRunShare)))
	case qualitySlot:
		if phase == FocusBuild || phase == FocusPeak {
			s.Type = SessionInterval
			s.Title = "Intervals"
			s.Description = "Warm up, 5-8x intervals, cool down"
		} else {
			s.Type = SessionTempo
			s.Title = "Tempo Run"
			s.Description = "20-40 min comfortably hard"
		}
		s.DistanceKM = Float(float64(roundInt(targetKM * qualityShare)))
	case strengthSlot:
		s.Type = SessionStrength
		s.Title = "Strength & Mobility"
		s.Description = "Full-body S&C + mobility (30-40 min)."
	default:
		s.Type = SessionEasy
		s.Title = "Easy Run"
		s.Description = "Relaxed conversational pace."
		s.DistanceKM = Float(float64(roundInt(targetKM * easyShare)))
	}
	return s
}

func hasSessionOn(sessions []Session, date string) bool {
	for _, s := range sessions {
		if s.Date == date {
			return true
		}
	}
	return false
}

func roundInt(v float64) int {
	return int(math.Round(v))
}
