package planner

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidPlan wraps every validation failure of a plan document.
	ErrInvalidPlan = errors.New("invalid plan document")
	// ErrInvalidParams is returned for unusable generation or edit input.
	ErrInvalidParams = errors.New("invalid plan parameters")
)

// Violation is one broken invariant, addressed by a JSON-ish field path.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every violation found in a plan document.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.Field+": "+v.Message)
	}
	return fmt.Sprintf("%s: %s", ErrInvalidPlan, strings.Join(msgs, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidPlan }

type validator struct {
	violations []Violation
}

func (v *validator) addf(field, format string, args ...any) {
	v.violations = append(v.violations, Violation{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Validate checks a plan document against the schema. It returns nil or a
// *ValidationError; it never panics on malformed input.
func Validate(doc *PlanDocument) error {
	if doc == nil {
		return &ValidationError{Violations: []Violation{{Field: "plan", Message: "is missing"}}}
	}
	v := &validator{}

	if !(doc.Goal.DistanceKM > 0) {
		v.addf("goal.distance_km", "must be greater than 0, got %v", doc.Goal.DistanceKM)
	}
	if doc.Goal.Units != UnitsMetric && doc.Goal.Units != UnitsImperial {
		v.addf("goal.units", "must be metric or imperial, got %q", doc.Goal.Units)
	}
	if doc.Goal.RaceDate != "" {
		if _, err := ParseDate(doc.Goal.RaceDate); err != nil {
			v.addf("goal.race_date", "must be an ISO date, got %q", doc.Goal.RaceDate)
		}
	}
	if doc.Meta.WeeklyDays != nil && (*doc.Meta.WeeklyDays < 1 || *doc.Meta.WeeklyDays > 7) {
		v.addf("meta.weekly_days", "must be between 1 and 7, got %d", *doc.Meta.WeeklyDays)
	}

	ids := make(map[string]string)
	prev := 0
	for wi, w := range doc.Weeks {
		wf := fmt.Sprintf("weeks[%d]", wi)
		if w.WeekNumber < 1 {
			v.addf(wf+".weekNumber", "must be at least 1, got %d", w.WeekNumber)
		} else if w.WeekNumber <= prev {
			v.addf(wf+".weekNumber", "must be strictly increasing, got %d after %d", w.WeekNumber, prev)
		}
		if w.WeekNumber > prev {
			prev = w.WeekNumber
		}
		if w.TotalKM < 0 {
			v.addf(wf+".total_km", "must not be negative, got %v", w.TotalKM)
		}
		if !w.Focus.Valid() {
			v.addf(wf+".focus", "unknown focus %q", w.Focus)
		}
		weekStart, weekStartOK := "", false
		if w.Start != "" {
			if _, err := ParseDate(w.Start); err != nil {
				v.addf(wf+".start", "must be an ISO date, got %q", w.Start)
			} else {
				weekStart, weekStartOK = w.Start, true
			}
		}
		weekEnd := ""
		if weekStartOK {
			weekEnd, _ = AddDays(weekStart, 6)
		}

		for si, s := range w.Sessions {
			sf := fmt.Sprintf("%s.sessions[%d]", wf, si)
			if s.ID == "" {
				v.addf(sf+".id", "is required")
			} else if other, dup := ids[s.ID]; dup {
				v.addf(sf+".id", "duplicates %s", other)
			} else {
				ids[s.ID] = sf
			}
			if !s.Type.Valid() {
				v.addf(sf+".type", "unknown session type %q", s.Type)
			}
			if s.RPE != nil && (*s.RPE < 1 || *s.RPE > 10) {
				v.addf(sf+".rpe", "must be between 1 and 10, got %d", *s.RPE)
			}
			if s.Date == "" {
				continue
			}
			if _, err := ParseDate(s.Date); err != nil {
				v.addf(sf+".date", "must be an ISO date, got %q", s.Date)
				continue
			}
			if weekStartOK && (s.Date < weekStart || s.Date > weekEnd) {
				v.addf(sf+".date", "%s falls outside week %s..%s", s.Date, weekStart, weekEnd)
			}
		}
	}

	if len(v.violations) > 0 {
		return &ValidationError{Violations: v.violations}
	}
	return nil
}

// Normalize fills the defaults external generators tend to leave out: units,
// week focus, week start dates and session ids. It returns a copy.
func Normalize(doc *PlanDocument) *PlanDocument {
	out := doc.Clone()
	if out == nil {
		return nil
	}
	if out.Goal.Units == "" {
		out.Goal.Units = UnitsMetric
	}
	for wi := range out.Weeks {
		w := &out.Weeks[wi]
		if w.WeekNumber == 0 {
			w.WeekNumber = wi + 1
		}
		if w.Focus == "" {
			w.Focus = FocusBase
		}
		if w.Start == "" && wi > 0 && out.Weeks[wi-1].Start != "" {
			if next, err := AddDays(out.Weeks[wi-1].Start, 7); err == nil {
				w.Start = next
			}
		}
		for si := range w.Sessions {
			if w.Sessions[si].ID == "" {
				w.Sessions[si].ID = fmt.Sprintf("%d-%d", w.WeekNumber, si+1)
			}
		}
	}
	return out
}
