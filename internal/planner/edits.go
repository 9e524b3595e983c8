package planner

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound   = errors.New("session not found in plan")
	ErrSessionNotPlanned = errors.New("session is not planned and cannot be completed")
)

// MarkSessionDone records completion of one session.
func (p *Planner) MarkSessionDone(plan *PlanDocument, sessionID string) (*PlanDocument, error) {
	if plan == nil {
		return nil, fmt.Errorf("%w: plan is required", ErrInvalidParams)
	}
	next := plan.Clone()
	_, s := next.FindSession(sessionID)
	if s == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if !s.Planned {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotPlanned, sessionID)
	}
	s.Done = true
	return p.finishEdit(next)
}

// AddHoliday turns every session on the given dates into rest. Strength and
// mobility keep their type; everything else becomes recovery.
func (p *Planner) AddHoliday(plan *PlanDocument, dates []string) (*PlanDocument, error) {
	if plan == nil {
		return nil, fmt.Errorf("%w: plan is required", ErrInvalidParams)
	}
	set := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		if _, err := ParseDate(d); err != nil {
			return nil, fmt.Errorf("%w: holiday: %v", ErrInvalidParams, err)
		}
		set[d] = struct{}{}
	}

	next := plan.Clone()
	for wi := range next.Weeks {
		for si := range next.Weeks[wi].Sessions {
			s := &next.Weeks[wi].Sessions[si]
			if _, ok := set[s.Date]; !ok || s.Date == "" {
				continue
			}
			if s.Type != SessionStrength && s.Type != SessionMobility {
				s.Type = SessionRecovery
			}
			s.Title = "Rest / Holiday"
			s.Description = "Scheduled rest due to holiday"
			s.DistanceKM = nil
			s.DurationMin = nil
		}
	}
	return p.finishEdit(next)
}

func (p *Planner) finishEdit(next *PlanDocument) (*PlanDocument, error) {
	now := p.now()
	if now.After(next.Meta.UpdatedAt) {
		next.Meta.UpdatedAt = now
	}
	if err := Validate(next); err != nil {
		return nil, err
	}
	return next, nil
}
