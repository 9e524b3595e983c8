package planner

import (
	"fmt"
	"math"
)

const (
	missedTitle       = "Easy 25-30 min"
	missedFallbackKM  = 5
	missedScale       = 0.6
	missedMinDistance = 4
)

// ReflowResult is the outcome of ReflowAfterMissed.
type ReflowResult struct {
	Plan *PlanDocument `json:"plan"`
	// CarriedFrom is the id of the quality session unplanned on the missed date.
	CarriedFrom string `json:"carried_from,omitempty"`
	// CarriedTo is the id of the easy session that took over the quality work.
	CarriedTo string `json:"carried_to,omitempty"`
	// Dropped is true when a quality session was unplanned but no later easy
	// slot existed to absorb it.
	Dropped bool `json:"dropped"`
	// Demoted counts past sessions converted to easy effort.
	Demoted int `json:"demoted"`
}

// ReflowAfterMissed forgives past unfinished sessions by converting them to
// easy effort, and moves a quality session planned on missedDate onto the
// next easy slot. The input plan is left untouched.
func (p *Planner) ReflowAfterMissed(plan *PlanDocument, missedDate string) (*ReflowResult, error) {
	if plan == nil {
		return nil, fmt.Errorf("%w: plan is required", ErrInvalidParams)
	}
	if _, err := ParseDate(missedDate); err != nil {
		return nil, fmt.Errorf("%w: missed date: %v", ErrInvalidParams, err)
	}

	next := plan.Clone()
	res := &ReflowResult{Plan: next}
	var carry *Session

	for wi := range next.Weeks {
		for si := range next.Weeks[wi].Sessions {
			s := &next.Weeks[wi].Sessions[si]
			if s.Date == "" || !s.Planned || s.Done {
				continue
			}
			if s.Date < missedDate && !s.Missed {
				demote(s)
				res.Demoted++
			}
			if carry == nil && s.Date == missedDate && s.Type.IsQuality() {
				s.Planned = false
				carried := s.clone()
				carry = &carried
				res.CarriedFrom = s.ID
			}
		}
	}

	if carry != nil {
		if slot := nextEasySlot(next, missedDate); slot != nil {
			slot.Type = carry.Type
			slot.Title = carry.Title
			slot.Description = carry.Description
			slot.DistanceKM = cloneFloat(carry.DistanceKM)
			res.CarriedTo = slot.ID
		} else {
			res.Dropped = true
		}
	}

	now := p.now()
	if now.After(next.Meta.UpdatedAt) {
		next.Meta.UpdatedAt = now
	}
	if err := Validate(next); err != nil {
		return nil, fmt.Errorf("reflowed plan rejected: %w", err)
	}
	return res, nil
}

func demote(s *Session) {
	switch s.Type {
	case SessionLong, SessionInterval, SessionTempo:
		s.Type = SessionEasy
	}
	s.Title = missedTitle
	base := float64(missedFallbackKM)
	if s.DistanceKM != nil {
		base = *s.DistanceKM
	}
	s.DistanceKM = Float(math.Max(missedMinDistance, base*missedScale))
	s.Missed = true
}

func nextEasySlot(plan *PlanDocument, after string) *Session {
	for wi := range plan.Weeks {
		for si := range plan.Weeks[wi].Sessions {
			s := &plan.Weeks[wi].Sessions[si]
			if s.Date != "" && s.Date > after && s.Planned && !s.Done && s.Type == SessionEasy {
				return s
			}
		}
	}
	return nil
}
