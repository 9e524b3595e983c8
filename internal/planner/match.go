package planner

import (
	"math"
	"sort"
)

const (
	distanceWeight = 0.6
	paceWeight     = 0.4
)

// Activity is the part of a recorded run the matcher looks at.
type Activity struct {
	ID           int64
	Date         string
	DistanceKM   float64
	DurationMin  float64
	PaceMinPerKM *float64
}

// DerivePace returns duration/distance, or nil when distance is zero.
func DerivePace(distanceKM, durationMin float64) *float64 {
	if distanceKM <= 0 {
		return nil
	}
	return Float(durationMin / distanceKM)
}

// ComputeMatchScore rates how well an activity fulfils a scheduled session,
// from 0 to 100. Different dates never match. Missing targets give full
// credit for that component.
func ComputeMatchScore(session ScheduledSession, activity Activity) float64 {
	if session.Date != activity.Date {
		return 0
	}

	distanceScore := 100.0
	if session.DistanceKM != nil && *session.DistanceKM > 0 {
		distanceScore = deviationScore(activity.DistanceKM / *session.DistanceKM)
	}

	paceScore := 100.0
	if activity.PaceMinPerKM != nil && *activity.PaceMinPerKM != 0 {
		if target, ok := session.PaceMinPerKM.Minutes(); ok && target > 0 {
			paceScore = deviationScore(*activity.PaceMinPerKM / target)
		}
	}

	return round2(distanceScore*distanceWeight + paceScore*paceWeight)
}

// deviationScore maps a ratio to 100 at parity, losing one point per percent
// of deviation in either direction.
func deviationScore(ratio float64) float64 {
	score := 100 - math.Abs(1-ratio)*100
	if math.IsNaN(score) {
		return 0
	}
	return math.Max(0, math.Min(100, score))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// SessionCandidate is a scheduled session scored against one activity.
type SessionCandidate struct {
	Session ScheduledSession `json:"session"`
	Score   float64          `json:"match_score"`
}

// ActivityCandidate is an activity scored against one scheduled session.
type ActivityCandidate struct {
	Activity Activity `json:"activity"`
	Score    float64  `json:"match_score"`
}

// RankCandidates scores the sessions within windowDays of the activity date,
// best first.
func RankCandidates(schedule []ScheduledSession, activity Activity, windowDays int) []SessionCandidate {
	out := []SessionCandidate{}
	for _, s := range schedule {
		if !withinDays(s.Date, activity.Date, windowDays) {
			continue
		}
		out = append(out, SessionCandidate{Session: s, Score: ComputeMatchScore(s, activity)})
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Score != out[b].Score {
			return out[a].Score > out[b].Score
		}
		return out[a].Session.Date < out[b].Session.Date
	})
	return out
}

// RankActivities scores the activities within windowDays of the session date,
// best first.
func RankActivities(session ScheduledSession, activities []Activity, windowDays int) []ActivityCandidate {
	out := []ActivityCandidate{}
	for _, a := range activities {
		if !withinDays(session.Date, a.Date, windowDays) {
			continue
		}
		out = append(out, ActivityCandidate{Activity: a, Score: ComputeMatchScore(session, a)})
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Score != out[b].Score {
			return out[a].Score > out[b].Score
		}
		return out[a].Activity.Date < out[b].Activity.Date
	})
	return out
}

func withinDays(a, b string, window int) bool {
	ta, err := ParseDate(a)
	if err != nil {
		return false
	}
	tb, err := ParseDate(b)
	if err != nil {
		return false
	}
	d := daysBetween(ta, tb)
	if d < 0 {
		d = -d
	}
	return d <= window
}

// LinkProposal pairs one scheduled session with one activity.
type LinkProposal struct {
	Session    SessionKey
	ActivityID int64
	Score      float64
}

// ProposeLinks pairs sessions with activities greedily by descending score.
// Pairs below threshold are ignored, and sessions or activities that already
// carry a link are skipped, so each session key and each activity appears at
// most once.
func ProposeLinks(schedule []ScheduledSession, activities []Activity, linkedSessions map[SessionKey]bool, linkedActivities map[int64]bool, threshold float64) []LinkProposal {
	var pairs []LinkProposal
	for _, s := range schedule {
		if linkedSessions[s.Key()] {
			continue
		}
		for _, a := range activities {
			if linkedActivities[a.ID] {
				continue
			}
			score := ComputeMatchScore(s, a)
			if score <= 0 || score < threshold {
				continue
			}
			pairs = append(pairs, LinkProposal{Session: s.Key(), ActivityID: a.ID, Score: score})
		}
	}
	sort.SliceStable(pairs, func(a, b int) bool { return pairs[a].Score > pairs[b].Score })

	usedSessions := make(map[SessionKey]bool)
	usedActivities := make(map[int64]bool)
	out := []LinkProposal{}
	for _, p := range pairs {
		if usedSessions[p.Session] || usedActivities[p.ActivityID] {
			continue
		}
		usedSessions[p.Session] = true
		usedActivities[p.ActivityID] = true
		out = append(out, p)
	}
	return out
}
