package planner

import (
	"errors"
	"fmt"
	"sort"
)

// ErrScheduleEntryNotFound is returned when a manual move names no entry.
var ErrScheduleEntryNotFound = errors.New("scheduled session not found")

// DayMap pins session types to weekdays, 0=Monday .. 6=Sunday.
type DayMap map[SessionType]int

// defaultOffsets places the n-th session of a week. The first four slots are
// Mon, Tue, Thu, Sat; the rest fill Sun, Wed, Fri so seven sessions never
// share a day. Slots past the table reuse its last entry.
var defaultOffsets = []int{0, 1, 3, 5, 6, 2, 4}

func slotOffset(i int) int {
	if i < len(defaultOffsets) {
		return defaultOffsets[i]
	}
	return defaultOffsets[len(defaultOffsets)-1]
}

// BuildSchedule projects the plan's weeks onto calendar dates starting from
// the Monday on or before startDate. When endDate is set, a race marker
// replaces whatever was scheduled that day and the result is sorted by date;
// otherwise entries follow week/session order.
func BuildSchedule(plan *PlanDocument, startDate string, dayMap DayMap, endDate string) ([]ScheduledSession, error) {
	start, err := ParseDate(startDate)
	if err != nil {
		return nil, fmt.Errorf("%w: schedule start: %v", ErrInvalidParams, err)
	}
	if endDate != "" {
		if _, err := ParseDate(endDate); err != nil {
			return nil, fmt.Errorf("%w: schedule end: %v", ErrInvalidParams, err)
		}
	}
	schedule := []ScheduledSession{}
	if plan == nil || len(plan.Weeks) == 0 {
		return schedule, nil
	}

	monday := MondayOf(start)
	for w, week := range plan.Weeks {
		weekStart := monday.AddDate(0, 0, 7*w)
		for i, s := range week.Sessions {
			offset := slotOffset(i)
			if day, ok := dayMap[s.Type]; ok && day >= 0 && day <= 6 {
				offset = day
			}
			if !s.Planned {
				continue
			}
			schedule = append(schedule, ScheduledSession{
				Date:         FormatDate(weekStart.AddDate(0, 0, offset)),
				Type:         s.Type,
				Title:        s.Title,
				Description:  s.Description,
				DistanceKM:   cloneFloat(s.DistanceKM),
				DurationMin:  cloneFloat(s.DurationMin),
				PaceMinPerKM: s.PaceMinPerKM,
			})
		}
	}

	if endDate == "" {
		return schedule, nil
	}
	return withRaceDay(schedule, endDate, plan.Goal.DistanceKM), nil
}

func withRaceDay(schedule []ScheduledSession, raceDate string, distanceKM float64) []ScheduledSession {
	out := make([]ScheduledSession, 0, len(schedule)+1)
	for _, s := range schedule {
		if s.Date != raceDate {
			out = append(out, s)
		}
	}
	race := ScheduledSession{
		Date:        raceDate,
		Type:        SessionRace,
		Title:       "Race Day",
		Description: "Goal race",
	}
	if distanceKM > 0 {
		race.DistanceKM = Float(distanceKM)
	}
	out = append(out, race)
	sortByDate(out)
	return out
}

func sortByDate(schedule []ScheduledSession) {
	sort.SliceStable(schedule, func(a, b int) bool { return schedule[a].Date < schedule[b].Date })
}

// ResolveSchedule honours a schedule embedded in the plan (it carries manual
// overrides) and only derives a fresh one when none is stored.
func ResolveSchedule(plan *PlanDocument, startDate string, dayMap DayMap, endDate string) ([]ScheduledSession, error) {
	if plan != nil && len(plan.Schedule) > 0 {
		return cloneSchedule(plan.Schedule), nil
	}
	return BuildSchedule(plan, startDate, dayMap, endDate)
}

// MoveScheduledSession moves the first entry matching (fromDate, type) to
// toDate and embeds the resulting schedule in a copy of the plan.
func MoveScheduledSession(plan *PlanDocument, schedule []ScheduledSession, fromDate string, typ SessionType, toDate string) (*PlanDocument, error) {
	if plan == nil {
		return nil, fmt.Errorf("%w: plan is required", ErrInvalidParams)
	}
	if _, err := ParseDate(toDate); err != nil {
		return nil, fmt.Errorf("%w: target date: %v", ErrInvalidParams, err)
	}
	moved := cloneSchedule(schedule)
	found := false
	for i := range moved {
		if moved[i].Date == fromDate && moved[i].Type == typ {
			moved[i].Date = toDate
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %s on %s", ErrScheduleEntryNotFound, typ, fromDate)
	}
	sortByDate(moved)

	next := plan.Clone()
	next.Schedule = moved
	return next, nil
}
