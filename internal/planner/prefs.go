package planner

import "sort"

const (
	saturday = 5
	sunday   = 6
)

var roundRobinTypes = []SessionType{SessionEasy, SessionTempo, SessionInterval, SessionLong}

// DayMapFromWeekdays turns a set of preferred running weekdays into a type
// preference map. Types are dealt round-robin over the selected days; a long
// run is pinned to the weekend when one of those days is available.
func DayMapFromWeekdays(weekdays []int) DayMap {
	days := make([]int, 0, len(weekdays))
	seen := make(map[int]bool)
	for _, d := range weekdays {
		if d < 0 || d > 6 || seen[d] {
			continue
		}
		seen[d] = true
		days = append(days, d)
	}
	sort.Ints(days)

	m := DayMap{}
	for i, d := range days {
		m[roundRobinTypes[i%len(roundRobinTypes)]] = d
	}
	switch {
	case seen[saturday]:
		m[SessionLong] = saturday
	case seen[sunday]:
		m[SessionLong] = sunday
	}
	return m
}

// Validate reports the first type or weekday in the map that is out of range.
func (m DayMap) Validate() error {
	for t, d := range m {
		if !t.Valid() {
			return &ValidationError{Violations: []Violation{{Field: "day_map." + string(t), Message: "unknown session type"}}}
		}
		if d < 0 || d > 6 {
			return &ValidationError{Violations: []Violation{{Field: "day_map." + string(t), Message: "weekday must be between 0 and 6"}}}
		}
	}
	return nil
}
