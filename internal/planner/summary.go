package planner

import (
	"math"
	"sort"
)

// WeekVolume aggregates the runs of one Monday-aligned week.
type WeekVolume struct {
	WeekStart string  `json:"week_start"`
	TotalKM   float64 `json:"total_km"`
	Count     int     `json:"count"`
}

// VolumeSummary is the recent running volume, used to seed a new plan.
type VolumeSummary struct {
	Weeks     []WeekVolume `json:"weeks"`
	TotalKM   float64      `json:"total_km"`
	AvgWeekKM float64      `json:"avg_week_km"`
}

// SummarizeWeeks groups activities by week, newest week first. Week totals
// and the average are rounded to whole kilometres.
func SummarizeWeeks(activities []Activity) VolumeSummary {
	byWeek := make(map[string]*WeekVolume)
	for _, a := range activities {
		t, err := ParseDate(a.Date)
		if err != nil {
			continue
		}
		key := FormatDate(MondayOf(t))
		wv, ok := byWeek[key]
		if !ok {
			wv = &WeekVolume{WeekStart: key}
			byWeek[key] = wv
		}
		wv.TotalKM += a.DistanceKM
		wv.Count++
	}

	summary := VolumeSummary{Weeks: make([]WeekVolume, 0, len(byWeek))}
	for _, wv := range byWeek {
		wv.TotalKM = math.Round(wv.TotalKM)
		summary.Weeks = append(summary.Weeks, *wv)
		summary.TotalKM += wv.TotalKM
	}
	sort.Slice(summary.Weeks, func(a, b int) bool { return summary.Weeks[a].WeekStart > summary.Weeks[b].WeekStart })
	if len(summary.Weeks) > 0 {
		summary.AvgWeekKM = math.Round(summary.TotalKM / float64(len(summary.Weeks)))
	}
	return summary
}
