// Package mealtime resolves which meal window, if any, is being served at
// a given wall-clock instant.
package mealtime

import (
	"fmt"
	"time"

	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/models"
)

// ActiveMeal returns the meal whose window contains now, or nil when no
// window matches — a normal state outside service hours, not an error.
//
// Windows are built on now's date: start = today@start_time,
// end = today@end_time, with end pushed to the next day when the window
// crosses midnight. The first window with start <= now < end wins; data
// entry is expected to keep windows non-overlapping.
func ActiveMeal(period *models.Period, now time.Time) *models.Meal {
	if period == nil || len(period.Links) == 0 {
		return nil
	}

	for i := range period.Links {
		meal := &period.Links[i].Meal
		start, err := onDay(now, meal.StartTime)
		if err != nil {
			continue
		}
		end, err := onDay(now, meal.EndTime)
		if err != nil {
			continue
		}
		if end.Before(start) {
			end = end.Add(24 * time.Hour)
		}
		if !now.Before(start) && now.Before(end) {
			return meal
		}
	}
	return nil
}

// onDay combines now's date with an "HH:MM" (or "HH:MM:SS") time of day.
func onDay(now time.Time, clock string) (time.Time, error) {
	var h, m, s int
	if _, err := fmt.Sscanf(clock, "%d:%d:%d", &h, &m, &s); err != nil {
		s = 0
		if _, err := fmt.Sscanf(clock, "%d:%d", &h, &m); err != nil {
			return time.Time{}, fmt.Errorf("invalid time of day %q: %w", clock, err)
		}
	}
	return time.Date(now.Year(), now.Month(), now.Day(), h, m, s, 0, now.Location()), nil
}
