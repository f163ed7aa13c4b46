package models

import "github.com/shopspring/decimal"

// Meal is a named service window recurring daily within a period,
// e.g. "Desayuno" 06:30-09:00. Times are wall-clock "HH:MM" strings.
type Meal struct {
	ExternalID int64
	Name       string
	StartTime  string
	EndTime    string
	Active     bool
}

// MealPeriodLink joins a meal to a period, with per-period service rules.
// Unique on (PeriodID, MealID). Meal carries the joined meal row when the
// link was loaded through LinksForPeriod.
type MealPeriodLink struct {
	ID          int64
	PeriodID    int64
	MealID      int64
	HoursBefore int
	MaxPersons  int
	Active      bool
	Subsidy     decimal.Decimal
	Meal        Meal
}
