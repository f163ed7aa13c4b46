package models

// Period is a date-bounded interval during which meal service is offered.
// Dates are "YYYY-MM-DD" strings; the range is inclusive at both ends.
// Links is populated by the store when the period is loaded as current.
type Period struct {
	ExternalID int64
	Name       string
	StartDate  string
	EndDate    string
	Active     bool
	Links      []MealPeriodLink
}
