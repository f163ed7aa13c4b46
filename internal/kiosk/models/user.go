package models

// User is one roster entry: a person eligible for meal service. Rows are
// overwritten wholesale on roster refresh (upsert by ExternalID); the
// issuance engine only ever reads them.
type User struct {
	ID         int64
	ExternalID int64
	Code       string
	FirstName  string
	LastName   string
	BirthDate  string
	Synced     bool
}
