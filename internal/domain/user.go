package domain

import "time"

// User is the domain model for residents who report issues. The pipeline
// treats it as read-only enrichment data: a verified caller matched by phone
// number overrides the extracted name, community and unit.
type User struct {
	ID           string
	FirstName    string
	LastName     string
	Email        string
	Phone        string
	Community    string
	UnitNumber   string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FullName joins the name parts for ticket enrichment.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}
