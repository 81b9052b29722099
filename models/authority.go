package models

// Authority is a named security role, e.g. ROLE_ADMIN
type Authority struct {
	Name string `json:"name" db:"name"`
}

// TableName returns the table name for the Authority model
func (Authority) TableName() string {
	return "sec_authority"
}
