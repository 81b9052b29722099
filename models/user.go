package models

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is a stored identity: login, bcrypt hash, activation flag and granted authorities
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Login        string    `json:"login" db:"login"`
	PasswordHash string    `json:"-" db:"password_hash"`
	FirstName    string    `json:"first_name,omitempty" db:"first_name"`
	LastName     string    `json:"last_name,omitempty" db:"last_name"`
	Email        string    `json:"email,omitempty" db:"email"`
	Activated    bool      `json:"activated" db:"activated"`
	LangKey      string    `json:"lang_key,omitempty" db:"lang_key"`
	Authorities  []string  `json:"authorities" db:"-"`
	CreatedBy    string    `json:"created_by" db:"created_by"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedBy    string    `json:"updated_by,omitempty" db:"updated_by"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the User model
func (User) TableName() string {
	return "sec_user"
}

// NewUser creates a new User instance.
// The login is stored lower-cased and the email trimmed.
func NewUser(login, email, passwordHash, createdBy string) *User {
	now := time.Now().UTC()
	return &User{
		ID:           uuid.New(),
		Login:        NormalizeLogin(login),
		Email:        strings.TrimSpace(email),
		PasswordHash: passwordHash,
		CreatedBy:    createdBy,
		CreatedAt:    now,
		UpdatedBy:    createdBy,
		UpdatedAt:    now,
	}
}

// NormalizeLogin lower-cases and trims a login
func NormalizeLogin(login string) string {
	return strings.ToLower(strings.TrimSpace(login))
}

// AuthorityNames returns the granted authorities sorted and without duplicates
func (u *User) AuthorityNames() []string {
	seen := make(map[string]struct{}, len(u.Authorities))
	names := make([]string, 0, len(u.Authorities))
	for _, a := range u.Authorities {
		if a == "" {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		names = append(names, a)
	}
	sort.Strings(names)
	return names
}

// HasAuthority returns true if the user was granted the authority
func (u *User) HasAuthority(name string) bool {
	for _, a := range u.Authorities {
		if a == name {
			return true
		}
	}
	return false
}

// UserSummary is the admin listing view of a user; it never carries the hash
type UserSummary struct {
	ID          uuid.UUID `json:"id"`
	Login       string    `json:"login"`
	Email       string    `json:"email,omitempty"`
	Activated   bool      `json:"activated"`
	Authorities []string  `json:"authorities"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// Summary converts the user to its listing view
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:          u.ID,
		Login:       u.Login,
		Email:       u.Email,
		Activated:   u.Activated,
		Authorities: u.AuthorityNames(),
		CreatedBy:   u.CreatedBy,
		CreatedAt:   u.CreatedAt,
	}
}
