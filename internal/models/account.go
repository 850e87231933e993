package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Account is a portal login. Role is fixed when the account is created.
type Account struct {
	ID             string    `db:"id" json:"id"`
	Identity       string    `db:"identity" json:"identity"`
	Email          string    `db:"email" json:"email"`
	PasswordHash   string    `db:"password_hash" json:"-"`
	Role           Role      `db:"role" json:"role"`
	Active         bool      `db:"active" json:"active"`
	ActivationCode *string   `db:"activation_code" json:"-"`
	Courses        Courses   `db:"courses" json:"courses"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// Principal projects the account onto the identity carried by sessions.
func (a *Account) Principal() Principal {
	return Principal{Identity: a.Identity, Role: a.Role}
}

// Courses lists the course codes a student is enrolled in. It is stored as
// a JSON array in a text column.
type Courses []string

// Value implements driver.Valuer.
func (c Courses) Value() (driver.Value, error) {
	if c == nil {
		return "[]", nil
	}
	raw, err := json.Marshal([]string(c))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan implements sql.Scanner.
func (c *Courses) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*c = Courses{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan courses: unsupported type %T", src)
	}
	list := make([]string, 0)
	if err := json.Unmarshal(raw, &list); err != nil {
		return fmt.Errorf("scan courses: %w", err)
	}
	*c = list
	return nil
}

// Clone returns an independent copy.
func (c Courses) Clone() Courses {
	out := make(Courses, len(c))
	copy(out, c)
	return out
}
