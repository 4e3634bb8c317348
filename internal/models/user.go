package models

import (
	"time"

	"github.com/uptrace/bun"
)

// User rows exist so scanned_by_user_id and created_by_user_id have
// something to point at. Authentication itself is handled by the identity
// provider; this service only trusts the verified token claims.
type User struct {
	bun.BaseModel `bun:"table:users"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	Email     string    `bun:"email,unique,notnull" json:"email"`
	FullName  string    `bun:"full_name,notnull" json:"full_name"`
	Role      string    `bun:"role,notnull" json:"role"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}
