// Package models defines server-side records that are not shared with the
// client. Lists and items live in the shared internal/models package.
package models

import "time"

type User struct {
	ID        string
	UserName  string
	Salt      []byte
	Verifier  []byte
	CreatedAt time.Time
}
