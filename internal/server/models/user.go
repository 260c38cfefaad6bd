// Package models defines the rows the server persists.
package models

import "time"

// User is an account. Verifier is derived on the client from the password and
// Salt; the password itself never reaches the server.
type User struct {
	ID        string
	UserName  string
	Salt      []byte
	Verifier  []byte
	CreatedAt time.Time
}
