package models

import "time"

// Item is one stored record of a synchronized model. Data holds the model
// fields; the bookkeeping fields live in their own columns.
type Item struct {
	Model     string
	ID        string
	AccountID string
	Data      map[string]any
	Deleted   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
