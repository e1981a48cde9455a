package models

import "time"

// Label is a user-defined tag for messages. Unlike folders, labels do not
// hold messages exclusively; they are display metadata owned by one user.
type Label struct {
	ID        int64     `json:"label_id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Color     string    `json:"color"`
	SortOrder int       `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
