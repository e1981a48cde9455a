package models

import "time"

// Message is a row in the mailboxes store. Folder membership is the folder_id
// foreign key only; FolderName and FolderType are filled in by a join at read
// time.
type Message struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	ThreadID       string     `json:"thread_id"`
	MessageID      string     `json:"message_id"`
	InReplyTo      *string    `json:"in_reply_to,omitempty"`
	Subject        string     `json:"subject"`
	Body           string     `json:"body"`
	PlainText      string     `json:"plain_text"`
	FromEmail      string     `json:"from_email"`
	ToEmail        *string    `json:"to_email"`
	CC             *string    `json:"cc,omitempty"`
	BCC            *string    `json:"bcc,omitempty"`
	MessageType    *string    `json:"message_type"`
	IsRead         bool       `json:"is_read"`
	IsStarred      bool       `json:"is_starred"`
	IsDraft        bool       `json:"is_draft"`
	HasAttachments bool       `json:"has_attachments"`
	CreatedAt      time.Time  `json:"created_at"`
	Folder         FolderInfo `json:"folder_info"`
}

// Pagination describes one page of a list response.
type Pagination struct {
	CurrentPage int  `json:"currentPage"`
	PerPage     int  `json:"perPage"`
	TotalCount  int  `json:"totalCount"`
	TotalPages  int  `json:"totalPages"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

// FolderCounts holds the derived totals for one folder.
type FolderCounts struct {
	Name    string     `json:"name"`
	Type    FolderType `json:"type"`
	Total   int        `json:"total"`
	Starred int        `json:"starred"`
	Read    int        `json:"read"`
	Unread  int        `json:"unread"`
}

// ThreadCounts holds the thread-level totals across all folders.
type ThreadCounts struct {
	Total   int `json:"total"`
	Starred int `json:"starred"`
	Unread  int `json:"unread"`
}

// MailboxCounts aggregates per-folder and per-thread totals for a user.
// Everything is derived on demand; nothing is materialized.
type MailboxCounts struct {
	Folders      map[int64]FolderCounts `json:"folders"`
	Starred      int                    `json:"starred"`
	Unread       int                    `json:"unread"`
	Total        int                    `json:"total"`
	ThreadCounts ThreadCounts           `json:"thread_counts"`
}
