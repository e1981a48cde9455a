package models

import "time"

// FolderType tags a folder with its system role. Every user has exactly one
// folder of each system type; custom folders are user-created.
type FolderType string

const (
	FolderInbox   FolderType = "inbox"
	FolderSent    FolderType = "sent"
	FolderDrafts  FolderType = "drafts"
	FolderTrash   FolderType = "trash"
	FolderSpam    FolderType = "spam"
	FolderArchive FolderType = "archive"
	FolderCustom  FolderType = "custom"
)

// SystemFolderTypes lists the folder types provisioned for every user, in
// display order.
var SystemFolderTypes = []FolderType{
	FolderInbox,
	FolderSent,
	FolderDrafts,
	FolderTrash,
	FolderSpam,
	FolderArchive,
}

// Valid reports whether t is one of the known folder types.
func (t FolderType) Valid() bool {
	switch t {
	case FolderInbox, FolderSent, FolderDrafts, FolderTrash, FolderSpam, FolderArchive, FolderCustom:
		return true
	}
	return false
}

// IsSystem reports whether t is a system folder type.
func (t FolderType) IsSystem() bool {
	return t.Valid() && t != FolderCustom
}

// DisplayName returns the canonical display name for a system folder type.
func (t FolderType) DisplayName() string {
	switch t {
	case FolderInbox:
		return "Inbox"
	case FolderSent:
		return "Sent"
	case FolderDrafts:
		return "Drafts"
	case FolderTrash:
		return "Trash"
	case FolderSpam:
		return "Spam"
	case FolderArchive:
		return "Archive"
	}
	return string(t)
}

type Folder struct {
	ID          int64      `json:"folder_id"`
	UserID      string     `json:"user_id"`
	Name        string     `json:"name"`
	Type        FolderType `json:"type"`
	ParentID    *int64     `json:"parent_id,omitempty"`
	Color       *string    `json:"color,omitempty"`
	Icon        *string    `json:"icon,omitempty"`
	SortOrder   int        `json:"sort_order"`
	SyncEnabled bool       `json:"sync_enabled"`
	CreatedAt   time.Time  `json:"created_at"`
}

// FolderInfo is the folder summary embedded in message responses.
type FolderInfo struct {
	ID    int64      `json:"folder_id"`
	Name  string     `json:"name"`
	Type  FolderType `json:"type"`
	Color *string    `json:"color,omitempty"`
	Icon  *string    `json:"icon,omitempty"`
}
