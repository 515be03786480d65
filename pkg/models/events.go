package models

import (
	"encoding/json"
	"time"
)

// ChangeType tags a ChangeEvent with the mutation it describes.
type ChangeType string

const (
	ChangeBookCreate     ChangeType = "book_create"
	ChangeBookUpdate     ChangeType = "book_update"
	ChangeBookDelete     ChangeType = "book_delete"
	ChangeChapterCreate  ChangeType = "chapter_create"
	ChangeChapterUpdate  ChangeType = "chapter_update"
	ChangeChapterDelete  ChangeType = "chapter_delete"
	ChangeSettingsUpdate ChangeType = "settings_update"
)

// ChangeEvent is pushed to every live session of an owner after a successful
// mutation, including the session that originated it, so multi-tab sessions
// converge uniformly. Receivers replace their local copy of the carried
// entity unconditionally and adopt Timestamp as their new sync token.
//
// Exactly one of Book, Chapter, or Settings is set, matching Type. Delete
// events carry the entity as it was archived.
type ChangeEvent struct {
	Type      ChangeType      `json:"type"`
	Book      *Book           `json:"book,omitempty"`
	Chapter   *Chapter        `json:"chapter,omitempty"`
	Settings  json.RawMessage `json:"settings,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}
