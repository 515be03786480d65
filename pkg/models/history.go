package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Commit is a structured history entry. For the first entry of a history the
// Patch field holds the full base text; for every later entry it holds a
// diff-match-patch text patch relative to the text reconstructed from all
// prior entries.
type Commit struct {
	ID        EntryID    `json:"id"`
	Message   string     `json:"message"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Patch     string     `json:"patch"`
}

// Entry is one element of a chapter's history: either a legacy bare patch
// string written before commits were structured records, or a Commit.
// Exactly one of the two forms is set. Legacy entries are upgraded to
// commits the first time their message is edited.
type Entry struct {
	Legacy string
	Commit *Commit
}

// NewCommitEntry returns a structured entry with a fresh entry ID.
func NewCommitEntry(message string, timestamp *time.Time, patch string) Entry {
	return Entry{Commit: &Commit{
		ID:        NewEntryID(),
		Message:   message,
		Timestamp: timestamp,
		Patch:     patch,
	}}
}

// IsLegacy reports whether the entry is a pre-structured bare patch string.
func (e Entry) IsLegacy() bool {
	return e.Commit == nil
}

// Patch returns the stored patch text regardless of entry form.
func (e Entry) Patch() string {
	if e.Commit != nil {
		return e.Commit.Patch
	}
	return e.Legacy
}

// Message returns the commit message, empty for legacy entries.
func (e Entry) Message() string {
	if e.Commit != nil {
		return e.Commit.Message
	}
	return ""
}

// Timestamp returns the commit timestamp, nil for legacy entries.
func (e Entry) Timestamp() *time.Time {
	if e.Commit != nil {
		return e.Commit.Timestamp
	}
	return nil
}

// MarshalJSON preserves the stored wire format: legacy entries stay bare
// strings, structured entries are objects.
func (e Entry) MarshalJSON() ([]byte, error) {
	if e.Commit != nil {
		return json.Marshal(e.Commit)
	}
	return json.Marshal(e.Legacy)
}

// UnmarshalJSON accepts both forms.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		e.Legacy = s
		e.Commit = nil
		return nil
	}
	var c Commit
	if err := json.Unmarshal(data, &c); err != nil {
		return err
	}
	e.Legacy = ""
	e.Commit = &c
	return nil
}

// MarshalCBOR mirrors the JSON encoding for stores that clone or persist
// records as CBOR.
func (e Entry) MarshalCBOR() ([]byte, error) {
	if e.Commit != nil {
		return cbor.Marshal(e.Commit)
	}
	return cbor.Marshal(e.Legacy)
}

// UnmarshalCBOR accepts both forms.
func (e *Entry) UnmarshalCBOR(data []byte) error {
	var s string
	if err := cbor.Unmarshal(data, &s); err == nil {
		e.Legacy = s
		e.Commit = nil
		return nil
	}
	var c Commit
	if err := cbor.Unmarshal(data, &c); err != nil {
		return err
	}
	e.Legacy = ""
	e.Commit = &c
	return nil
}

// EntryList stores a history's entries as a single serialized column.
type EntryList []Entry

// Value implements the driver.Valuer interface for database storage
func (l EntryList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

// Scan implements the sql.Scanner interface for database retrieval
func (l *EntryList) Scan(value any) error {
	if value == nil {
		*l = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		bytes = []byte(value.(string))
	}
	return json.Unmarshal(bytes, l)
}

func (EntryList) GormDataType() string { return "jsonb" }

// History is the append-only diff chain of a chapter. Entries are immutable
// except for message edits; exceeding the configured cap is a rejected
// operation, never a silent compaction.
type History struct {
	ChapterID ChapterID `gorm:"type:uuid;primary_key" json:"chapter_id"`
	Entries   EntryList `gorm:"type:jsonb" json:"entries"`
}

// HistoryEntryView is the external representation of one history entry.
// Patches are an internal storage detail and are not exposed here.
type HistoryEntryView struct {
	Index     int        `json:"index"`
	Message   string     `json:"message"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}
