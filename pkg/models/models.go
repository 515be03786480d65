package models

import (
	"database/sql/driver"
	"encoding/json"
	"strings"
	"time"
)

// BlockType represents the type of content block
type BlockType string

const (
	BlockTypeText      BlockType = "text"
	BlockTypeMarkdown  BlockType = "markdown"
	BlockTypeCode      BlockType = "code"
	BlockTypeTodo      BlockType = "todo"
	BlockTypeImage     BlockType = "image"
	BlockTypeReference BlockType = "reference"
)

// BlockVersion is a point-in-time snapshot of a single block's text,
// kept inline on the block itself (distinct from chapter-level history).
type BlockVersion struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Block is a building block of chapter content. Only its serialized text
// participates in chapter history; the rest is editor state.
type Block struct {
	ID       BlockID        `json:"id"`
	Type     BlockType      `json:"type"`
	Text     string         `json:"text"`
	Open     bool           `json:"open"`
	Versions []BlockVersion `json:"versions,omitempty"`
}

// BlockList stores a chapter's blocks as a single serialized column.
type BlockList []Block

// Value implements the driver.Valuer interface for database storage
func (l BlockList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

// Scan implements the sql.Scanner interface for database retrieval
func (l *BlockList) Scan(value any) error {
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

func (BlockList) GormDataType() string { return "jsonb" }

// ChapterIDList stores a book's chapter ordering as a single serialized column.
type ChapterIDList []ChapterID

// Value implements the driver.Valuer interface for database storage
func (l ChapterIDList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

// Scan implements the sql.Scanner interface for database retrieval
func (l *ChapterIDList) Scan(value any) error {
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

func (ChapterIDList) GormDataType() string { return "jsonb" }

// Book is the top-level container of a user's document tree. CreatedAt doubles
// as the last-modified stamp and is the reference timestamp for staleness
// checks; every save re-stamps it together with LastSyncedAt.
type Book struct {
	ID           BookID        `gorm:"type:uuid;primary_key" json:"id"`
	OwnerID      UserID        `gorm:"type:uuid;not null;index" json:"owner_id"`
	Title        string        `json:"title"`
	ChapterOrder ChapterIDList `gorm:"type:jsonb" json:"chapter_order"`
	Scratch      bool          `json:"scratch"`
	CreatedAt    time.Time     `json:"created_at"`
	LastSyncedAt time.Time     `json:"last_synced_at"`
}

// Normalize de-duplicates ChapterOrder in place, keeping first occurrences.
// ChapterOrder must contain each chapter id at most once; client payloads are
// not trusted to uphold that.
func (b *Book) Normalize() {
	if len(b.ChapterOrder) < 2 {
		return
	}
	seen := make(map[ChapterID]struct{}, len(b.ChapterOrder))
	deduped := b.ChapterOrder[:0]
	for _, id := range b.ChapterOrder {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		deduped = append(deduped, id)
	}
	b.ChapterOrder = deduped
}

// Stamp sets both timestamps to now. Called by the repository inside a
// guarded write; the returned value becomes the caller's new sync token.
func (b *Book) Stamp(now time.Time) time.Time {
	b.CreatedAt = now
	b.LastSyncedAt = now
	return now
}

// Chapter is an ordered list of blocks within a book.
type Chapter struct {
	ID           ChapterID `gorm:"type:uuid;primary_key" json:"id"`
	BookID       BookID    `gorm:"type:uuid;not null;index" json:"book_id"`
	OwnerID      UserID    `gorm:"type:uuid;not null;index" json:"owner_id"`
	Title        string    `json:"title"`
	Blocks       BlockList `gorm:"type:jsonb" json:"blocks"`
	CreatedAt    time.Time `json:"created_at"`
	LastSyncedAt time.Time `json:"last_synced_at"`
}

// Stamp sets both timestamps to now, mirroring Book.Stamp.
func (c *Chapter) Stamp(now time.Time) time.Time {
	c.CreatedAt = now
	c.LastSyncedAt = now
	return now
}

// PlainText serializes the chapter's block texts for history commits.
// Blocks are joined with a blank line; block type and editor state are not
// part of the committed text.
func (c *Chapter) PlainText() string {
	texts := make([]string, 0, len(c.Blocks))
	for _, b := range c.Blocks {
		texts = append(texts, b.Text)
	}
	return strings.Join(texts, "\n\n")
}
