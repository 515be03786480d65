package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// BookID is a typed ID for books
type BookID struct {
	uuid uuid.UUID
}

func NewBookID() BookID {
	return BookID{uuid: uuid.New()}
}

func NewBookIDFromUUID(id uuid.UUID) BookID {
	return BookID{uuid: id}
}

func ParseBookID(s string) (BookID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return BookID{}, fmt.Errorf("invalid book ID: %w", err)
	}
	return BookID{uuid: id}, nil
}

func (b BookID) UUID() uuid.UUID { return b.uuid }
func (b BookID) String() string  { return b.uuid.String() }
func (b BookID) IsZero() bool    { return b.uuid == uuid.Nil }

func (b BookID) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.uuid.String())
}

func (b *BookID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	b.uuid = id
	return nil
}

func (b BookID) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(b.uuid.String())
}

func (b *BookID) UnmarshalCBOR(data []byte) error {
	return unmarshalCBORID(data, &b.uuid)
}

func (b BookID) Value() (driver.Value, error) {
	if b.IsZero() {
		return nil, nil
	}
	return b.uuid.String(), nil
}

func (b *BookID) Scan(value any) error {
	return scanUUID(value, &b.uuid)
}

func (BookID) GormDataType() string { return "uuid" }

// ChapterID is a typed ID for chapters
type ChapterID struct {
	uuid uuid.UUID
}

func NewChapterID() ChapterID {
	return ChapterID{uuid: uuid.New()}
}

func NewChapterIDFromUUID(id uuid.UUID) ChapterID {
	return ChapterID{uuid: id}
}

func ParseChapterID(s string) (ChapterID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return ChapterID{}, fmt.Errorf("invalid chapter ID: %w", err)
	}
	return ChapterID{uuid: id}, nil
}

func (c ChapterID) UUID() uuid.UUID { return c.uuid }
func (c ChapterID) String() string  { return c.uuid.String() }
func (c ChapterID) IsZero() bool    { return c.uuid == uuid.Nil }

func (c ChapterID) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.uuid.String())
}

func (c *ChapterID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	c.uuid = id
	return nil
}

func (c ChapterID) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(c.uuid.String())
}

func (c *ChapterID) UnmarshalCBOR(data []byte) error {
	return unmarshalCBORID(data, &c.uuid)
}

func (c ChapterID) Value() (driver.Value, error) {
	if c.IsZero() {
		return nil, nil
	}
	return c.uuid.String(), nil
}

func (c *ChapterID) Scan(value any) error {
	return scanUUID(value, &c.uuid)
}

func (ChapterID) GormDataType() string { return "uuid" }

// BlockID is a typed ID for content blocks
type BlockID struct {
	uuid uuid.UUID
}

func NewBlockID() BlockID {
	return BlockID{uuid: uuid.New()}
}

func ParseBlockID(s string) (BlockID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return BlockID{}, fmt.Errorf("invalid block ID: %w", err)
	}
	return BlockID{uuid: id}, nil
}

func (b BlockID) UUID() uuid.UUID { return b.uuid }
func (b BlockID) String() string  { return b.uuid.String() }
func (b BlockID) IsZero() bool    { return b.uuid == uuid.Nil }

func (b BlockID) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.uuid.String())
}

func (b *BlockID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	b.uuid = id
	return nil
}

func (b BlockID) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(b.uuid.String())
}

func (b *BlockID) UnmarshalCBOR(data []byte) error {
	return unmarshalCBORID(data, &b.uuid)
}

func (b BlockID) Value() (driver.Value, error) {
	if b.IsZero() {
		return nil, nil
	}
	return b.uuid.String(), nil
}

func (b *BlockID) Scan(value any) error {
	return scanUUID(value, &b.uuid)
}

func (BlockID) GormDataType() string { return "uuid" }

// UserID is a typed ID for account owners
type UserID struct {
	uuid uuid.UUID
}

func NewUserID() UserID {
	return UserID{uuid: uuid.New()}
}

func NewUserIDFromUUID(id uuid.UUID) UserID {
	return UserID{uuid: id}
}

func ParseUserID(s string) (UserID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return UserID{}, fmt.Errorf("invalid user ID: %w", err)
	}
	return UserID{uuid: id}, nil
}

func (u UserID) UUID() uuid.UUID { return u.uuid }
func (u UserID) String() string  { return u.uuid.String() }
func (u UserID) IsZero() bool    { return u.uuid == uuid.Nil }

func (u UserID) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.uuid.String())
}

func (u *UserID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	u.uuid = id
	return nil
}

func (u UserID) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(u.uuid.String())
}

func (u *UserID) UnmarshalCBOR(data []byte) error {
	return unmarshalCBORID(data, &u.uuid)
}

func (u UserID) Value() (driver.Value, error) {
	if u.IsZero() {
		return nil, nil
	}
	return u.uuid.String(), nil
}

func (u *UserID) Scan(value any) error {
	return scanUUID(value, &u.uuid)
}

func (UserID) GormDataType() string { return "uuid" }

// EntryID is a typed ID for history commit entries
type EntryID struct {
	uuid uuid.UUID
}

func NewEntryID() EntryID {
	return EntryID{uuid: uuid.New()}
}

func ParseEntryID(s string) (EntryID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return EntryID{}, fmt.Errorf("invalid entry ID: %w", err)
	}
	return EntryID{uuid: id}, nil
}

func (e EntryID) UUID() uuid.UUID { return e.uuid }
func (e EntryID) String() string  { return e.uuid.String() }
func (e EntryID) IsZero() bool    { return e.uuid == uuid.Nil }

func (e EntryID) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.uuid.String())
}

func (e *EntryID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	e.uuid = id
	return nil
}

func (e EntryID) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(e.uuid.String())
}

func (e *EntryID) UnmarshalCBOR(data []byte) error {
	return unmarshalCBORID(data, &e.uuid)
}

func (e EntryID) Value() (driver.Value, error) {
	if e.IsZero() {
		return nil, nil
	}
	return e.uuid.String(), nil
}

func (e *EntryID) Scan(value any) error {
	return scanUUID(value, &e.uuid)
}

func (EntryID) GormDataType() string { return "uuid" }

// scanUUID handles the common sql.Scanner logic for all typed IDs.
func scanUUID(value any, target *uuid.UUID) error {
	if value == nil {
		*target = uuid.Nil
		return nil
	}
	switch v := value.(type) {
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return err
		}
		*target = id
	case []byte:
		id, err := uuid.Parse(string(v))
		if err != nil {
			return err
		}
		*target = id
	default:
		return fmt.Errorf("cannot scan %T into UUID", value)
	}
	return nil
}

// unmarshalCBORID decodes an ID stored as a plain CBOR string.
func unmarshalCBORID(data []byte, target *uuid.UUID) error {
	var s string
	if err := cbor.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	*target = id
	return nil
}
