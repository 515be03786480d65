// Package postgres provides the PostgreSQL implementation of the
// [github.com/draftsmith/draftsmith/pkg/store.Store] interface using GORM.
//
// Live books and chapters map directly to tables through the GORM struct
// tags on the [github.com/draftsmith/draftsmith/pkg/models] types; list-valued
// fields (chapter ordering, blocks, history entries) live in jsonb columns
// via their Valuer/Scanner implementations. Archived copies are stored in
// separate tables as CBOR payload blobs keyed by entity id, which keeps the
// archive schema stable even when the live model grows columns.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/draftsmith/draftsmith/pkg/models"
	"github.com/draftsmith/draftsmith/pkg/store"
)

// archivedBook is the deleted-books table. Payload is the CBOR-encoded
// models.Book at the moment of archiving.
type archivedBook struct {
	ID         models.BookID `gorm:"type:uuid;primary_key"`
	OwnerID    models.UserID `gorm:"type:uuid;index"`
	ArchivedAt time.Time
	Payload    []byte `gorm:"type:bytea"`
}

func (archivedBook) TableName() string { return "archived_books" }

// archivedChapter is the deleted-chapters table.
type archivedChapter struct {
	ID         models.ChapterID `gorm:"type:uuid;primary_key"`
	BookID     models.BookID    `gorm:"type:uuid;index"`
	ArchivedAt time.Time
	Payload    []byte `gorm:"type:bytea"`
}

func (archivedChapter) TableName() string { return "archived_chapters" }

// chapterCache holds derived per-chapter artifacts (search vectors and the
// like) written by adjacent subsystems. The core only deletes rows here.
type chapterCache struct {
	ChapterID models.ChapterID `gorm:"type:uuid;primary_key"`
	Payload   []byte           `gorm:"type:bytea"`
	UpdatedAt time.Time
}

func (chapterCache) TableName() string { return "chapter_caches" }

// PostgresStore implements the Store interface using PostgreSQL with GORM.
type PostgresStore struct {
	db  *gorm.DB
	now func() time.Time
}

// New creates a new PostgreSQL store.
func New(dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &PostgresStore{db: db, now: time.Now}, nil
}

var _ store.Store = (*PostgresStore)(nil)

// Migrate creates missing tables, columns, and indexes via GORM AutoMigrate.
// Safe to run repeatedly; it only adds schema elements.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(
		&models.Book{},
		&models.Chapter{},
		&models.History{},
		&archivedBook{},
		&archivedChapter{},
		&chapterCache{},
	)
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Book operations
func (s *PostgresStore) CreateBook(ctx context.Context, book *models.Book) error {
	return s.db.WithContext(ctx).Create(book).Error
}

func (s *PostgresStore) GetBook(ctx context.Context, id models.BookID) (*models.Book, error) {
	var book models.Book
	err := s.db.WithContext(ctx).First(&book, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &book, nil
}

func (s *PostgresStore) UpdateBook(ctx context.Context, book *models.Book) error {
	return s.db.WithContext(ctx).Save(book).Error
}

func (s *PostgresStore) DeleteBook(ctx context.Context, id models.BookID) error {
	return s.db.WithContext(ctx).Delete(&models.Book{}, "id = ?", id).Error
}

func (s *PostgresStore) ListBooks(ctx context.Context, ownerID models.UserID) ([]*models.Book, error) {
	books := make([]*models.Book, 0)
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at ASC").
		Find(&books).Error
	if err != nil {
		return nil, err
	}
	return books, nil
}

// Chapter operations
func (s *PostgresStore) CreateChapter(ctx context.Context, chapter *models.Chapter) error {
	return s.db.WithContext(ctx).Create(chapter).Error
}

func (s *PostgresStore) GetChapter(ctx context.Context, id models.ChapterID) (*models.Chapter, error) {
	var chapter models.Chapter
	err := s.db.WithContext(ctx).First(&chapter, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &chapter, nil
}

func (s *PostgresStore) UpdateChapter(ctx context.Context, chapter *models.Chapter) error {
	return s.db.WithContext(ctx).Save(chapter).Error
}

func (s *PostgresStore) DeleteChapter(ctx context.Context, id models.ChapterID) error {
	return s.db.WithContext(ctx).Delete(&models.Chapter{}, "id = ?", id).Error
}

func (s *PostgresStore) ListChapters(ctx context.Context, bookID models.BookID) ([]*models.Chapter, error) {
	chapters := make([]*models.Chapter, 0)
	err := s.db.WithContext(ctx).
		Where("book_id = ?", bookID).
		Find(&chapters).Error
	if err != nil {
		return nil, err
	}
	return chapters, nil
}

// Archive operations
func (s *PostgresStore) ArchiveBook(ctx context.Context, book *models.Book) error {
	payload, err := cbor.Marshal(book)
	if err != nil {
		return fmt.Errorf("failed to encode archived book: %w", err)
	}
	record := archivedBook{
		ID:         book.ID,
		OwnerID:    book.OwnerID,
		ArchivedAt: s.now(),
		Payload:    payload,
	}
	return s.db.WithContext(ctx).Save(&record).Error
}

func (s *PostgresStore) ArchiveChapter(ctx context.Context, chapter *models.Chapter) error {
	payload, err := cbor.Marshal(chapter)
	if err != nil {
		return fmt.Errorf("failed to encode archived chapter: %w", err)
	}
	record := archivedChapter{
		ID:         chapter.ID,
		BookID:     chapter.BookID,
		ArchivedAt: s.now(),
		Payload:    payload,
	}
	return s.db.WithContext(ctx).Save(&record).Error
}

func (s *PostgresStore) GetArchivedBook(ctx context.Context, id models.BookID) (*models.Book, error) {
	var record archivedBook
	err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var book models.Book
	if err := cbor.Unmarshal(record.Payload, &book); err != nil {
		return nil, fmt.Errorf("failed to decode archived book %s: %w", id, err)
	}
	return &book, nil
}

func (s *PostgresStore) GetArchivedChapter(ctx context.Context, id models.ChapterID) (*models.Chapter, error) {
	var record archivedChapter
	err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var chapter models.Chapter
	if err := cbor.Unmarshal(record.Payload, &chapter); err != nil {
		return nil, fmt.Errorf("failed to decode archived chapter %s: %w", id, err)
	}
	return &chapter, nil
}

// History operations
func (s *PostgresStore) GetHistory(ctx context.Context, chapterID models.ChapterID) (*models.History, error) {
	var history models.History
	err := s.db.WithContext(ctx).First(&history, "chapter_id = ?", chapterID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &history, nil
}

func (s *PostgresStore) PutHistory(ctx context.Context, history *models.History) error {
	return s.db.WithContext(ctx).Save(history).Error
}

func (s *PostgresStore) DeleteHistory(ctx context.Context, chapterID models.ChapterID) error {
	return s.db.WithContext(ctx).Delete(&models.History{}, "chapter_id = ?", chapterID).Error
}

func (s *PostgresStore) DeleteChapterCache(ctx context.Context, chapterID models.ChapterID) error {
	return s.db.WithContext(ctx).Delete(&chapterCache{}, "chapter_id = ?", chapterID).Error
}
