package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	stdlog "log"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"mbdocs-server/core"
)

type sqliteStore struct {
	db *sql.DB
}

// NewStore creates a new SQLite-based store.
func NewStore(dataSourceName string) *sqliteStore {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		stdlog.Fatalf("failed to open sqlite database: %v", err)
	}
	// sqlite allows one writer at a time; serializing through a single
	// connection avoids SQLITE_BUSY under concurrent joins.
	db.SetMaxOpenConns(1)

	documentsTable := `CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		content BLOB,
		owner_id TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);`
	if _, err = db.Exec(documentsTable); err != nil {
		stdlog.Fatalf("failed to create documents table: %v", err)
	}

	usersTable := `CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE COLLATE NOCASE,
		password_hash TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);`
	if _, err = db.Exec(usersTable); err != nil {
		stdlog.Fatalf("failed to create users table: %v", err)
	}

	return &sqliteStore{db}
}

func storageErr(err error) error {
	return fmt.Errorf("%w: %v", core.ErrStorageUnavailable, err)
}

// LoadOrCreate inserts the document if it is unseen and reads it back in
// either case. The primary key resolves creation races: the losing insert
// is a no-op and both callers read the winning row.
func (s *sqliteStore) LoadOrCreate(ctx context.Context, id, ownerID string) (*core.Document, error) {
	log := logrus.WithField("document_id", id)

	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO documents (id, title, content, owner_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT(id) DO NOTHING",
		id, core.DefaultTitle, []byte{}, ownerID, now, now)
	if err != nil {
		log.WithError(err).Error("Failed to create document")
		return nil, storageErr(err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		log.WithField("owner_id", ownerID).Info("Document created successfully")
	}

	doc, err := s.FindID(ctx, id)
	if err != nil {
		log.WithError(err).Error("Failed to read document back")
		return nil, err
	}
	return doc, nil
}

func (s *sqliteStore) Save(ctx context.Context, id string, content []byte) error {
	log := logrus.WithFields(logrus.Fields{
		"document_id": id,
		"data_length": len(content),
	})

	res, err := s.db.ExecContext(ctx,
		"UPDATE documents SET content = ?, updated_at = ? WHERE id = ?",
		content, time.Now(), id)
	if err != nil {
		log.WithError(err).Error("Failed to save document")
		return storageErr(err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return storageErr(err)
	}
	if rows == 0 {
		log.Warn("Document with specified ID not found")
		return fmt.Errorf("document with id %s: %w", id, core.ErrNotFound)
	}

	log.Debug("Document saved successfully")
	return nil
}

func (s *sqliteStore) FindID(ctx context.Context, id string) (*core.Document, error) {
	var doc core.Document
	err := s.db.QueryRowContext(ctx,
		"SELECT id, title, content, owner_id, created_at, updated_at FROM documents WHERE id = ?",
		id).Scan(&doc.ID, &doc.Title, &doc.Content, &doc.OwnerID, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("document with id %s: %w", id, core.ErrNotFound)
		}
		return nil, storageErr(err)
	}
	return &doc, nil
}

func (s *sqliteStore) ListByOwner(ctx context.Context, ownerID string) ([]*core.Document, error) {
	log := logrus.WithField("owner_id", ownerID)

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, title, owner_id, created_at, updated_at FROM documents WHERE owner_id = ? ORDER BY updated_at DESC, id ASC",
		ownerID)
	if err != nil {
		log.WithError(err).Error("Failed to list documents")
		return nil, storageErr(err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			log.WithError(cerr).Warn("Failed to close document rows")
		}
	}()

	docs := make([]*core.Document, 0)
	for rows.Next() {
		var doc core.Document
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.OwnerID, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			log.WithError(err).Error("Failed to scan document")
			return nil, storageErr(err)
		}
		docs = append(docs, &doc)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}
	return docs, nil
}

func (s *sqliteStore) Rename(ctx context.Context, id, title string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE documents SET title = ?, updated_at = ? WHERE id = ?",
		title, time.Now(), id)
	if err != nil {
		return storageErr(err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return storageErr(err)
	}
	if rows == 0 {
		return fmt.Errorf("document with id %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (s *sqliteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return storageErr(err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return storageErr(err)
	}
	if rows == 0 {
		return fmt.Errorf("document with id %s: %w", id, core.ErrNotFound)
	}
	return nil
}

// UserStore implementation

func (s *sqliteStore) CreateUser(ctx context.Context, user *core.User) (string, error) {
	id := ulid.Make().String()
	now := time.Now()
	log := logrus.WithFields(logrus.Fields{
		"user_id": id,
		"email":   user.Email,
	})

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (id, name, email, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		id, user.Name, user.Email, user.PasswordHash, now, now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return "", core.ErrEmailTaken
		}
		log.WithError(err).Error("Failed to create user")
		return "", storageErr(err)
	}

	log.Info("User created successfully")
	return id, nil
}

func (s *sqliteStore) FindUserID(ctx context.Context, id string) (*core.User, error) {
	return s.findUser(ctx, "id = ?", id)
}

func (s *sqliteStore) FindEmail(ctx context.Context, email string) (*core.User, error) {
	return s.findUser(ctx, "email = ? COLLATE NOCASE", email)
}

func (s *sqliteStore) findUser(ctx context.Context, where string, arg any) (*core.User, error) {
	var user core.User
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, password_hash, created_at, updated_at FROM users WHERE "+where,
		arg).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %v: %w", arg, core.ErrNotFound)
		}
		return nil, storageErr(err)
	}
	return &user, nil
}

func (s *sqliteStore) UpdateUser(ctx context.Context, user *core.User) error {
	query := "UPDATE users SET name = ?, email = ?, updated_at = ? WHERE id = ?"
	args := []any{user.Name, user.Email, time.Now(), user.ID}
	if user.PasswordHash != "" {
		query = "UPDATE users SET name = ?, email = ?, password_hash = ?, updated_at = ? WHERE id = ?"
		args = []any{user.Name, user.Email, user.PasswordHash, time.Now(), user.ID}
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return storageErr(err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return storageErr(err)
	}
	if rows == 0 {
		return fmt.Errorf("user with id %s: %w", user.ID, core.ErrNotFound)
	}
	return nil
}
