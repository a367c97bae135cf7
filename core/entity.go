package core

import (
	"context"
	"time"
)

type (
	// OpaquePayload carries edit deltas and document content through the
	// realtime layer. The server stores and forwards it, never interprets it.
	OpaquePayload = any

	// Document is a persisted text document. Content is an opaque snapshot
	// of whatever the client last saved.
	Document struct {
		ID        string    `json:"docId"`
		Title     string    `json:"title"`
		Content   []byte    `json:"content,omitempty"`
		OwnerID   string    `json:"ownerId"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	User struct {
		ID           string    `json:"id"`
		Name         string    `json:"name"`
		Email        string    `json:"email"`
		PasswordHash string    `json:"-"`
		CreatedAt    time.Time `json:"createdAt"`
		UpdatedAt    time.Time `json:"updatedAt"`
	}

	// DocumentStore is the persistence gateway for documents.
	DocumentStore interface {
		// LoadOrCreate returns the document with the given id, creating it
		// with empty content and the given owner if it does not exist.
		// Concurrent callers racing on an unseen id converge on one record.
		LoadOrCreate(ctx context.Context, id, ownerID string) (*Document, error)

		// Save replaces the stored content and bumps UpdatedAt. Returns
		// ErrNotFound if no document with the id exists; it never creates.
		Save(ctx context.Context, id string, content []byte) error

		// FindID returns a document by id, or ErrNotFound.
		FindID(ctx context.Context, id string) (*Document, error)

		// ListByOwner returns the owner's documents without content,
		// most recently updated first.
		ListByOwner(ctx context.Context, ownerID string) ([]*Document, error)

		// Rename updates a document's title, or returns ErrNotFound.
		Rename(ctx context.Context, id, title string) error

		// Delete removes a document, or returns ErrNotFound.
		Delete(ctx context.Context, id string) error
	}

	UserStore interface {
		// CreateUser persists a new user and returns its generated id.
		CreateUser(ctx context.Context, user *User) (string, error)
		FindUserID(ctx context.Context, id string) (*User, error)
		FindEmail(ctx context.Context, email string) (*User, error)
		// UpdateUser replaces name, email and password hash for user.ID.
		UpdateUser(ctx context.Context, user *User) error
	}
)

// DefaultTitle is assigned when a document is created or renamed to blank.
const DefaultTitle = "New Document"
