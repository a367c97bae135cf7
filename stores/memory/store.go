package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"mbdocs-server/core"
)

// memStore implements DocumentStore and UserStore for in-memory storage.
// All state is struct-local so independent stores can coexist in tests.
type memStore struct {
	mu        sync.RWMutex
	documents map[string]*core.Document
	users     map[string]*core.User
}

// NewStore creates a new in-memory store.
func NewStore() *memStore {
	return &memStore{
		documents: make(map[string]*core.Document),
		users:     make(map[string]*core.User),
	}
}

func copyDocument(doc *core.Document, withContent bool) *core.Document {
	out := *doc
	if withContent {
		out.Content = append([]byte(nil), doc.Content...)
	} else {
		out.Content = nil
	}
	return &out
}

// LoadOrCreate returns the document with the given id, creating it with
// empty content if it does not exist. Both paths run under one lock, so
// two connections racing to be first converge on the same record.
func (s *memStore) LoadOrCreate(ctx context.Context, id, ownerID string) (*core.Document, error) {
	log := logrus.WithField("document_id", id)

	s.mu.Lock()
	defer s.mu.Unlock()

	if doc, ok := s.documents[id]; ok {
		log.Debug("Document retrieved successfully")
		return copyDocument(doc, true), nil
	}

	now := time.Now()
	doc := &core.Document{
		ID:        id,
		Title:     core.DefaultTitle,
		Content:   []byte{},
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.documents[id] = doc

	log.WithField("owner_id", ownerID).Info("Document created successfully")
	return copyDocument(doc, true), nil
}

func (s *memStore) Save(ctx context.Context, id string, content []byte) error {
	log := logrus.WithFields(logrus.Fields{
		"document_id": id,
		"data_length": len(content),
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[id]
	if !ok {
		log.Warn("Document with specified ID not found")
		return fmt.Errorf("document with id %s: %w", id, core.ErrNotFound)
	}

	doc.Content = append([]byte(nil), content...)
	doc.UpdatedAt = time.Now()
	log.Debug("Document saved successfully")
	return nil
}

func (s *memStore) FindID(ctx context.Context, id string) (*core.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[id]
	if !ok {
		return nil, fmt.Errorf("document with id %s: %w", id, core.ErrNotFound)
	}
	return copyDocument(doc, true), nil
}

func (s *memStore) ListByOwner(ctx context.Context, ownerID string) ([]*core.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]*core.Document, 0)
	for _, doc := range s.documents {
		if doc.OwnerID == ownerID {
			docs = append(docs, copyDocument(doc, false))
		}
	}

	sort.Slice(docs, func(i, j int) bool {
		if docs[i].UpdatedAt.Equal(docs[j].UpdatedAt) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].UpdatedAt.After(docs[j].UpdatedAt)
	})

	return docs, nil
}

func (s *memStore) Rename(ctx context.Context, id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[id]
	if !ok {
		return fmt.Errorf("document with id %s: %w", id, core.ErrNotFound)
	}
	doc.Title = title
	doc.UpdatedAt = time.Now()
	return nil
}

func (s *memStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[id]; !ok {
		return fmt.Errorf("document with id %s: %w", id, core.ErrNotFound)
	}
	delete(s.documents, id)
	return nil
}

// UserStore implementation

func (s *memStore) CreateUser(ctx context.Context, user *core.User) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(user.Email)
	for _, existing := range s.users {
		if strings.ToLower(existing.Email) == email {
			return "", core.ErrEmailTaken
		}
	}

	id := ulid.Make().String()
	now := time.Now()
	stored := *user
	stored.ID = id
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.users[id] = &stored

	logrus.WithFields(logrus.Fields{
		"user_id": id,
		"email":   user.Email,
	}).Info("User created successfully")
	return id, nil
}

func (s *memStore) FindUserID(ctx context.Context, id string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user with id %s: %w", id, core.ErrNotFound)
	}
	out := *user
	return &out, nil
}

func (s *memStore) FindEmail(ctx context.Context, email string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if strings.EqualFold(user.Email, email) {
			out := *user
			return &out, nil
		}
	}
	return nil, fmt.Errorf("user with email %s: %w", email, core.ErrNotFound)
}

func (s *memStore) UpdateUser(ctx context.Context, user *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		return fmt.Errorf("user with id %s: %w", user.ID, core.ErrNotFound)
	}

	existing.Name = user.Name
	existing.Email = user.Email
	if user.PasswordHash != "" {
		existing.PasswordHash = user.PasswordHash
	}
	existing.UpdatedAt = time.Now()
	return nil
}
