package filesystem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	stdlog "log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"mbdocs-server/core"
)

// fsStore persists documents and users as one JSON file each. A process
// mutex serializes writers; the document file name is the document id, so
// creation is idempotent per id.
type fsStore struct {
	mu       sync.Mutex
	basePath string
}

// NewStore creates a new filesystem-based store.
func NewStore(basePath string) *fsStore {
	for _, dir := range []string{"documents", "users"} {
		if err := os.MkdirAll(filepath.Join(basePath, dir), 0755); err != nil {
			stdlog.Fatalf("failed to create %s directory: %v", dir, err)
		}
	}
	return &fsStore{basePath: basePath}
}

type storedDocument struct {
	ID        string    `json:"docId"`
	Title     string    `json:"title"`
	Content   []byte    `json:"content"`
	OwnerID   string    `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (s *fsStore) documentPath(id string) string {
	return filepath.Join(s.basePath, "documents", id+".json")
}

func (s *fsStore) userPath(id string) string {
	return filepath.Join(s.basePath, "users", id+".json")
}

func (s *fsStore) readDocument(id string) (*core.Document, error) {
	data, err := os.ReadFile(s.documentPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("document with id %s: %w", id, core.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: %v", core.ErrStorageUnavailable, err)
	}

	var stored storedDocument
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStorageUnavailable, err)
	}
	return &core.Document{
		ID:        stored.ID,
		Title:     stored.Title,
		Content:   stored.Content,
		OwnerID:   stored.OwnerID,
		CreatedAt: stored.CreatedAt,
		UpdatedAt: stored.UpdatedAt,
	}, nil
}

func (s *fsStore) writeDocument(doc *core.Document) error {
	data, err := json.Marshal(storedDocument{
		ID:        doc.ID,
		Title:     doc.Title,
		Content:   doc.Content,
		OwnerID:   doc.OwnerID,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrStorageUnavailable, err)
	}
	if err := os.WriteFile(s.documentPath(doc.ID), data, 0644); err != nil {
		return fmt.Errorf("%w: %v", core.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *fsStore) LoadOrCreate(ctx context.Context, id, ownerID string) (*core.Document, error) {
	log := logrus.WithField("document_id", id)

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readDocument(id)
	if err == nil {
		log.Debug("Document retrieved successfully")
		return doc, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		log.WithError(err).Error("Failed to retrieve document")
		return nil, err
	}

	now := time.Now()
	doc = &core.Document{
		ID:        id,
		Title:     core.DefaultTitle,
		Content:   []byte{},
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.writeDocument(doc); err != nil {
		log.WithError(err).Error("Failed to create document")
		return nil, err
	}

	log.WithField("owner_id", ownerID).Info("Document created successfully")
	return doc, nil
}

func (s *fsStore) Save(ctx context.Context, id string, content []byte) error {
	log := logrus.WithFields(logrus.Fields{
		"document_id": id,
		"data_length": len(content),
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readDocument(id)
	if err != nil {
		log.Warn("Document with specified ID not found")
		return err
	}

	doc.Content = append([]byte(nil), content...)
	doc.UpdatedAt = time.Now()
	if err := s.writeDocument(doc); err != nil {
		log.WithError(err).Error("Failed to save document")
		return err
	}
	log.Debug("Document saved successfully")
	return nil
}

func (s *fsStore) FindID(ctx context.Context, id string) (*core.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readDocument(id)
}

func (s *fsStore) ListByOwner(ctx context.Context, ownerID string) ([]*core.Document, error) {
	log := logrus.WithField("owner_id", ownerID)

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(filepath.Join(s.basePath, "documents"))
	if err != nil {
		log.WithError(err).Error("Failed to read documents directory")
		return nil, fmt.Errorf("%w: %v", core.ErrStorageUnavailable, err)
	}

	docs := make([]*core.Document, 0)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		doc, err := s.readDocument(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			log.WithError(err).Warnf("Failed to read document file %s, skipping", entry.Name())
			continue
		}
		if doc.OwnerID == ownerID {
			doc.Content = nil
			docs = append(docs, doc)
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

func (s *fsStore) Rename(ctx context.Context, id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readDocument(id)
	if err != nil {
		return err
	}
	doc.Title = title
	doc.UpdatedAt = time.Now()
	return s.writeDocument(doc)
}

func (s *fsStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.documentPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("document with id %s: %w", id, core.ErrNotFound)
		}
		return fmt.Errorf("%w: %v", core.ErrStorageUnavailable, err)
	}
	return nil
}

// UserStore implementation

func (s *fsStore) CreateUser(ctx context.Context, user *core.User) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, _ := s.findUserByEmail(user.Email); existing != nil {
		return "", core.ErrEmailTaken
	}

	id := ulid.Make().String()
	now := time.Now()
	stored := *user
	stored.ID = id
	stored.CreatedAt = now
	stored.UpdatedAt = now
	if err := s.writeUser(&stored); err != nil {
		return "", err
	}

	logrus.WithFields(logrus.Fields{
		"user_id": id,
		"email":   user.Email,
	}).Info("User created successfully")
	return id, nil
}

type storedUser struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (s *fsStore) writeUser(user *core.User) error {
	data, err := json.Marshal(storedUser{
		ID:           user.ID,
		Name:         user.Name,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrStorageUnavailable, err)
	}
	if err := os.WriteFile(s.userPath(user.ID), data, 0600); err != nil {
		return fmt.Errorf("%w: %v", core.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *fsStore) readUser(id string) (*core.User, error) {
	data, err := os.ReadFile(s.userPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("user with id %s: %w", id, core.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: %v", core.ErrStorageUnavailable, err)
	}

	var stored storedUser
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStorageUnavailable, err)
	}
	return &core.User{
		ID:           stored.ID,
		Name:         stored.Name,
		Email:        stored.Email,
		PasswordHash: stored.PasswordHash,
		CreatedAt:    stored.CreatedAt,
		UpdatedAt:    stored.UpdatedAt,
	}, nil
}

func (s *fsStore) findUserByEmail(email string) (*core.User, error) {
	entries, err := os.ReadDir(filepath.Join(s.basePath, "users"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStorageUnavailable, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		user, err := s.readUser(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return nil, fmt.Errorf("user with email %s: %w", email, core.ErrNotFound)
}

func (s *fsStore) FindUserID(ctx context.Context, id string) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readUser(id)
}

func (s *fsStore) FindEmail(ctx context.Context, email string) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findUserByEmail(email)
}

func (s *fsStore) UpdateUser(ctx context.Context, user *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.readUser(user.ID)
	if err != nil {
		return err
	}

	existing.Name = user.Name
	existing.Email = user.Email
	if user.PasswordHash != "" {
		existing.PasswordHash = user.PasswordHash
	}
	existing.UpdatedAt = time.Now()
	return s.writeUser(existing)
}
