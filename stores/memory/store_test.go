package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mbdocs-server/core"
)

func TestLoadOrCreate_CreatesWithDefaults(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	doc, err := store.LoadOrCreate(ctx, "doc1", "user-1")
	if err != nil {
		t.Fatalf("LoadOrCreate() failed: %v", err)
	}

	if doc.ID != "doc1" {
		t.Errorf("ID = %q, want doc1", doc.ID)
	}
	if doc.OwnerID != "user-1" {
		t.Errorf("OwnerID = %q, want user-1", doc.OwnerID)
	}
	if doc.Title != core.DefaultTitle {
		t.Errorf("Title = %q, want %q", doc.Title, core.DefaultTitle)
	}
	if len(doc.Content) != 0 {
		t.Errorf("Content = %q, want empty", doc.Content)
	}
}

func TestLoadOrCreate_ReturnsExistingUnmodified(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	if _, err := store.LoadOrCreate(ctx, "doc1", "user-1"); err != nil {
		t.Fatalf("LoadOrCreate() failed: %v", err)
	}
	if err := store.Save(ctx, "doc1", []byte("Hello")); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	// A second caller, with a different user, must observe the same record.
	doc, err := store.LoadOrCreate(ctx, "doc1", "user-2")
	if err != nil {
		t.Fatalf("LoadOrCreate() failed: %v", err)
	}
	if doc.OwnerID != "user-1" {
		t.Errorf("OwnerID = %q, want original owner user-1", doc.OwnerID)
	}
	if string(doc.Content) != "Hello" {
		t.Errorf("Content = %q, want Hello", doc.Content)
	}
}

func TestLoadOrCreate_ConcurrentCallersConverge(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	owners := make([]string, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			doc, err := store.LoadOrCreate(ctx, "doc1", "user-1")
			if err != nil {
				t.Errorf("LoadOrCreate() failed: %v", err)
				return
			}
			owners[i] = doc.OwnerID
		}(i)
	}
	wg.Wait()

	for i, owner := range owners {
		if owner != "user-1" {
			t.Fatalf("caller %d observed owner %q, want user-1", i, owner)
		}
	}
}

func TestSave_NotFoundDoesNotCreate(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	err := store.Save(ctx, "missing", []byte("data"))
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("Save() error = %v, want ErrNotFound", err)
	}

	if _, err := store.FindID(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("FindID() after failed save = %v, want ErrNotFound", err)
	}
}

func TestSave_ReplacesContentAndBumpsUpdatedAt(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	doc, err := store.LoadOrCreate(ctx, "doc1", "user-1")
	if err != nil {
		t.Fatalf("LoadOrCreate() failed: %v", err)
	}

	time.Sleep(time.Millisecond)
	if err := store.Save(ctx, "doc1", []byte("second")); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	saved, err := store.FindID(ctx, "doc1")
	if err != nil {
		t.Fatalf("FindID() failed: %v", err)
	}
	if string(saved.Content) != "second" {
		t.Errorf("Content = %q, want second", saved.Content)
	}
	if !saved.UpdatedAt.After(doc.UpdatedAt) {
		t.Errorf("UpdatedAt %v not after original %v", saved.UpdatedAt, doc.UpdatedAt)
	}
}

func TestListByOwner_OrderAndContentOmitted(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	for _, id := range []string{"doc1", "doc2", "doc3"} {
		if _, err := store.LoadOrCreate(ctx, id, "user-1"); err != nil {
			t.Fatalf("LoadOrCreate(%s) failed: %v", id, err)
		}
		time.Sleep(time.Millisecond)
	}
	if _, err := store.LoadOrCreate(ctx, "other", "user-2"); err != nil {
		t.Fatalf("LoadOrCreate(other) failed: %v", err)
	}
	time.Sleep(time.Millisecond)
	if err := store.Save(ctx, "doc1", []byte("bump")); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	docs, err := store.ListByOwner(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListByOwner() failed: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("ListByOwner() returned %d docs, want 3", len(docs))
	}
	if docs[0].ID != "doc1" {
		t.Errorf("most recently updated doc = %s, want doc1", docs[0].ID)
	}
	for _, doc := range docs {
		if doc.Content != nil {
			t.Errorf("doc %s has content in list view", doc.ID)
		}
	}
}

func TestRenameAndDelete(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	if _, err := store.LoadOrCreate(ctx, "doc1", "user-1"); err != nil {
		t.Fatalf("LoadOrCreate() failed: %v", err)
	}

	if err := store.Rename(ctx, "doc1", "Meeting notes"); err != nil {
		t.Fatalf("Rename() failed: %v", err)
	}
	doc, err := store.FindID(ctx, "doc1")
	if err != nil {
		t.Fatalf("FindID() failed: %v", err)
	}
	if doc.Title != "Meeting notes" {
		t.Errorf("Title = %q, want Meeting notes", doc.Title)
	}

	if err := store.Rename(ctx, "missing", "x"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Rename(missing) = %v, want ErrNotFound", err)
	}

	if err := store.Delete(ctx, "doc1"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := store.FindID(ctx, "doc1"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("FindID() after delete = %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, "doc1"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second Delete() = %v, want ErrNotFound", err)
	}
}

func TestCreateUser_AssignsIDAndRejectsDuplicateEmail(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	id, err := store.CreateUser(ctx, &core.User{
		Name:         "Maya",
		Email:        "maya@example.com",
		PasswordHash: "hash",
	})
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	if len(id) != 26 {
		t.Errorf("CreateUser() returned invalid ID length: got %d, want 26", len(id))
	}

	_, err = store.CreateUser(ctx, &core.User{
		Name:         "Other",
		Email:        "MAYA@example.com",
		PasswordHash: "hash",
	})
	if !errors.Is(err, core.ErrEmailTaken) {
		t.Errorf("duplicate CreateUser() = %v, want ErrEmailTaken", err)
	}
}

func TestFindEmailAndUpdateUser(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	id, err := store.CreateUser(ctx, &core.User{
		Name:         "Maya",
		Email:        "maya@example.com",
		PasswordHash: "hash-1",
	})
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}

	user, err := store.FindEmail(ctx, "Maya@Example.com")
	if err != nil {
		t.Fatalf("FindEmail() failed: %v", err)
	}
	if user.ID != id {
		t.Errorf("FindEmail() ID = %q, want %q", user.ID, id)
	}

	// Update without a new password keeps the old hash.
	if err := store.UpdateUser(ctx, &core.User{ID: id, Name: "Maya B", Email: "maya@example.com"}); err != nil {
		t.Fatalf("UpdateUser() failed: %v", err)
	}
	user, err = store.FindUserID(ctx, id)
	if err != nil {
		t.Fatalf("FindUserID() failed: %v", err)
	}
	if user.Name != "Maya B" {
		t.Errorf("Name = %q, want Maya B", user.Name)
	}
	if user.PasswordHash != "hash-1" {
		t.Errorf("PasswordHash = %q, want hash-1", user.PasswordHash)
	}

	if err := store.UpdateUser(ctx, &core.User{ID: "missing", Name: "x", Email: "x"}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("UpdateUser(missing) = %v, want ErrNotFound", err)
	}
}
