package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"mbdocs-server/auth"
	"mbdocs-server/core"
	"mbdocs-server/session"
)

// Events exchanged with clients over the realtime channel.
const (
	EventCreateDocument = "createDocument"
	EventLoadDocument   = "load-document"
	EventSend           = "send"
	EventReceive        = "receive"
	EventSave           = "save"
	EventDocumentError  = "document-error"
)

// Error codes reported on the document-error event.
const (
	CodeInvalidToken       = "invalid_token"
	CodeTokenExpired       = "token_expired"
	CodeNotFound           = "not_found"
	CodeStorageUnavailable = "storage_unavailable"
	CodeAlreadyJoined      = "already_joined"
	CodeNotJoined          = "not_joined"
)

// Conn is the coordinator's view of one transport connection. A connection
// is idle until its first successful createDocument, then bound to that one
// document for its lifetime.
type Conn struct {
	ID string

	mu    sync.Mutex
	docID string
}

func NewConn(id string) *Conn {
	return &Conn{ID: id}
}

// DocID returns the bound document id, or "" while idle.
func (c *Conn) DocID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.docID
}

func (c *Conn) bind(docID string) {
	c.mu.Lock()
	c.docID = docID
	c.mu.Unlock()
}

// Coordinator drives the join, relay and save transitions for every
// connection. Failures are reported to the originating connection only and
// never enter the broadcast path.
type Coordinator struct {
	registry *session.Registry
	store    core.DocumentStore
	verifier auth.Verifier
}

func NewCoordinator(registry *session.Registry, store core.DocumentStore, verifier auth.Verifier) *Coordinator {
	return &Coordinator{
		registry: registry,
		store:    store,
		verifier: verifier,
	}
}

// Registry exposes the session registry for the transport layer.
func (co *Coordinator) Registry() *session.Registry {
	return co.registry
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return CodeTokenExpired
	case errors.Is(err, auth.ErrInvalidToken):
		return CodeInvalidToken
	case errors.Is(err, core.ErrNotFound):
		return CodeNotFound
	default:
		return CodeStorageUnavailable
	}
}

func (co *Coordinator) reportError(conn *Conn, code, message string) {
	co.registry.Unicast(conn.ID, EventDocumentError, map[string]any{
		"code":    code,
		"message": message,
	})
}

// CreateDocument verifies the token, materializes the document and joins the
// connection to its session, then pushes the persisted content back to the
// requester only. On any failure the connection stays idle.
func (co *Coordinator) CreateDocument(ctx context.Context, conn *Conn, docID, token string) {
	log := logrus.WithFields(logrus.Fields{
		"connection_id": conn.ID,
		"document_id":   docID,
	})

	if docID == "" {
		co.reportError(conn, CodeNotFound, "document id is required")
		return
	}
	if conn.DocID() != "" {
		log.Warn("Connection attempted a second join")
		co.reportError(conn, CodeAlreadyJoined, "connection is already bound to a document")
		return
	}

	userID, err := co.verifier.Verify(token)
	if err != nil {
		log.WithError(err).Warn("Token verification failed")
		co.reportError(conn, errorCode(err), "token verification failed")
		return
	}

	doc, err := co.store.LoadOrCreate(ctx, docID, userID)
	if err != nil {
		log.WithError(err).Error("Failed to materialize document")
		co.reportError(conn, errorCode(err), "failed to load document")
		return
	}

	conn.bind(docID)
	co.registry.Join(docID, conn.ID)
	co.registry.Unicast(conn.ID, EventLoadDocument, string(doc.Content))
	log.WithField("owner_id", doc.OwnerID).Info("Connection joined document")
}

// Send relays an edit delta to every other connection in the session. The
// delta is forwarded untouched.
func (co *Coordinator) Send(conn *Conn, delta core.OpaquePayload) {
	docID := conn.DocID()
	if docID == "" {
		co.reportError(conn, CodeNotJoined, "connection has not joined a document")
		return
	}
	co.registry.Broadcast(docID, conn.ID, EventReceive, delta)
}

// Save persists a full content snapshot. A missing document is reported but
// the connection stays joined.
func (co *Coordinator) Save(ctx context.Context, conn *Conn, content core.OpaquePayload) {
	docID := conn.DocID()
	if docID == "" {
		co.reportError(conn, CodeNotJoined, "connection has not joined a document")
		return
	}

	log := logrus.WithFields(logrus.Fields{
		"connection_id": conn.ID,
		"document_id":   docID,
	})

	data, err := encodePayload(content)
	if err != nil {
		log.WithError(err).Warn("Failed to encode save payload")
		co.reportError(conn, CodeStorageUnavailable, "failed to encode content")
		return
	}

	if err := co.store.Save(ctx, docID, data); err != nil {
		log.WithError(err).Warn("Failed to save document")
		co.reportError(conn, errorCode(err), "failed to save document")
	}
}

// Disconnect removes the connection from its session if it joined one.
// It runs on every exit path regardless of prior state.
func (co *Coordinator) Disconnect(conn *Conn) {
	docID := conn.DocID()
	if docID == "" {
		return
	}
	co.registry.Leave(docID, conn.ID)
	conn.bind("")
	logrus.WithFields(logrus.Fields{
		"connection_id": conn.ID,
		"document_id":   docID,
	}).Info("Connection left document")
}

// encodePayload normalizes an opaque content payload to bytes for storage.
// Strings and byte slices pass through; anything else is kept as JSON.
func encodePayload(content core.OpaquePayload) ([]byte, error) {
	switch v := content.(type) {
	case nil:
		return []byte{}, nil
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(v)
	}
}
