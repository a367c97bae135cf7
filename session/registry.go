package session

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Emitter delivers events to a single connection. The websocket layer
// provides the real implementation; tests inject fakes.
type Emitter interface {
	Emit(connectionID string, event string, args ...any)
}

// Registry maps a document id to the set of connections currently viewing
// it. Sessions are created lazily on first join and dropped when the last
// member leaves; they hold no document state and are rebuilt from the store
// on the next join.
type Registry struct {
	mu      sync.RWMutex
	emitter Emitter
	members map[string]map[string]struct{}
}

func NewRegistry(emitter Emitter) *Registry {
	return &Registry{
		emitter: emitter,
		members: make(map[string]map[string]struct{}),
	}
}

// Join adds a connection to the document's session, creating the session if
// absent. Joining twice is a no-op.
func (r *Registry) Join(docID, connectionID string) {
	r.mu.Lock()
	set, ok := r.members[docID]
	if !ok {
		set = make(map[string]struct{})
		r.members[docID] = set
	}
	set[connectionID] = struct{}{}
	count := len(set)
	r.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"document_id":   docID,
		"connection_id": connectionID,
		"members":       count,
	}).Debug("Connection joined session")
}

// Leave removes a connection from the document's session. The session entry
// is discarded once empty.
func (r *Registry) Leave(docID, connectionID string) {
	r.mu.Lock()
	set, ok := r.members[docID]
	if ok {
		delete(set, connectionID)
		if len(set) == 0 {
			delete(r.members, docID)
		}
	}
	r.mu.Unlock()

	if ok {
		logrus.WithFields(logrus.Fields{
			"document_id":   docID,
			"connection_id": connectionID,
		}).Debug("Connection left session")
	}
}

// Broadcast delivers an event to every member of the document's session
// except the sender. The membership set is snapshotted under the lock;
// emits happen outside it so a slow connection cannot stall joins.
func (r *Registry) Broadcast(docID, senderID, event string, args ...any) {
	r.mu.RLock()
	set := r.members[docID]
	recipients := make([]string, 0, len(set))
	for id := range set {
		if id != senderID {
			recipients = append(recipients, id)
		}
	}
	r.mu.RUnlock()

	for _, id := range recipients {
		r.emitter.Emit(id, event, args...)
	}
}

// Unicast delivers an event to one connection only.
func (r *Registry) Unicast(connectionID, event string, args ...any) {
	r.emitter.Emit(connectionID, event, args...)
}

// Count returns the number of connections in the document's session.
func (r *Registry) Count(docID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members[docID])
}

// ActiveSessions returns a snapshot of session member counts by document id.
func (r *Registry) ActiveSessions() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make(map[string]int, len(r.members))
	for id, set := range r.members {
		sessions[id] = len(set)
	}
	return sessions
}
