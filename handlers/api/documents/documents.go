package documents

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"mbdocs-server/core"
	"mbdocs-server/middleware"
)

type RenameRequest struct {
	Title string `json:"title"`
}

// HandleList returns the caller's documents, content omitted, most recently
// updated first.
func HandleList(store core.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.ClaimsFromContext(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		docs, err := store.ListByOwner(r.Context(), claims.Subject)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":   err,
				"ownerID": claims.Subject,
			}).Error("Failed to list documents")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to list documents"})
			return
		}

		if docs == nil {
			docs = []*core.Document{}
		}
		render.JSON(w, r, docs)
	}
}

// HandleGet returns a document's metadata by id, content omitted.
func HandleGet(store core.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docID := chi.URLParam(r, "docId")
		if docID == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Document id is required"})
			return
		}

		doc, err := store.FindID(r.Context(), docID)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, map[string]string{"error": "Document not found"})
				return
			}
			logrus.WithFields(logrus.Fields{
				"error":       err,
				"document_id": docID,
			}).Error("Failed to get document")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to get document"})
			return
		}

		doc.Content = nil
		render.JSON(w, r, doc)
	}
}

// HandleRename updates a document's title. A blank title falls back to the
// default.
func HandleRename(store core.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docID := chi.URLParam(r, "docId")
		if docID == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Document id is required"})
			return
		}

		var req RenameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}

		title := strings.TrimSpace(req.Title)
		if title == "" {
			title = core.DefaultTitle
		}

		if err := store.Rename(r.Context(), docID, title); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, map[string]string{"error": "Document not found"})
				return
			}
			logrus.WithFields(logrus.Fields{
				"error":       err,
				"document_id": docID,
			}).Error("Failed to rename document")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to rename document"})
			return
		}

		render.JSON(w, r, map[string]string{"message": "Document renamed", "title": title})
	}
}

// HandleDelete removes a document.
func HandleDelete(store core.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docID := chi.URLParam(r, "docId")
		if docID == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Document id is required"})
			return
		}

		if err := store.Delete(r.Context(), docID); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, map[string]string{"error": "Document not found"})
				return
			}
			logrus.WithFields(logrus.Fields{
				"error":       err,
				"document_id": docID,
			}).Error("Failed to delete document")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to delete document"})
			return
		}

		render.JSON(w, r, map[string]string{"message": "Document deleted"})
	}
}
