package chat

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

var (
	apiKey  string
	baseURL string
)

const defaultModel = "gpt-3.5-turbo"

func Init() {
	apiKey = os.Getenv("OPENAI_API_KEY")
	baseURL = os.Getenv("OPENAI_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	if apiKey == "" {
		logrus.Warn("OPENAI_API_KEY environment variable not set. Chat proxy will not work.")
	}
}

type CompletionRequest struct {
	Model    string            `json:"model,omitempty"`
	Messages []json.RawMessage `json:"messages"`
}

// HandleChatCompletion forwards a chat completion request to the configured
// OpenAI-compatible backend and relays the response untouched.
func HandleChatCompletion() http.HandlerFunc {
	client := &http.Client{Timeout: 60 * time.Second}

	return func(w http.ResponseWriter, r *http.Request) {
		if apiKey == "" {
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, map[string]string{"error": "Chat is not configured"})
			return
		}

		var req CompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Messages are required"})
			return
		}
		if req.Model == "" {
			req.Model = defaultModel
		}

		body, err := json.Marshal(req)
		if err != nil {
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to encode request"})
			return
		}

		upstream, err := http.NewRequestWithContext(r.Context(), http.MethodPost,
			baseURL+"/v1/chat/completions", bytes.NewReader(body))
		if err != nil {
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to build upstream request"})
			return
		}
		upstream.Header.Set("Content-Type", "application/json")
		upstream.Header.Set("Authorization", "Bearer "+apiKey)

		resp, err := client.Do(upstream)
		if err != nil {
			logrus.WithError(err).Error("Chat completion request failed")
			render.Status(r, http.StatusBadGateway)
			render.JSON(w, r, map[string]string{"error": "Upstream request failed"})
			return
		}
		defer resp.Body.Close()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.StatusCode)
		if _, err := io.Copy(w, resp.Body); err != nil {
			logrus.WithError(err).Warn("Failed to relay chat completion response")
		}
	}
}
