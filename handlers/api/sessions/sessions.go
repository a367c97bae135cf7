package sessions

import (
	"net/http"
	"sort"

	"github.com/go-chi/render"

	"mbdocs-server/session"
)

type SessionInfo struct {
	DocID   string `json:"docId"`
	Members int    `json:"members"`
}

// HandleList returns the live sessions with their member counts, busiest
// first.
func HandleList(registry *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		active := registry.ActiveSessions()

		list := make([]SessionInfo, 0, len(active))
		for id, members := range active {
			list = append(list, SessionInfo{DocID: id, Members: members})
		}

		sort.Slice(list, func(i, j int) bool {
			if list[i].Members == list[j].Members {
				return list[i].DocID < list[j].DocID
			}
			return list[i].Members > list[j].Members
		})

		render.JSON(w, r, list)
	}
}
