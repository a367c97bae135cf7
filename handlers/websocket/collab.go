package websocket

import (
	"context"
	"regexp"

	"github.com/zishang520/engine.io/v2/types"
	socketio "github.com/zishang520/socket.io/v2/socket"

	"mbdocs-server/auth"
	"mbdocs-server/core"
	"mbdocs-server/session"
)

// serverEmitter delivers registry events through socket.io. Every socket is
// a member of the room named after its own id, so a unicast is an emit to
// that room.
type serverEmitter struct {
	srv *socketio.Server
}

func (e *serverEmitter) Emit(connectionID string, event string, args ...any) {
	_ = e.srv.To(socketio.Room(connectionID)).Emit(event, args...)
}

// SetupSocketIO assembles the realtime layer: socket.io server, session
// registry and the connection coordinator bound to them.
func SetupSocketIO(store core.DocumentStore, verifier auth.Verifier) (*socketio.Server, *Coordinator) {
	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(5000000)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)
	localhostOrigin := regexp.MustCompile(`^https?://(localhost|127\.0\.0\.1|\[::1\])(:\d+)?$`)
	opts.SetCors(&types.Cors{
		Origin: []any{
			localhostOrigin,
		},
		Credentials: true,
	})
	srv := socketio.NewServer(nil, opts)

	registry := session.NewRegistry(&serverEmitter{srv: srv})
	coordinator := NewCoordinator(registry, store, verifier)

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	srv.On("connection", func(clients ...any) {
		socket, ok := clients[0].(*socketio.Socket)
		if !ok {
			return
		}

		conn := NewConn(string(socket.Id()))

		//nolint:errcheck // Socket.IO event handlers do not return useful errors
		socket.On(EventCreateDocument, func(datas ...any) {
			if len(datas) < 2 {
				coordinator.reportError(conn, CodeInvalidToken, "document id and token are required")
				return
			}
			docID, _ := datas[0].(string)
			token, _ := datas[1].(string)
			coordinator.CreateDocument(context.Background(), conn, docID, token)
		})

		//nolint:errcheck // Socket.IO event handlers do not return useful errors
		socket.On(EventSend, func(datas ...any) {
			var delta core.OpaquePayload
			if len(datas) > 0 {
				delta = datas[0]
			}
			coordinator.Send(conn, delta)
		})

		//nolint:errcheck // Socket.IO event handlers do not return useful errors
		socket.On(EventSave, func(datas ...any) {
			var content core.OpaquePayload
			if len(datas) > 0 {
				content = datas[0]
			}
			coordinator.Save(context.Background(), conn, content)
		})

		socket.On("disconnecting", func(datas ...any) {
			coordinator.Disconnect(conn)
		})

		socket.On("disconnect", func(datas ...any) {
			coordinator.Disconnect(conn)
			socket.RemoveAllListeners("")
			socket.Disconnect(true)
		})
	})

	return srv, coordinator
}
