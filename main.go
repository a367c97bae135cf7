package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	socketio "github.com/zishang520/socket.io/v2/socket"

	"mbdocs-server/auth"
	"mbdocs-server/handlers/api/chat"
	"mbdocs-server/handlers/api/documents"
	"mbdocs-server/handlers/api/sessions"
	"mbdocs-server/handlers/api/users"
	"mbdocs-server/handlers/websocket"
	authMiddleware "mbdocs-server/middleware"
	"mbdocs-server/stores"
)

func setupRouter(store stores.Store, tokens *auth.TokenService, coordinator *websocket.Coordinator) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api/users", func(r chi.Router) {
		r.Post("/signup", users.HandleSignup(store))
		r.Post("/login", users.HandleLogin(store, tokens))
		r.Post("/forgotpass", users.HandleForgotPassword(store, tokens))
		r.Put("/reset", users.HandleResetPassword(store, tokens))

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.AuthJWT(tokens))
			r.Get("/", users.HandleGetProfile(store))
			r.Put("/", users.HandleUpdateProfile(store))
		})

		r.Get("/{userId}", users.HandleGetUser(store))
	})

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.AuthJWT(tokens))

		r.Route("/api/documents", func(r chi.Router) {
			r.Get("/", documents.HandleList(store))
			r.Route("/{docId}", func(r chi.Router) {
				r.Get("/", documents.HandleGet(store))
				r.Put("/", documents.HandleRename(store))
				r.Delete("/", documents.HandleDelete(store))
			})
		})

		r.Post("/api/chat/completions", chat.HandleChatCompletion())
	})

	r.Get("/api/sessions", sessions.HandleList(coordinator.Registry()))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Working!"))
	})

	return r
}

func waitForShutdown(ioo *socketio.Server) {
	exit := make(chan struct{})
	SignalC := make(chan os.Signal, 1)

	signal.Notify(SignalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		for s := range SignalC {
			switch s {
			case os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT:
				close(exit)
				return
			}
		}
	}()

	<-exit
	fmt.Println("Shutting down...")
	ioo.Close(nil)
	os.Exit(0)
}

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	listenAddr := flag.String("listen", ":5000", "Set the server listen address")
	logLevel := flag.String("loglevel", "info", "Set the logging level: debug, info, warn, error, fatal, panic")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level: %v\n", err)
		os.Exit(1)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	chat.Init()
	store := stores.GetStore()
	tokens := auth.NewTokenService()

	ioo, coordinator := websocket.SetupSocketIO(store, tokens)

	r := setupRouter(store, tokens, coordinator)
	r.Handle("/socket.io/", ioo.ServeHandler(nil))

	logrus.WithField("addr", *listenAddr).Info("starting server")
	go func() {
		if err := http.ListenAndServe(*listenAddr, r); err != nil {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	logrus.Debug("Server is running in the background")
	waitForShutdown(ioo)
}
