package router

import (
	"database/sql"
	"net/http"

	"pagesync/internal/auth"
	docHandler "pagesync/internal/document"
	"pagesync/internal/document/repository"
	"pagesync/internal/document/service"
	"pagesync/middleware"
	"pagesync/socket"
)

func Setup(db *sql.DB, engine *socket.Engine) http.Handler {
	mux := http.NewServeMux()

	// WebSocket
	wsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value(middleware.UserIDKey).(string)
		socket.ServeWs(engine, w, r, userID)
	})
	mux.Handle("/ws", middleware.AuthMiddleware(wsHandler))

	// OAuth
	authHandler := auth.NewHandler()
	mux.HandleFunc("/auth/google/login", authHandler.Login)
	mux.HandleFunc("/auth/google/callback", authHandler.Callback)

	// REST API
	docRepo := repository.NewDocumentRepository(db)
	docService := service.NewDocumentService(docRepo)
	handler := docHandler.NewDocumentHandler(docService)

	mux.HandleFunc("/", handler.ListDocuments)

	return middleware.CORSMiddleware(mux)
}
