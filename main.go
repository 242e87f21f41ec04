package main

import (
	"log"
	"net/http"
	"os"

	"pagesync/config/database"
	"pagesync/internal/document/repository"
	"pagesync/pkg/logger"
	"pagesync/router"
	"pagesync/socket"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables from OS")
	}

	logger.Init()
	defer logger.Sync()

	db := database.Connect()
	defer db.Close()

	repo := repository.NewDocumentRepository(db)
	engine := socket.NewEngine(repo, socket.NewRegistry())

	port := os.Getenv("PORT")
	if port == "" {
		port = "9000"
	}

	logger.Sugar.Infof("Server listening on :%s", port)
	if err := http.ListenAndServe(":"+port, router.Setup(db, engine)); err != nil {
		logger.Sugar.Fatalf("Server stopped: %v", err)
	}
}
