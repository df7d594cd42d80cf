package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/slack-go/slack"

	"github.com/theadell/memscramble/internal/board"
)

func main() {

	// Environment Variables
	slackToken := os.Getenv("MEMSCRAMBLE_SLACK_TOKEN")
	slackChannel := os.Getenv("MEMSCRAMBLE_SLACK_CHANNEL")
	envPort := os.Getenv("MEMSCRAMBLE_PORT")

	// Flags
	port := flag.String("port", "8080", "Define the port on which the server will listen")
	boardFile := flag.String("board", "boards/perfect.txt", "Path to the board file")
	flag.Parse()
	if envPort != "" {
		*port = envPort
	}

	// Board
	f, err := os.Open(*boardFile)
	if err != nil {
		log.Fatalf("Failed to open board file: %s", err)
	}
	gameBoard, err := board.Parse(f)
	f.Close()
	if err != nil {
		log.Fatalf("Failed to parse board file: %s", err)
	}
	slog.Info("Board loaded", "file", *boardFile, "rows", gameBoard.Rows(), "cols", gameBoard.Cols())

	// Routes
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Mount("/", newRouter(gameBoard))

	// Optional Slack announcer
	announcerCtx, stopAnnouncer := context.WithCancel(context.Background())
	defer stopAnnouncer()
	if slackToken != "" && slackChannel != "" {
		announcer := NewAnnouncer(slack.New(slackToken), gameBoard, slackChannel)
		go announcer.Run(announcerCtx)
		slog.Info("Slack announcer enabled", "channel", slackChannel)
	}

	// Server
	srv := &http.Server{
		Addr:           fmt.Sprintf(":%s", *port),
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   0, // watch and websocket responses are open-ended
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info(fmt.Sprintf("Server running on port %s", *port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	shutdownSignal := <-shutdownChan

	log.Printf("Shutdown signal (%s) received, shutting down gracefully...\n", shutdownSignal)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	stopAnnouncer()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP Server failed to shutdown gracefully", "error", err.Error())
	}
	slog.Info("Shutdown complete. Server exiting.")
}
