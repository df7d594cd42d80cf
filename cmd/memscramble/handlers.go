package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/theadell/memscramble/internal/board"
	"github.com/theadell/memscramble/internal/script"
)

// maxScriptBytes bounds the Lua chunk accepted by /transform.
const maxScriptBytes = 64 << 10

// newRouter wires the HTTP surface for one board.
func newRouter(b *board.Board) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/look/{player}", requirePlayer(handleLook(b)))
	r.Get("/flip/{player}/{spot}", requirePlayer(handleFlip(b)))
	r.Get("/replace/{player}/{from}/{to}", requirePlayer(handleReplace(b)))
	r.Get("/watch/{player}", requirePlayer(handleWatch(b)))
	r.Post("/transform/{player}", requirePlayer(handleTransform(b)))
	r.Get("/ws/{player}", requirePlayer(handleWatchStream(b)))
	return r
}

// urlParam returns the named route parameter with any percent-encoding
// undone. chi matches against the raw path, so parameters can arrive
// escaped.
func urlParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if dec, err := url.PathUnescape(v); err == nil {
		return dec
	}
	return v
}

// parseSpot turns a "row,col" URL segment into a Position.
func parseSpot(s string) (board.Position, error) {
	row, col, ok := strings.Cut(s, ",")
	if !ok {
		return board.Position{}, fmt.Errorf("malformed position %q, want row,col", s)
	}
	r, err := strconv.Atoi(row)
	if err != nil {
		return board.Position{}, fmt.Errorf("malformed row in %q", s)
	}
	c, err := strconv.Atoi(col)
	if err != nil {
		return board.Position{}, fmt.Errorf("malformed column in %q", s)
	}
	return board.Position{Row: r, Col: c}, nil
}

// writeBoardError reports a rejected move. The body names the rule that
// denied the operation; the status code is a server convention.
func writeBoardError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, board.ErrOutOfBounds),
		errors.Is(err, board.ErrEmptySpace),
		errors.Is(err, board.ErrEmptyTarget):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, board.ErrContested),
		errors.Is(err, board.ErrSecondContested),
		errors.Is(err, board.ErrNoFirst):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, board.ErrInvalidLabel):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// The client is gone; nothing useful to write.
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeSnapshot(w http.ResponseWriter, snapshot string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, snapshot)
}

func handleLook(b *board.Board) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeSnapshot(w, b.Snapshot(urlParam(r, "player")))
	}
}

func handleFlip(b *board.Board) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player := urlParam(r, "player")
		spot, err := parseSpot(urlParam(r, "spot"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := b.Flip(r.Context(), player, spot); err != nil {
			writeBoardError(w, err)
			return
		}
		writeSnapshot(w, b.Snapshot(player))
	}
}

func handleReplace(b *board.Board) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player := urlParam(r, "player")
		from := urlParam(r, "from")
		to := urlParam(r, "to")
		err := b.Map(func(label string) (string, error) {
			if label == from {
				return to, nil
			}
			return label, nil
		})
		if err != nil {
			writeBoardError(w, err)
			return
		}
		writeSnapshot(w, b.Snapshot(player))
	}
}

func handleWatch(b *board.Board) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot, err := b.Watch(r.Context(), urlParam(r, "player"))
		if err != nil {
			writeBoardError(w, err)
			return
		}
		writeSnapshot(w, snapshot)
	}
}

func handleTransform(b *board.Board) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player := urlParam(r, "player")
		chunk, err := io.ReadAll(io.LimitReader(r.Body, maxScriptBytes))
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}
		transform, err := script.New(string(chunk))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer transform.Close()
		if err := b.Map(transform.Apply); err != nil {
			if errors.Is(err, board.ErrInvalidLabel) {
				writeBoardError(w, err)
			} else {
				http.Error(w, err.Error(), http.StatusBadRequest)
			}
			return
		}
		writeSnapshot(w, b.Snapshot(player))
	}
}

// handleWatchStream upgrades to a websocket, sends the player's current
// snapshot, then sends a fresh snapshot each time a board watch resolves,
// until the client disconnects. Changes made while a message is being
// written get no message of their own; they appear in the message sent for
// the next change.
func handleWatchStream(b *board.Board) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		player := urlParam(r, "player")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("Failed to upgrade watch stream", "error", err.Error())
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Drain the connection so close frames end the stream promptly.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					cancel()
					return
				}
			}
		}()

		if err := conn.WriteMessage(websocket.TextMessage, []byte(b.Snapshot(player))); err != nil {
			return
		}
		for {
			snapshot, err := b.Watch(ctx, player)
			if err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(snapshot)); err != nil {
				return
			}
		}
	}
}
