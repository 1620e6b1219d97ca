package net

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"CollabBoard/internal/canvas"
	"CollabBoard/internal/export"
	"CollabBoard/internal/logging"
	"CollabBoard/internal/room"
	"CollabBoard/internal/state"
	"CollabBoard/internal/storage"
)

// NewMux routes the websocket endpoint plus read-only board exports:
//
//	/ws                      websocket transport
//	/healthz                 liveness
//	/rooms/{room}/board.png  rendered board
//	/rooms/{room}/board.pdf  printable board
//
// Exports render absolute points in a size-sized frame. Reading a room
// that is not live never creates it.
func NewMux(hub *Hub, rooms *room.Registry, size canvas.Size, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("http")

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	mux.HandleFunc("GET /rooms/{room}/{file}", func(w http.ResponseWriter, r *http.Request) {
		var (
			render      func(w http.ResponseWriter, entries []state.LogEntry) error
			contentType string
		)
		switch r.PathValue("file") {
		case "board.png":
			contentType = "image/png"
			render = func(w http.ResponseWriter, entries []state.LogEntry) error { return export.PNG(w, entries, size) }
		case "board.pdf":
			contentType = "application/pdf"
			render = func(w http.ResponseWriter, entries []state.LogEntry) error { return export.PDF(w, entries, size) }
		default:
			http.NotFound(w, r)
			return
		}

		rid := room.NormalizeRoomID(r.PathValue("room"))
		ctx, cancel := context.WithTimeout(r.Context(), callTimeout)
		defer cancel()
		entries, err := rooms.History(ctx, rid)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			http.NotFound(w, r)
			return
		case err != nil:
			logger.Error("export failed", logging.Room(rid), zap.Error(err))
			http.Error(w, "room unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", contentType)
		if err := render(w, entries); err != nil {
			logger.Warn("export failed", logging.Room(rid), zap.Error(err))
		}
	})
	return mux
}
