package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"presence/internal/logging"
	"presence/pkg/projector"
	"presence/pkg/statusync"
)

// viewStore keeps the latest frame and state for the local view server.
type viewStore struct {
	mu     sync.Mutex
	frame  projector.Frame
	state  statusync.StateChange
	frames int
}

func (v *viewStore) setFrame(f projector.Frame) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.frame = f
	v.frames++
}

func (v *viewStore) setState(c statusync.StateChange) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state = c
}

func (v *viewStore) snapshot() (projector.Frame, statusync.StateChange, int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.frame, v.state, v.frames
}

type viewResponse struct {
	View  *projector.ViewModel `json:"view,omitempty"`
	Error string               `json:"error,omitempty"`
}

type stateResponse struct {
	statusync.StateChange
	Frames int    `json:"frames"`
	Error  string `json:"error,omitempty"`
}

// newViewRouter serves the watched view read-only:
//
//	GET /healthz  liveness
//	GET /view     latest frame (204 before the first)
//	GET /state    connection state
func newViewRouter(store *viewStore, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer,
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				ctx := logging.AddToContext(req.Context(), logger)
				next.ServeHTTP(w, req.WithContext(ctx))
			})
		},
	)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Get("/view", func(w http.ResponseWriter, req *http.Request) {
		frame, _, _ := store.snapshot()
		var resp viewResponse
		switch f := frame.(type) {
		case projector.ViewModel:
			resp.View = &f
		case projector.ErrorView:
			resp.Error = f.Message
		default:
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, req, resp)
	})
	r.Get("/state", func(w http.ResponseWriter, req *http.Request) {
		_, state, frames := store.snapshot()
		resp := stateResponse{StateChange: state, Frames: frames}
		if state.Err != nil {
			resp.Error = state.Err.Error()
		}
		if resp.State == "" {
			resp.State = statusync.StateIdle
		}
		writeJSON(w, req, resp)
	})
	return r
}

func writeJSON(w http.ResponseWriter, req *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(req.Context()).Error("encode response", "err", err, "path", req.URL.Path)
	}
}
