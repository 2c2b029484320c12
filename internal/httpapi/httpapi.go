package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/cartomix/lightshow/internal/auth"
)

// Snapshot is the JSON shape served at GET /status, per spec §6.1. It is
// the narrow contract the out-of-scope spectrogram/debug GUI consumes.
type Snapshot struct {
	IsPlaying           bool    `json:"is_playing"`
	BPM                 float64 `json:"bpm"`
	BeatCount           int     `json:"beat_count"`
	LightShowType       string  `json:"light_show_type"`
	CurrentSectionIndex int     `json:"current_section_index"`
	LastEffect          string  `json:"last_effect"`
	OS2LLoggedOn        bool    `json:"os2l_logged_on"`
	MIDIConnected       bool    `json:"midi_connected"`
}

// SnapshotProvider hands back the current engine state. The Engine
// satisfies this by publishing into a single atomic cell it already
// maintains for its periodic telemetry, so Snapshot never blocks the
// audio hot path (spec §5).
type SnapshotProvider interface {
	Snapshot() Snapshot
}

// Server is the local debug/status HTTP surface.
type Server struct {
	provider SnapshotProvider
	logger   *slog.Logger
	mux      *http.ServeMux
	authMW   func(http.Handler) http.Handler
}

// NewServer creates the debug HTTP server. authCfg.Enabled() gates every
// route behind a bearer token when a -debug-auth-token was configured.
func NewServer(provider SnapshotProvider, authCfg auth.Config, logger *slog.Logger) *Server {
	s := &Server{provider: provider, logger: logger, mux: http.NewServeMux()}
	s.mux.HandleFunc("GET /status", s.handleStatus)
	s.authMW = auth.Middleware(authCfg, logger)
	return s
}

// Handler returns the HTTP handler, auth middleware applied.
func (s *Server) Handler() http.Handler {
	return s.authMW(s.mux)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snap := s.provider.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		s.logger.Warn("httpapi: failed to encode status", "error", err)
	}
}
