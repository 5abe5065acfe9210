// Package api serves the director's control and read surface: program
// state snapshots, policy/weight introspection, manual override, reset,
// and a websocket mirror of the live bus topics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/zsiec/autodirector/bus"
	"github.com/zsiec/autodirector/config"
	"github.com/zsiec/autodirector/decision"
	"github.com/zsiec/autodirector/media"
	"github.com/zsiec/autodirector/ranker"
)

// ProgramSource is the subset of the decision engine the API reads and
// drives. Accepting an interface keeps the handlers testable with a
// stub engine.
type ProgramSource interface {
	Snapshot() decision.ProgramState
	Scores() map[media.CameraID]ranker.Score
	SetManual(cam media.CameraID)
	ClearManual()
	Reset()
}

// IngressHealth reports camera-level ingress degradation for /health.
type IngressHealth interface {
	Cams() []media.CameraID
	Degraded(cam media.CameraID) bool
}

// AnalyzerHealth surfaces per-analyzer lifecycle states for /state.
type AnalyzerHealth interface {
	States() map[string]string
}

// ServerConfig holds the API server's collaborators and listen address.
type ServerConfig struct {
	Addr      string
	Program   ProgramSource
	Ingress   IngressHealth
	Analyzers AnalyzerHealth
	Bus       *bus.Bus
	Config    config.Config
}

// Server is the HTTP control/read API.
type Server struct {
	log    *slog.Logger
	config ServerConfig

	ready atomic.Bool
}

// NewServer creates an API Server. It returns an error if required
// collaborators are missing.
func NewServer(cfg ServerConfig, log *slog.Logger) (*Server, error) {
	if cfg.Program == nil {
		return nil, errors.New("api: Program is required")
	}
	if cfg.Addr == "" {
		return nil, errors.New("api: Addr is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		log:    log.With("component", "api"),
		config: cfg,
	}, nil
}

// SetReady flips the readiness gate. Until ready, every route except
// /health answers 503.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Handler returns the API's http.Handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /state", s.handleState)
	mux.HandleFunc("GET /config", s.handleConfig)
	mux.HandleFunc("POST /manual", s.handleManual)
	mux.HandleFunc("POST /reset", s.handleReset)
	mux.HandleFunc("GET /ws", s.handleWS)
	return mux
}

// Start serves the API until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.config.Addr,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.Info("control API listening", "addr", s.config.Addr)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) || ctx.Err() != nil {
		return nil
	}
	return err
}

// envelope is the uniform response body: {success, data?, error?,
// timestamp}.
type envelope struct {
	Success   bool    `json:"success"`
	Data      any     `json:"data,omitempty"`
	Error     string  `json:"error,omitempty"`
	Timestamp float64 `json:"timestamp"`
}

func writeData(w http.ResponseWriter, code int, data any) {
	writeEnvelope(w, code, envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeEnvelope(w, code, envelope{Success: false, Error: msg})
}

func writeEnvelope(w http.ResponseWriter, code int, e envelope) {
	e.Timestamp = float64(time.Now().UnixNano()) / float64(time.Second)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(e); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

type healthData struct {
	Status     string  `json:"status"`
	CurrentCam *string `json:"currentCam"`
	Degraded   bool    `json:"degraded"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	snap := s.config.Program.Snapshot()

	data := healthData{Status: "ok"}
	if !s.ready.Load() {
		data.Status = "starting"
	}
	if snap.HasCurrent {
		cam := string(snap.CurrentCam)
		data.CurrentCam = &cam
	}
	if s.config.Ingress != nil {
		for _, cam := range s.config.Ingress.Cams() {
			if s.config.Ingress.Degraded(cam) {
				data.Degraded = true
				break
			}
		}
	}
	writeData(w, http.StatusOK, data)
}

type camScore struct {
	CamID     string              `json:"camId"`
	Timestamp float64             `json:"timestamp"`
	Score     float64             `json:"score"`
	Reason    string              `json:"reason"`
	Features  bus.FeaturesPayload `json:"features"`
}

type historyEntry struct {
	CamID     string  `json:"camId"`
	Timestamp float64 `json:"timestamp"`
}

type stateData struct {
	CurrentCam   *string             `json:"currentCam"`
	LastSwitchTs float64             `json:"lastSwitchTs"`
	ShotStartTs  float64             `json:"shotStartTs"`
	ManualCam    *string             `json:"manualCam,omitempty"`
	History      []historyEntry      `json:"history"`
	Cooldowns    map[string]float64  `json:"cooldowns"`
	Scores       map[string]camScore `json:"scores"`
	Analyzers    map[string]string   `json:"analyzers,omitempty"`
}

func unixSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / float64(time.Second)
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		writeError(w, http.StatusServiceUnavailable, "core not ready")
		return
	}

	snap := s.config.Program.Snapshot()
	scores := s.config.Program.Scores()

	data := stateData{
		LastSwitchTs: unixSeconds(snap.LastSwitchTs),
		ShotStartTs:  unixSeconds(snap.ShotStartTs),
		History:      make([]historyEntry, 0, len(snap.History)),
		Cooldowns:    make(map[string]float64, len(snap.Cooldowns)),
		Scores:       make(map[string]camScore, len(scores)),
	}
	if snap.HasCurrent {
		cam := string(snap.CurrentCam)
		data.CurrentCam = &cam
	}
	if snap.HasManual {
		cam := string(snap.ManualCam)
		data.ManualCam = &cam
	}
	for _, h := range snap.History {
		data.History = append(data.History, historyEntry{CamID: string(h.Cam), Timestamp: unixSeconds(h.Ts)})
	}
	for cam, notBefore := range snap.Cooldowns {
		data.Cooldowns[string(cam)] = unixSeconds(notBefore)
	}
	for cam, sc := range scores {
		data.Scores[string(cam)] = camScore{
			CamID:     string(cam),
			Timestamp: unixSeconds(sc.Ts),
			Score:     sc.Score,
			Reason:    sc.Reason,
			Features:  bus.FeaturesFromRanker(sc.Features),
		}
	}
	if s.config.Analyzers != nil {
		data.Analyzers = s.config.Analyzers.States()
	}
	writeData(w, http.StatusOK, data)
}

type configData struct {
	Policy         decision.Policy `json:"policy"`
	Weights        ranker.Weights  `json:"weights"`
	AnalysisRateHz float64         `json:"analysisRateHz"`
	RankingRateHz  float64         `json:"rankingRateHz"`
	DecisionRateHz float64         `json:"decisionRateHz"`
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		writeError(w, http.StatusServiceUnavailable, "core not ready")
		return
	}
	writeData(w, http.StatusOK, configData{
		Policy:         s.config.Config.Policy,
		Weights:        s.config.Config.Weights,
		AnalysisRateHz: s.config.Config.AnalysisRateHz,
		RankingRateHz:  s.config.Config.RankingRateHz,
		DecisionRateHz: s.config.Config.DecisionRateHz,
	})
}

type manualRequest struct {
	CamID *string `json:"camId"`
}

func (s *Server) handleManual(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		writeError(w, http.StatusServiceUnavailable, "core not ready")
		return
	}

	var req manualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body: "+err.Error())
		return
	}

	if req.CamID == nil || *req.CamID == "" {
		s.config.Program.ClearManual()
		writeData(w, http.StatusOK, map[string]string{"manual": "cleared"})
		return
	}

	cam := media.CameraID(*req.CamID)
	scores := s.config.Program.Scores()
	if _, known := scores[cam]; !known {
		writeError(w, http.StatusNotFound, "unknown cam: "+*req.CamID)
		return
	}
	snap := s.config.Program.Snapshot()
	if notBefore, ok := snap.Cooldowns[cam]; ok && notBefore.After(time.Now()) {
		writeError(w, http.StatusConflict, "cam in cooldown: "+*req.CamID)
		return
	}

	s.config.Program.SetManual(cam)
	writeData(w, http.StatusOK, map[string]string{"manual": *req.CamID})
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		writeError(w, http.StatusServiceUnavailable, "core not ready")
		return
	}
	s.config.Program.Reset()
	writeData(w, http.StatusOK, map[string]string{"state": "reset"})
}
