// Package server exposes a bridge over HTTP, with a websocket stream of
// drained events per session.
package server

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wippyai/tox-bridge/bridge"
	"github.com/wippyai/tox-bridge/errors"
	"github.com/wippyai/tox-bridge/event"
	"github.com/wippyai/tox-bridge/instance"
	"github.com/wippyai/tox-bridge/native"
	"github.com/wippyai/tox-bridge/snapshot"
)

const maxBody = 1 << 20

// Server routes HTTP requests to a bridge.
type Server struct {
	bridge      *bridge.Bridge
	store       snapshot.Store
	hub         *Hub
	logger      *zap.Logger
	metrics     http.Handler
	mux         *http.ServeMux
	upgrader    websocket.Upgrader
	metricsPath string
	defaults    native.Options
	maxClients  int
}

// New builds the HTTP surface for b. store may be nil, which disables
// snapshot persistence.
func New(b *bridge.Bridge, store snapshot.Store, opts ...Option) *Server {
	if store == nil {
		store = snapshot.Disabled()
	}
	s := &Server{
		bridge:   b,
		store:    store,
		logger:   zap.NewNop(),
		defaults: native.DefaultOptions(),
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = NewHub(s.logger.Named("hub"), s.maxClients)
	b.Subscribe(s.hub)
	s.routes()
	return s
}

// Hub returns the stream hub, for a Pump to broadcast into.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Close disconnects stream clients and detaches from the bridge.
func (s *Server) Close() {
	s.bridge.Unsubscribe(s.hub)
	s.hub.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /v1/sessions", s.handleCreate)
	s.mux.HandleFunc("GET /v1/sessions", s.handleList)
	s.mux.HandleFunc("GET /v1/sessions/{id}", s.handleState)
	s.mux.HandleFunc("POST /v1/sessions/{id}/drain", s.handleDrain)
	s.mux.HandleFunc("POST /v1/sessions/{id}/invoke", s.handleInvoke)
	s.mux.HandleFunc("POST /v1/sessions/{id}/events", s.handleInject)
	s.mux.HandleFunc("POST /v1/sessions/{id}/kill", s.handleKill)
	s.mux.HandleFunc("DELETE /v1/sessions/{id}", s.handleFinalize)
	s.mux.HandleFunc("GET /v1/sessions/{id}/savedata", s.handleSavedata)
	s.mux.HandleFunc("POST /v1/sessions/{id}/snapshots", s.handleSnapshot)
	s.mux.HandleFunc("GET /v1/sessions/{id}/stream", s.handleStream)
	s.mux.HandleFunc("GET /v1/snapshots", s.handleSnapshotList)
	s.mux.HandleFunc("DELETE /v1/snapshots/{sid}", s.handleSnapshotDelete)
	if s.metrics != nil && s.metricsPath != "" {
		s.mux.Handle("GET "+s.metricsPath, s.metrics)
	}
}

func statusFor(err error) int {
	switch errors.KindOf(err) {
	case errors.KindInstanceMissing, errors.KindNotFound:
		return http.StatusNotFound
	case errors.KindKilled, errors.KindStillActive:
		return http.StatusConflict
	case errors.KindInvalidArgument, errors.KindInvalidData:
		return http.StatusBadRequest
	case errors.KindAllocation, errors.KindClosed:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		s.logger.Debug("request rejected", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	}
	kind := string(errors.KindOf(err))
	if kind == "" {
		kind = string(errors.KindNative)
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeBody decodes an optional JSON body into v.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(v); err != nil && !stderrors.Is(err, io.EOF) {
		var e *errors.Error
		if errors.As(err, &e) {
			return e
		}
		return errors.Wrap(errors.PhaseServe, errors.KindInvalidArgument, err, "decode request body")
	}
	return nil
}

func sessionID(r *http.Request) (instance.ID, error) {
	raw := r.PathValue("id")
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, errors.InvalidArgument(errors.PhaseServe, []string{"id"}, raw, "session id must be an unsigned 32-bit integer")
	}
	return instance.ID(n), nil
}

type createRequest struct {
	SnapshotID string `json:"snapshot_id"`
	native.Options
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	req := createRequest{Options: s.defaults}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	opts := req.Options
	if req.SnapshotID != "" {
		snap, err := s.store.Get(r.Context(), req.SnapshotID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		opts = snap.Options(opts)
	}
	id, err := s.bridge.Create(r.Context(), opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]instance.ID{"id": id})
}

type sessionInfo struct {
	State string      `json:"state"`
	ID    instance.ID `json:"id"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	ids := s.bridge.Sessions()
	out := make([]sessionInfo, 0, len(ids))
	for _, id := range ids {
		state, err := s.bridge.State(id)
		if err != nil {
			continue
		}
		out = append(out, sessionInfo{ID: id, State: state.String()})
	}
	writeJSON(w, http.StatusOK, map[string][]sessionInfo{"sessions": out})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	state, err := s.bridge.State(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionInfo{ID: id, State: state.String()})
}

func (s *Server) handleDrain(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	events, err := s.bridge.Drain(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data, err := event.MarshalBatch(events)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]json.RawMessage{"events": data})
}

type invokeRequest struct {
	Action string `json:"action"`
	Args   []any  `json:"args"`
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req invokeRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.bridge.Invoke(r.Context(), id, req.Action, req.Args...)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": res})
}

func (s *Server) handleInject(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		s.writeError(w, r, errors.Wrap(errors.PhaseServe, errors.KindInvalidArgument, err, "read request body"))
		return
	}
	e, err := event.Unmarshal(body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.bridge.InjectEvent(id, e); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleKill(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.bridge.Kill(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.bridge.Finalize(id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSavedata(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data, err := s.bridge.Snapshot(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req struct {
		Label string `json:"label"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	data, err := s.bridge.Snapshot(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	snap := snapshot.New(id, req.Label, data)
	if err := s.store.Put(r.Context(), snap); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"snapshot_id": snap.ID})
}

func (s *Server) handleSnapshotList(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []snapshot.Snapshot{}
	}
	writeJSON(w, http.StatusOK, map[string][]snapshot.Snapshot{"snapshots": list})
}

func (s *Server) handleSnapshotDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), r.PathValue("sid")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	gen, err := s.bridge.Generation(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.hub.max > 0 && s.hub.ClientCount() >= s.hub.max {
		s.writeError(w, r, ErrTooManyClients)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("stream upgrade failed", zap.Error(err))
		return
	}
	c, err := s.hub.add(id, gen, conn)
	if err != nil {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()))
		conn.Close()
		return
	}
	// The session may have been finalized, and its ID reused, between the
	// lookup and registration. Its finalize notification is already gone.
	if cur, err := s.bridge.Generation(id); err != nil || cur != gen {
		s.hub.remove(c)
		return
	}

	go func() {
		defer s.hub.remove(c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
