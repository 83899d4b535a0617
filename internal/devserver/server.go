package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"voicechat/internal/domain"
)

type Config struct {
	Bind              string
	Port              int
	Path              string
	MinSegmentBytes   int
	ReadHeaderTimeout time.Duration
}

// Server is a local stand-in for the voice chat backend.
type Server struct {
	cfg       Config
	responder Responder
	history   *History
	log       zerolog.Logger
	upgrader  websocket.Upgrader
	now       func() time.Time
}

func New(cfg Config, responder Responder, log zerolog.Logger) *Server {
	if cfg.Bind == "" {
		cfg.Bind = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8000
	}
	if cfg.Path == "" {
		cfg.Path = "/voice_chat"
	}
	if cfg.MinSegmentBytes <= 0 {
		cfg.MinSegmentBytes = 8000
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 5 * time.Second
	}
	if responder == nil {
		responder = EchoResponder{}
	}

	return &Server{
		cfg:       cfg,
		responder: responder,
		history:   NewHistory(),
		log:       log.With().Str("component", "devserver").Logger(),
		upgrader: websocket.Upgrader{
			// desktop webviews and local tools connect from arbitrary origins
			CheckOrigin: func(*http.Request) bool { return true },
		},
		now: time.Now,
	}
}

func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.cfg.Bind, s.cfg.Port)
}

func (s *Server) History() *History {
	return s.history
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Path, s.handleVoiceChat)
	mux.HandleFunc("GET /api/sessions", s.handleSessions)
	mux.HandleFunc("GET /api/sessions/{token}", s.handleSession)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}

	go func() {
		<-ctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
	}()

	s.log.Info().Str("addr", srv.Addr).Str("path", s.cfg.Path).Msg("dev server listening")
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) handleVoiceChat(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	token := s.history.Start(s.now())
	log := s.log.With().Str("session", token).Logger()
	log.Info().Msg("websocket connection accepted")
	defer func() {
		s.history.End(token, s.now())
		log.Info().Msg("websocket connection closed")
	}()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				log.Warn().Err(err).Msg("websocket read failed")
			}
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}

		log.Info().Int("bytes", len(data)).Msg("received audio")
		if len(data) < s.cfg.MinSegmentBytes {
			log.Info().Int("bytes", len(data)).Msg("skipping small segment")
			continue
		}

		if err := s.answer(r.Context(), conn, token, data, log); err != nil {
			log.Warn().Err(err).Msg("reply failed")
			return
		}
	}
}

func (s *Server) answer(ctx context.Context, conn *websocket.Conn, token string, data []byte, log zerolog.Logger) error {
	started := s.now()
	reply, err := s.responder.Respond(ctx, data)
	if err != nil {
		// a failed segment does not end the session
		log.Error().Err(err).Msg("responder failed")
		return nil
	}
	if strings.TrimSpace(reply.UserText) == "" {
		log.Warn().Msg("empty transcription, skipping")
		return nil
	}

	if err := conn.WriteJSON(domain.ServerMessage{Type: domain.ServerMessageUserTranscript, Text: reply.UserText}); err != nil {
		return err
	}
	if err := conn.WriteJSON(domain.ServerMessage{Type: domain.ServerMessageAITranscript, Text: reply.AIText}); err != nil {
		return err
	}
	if len(reply.Audio) > 0 {
		if err := conn.WriteMessage(websocket.BinaryMessage, reply.Audio); err != nil {
			return err
		}
	}

	s.history.Record(token, Conversation{
		UserTranscript: reply.UserText,
		AIResponse:     reply.AIText,
		CreatedAt:      s.now(),
		AudioDuration:  float64(len(data)) / 16000,
		ProcessingTime: s.now().Sub(started).Seconds(),
	})
	return nil
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	sessions := s.history.List(limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"total_sessions": len(sessions),
		"sessions":       sessions,
	})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	detail, ok := s.history.Get(r.PathValue("token"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Session not found"})
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	sessions, conversations := s.history.Counts()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":              "healthy",
		"total_sessions":      sessions,
		"total_conversations": conversations,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
