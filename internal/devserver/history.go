package devserver

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Conversation is one answered segment.
type Conversation struct {
	UserTranscript string    `json:"user_transcript"`
	AIResponse     string    `json:"ai_response"`
	CreatedAt      time.Time `json:"created_at"`
	AudioDuration  float64   `json:"audio_duration"`
	ProcessingTime float64   `json:"processing_time"`
}

// SessionSummary describes one socket session.
type SessionSummary struct {
	Token             string     `json:"session_token"`
	StartedAt         time.Time  `json:"started_at"`
	EndedAt           *time.Time `json:"ended_at"`
	Active            bool       `json:"is_active"`
	ConversationCount int        `json:"conversation_count"`
}

// SessionDetail is a summary plus its conversations.
type SessionDetail struct {
	SessionSummary
	Conversations []Conversation `json:"conversations"`
}

type sessionRecord struct {
	token         string
	startedAt     time.Time
	endedAt       *time.Time
	active        bool
	conversations []Conversation
}

func (r *sessionRecord) summary() SessionSummary {
	return SessionSummary{
		Token:             r.token,
		StartedAt:         r.startedAt,
		EndedAt:           r.endedAt,
		Active:            r.active,
		ConversationCount: len(r.conversations),
	}
}

// History keeps session and conversation records in memory.
type History struct {
	mu       sync.Mutex
	sessions map[string]*sessionRecord
}

func NewHistory() *History {
	return &History{sessions: make(map[string]*sessionRecord)}
}

func (h *History) Start(now time.Time) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	token := uuid.NewString()
	h.sessions[token] = &sessionRecord{token: token, startedAt: now, active: true}
	return token
}

func (h *History) Record(token string, conv Conversation) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	record, ok := h.sessions[token]
	if !ok {
		return false
	}
	record.conversations = append(record.conversations, conv)
	return true
}

func (h *History) End(token string, now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	record, ok := h.sessions[token]
	if !ok || !record.active {
		return
	}
	ended := now
	record.active = false
	record.endedAt = &ended
}

// List returns up to limit sessions, newest first.
func (h *History) List(limit int) []SessionSummary {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]SessionSummary, 0, len(h.sessions))
	for _, record := range h.sessions {
		out = append(out, record.summary())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (h *History) Get(token string) (SessionDetail, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	record, ok := h.sessions[token]
	if !ok {
		return SessionDetail{}, false
	}
	return SessionDetail{
		SessionSummary: record.summary(),
		Conversations:  append([]Conversation(nil), record.conversations...),
	}, true
}

// Counts returns the number of sessions and conversations recorded.
func (h *History) Counts() (int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conversations := 0
	for _, record := range h.sessions {
		conversations += len(record.conversations)
	}
	return len(h.sessions), conversations
}
