package devserver

import (
	"testing"
	"time"
)

func TestHistoryLifecycle(t *testing.T) {
	t.Parallel()

	h := NewHistory()
	now := time.Unix(100, 0)
	token := h.Start(now)
	if token == "" {
		t.Fatalf("expected a session token")
	}

	if !h.Record(token, Conversation{UserTranscript: "a", AIResponse: "b"}) {
		t.Fatalf("record on a known session failed")
	}
	if h.Record("unknown", Conversation{}) {
		t.Fatalf("record on an unknown session must fail")
	}

	h.End(token, now.Add(time.Second))
	h.End(token, now.Add(time.Hour))

	detail, ok := h.Get(token)
	if !ok {
		t.Fatalf("expected session detail")
	}
	if detail.Active || detail.EndedAt == nil || !detail.EndedAt.Equal(now.Add(time.Second)) {
		t.Fatalf("end must be recorded once: %+v", detail)
	}
	if detail.ConversationCount != 1 || len(detail.Conversations) != 1 {
		t.Fatalf("unexpected conversations: %+v", detail)
	}

	sessions, conversations := h.Counts()
	if sessions != 1 || conversations != 1 {
		t.Fatalf("unexpected counts: %d %d", sessions, conversations)
	}
}
