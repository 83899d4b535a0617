package domain

import "testing"

func TestTransitionTable(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from  SessionState
		event SessionEvent
		want  SessionState
		ok    bool
	}{
		{SessionStateIdle, EventStart, SessionStateConnecting, true},
		{SessionStateConnecting, EventOpened, SessionStateListening, true},
		{SessionStateListening, EventSpeech, SessionStateSpeaking, true},
		{SessionStateSpeaking, EventSegmentSent, SessionStateAwaitingReply, true},
		{SessionStateSpeaking, EventSegmentDropped, SessionStateListening, true},
		{SessionStateAwaitingReply, EventUserTranscript, SessionStateAwaitingReply, false},
		{SessionStateAwaitingReply, EventAITranscript, SessionStateListening, true},
		{SessionStateAwaitingReply, EventPlaybackStart, SessionStatePlayingReply, true},
		{SessionStatePlayingReply, EventPlaybackDrain, SessionStateListening, true},
		{SessionStatePlayingReply, EventSpeech, SessionStateSpeaking, true},
		{SessionStateListening, EventSocketError, SessionStateError, true},
		{SessionStateSpeaking, EventClosed, SessionStateIdle, true},
		{SessionStateConnecting, EventStop, SessionStateIdle, true},
		{SessionStateConnecting, EventDeviceError, SessionStateError, true},
		{SessionStateError, EventClosed, SessionStateIdle, true},
		{SessionStateError, EventStart, SessionStateConnecting, true},
		{SessionStateIdle, EventClosed, SessionStateIdle, false},
		{SessionStateIdle, EventStop, SessionStateIdle, false},
		{SessionStateIdle, EventSpeech, SessionStateIdle, false},
		{SessionStateListening, EventStart, SessionStateListening, false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(string(tc.from)+"/"+string(tc.event), func(t *testing.T) {
			t.Parallel()
			got, ok := Transition(tc.from, tc.event)
			if got != tc.want || ok != tc.ok {
				t.Fatalf("Transition(%s, %s) = (%s, %t), want (%s, %t)", tc.from, tc.event, got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestStatusForControls(t *testing.T) {
	t.Parallel()

	idle := StatusFor(SessionStateIdle, false)
	if !idle.StartEnabled || idle.StopEnabled || idle.Active {
		t.Fatalf("unexpected idle status: %+v", idle)
	}

	listening := StatusFor(SessionStateListening, true)
	if listening.StartEnabled || !listening.StopEnabled || !listening.Active || !listening.Listening {
		t.Fatalf("unexpected listening status: %+v", listening)
	}

	failed := StatusFor(SessionStateError, false)
	if !failed.StartEnabled || !failed.StopEnabled || failed.Active {
		t.Fatalf("unexpected error status: %+v", failed)
	}
}
