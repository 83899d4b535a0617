package usecase

import (
	"errors"
	"testing"
)

func TestPumpCaptureDeliversChunksUntilStopped(t *testing.T) {
	t.Parallel()

	session := newFakeAudioSession()
	session.push([]byte("abc"))
	session.push([]byte("def"))

	var got []string
	var gotErr error
	done := make(chan struct{})
	go pumpCapture(session, 256, func(chunk []byte) bool {
		got = append(got, string(chunk))
		return len(got) < 2
	}, func(err error) { gotErr = err }, done)
	<-done

	if len(got) != 2 || got[0] != "abc" || got[1] != "def" {
		t.Fatalf("unexpected chunks: %v", got)
	}
	if gotErr != nil {
		t.Fatalf("stopping from onChunk must not report an error: %v", gotErr)
	}
}

func TestPumpCaptureReportsReadError(t *testing.T) {
	t.Parallel()

	session := newFakeAudioSession()
	session.errs <- errors.New("read failed")

	var gotErr error
	done := make(chan struct{})
	go pumpCapture(session, 256, func([]byte) bool { return true }, func(err error) { gotErr = err }, done)
	<-done

	if gotErr == nil || gotErr.Error() != "audio capture error: read failed" {
		t.Fatalf("unexpected error: %v", gotErr)
	}
}

func TestPumpCaptureReportsUnexpectedEOF(t *testing.T) {
	t.Parallel()

	session := newFakeAudioSession()
	_ = session.Stop()

	var gotErr error
	done := make(chan struct{})
	go pumpCapture(session, 0, func([]byte) bool { return true }, func(err error) { gotErr = err }, done)
	<-done

	if !errors.Is(gotErr, errCaptureEnded) {
		t.Fatalf("expected errCaptureEnded, got %v", gotErr)
	}
}
