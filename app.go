package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"voicechat/internal/bootstrap"
	"voicechat/internal/domain"
	"voicechat/internal/usecase"
)

const (
	eventSession   = "voicechat:session"
	eventMessage   = "voicechat:message"
	eventTyping    = "voicechat:typing"
	eventCountdown = "voicechat:countdown"
	eventError     = "voicechat:error"
)

type emitFunc func(ctx context.Context, name string, data ...interface{})

// App is the Wails application root.
type App struct {
	ctx  context.Context
	emit emitFunc

	services   bootstrap.Services
	controller *usecase.SessionController
	bootErr    error
}

func NewApp() *App {
	return &App{emit: runtime.EventsEmit}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a)
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.services = services
	a.controller = services.Controller
	a.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonReady)
}

func (a *App) shutdown(_ context.Context) {
	if a.controller == nil {
		return
	}
	if err := a.services.Close(); err != nil {
		a.services.Log.Warn().Err(err).Msg("shutdown cleanup failed")
	}
}

// Start opens the voice chat session and begins listening.
func (a *App) Start() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.Connect(a.ctx); err != nil {
		if errors.Is(err, usecase.ErrAlreadyConnected) || errors.Is(err, usecase.ErrNotConnected) {
			return a.controller.Status(), nil
		}
		return a.controller.Status(), err
	}
	return a.controller.Status(), nil
}

// Stop ends the session. The rendered transcript is kept.
func (a *App) Stop() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.Disconnect(); err != nil {
		return a.controller.Status(), err
	}
	return a.controller.Status(), nil
}

// GetStatus returns the current session status.
func (a *App) GetStatus() domain.Status {
	if a.controller == nil {
		if a.bootErr != nil {
			return domain.Status{State: domain.SessionStateError, Active: false, Message: a.bootErr.Error()}
		}
		return domain.StatusFor(domain.SessionStateIdle, false)
	}
	return a.controller.Status()
}

// GetTranscript returns every message rendered so far.
func (a *App) GetTranscript() []domain.Message {
	if a.controller == nil {
		return []domain.Message{}
	}
	return a.controller.Transcript()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	cfg := a.services.Config
	return map[string]string{
		"server":           cfg.Server.URL + cfg.Server.Path,
		"silencePreset":    cfg.Silence.Preset,
		"segmentFormat":    cfg.Segment.Format,
		"audioInput":       cfg.Audio.InputDevice,
		"audioInputFormat": cfg.Audio.InputFormat,
		"sampleRate":       strconv.Itoa(cfg.Audio.SampleRate),
		"logDir":           cfg.Log.Dir,
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.controller == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

func (a *App) send(name string, payload interface{}) {
	if a.ctx == nil || a.emit == nil {
		return
	}
	a.emit(a.ctx, name, payload)
}

// SessionStateChanged emits session lifecycle updates to the frontend.
func (a *App) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	a.send(eventSession, map[string]string{
		"state":   string(state),
		"reason":  string(reason),
		"message": sessionReasonMessage(reason),
	})
}

// MessageAppended emits one rendered transcript entry.
func (a *App) MessageAppended(msg domain.Message) {
	a.send(eventMessage, msg)
}

// TypingChanged toggles the "AI is typing" indicator.
func (a *App) TypingChanged(active bool) {
	a.send(eventTyping, map[string]bool{"active": active})
}

// CountdownChanged updates the thinking countdown.
func (a *App) CountdownChanged(remaining int, active bool) {
	a.send(eventCountdown, map[string]interface{}{
		"remaining": remaining,
		"active":    active,
	})
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	a.send(eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func sessionReasonMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonReady:
		return "Ready"
	case domain.SessionReasonConnecting:
		return "Connecting..."
	case domain.SessionReasonListening:
		return "Listening"
	case domain.SessionReasonSpeechDetected:
		return "Hearing you"
	case domain.SessionReasonSegmentSent:
		return "Sent. Waiting for a reply..."
	case domain.SessionReasonSegmentDropped:
		return "Too short to send; listening again"
	case domain.SessionReasonThinking:
		return "Thinking..."
	case domain.SessionReasonReplyReceived:
		return "Reply received"
	case domain.SessionReasonPlayingReply:
		return "Playing reply"
	case domain.SessionReasonPlaybackFinished:
		return "Reply finished"
	case domain.SessionReasonSocketError:
		return "Connection error"
	case domain.SessionReasonDeviceError:
		return "Microphone unavailable"
	case domain.SessionReasonDisconnected:
		return "Disconnected"
	case domain.SessionReasonStopped:
		return "Stopped"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeDevice:
		return "Microphone access failed"
	case domain.ErrorCodeSocket:
		return "Connection error"
	case domain.ErrorCodeSend:
		return "Could not send audio"
	case domain.ErrorCodeAudioStream:
		return "Audio capture issue"
	case domain.ErrorCodeDecode:
		return "Could not decode reply audio"
	case domain.ErrorCodePlayback:
		return "Reply playback failed"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
