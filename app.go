package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"calmly/internal/bootstrap"
	"calmly/internal/domain"
)

const (
	eventSession   = "calmly:session"
	eventRecording = "calmly:recording"
	eventError     = "calmly:error"
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	services *bootstrap.Services
	bootErr  error
	emit     func(ctx context.Context, name string, data ...interface{})
}

func NewApp() *App {
	return &App{emit: runtime.EventsEmit}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(ctx, a, nil)
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.services = &services
	a.SessionStateChanged(domain.SessionStateIdle, "")
}

func (a *App) shutdown(_ context.Context) {
	if a.services == nil {
		return
	}
	if err := a.services.Close(); err != nil {
		a.services.Log.Warn().Err(err).Msg("shutdown incomplete")
	}
}

// StartSession begins a voice session. Starting while a session is already
// running is a no-op.
func (a *App) StartSession() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	err := a.services.Controller.Start(a.ctx)
	switch {
	case err == nil, errors.Is(err, domain.ErrSessionActive), errors.Is(err, domain.ErrSessionCancelled):
		return a.services.Controller.Status(), nil
	default:
		// The controller has already reported the failure to the UI.
		return a.services.Controller.Status(), err
	}
}

// StopSession ends the voice session. It is safe to call at any time.
func (a *App) StopSession() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.services.Controller.Stop(); err != nil {
		return domain.Status{}, err
	}
	return a.services.Controller.Status(), nil
}

// IsRecording reports whether audio is currently streaming.
func (a *App) IsRecording() bool {
	return a.GetStatus().Recording
}

// GetStatus returns the current session status.
func (a *App) GetStatus() domain.Status {
	if a.services == nil {
		if a.bootErr != nil {
			return domain.Status{State: domain.SessionStateFailed, Message: a.bootErr.Error()}
		}
		return domain.Status{State: domain.SessionStateIdle}
	}
	return a.services.Controller.Status()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}
	if a.services == nil {
		return map[string]string{}
	}

	cfg := a.services.Config
	return map[string]string{
		"provider":         "Hume EVI",
		"streamUrl":        cfg.Hume.StreamURL,
		"configId":         cfg.Hume.ConfigID,
		"audioInput":       cfg.Audio.InputDevice,
		"audioInputFormat": cfg.Audio.InputFormat,
		"speechCommand":    cfg.Speech.Command,
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.services == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// SessionStateChanged emits session lifecycle updates and the recording
// projection to the frontend.
func (a *App) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	if a.ctx == nil {
		return
	}
	a.emit(a.ctx, eventSession, map[string]string{
		"state":   string(state),
		"reason":  string(reason),
		"message": sessionReasonMessage(reason),
	})
	a.emit(a.ctx, eventRecording, state.Recording())
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	a.emit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func sessionReasonMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonStarting:
		return "Connecting..."
	case domain.SessionReasonStreaming:
		return "Listening"
	case domain.SessionReasonStopRequested:
		return "Ending session..."
	case domain.SessionReasonStopped:
		return "Session ended"
	case domain.SessionReasonRemoteClosed:
		return "Session ended by the voice service"
	case domain.SessionReasonTransportError:
		return "Connection lost"
	case domain.SessionReasonConnectFailed:
		return "Could not reach the voice service"
	case domain.SessionReasonHandshakeFailed:
		return "Voice service rejected the session"
	case domain.SessionReasonMicPermission:
		return "Microphone access denied"
	case domain.SessionReasonMicUnavailable:
		return "Microphone unavailable"
	case domain.SessionReasonCaptureEnded:
		return "Microphone stopped"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeConnection:
		return "Connection error"
	case domain.ErrorCodePermission:
		return "Microphone permission denied"
	case domain.ErrorCodeDevice:
		return "Microphone unavailable"
	case domain.ErrorCodeCapture:
		return "Audio capture issue"
	case domain.ErrorCodeDecode:
		return "Unreadable reply"
	case domain.ErrorCodeSpeech:
		return "Speech output failed"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
