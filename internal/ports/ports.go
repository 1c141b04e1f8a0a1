package ports

import (
	"context"
	"io"
	"time"

	"calmly/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate   int
	Channels     int
	InputFormat  string
	InputDevice  string
	FrameSamples int
	GrantTimeout time.Duration
}

// AudioSession is a live capture session yielding f32le samples.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// FrameHandler receives frames in capture order.
type FrameHandler func(frame domain.AudioFrame)

// CapturePipeline turns a capture session into pushed AudioFrames.
type CapturePipeline interface {
	Open(ctx context.Context, onFrame FrameHandler) error
	Done() <-chan struct{}
	Err() error
	Close() error
}

// CapturePipelineFactory builds one pipeline per session.
type CapturePipelineFactory interface {
	NewPipeline() CapturePipeline
}

// ReadyState mirrors the transport's lifecycle.
type ReadyState int32

const (
	ReadyStateConnecting ReadyState = iota
	ReadyStateOpen
	ReadyStateClosing
	ReadyStateClosed
)

func (s ReadyState) String() string {
	switch s {
	case ReadyStateConnecting:
		return "connecting"
	case ReadyStateOpen:
		return "open"
	case ReadyStateClosing:
		return "closing"
	case ReadyStateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// SessionConnection is an open duplex connection to the voice service.
type SessionConnection interface {
	SendHandshake() error
	Send(frame domain.AudioFrame) error
	Messages() <-chan []byte
	ReadyState() ReadyState
	Done() <-chan struct{}
	Err() error
	Close() error
}

// VoiceService opens session connections.
type VoiceService interface {
	Connect(ctx context.Context) (SessionConnection, error)
}

// MessageHandler consumes one inbound message.
type MessageHandler interface {
	Handle(raw []byte)
}

// SpeechSink renders reply text as audible speech.
type SpeechSink interface {
	Say(text string)
}

// Speaker speaks one utterance and returns when it has finished.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// EventSink emits backend state/events to the UI.
type EventSink interface {
	SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason)
	SessionError(code domain.ErrorCode, detail string)
}
