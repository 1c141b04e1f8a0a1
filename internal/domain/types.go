package domain

import "errors"

// SessionState models the voice session lifecycle.
type SessionState string

const (
	SessionStateIdle       SessionState = "idle"
	SessionStateConnecting SessionState = "connecting"
	SessionStateActive     SessionState = "active"
	SessionStateClosing    SessionState = "closing"
	SessionStateClosed     SessionState = "closed"
	SessionStateFailed     SessionState = "failed"
)

// Startable reports whether a new session may begin from this state. Failed is
// transient: the session is still being released and ends in Closed.
func (s SessionState) Startable() bool {
	switch s {
	case SessionStateIdle, SessionStateClosed, "":
		return true
	default:
		return false
	}
}

// Recording is the display projection of the state.
func (s SessionState) Recording() bool {
	return s == SessionStateActive
}

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonStarting        SessionStateReason = "starting"
	SessionReasonStreaming       SessionStateReason = "streaming"
	SessionReasonStopRequested   SessionStateReason = "stop_requested"
	SessionReasonStopped         SessionStateReason = "stopped"
	SessionReasonRemoteClosed    SessionStateReason = "remote_closed"
	SessionReasonTransportError  SessionStateReason = "transport_error"
	SessionReasonConnectFailed   SessionStateReason = "connect_failed"
	SessionReasonHandshakeFailed SessionStateReason = "handshake_failed"
	SessionReasonMicPermission   SessionStateReason = "mic_permission_denied"
	SessionReasonMicUnavailable  SessionStateReason = "mic_unavailable"
	SessionReasonCaptureEnded    SessionStateReason = "capture_ended"
)

// ErrorCode identifies backend errors reported to the event sink.
type ErrorCode string

const (
	ErrorCodeStartup    ErrorCode = "startup"
	ErrorCodeConnection ErrorCode = "connection"
	ErrorCodePermission ErrorCode = "permission"
	ErrorCodeDevice     ErrorCode = "device"
	ErrorCodeCapture    ErrorCode = "capture"
	ErrorCodeDecode     ErrorCode = "decode"
	ErrorCodeSpeech     ErrorCode = "speech"
)

var (
	ErrPermissionDenied  = errors.New("microphone permission denied")
	ErrDeviceUnavailable = errors.New("microphone device unavailable")
	ErrConnection        = errors.New("voice service connection error")
	ErrDecode            = errors.New("inbound message decode error")
	ErrSessionActive     = errors.New("a voice session is already active")
	ErrSessionCancelled  = errors.New("voice session start cancelled")
)

// CodeForError maps an error to the closest ErrorCode.
func CodeForError(err error) ErrorCode {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return ErrorCodePermission
	case errors.Is(err, ErrDeviceUnavailable):
		return ErrorCodeDevice
	case errors.Is(err, ErrDecode):
		return ErrorCodeDecode
	case errors.Is(err, ErrConnection):
		return ErrorCodeConnection
	default:
		return ErrorCodeStartup
	}
}

// Status summarizes the current runtime status.
type Status struct {
	State     SessionState `json:"state"`
	Recording bool         `json:"recording"`
	SessionID string       `json:"sessionId,omitempty"`
	Message   string       `json:"message,omitempty"`
}

// InboundReply is a decoded message from the voice service.
type InboundReply struct {
	Type  string     `json:"type,omitempty"`
	Reply *ReplyBody `json:"reply,omitempty"`
}

type ReplyBody struct {
	Text string `json:"text"`
}

// Text returns the reply text, empty when absent.
func (r InboundReply) Text() string {
	if r.Reply == nil {
		return ""
	}
	return r.Reply.Text
}
