package usecase

import (
	"github.com/rs/zerolog"

	"calmly/internal/domain"
	"calmly/internal/ports"
)

// frameForwarder sends captured frames to conn in capture order. Frames that
// arrive while the connection is not open are dropped by the connection.
func frameForwarder(conn ports.SessionConnection, log zerolog.Logger) ports.FrameHandler {
	var failures int
	return func(frame domain.AudioFrame) {
		if err := conn.Send(frame); err != nil {
			failures++
			if failures == 1 {
				log.Warn().Err(err).Uint64("seq", frame.Seq).Msg("failed to send audio frame")
			}
		}
	}
}

// consumeMessages hands inbound payloads to handler in arrival order until the
// connection's message stream closes.
func consumeMessages(conn ports.SessionConnection, handler ports.MessageHandler, done chan struct{}) {
	defer close(done)
	for raw := range conn.Messages() {
		handler.Handle(raw)
	}
}

type sessionEnd struct {
	reason domain.SessionStateReason
	code   domain.ErrorCode
	err    error
}

// watchSession blocks until the transport or the capture ends, or the session
// is stopped. It returns ok=false for a stop.
func watchSession(active *activeSession, conn ports.SessionConnection) (sessionEnd, bool) {
	select {
	case <-active.stopping:
		return sessionEnd{}, false
	case <-conn.Done():
		if err := conn.Err(); err != nil {
			return sessionEnd{reason: domain.SessionReasonTransportError, code: domain.ErrorCodeConnection, err: err}, true
		}
		return sessionEnd{reason: domain.SessionReasonRemoteClosed}, true
	case <-active.pipeline.Done():
		return sessionEnd{reason: domain.SessionReasonCaptureEnded, code: domain.ErrorCodeCapture, err: active.pipeline.Err()}, true
	}
}
