package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"calmly/internal/domain"
	"calmly/internal/ports"
)

// SessionController owns the voice session lifecycle: it opens the
// connection, wires capture into it, wires replies into the handler and
// releases everything exactly once.
//
// EventSink callbacks run while the controller lock is held so that
// transitions are observed in order. Sinks must not call back into the
// controller.
type SessionController struct {
	voice    ports.VoiceService
	capture  ports.CapturePipelineFactory
	handler  ports.MessageHandler
	events   ports.EventSink
	log      zerolog.Logger
	newID    func() string
	watchers sync.WaitGroup

	mu      sync.Mutex
	state   domain.SessionState
	current *activeSession
}

func NewSessionController(
	voice ports.VoiceService,
	capture ports.CapturePipelineFactory,
	handler ports.MessageHandler,
	events ports.EventSink,
	log zerolog.Logger,
) *SessionController {
	return &SessionController{
		voice:   voice,
		capture: capture,
		handler: handler,
		events:  events,
		log:     log.With().Str("component", "session").Logger(),
		newID:   uuid.NewString,
		state:   domain.SessionStateIdle,
	}
}

// Start opens a new session. It returns domain.ErrSessionActive while a
// previous session is connecting, active, failed or closing, and domain.ErrSessionCancelled
// when Stop wins the race against an in-flight start.
func (c *SessionController) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.current != nil || !c.state.Startable() {
		c.mu.Unlock()
		return domain.ErrSessionActive
	}
	sessionCtx, cancel := context.WithCancel(ctx)
	active := newActiveSession(c.newID(), cancel, c.capture.NewPipeline())
	c.current = active
	c.setStateLocked(domain.SessionStateConnecting, domain.SessionReasonStarting)
	c.mu.Unlock()

	log := c.log.With().Str("session_id", active.id).Logger()
	log.Info().Msg("connecting to voice service")

	conn, err := c.voice.Connect(sessionCtx)
	if err != nil {
		return c.failStart(active, err, domain.SessionReasonConnectFailed)
	}
	if !active.attach(conn) {
		_ = conn.Close()
		return domain.ErrSessionCancelled
	}

	if err := conn.SendHandshake(); err != nil {
		return c.failStart(active, err, domain.SessionReasonHandshakeFailed)
	}
	if active.startConsuming() {
		go consumeMessages(conn, c.handler, active.messagesDone)
	}

	if err := active.pipeline.Open(sessionCtx, frameForwarder(conn, log)); err != nil {
		reason := domain.SessionReasonMicUnavailable
		if errors.Is(err, domain.ErrPermissionDenied) {
			reason = domain.SessionReasonMicPermission
		}
		return c.failStart(active, err, reason)
	}

	c.mu.Lock()
	if c.current != active || c.stopped(active) {
		c.mu.Unlock()
		return domain.ErrSessionCancelled
	}
	c.setStateLocked(domain.SessionStateActive, domain.SessionReasonStreaming)
	c.mu.Unlock()
	log.Info().Msg("voice session active")

	c.watchers.Add(1)
	go c.watch(active, conn)
	return nil
}

// Stop ends the current session. It is idempotent and safe from any state, and
// returns only after the session has reached Closed.
func (c *SessionController) Stop() error {
	c.mu.Lock()
	active := c.current
	if active == nil {
		if c.state != domain.SessionStateClosed {
			c.setStateLocked(domain.SessionStateClosed, domain.SessionReasonStopped)
		}
		c.mu.Unlock()
		return nil
	}
	if c.stopped(active) {
		c.mu.Unlock()
		// Someone else owns the teardown; return once it has published Closed.
		c.teardown(active)
		<-active.finished
		return nil
	}
	active.markStopping()
	c.setStateLocked(domain.SessionStateClosing, domain.SessionReasonStopRequested)
	c.mu.Unlock()

	c.log.Info().Str("session_id", active.id).Msg("stopping voice session")
	c.teardown(active)
	c.finish(active, domain.SessionReasonStopped)
	return nil
}

// Wait blocks until background session watchers have exited.
func (c *SessionController) Wait() {
	c.watchers.Wait()
}

// Status returns the current backend status.
func (c *SessionController) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	status := domain.Status{State: c.state, Recording: c.state.Recording()}
	if c.current != nil {
		status.SessionID = c.current.id
	}
	return status
}

// Recording is the display projection of the session state.
func (c *SessionController) Recording() bool {
	return c.Status().Recording
}

func (c *SessionController) watch(active *activeSession, conn ports.SessionConnection) {
	defer c.watchers.Done()

	end, ok := watchSession(active, conn)
	if !ok {
		return
	}

	c.mu.Lock()
	if c.current != active || c.stopped(active) {
		c.mu.Unlock()
		return
	}
	active.markStopping()
	if end.err != nil {
		c.events.SessionError(end.code, end.err.Error())
		c.setStateLocked(domain.SessionStateFailed, end.reason)
	} else {
		c.setStateLocked(domain.SessionStateClosing, end.reason)
	}
	c.mu.Unlock()

	c.log.Info().Str("session_id", active.id).Str("reason", string(end.reason)).Err(end.err).Msg("voice session ended")
	c.teardown(active)
	c.finish(active, end.reason)
}

// failStart publishes Failed, releases the session and ends in Closed. When
// Stop already owns the session the start is reported as cancelled.
func (c *SessionController) failStart(active *activeSession, err error, reason domain.SessionStateReason) error {
	c.mu.Lock()
	if c.current != active || c.stopped(active) {
		c.mu.Unlock()
		return domain.ErrSessionCancelled
	}
	active.markStopping()
	c.events.SessionError(domain.CodeForError(err), err.Error())
	c.setStateLocked(domain.SessionStateFailed, reason)
	c.mu.Unlock()

	c.log.Error().Err(err).Str("session_id", active.id).Str("reason", string(reason)).Msg("voice session failed to start")
	c.teardown(active)
	c.finish(active, reason)
	return err
}

// teardown releases capture, then the connection, then waits for the reply
// consumer. It runs once per session; concurrent callers wait for it.
func (c *SessionController) teardown(active *activeSession) {
	active.teardownOnce.Do(func() {
		active.cancel()
		conn, consuming := active.release()

		if err := active.pipeline.Close(); err != nil {
			c.log.Warn().Err(err).Str("session_id", active.id).Msg("failed to stop audio capture cleanly")
		}
		if conn != nil {
			if err := conn.Close(); err != nil {
				c.log.Warn().Err(err).Str("session_id", active.id).Msg("failed to close voice connection cleanly")
			}
		}
		if consuming {
			<-active.messagesDone
		}
	})
}

func (c *SessionController) finish(active *activeSession, reason domain.SessionStateReason) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer active.markFinished()
	if c.current != active {
		return
	}
	c.current = nil
	c.setStateLocked(domain.SessionStateClosed, reason)
}

func (c *SessionController) stopped(active *activeSession) bool {
	select {
	case <-active.stopping:
		return true
	default:
		return false
	}
}

func (c *SessionController) setStateLocked(state domain.SessionState, reason domain.SessionStateReason) {
	c.state = state
	c.events.SessionStateChanged(state, reason)
}
