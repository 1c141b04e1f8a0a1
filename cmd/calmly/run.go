package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"calmly/internal/bootstrap"
	"calmly/internal/domain"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start a voice session",
		Long: `Connect to the voice service, stream the microphone and speak replies.

The session ends on Ctrl-C (SIGINT), SIGTERM, or when the service closes
the connection.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSession(ctx, opts, cmd)
		},
	}
}

func runSession(ctx context.Context, opts *rootOptions, cmd *cobra.Command) error {
	cfg, err := opts.load(ctx)
	if err != nil {
		return err
	}

	sink := newTerminalSink()
	services, err := bootstrap.BuildWith(cfg, sink, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer services.Close()
	sink.setLogger(services.Log)

	if err := services.Controller.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		services.Log.Info().Msg("interrupted; ending session")
	case <-sink.ended:
	}
	return services.Controller.Stop()
}

// terminalSink logs session events and reports when the session has ended.
type terminalSink struct {
	mu  sync.Mutex
	log zerolog.Logger

	ended   chan struct{}
	endOnce sync.Once
	started bool
}

func newTerminalSink() *terminalSink {
	return &terminalSink{log: zerolog.Nop(), ended: make(chan struct{})}
}

func (s *terminalSink) setLogger(log zerolog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = log
}

func (s *terminalSink) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log.Info().Str("state", string(state)).Str("reason", string(reason)).Msg("session state")
	switch state {
	case domain.SessionStateConnecting:
		s.started = true
	case domain.SessionStateClosed:
		if s.started {
			s.endOnce.Do(func() { close(s.ended) })
		}
	}
}

func (s *terminalSink) SessionError(code domain.ErrorCode, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.Error().Str("code", string(code)).Msg(detail)
}
