package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"calmly/internal/domain"
	"calmly/internal/ports"
)

var errPipelineOpen = errors.New("capture pipeline already opened")

// Pipeline pushes fixed-length s16 frames from a capture session to a handler.
// A pipeline is single use: once closed it cannot be reopened.
type Pipeline struct {
	capture ports.AudioCapture
	cfg     ports.AudioConfig
	log     zerolog.Logger

	mu      sync.Mutex
	opened  bool
	closed  bool
	reading bool
	session ports.AudioSession
	cancel  context.CancelFunc

	done       chan struct{}
	finishOnce sync.Once
	err        error

	frames atomic.Uint64
}

func NewPipeline(capture ports.AudioCapture, cfg ports.AudioConfig, log zerolog.Logger) *Pipeline {
	cfg.SampleRate = domain.WireSampleRate
	cfg.Channels = domain.WireChannels
	if cfg.FrameSamples <= 0 {
		cfg.FrameSamples = domain.DefaultFrameSamples
	}
	return &Pipeline{
		capture: capture,
		cfg:     cfg,
		log:     log.With().Str("component", "capture").Logger(),
		done:    make(chan struct{}),
	}
}

type startResult struct {
	session ports.AudioSession
	err     error
}

// Open acquires the microphone and starts pushing frames to onFrame. ctx and
// the configured grant timeout bound only the wait for the device; the capture
// itself runs until Close.
func (p *Pipeline) Open(ctx context.Context, onFrame ports.FrameHandler) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return domain.ErrSessionCancelled
	}
	if p.opened {
		p.mu.Unlock()
		return errPipelineOpen
	}
	p.opened = true
	captureCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.mu.Unlock()

	results := make(chan startResult, 1)
	go func() {
		session, err := p.capture.Start(captureCtx, p.cfg)
		results <- startResult{session: session, err: err}
	}()

	var expired <-chan struct{}
	if p.cfg.GrantTimeout > 0 {
		grantCtx, stop := context.WithTimeout(ctx, p.cfg.GrantTimeout)
		defer stop()
		expired = grantCtx.Done()
	}

	select {
	case res := <-results:
		if res.err != nil {
			cancel()
			p.finish(res.err)
			return res.err
		}
		return p.attach(res.session, onFrame)
	case <-expired:
		if ctx.Err() != nil {
			p.abandon(results)
			return ctx.Err()
		}
		p.abandon(results)
		err := fmt.Errorf("%w: no microphone grant within %s", domain.ErrPermissionDenied, p.cfg.GrantTimeout)
		p.finish(err)
		return err
	case <-ctx.Done():
		p.abandon(results)
		return ctx.Err()
	}
}

func (p *Pipeline) attach(session ports.AudioSession, onFrame ports.FrameHandler) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.log.Debug().Msg("microphone granted after close; releasing")
		_ = session.Stop()
		return domain.ErrSessionCancelled
	}
	p.session = session
	p.reading = true
	p.mu.Unlock()

	go p.readLoop(session, onFrame)
	return nil
}

// abandon releases a capture session that is granted after Open gave up.
func (p *Pipeline) abandon(results <-chan startResult) {
	p.cancel()
	go func() {
		res := <-results
		if res.session != nil {
			p.log.Debug().Msg("late microphone grant ignored")
			_ = res.session.Stop()
		}
	}()
}

func (p *Pipeline) readLoop(session ports.AudioSession, onFrame ports.FrameHandler) {
	var loopErr error
	defer func() { p.finish(loopErr) }()

	n := p.cfg.FrameSamples
	raw := make([]byte, n*bytesPerFloatSample)
	floats := make([]float32, n)

	for {
		if _, err := io.ReadFull(session, raw); err != nil {
			if !p.isClosed() && !isEndOfCapture(err) {
				loopErr = fmt.Errorf("audio capture error: %w", err)
			}
			return
		}
		decodeFloat32LE(floats, raw)
		samples := make([]int16, n)
		Transcode(samples, floats)

		seq := p.frames.Add(1)
		if onFrame != nil {
			onFrame(domain.AudioFrame{Seq: seq, Samples: samples})
		}
	}
}

func isEndOfCapture(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, os.ErrClosed)
}

func (p *Pipeline) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Pipeline) finish(err error) {
	p.finishOnce.Do(func() {
		p.err = err
		close(p.done)
	})
}

// Done is closed once capture has ended for any reason.
func (p *Pipeline) Done() <-chan struct{} {
	return p.done
}

// Err reports why capture ended. It is nil after Close or a clean end of input.
func (p *Pipeline) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Frames returns the number of frames emitted so far.
func (p *Pipeline) Frames() uint64 {
	return p.frames.Load()
}

// Close releases the device and waits for the reader. It is safe to call more
// than once and before Open.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.done
		return nil
	}
	p.closed = true
	session := p.session
	reading := p.reading
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	var stopErr error
	if session != nil {
		stopErr = session.Stop()
	}
	if reading {
		<-p.done
	} else {
		p.finish(nil)
	}
	return stopErr
}

// PipelineFactory builds a fresh Pipeline for every session.
type PipelineFactory struct {
	Capture ports.AudioCapture
	Config  ports.AudioConfig
	Log     zerolog.Logger
}

func (f PipelineFactory) NewPipeline() ports.CapturePipeline {
	return NewPipeline(f.Capture, f.Config, f.Log)
}
