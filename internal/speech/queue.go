// Package speech renders reply text as audible speech.
package speech

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"calmly/internal/ports"
)

const defaultQueueSize = 16

// Queue delivers utterances to a Speaker one at a time, in the order they were
// queued. It implements ports.SpeechSink.
type Queue struct {
	speaker ports.Speaker
	log     zerolog.Logger

	// OnError observes failed utterances.
	OnError func(text string, err error)

	items  chan string
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

func NewQueue(speaker ports.Speaker, size int, log zerolog.Logger) *Queue {
	if size <= 0 {
		size = defaultQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		speaker: speaker,
		log:     log.With().Str("component", "speech").Logger(),
		items:   make(chan string, size),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go q.run()
	return q
}

// Say queues text without blocking. When the queue is full the utterance is
// dropped.
func (q *Queue) Say(text string) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return
	}
	select {
	case q.items <- text:
	default:
		q.log.Warn().Int("pending", len(q.items)).Msg("speech queue full; utterance dropped")
	}
}

// Pending returns the number of utterances waiting to be spoken.
func (q *Queue) Pending() int {
	return len(q.items)
}

func (q *Queue) run() {
	defer close(q.done)
	for text := range q.items {
		if q.ctx.Err() != nil {
			continue
		}
		if err := q.speaker.Speak(q.ctx, text); err != nil && q.ctx.Err() == nil {
			q.log.Error().Err(err).Msg("utterance failed")
			if q.OnError != nil {
				q.OnError(text, err)
			}
		}
	}
}

// Close cancels the current utterance, discards pending ones and waits for the
// worker to exit. It is safe to call more than once.
func (q *Queue) Close() error {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.items)
		q.mu.Unlock()
		q.cancel()
	})
	<-q.done
	return nil
}
