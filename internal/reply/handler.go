// Package reply decodes inbound voice service messages and hands reply text to
// the speech sink.
package reply

import (
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"calmly/internal/domain"
	"calmly/internal/ports"
)

// Handler implements ports.MessageHandler.
type Handler struct {
	sink ports.SpeechSink
	log  zerolog.Logger

	// OnDecodeError observes messages that could not be decoded. The message
	// itself is still dropped.
	OnDecodeError func(err error)

	handled atomic.Uint64
	spoken  atomic.Uint64
	failed  atomic.Uint64
}

func NewHandler(sink ports.SpeechSink, log zerolog.Logger) *Handler {
	return &Handler{
		sink: sink,
		log:  log.With().Str("component", "reply").Logger(),
	}
}

// Handle decodes one message. Reply text is forwarded unmodified; any other
// shape is accepted and ignored.
func (h *Handler) Handle(raw []byte) {
	h.handled.Add(1)

	var msg domain.InboundReply
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.failed.Add(1)
		decodeErr := fmt.Errorf("%w: %v", domain.ErrDecode, err)
		h.log.Warn().Err(decodeErr).Int("bytes", len(raw)).Msg("dropping undecodable message")
		if h.OnDecodeError != nil {
			h.OnDecodeError(decodeErr)
		}
		return
	}

	h.log.Debug().Str("type", msg.Type).Bool("has_reply", msg.Reply != nil).Msg("message received")

	text := msg.Text()
	if text == "" {
		return
	}
	h.spoken.Add(1)
	h.sink.Say(text)
}

// Stats reports handled, spoken and undecodable message counts.
func (h *Handler) Stats() (handled, spoken, failed uint64) {
	return h.handled.Load(), h.spoken.Load(), h.failed.Load()
}
