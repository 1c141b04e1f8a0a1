package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionStateProjection(t *testing.T) {
	t.Parallel()

	for _, state := range []SessionState{SessionStateIdle, SessionStateClosed, ""} {
		assert.True(t, state.Startable(), "state %q", state)
		assert.False(t, state.Recording(), "state %q", state)
	}
	for _, state := range []SessionState{SessionStateConnecting, SessionStateActive, SessionStateClosing, SessionStateFailed} {
		assert.False(t, state.Startable(), "state %q", state)
	}
	assert.True(t, SessionStateActive.Recording())
	assert.False(t, SessionStateConnecting.Recording())
	assert.False(t, SessionStateClosing.Recording())
}

func TestCodeForError(t *testing.T) {
	t.Parallel()

	cases := map[error]ErrorCode{
		fmt.Errorf("%w: blocked", ErrPermissionDenied): ErrorCodePermission,
		ErrDeviceUnavailable:                           ErrorCodeDevice,
		fmt.Errorf("wrap: %w", ErrConnection):          ErrorCodeConnection,
		ErrDecode:                                      ErrorCodeDecode,
		errors.New("boom"):                             ErrorCodeStartup,
	}
	for err, want := range cases {
		assert.Equal(t, want, CodeForError(err), err.Error())
	}
}

func TestInboundReplyText(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", InboundReply{}.Text())
	assert.Equal(t, "breathe in", InboundReply{Reply: &ReplyBody{Text: "breathe in"}}.Text())
}

func TestAudioFrameBytes(t *testing.T) {
	t.Parallel()

	frame := AudioFrame{Seq: 1, Samples: []int16{1, -1, 32767, -32768}}
	assert.Equal(t, 4, frame.Len())
	assert.Equal(t, []byte{0x01, 0x00, 0xff, 0xff, 0xff, 0x7f, 0x00, 0x80}, frame.Bytes())
}
