package speech

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueSpeaksSequentiallyInOrder(t *testing.T) {
	t.Parallel()

	speaker := newFakeSpeaker(10 * time.Millisecond)
	q := NewQueue(speaker, 8, zerolog.Nop())
	t.Cleanup(func() { _ = q.Close() })

	q.Say("one")
	q.Say("two")
	q.Say("three")

	require.Eventually(t, func() bool { return len(speaker.spoken()) == 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"one", "two", "three"}, speaker.spoken())
	assert.Equal(t, 1, speaker.maxConcurrent())
}

func TestQueueDropsWhenFull(t *testing.T) {
	t.Parallel()

	speaker := newFakeSpeaker(0)
	speaker.block = make(chan struct{})
	q := NewQueue(speaker, 1, zerolog.Nop())

	q.Say("first")
	require.Eventually(t, func() bool { return speaker.started() == 1 }, time.Second, time.Millisecond)
	q.Say("second")
	q.Say("third")
	assert.Equal(t, 1, q.Pending())

	close(speaker.block)
	require.Eventually(t, func() bool { return len(speaker.spoken()) == 2 }, time.Second, time.Millisecond)
	require.NoError(t, q.Close())
	assert.Equal(t, []string{"first", "second"}, speaker.spoken())
}

func TestQueueCloseCancelsCurrentUtterance(t *testing.T) {
	t.Parallel()

	speaker := newFakeSpeaker(time.Minute)
	q := NewQueue(speaker, 4, zerolog.Nop())
	q.Say("long")
	q.Say("never")
	require.Eventually(t, func() bool { return speaker.started() == 1 }, time.Second, time.Millisecond)

	done := make(chan struct{})
	go func() {
		_ = q.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("close did not cancel the running utterance")
	}

	require.NoError(t, q.Close())
	q.Say("after close")
	assert.Equal(t, 1, speaker.started())
}

func TestQueueReportsErrors(t *testing.T) {
	t.Parallel()

	speaker := newFakeSpeaker(0)
	speaker.err = errors.New("no voice")
	q := NewQueue(speaker, 4, zerolog.Nop())

	failed := make(chan string, 1)
	q.OnError = func(text string, err error) { failed <- text }
	q.Say("hello")

	select {
	case text := <-failed:
		assert.Equal(t, "hello", text)
	case <-time.After(time.Second):
		t.Fatal("expected error callback")
	}
	require.NoError(t, q.Close())
}

func TestCommandSpeakerPassesTextAsFinalArgument(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "spoken")
	script := writeScript(t, "say.sh", "#!/usr/bin/env bash\necho \"$@\" > "+out+"\n")

	s := NewCommandSpeaker(script, "-v", "en")
	require.NoError(t, s.Speak(context.Background(), "breathe in"))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "-v en -- breathe in", strings.TrimSpace(string(data)))
}

func TestCommandSpeakerTreatsDashLeadingTextAsOperand(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"-5 degrees is cold", "--stdout"} {
		out := filepath.Join(t.TempDir(), "spoken")
		script := writeScript(t, "say.sh", "#!/usr/bin/env bash\nprintf '%s|%s' \"${@: -2:1}\" \"${@: -1}\" > "+out+"\n")

		require.NoError(t, NewCommandSpeaker(script).Speak(context.Background(), text))

		data, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.Equal(t, "--|"+text, string(data))
	}
}

func TestCommandSpeakerSkipsBlankText(t *testing.T) {
	t.Parallel()

	s := NewCommandSpeaker(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, s.Speak(context.Background(), "   "))
}

func TestCommandSpeakerFailure(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "fail.sh", "#!/usr/bin/env bash\necho 'no audio sink' 1>&2\nexit 3\n")
	err := NewCommandSpeaker(script).Speak(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no audio sink")

	err = NewCommandSpeaker(filepath.Join(t.TempDir(), "missing")).Speak(context.Background(), "hi")
	require.Error(t, err)
}

func TestCommandSpeakerCancel(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "slow.sh", "#!/usr/bin/env bash\nexec sleep 5\n")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := NewCommandSpeaker(script).Speak(ctx, "hi")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewCommandSpeakerDefault(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "espeak-ng", NewCommandSpeaker("").command)
}

func writeScript(t *testing.T, name string, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o700))
	return path
}

type fakeSpeaker struct {
	delay time.Duration
	block chan struct{}
	err   error

	mu      sync.Mutex
	texts   []string
	starts  int
	active  int
	maxSeen int
}

func newFakeSpeaker(delay time.Duration) *fakeSpeaker {
	return &fakeSpeaker{delay: delay}
}

func (f *fakeSpeaker) Speak(ctx context.Context, text string) error {
	f.mu.Lock()
	f.starts++
	f.active++
	if f.active > f.maxSeen {
		f.maxSeen = f.active
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.err != nil {
		return f.err
	}

	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	return nil
}

func (f *fakeSpeaker) spoken() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

func (f *fakeSpeaker) started() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

func (f *fakeSpeaker) maxConcurrent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxSeen
}
