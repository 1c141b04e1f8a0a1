package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const waitDelay = 500 * time.Millisecond

// CommandSpeaker speaks text through a local TTS command such as espeak-ng or
// say. The text is passed as the final argument.
type CommandSpeaker struct {
	command string
	args    []string
}

func NewCommandSpeaker(command string, args ...string) *CommandSpeaker {
	if command == "" {
		command = "espeak-ng"
	}
	return &CommandSpeaker{command: command, args: args}
}

// Speak blocks until the utterance has been rendered or ctx is cancelled.
func (s *CommandSpeaker) Speak(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	args := append(append([]string(nil), s.args...), "--", text)
	cmd := exec.CommandContext(ctx, s.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("speech command failed: %w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return fmt.Errorf("failed to run speech command: %w", err)
	}
	return nil
}
