package audio

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calmly/internal/domain"
	"calmly/internal/ports"
)

func TestFFMPEGCaptureStartReadAndStop(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "capture.sh", "#!/usr/bin/env bash\nprintf 'hello'\nsleep 2\n")
	capture := NewFFMPEGCapture(script)

	session, err := capture.Start(context.Background(), ports.AudioConfig{})
	require.NoError(t, err)

	buf := make([]byte, 8)
	n, readErr := session.Read(buf)
	require.Positive(t, n, "read error: %v", readErr)
	assert.Contains(t, string(buf[:n]), "hello")

	require.NoError(t, session.Stop())
	require.NoError(t, session.Stop())
}

func TestFFMPEGCaptureRequestsFloatSamples(t *testing.T) {
	t.Parallel()

	argsFile := filepath.Join(t.TempDir(), "args")
	script := writeScript(t, "capture.sh", "#!/usr/bin/env bash\necho \"$@\" > "+argsFile+"\nsleep 2\n")
	capture := NewFFMPEGCapture(script)

	session, err := capture.Start(context.Background(), ports.AudioConfig{})
	require.NoError(t, err)
	defer session.Stop()

	require.Eventually(t, func() bool {
		data, err := os.ReadFile(argsFile)
		return err == nil && len(data) > 0
	}, time.Second, 10*time.Millisecond)

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	args := string(data)
	assert.Contains(t, args, "-f pulse -i default")
	assert.Contains(t, args, "-ac 1 -ar 16000")
	assert.Contains(t, args, "-f f32le -")
}

func TestFFMPEGCaptureStartEarlyExit(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "fail.sh", "#!/usr/bin/env bash\necho 'boom' 1>&2\nexit 1\n")
	capture := NewFFMPEGCapture(script)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := capture.Start(ctx, ports.AudioConfig{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDeviceUnavailable)
	assert.Contains(t, err.Error(), "exited before capture started")
	assert.Contains(t, err.Error(), "boom")
}

func TestFFMPEGCaptureStartPermissionDenied(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "denied.sh", "#!/usr/bin/env bash\necho 'default: Permission denied' 1>&2\nexit 1\n")
	capture := NewFFMPEGCapture(script)

	_, err := capture.Start(context.Background(), ports.AudioConfig{})
	require.ErrorIs(t, err, domain.ErrPermissionDenied)
}

func TestFFMPEGCaptureMissingBinary(t *testing.T) {
	t.Parallel()

	capture := NewFFMPEGCapture(filepath.Join(t.TempDir(), "does-not-exist"))
	_, err := capture.Start(context.Background(), ports.AudioConfig{})
	require.ErrorIs(t, err, domain.ErrDeviceUnavailable)
}

func TestClassifyStartupExit(t *testing.T) {
	t.Parallel()

	err := classifyStartupExit(nil, "")
	assert.ErrorIs(t, err, domain.ErrDeviceUnavailable)

	err = classifyStartupExit(errors.New("exit status 1"), "Access denied by policy\n")
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	assert.True(t, strings.HasSuffix(err.Error(), "Access denied by policy"))
}

func TestNormalizeStopErrExitErrorIsIgnored(t *testing.T) {
	t.Parallel()

	err := exec.Command("bash", "-c", "exit 1").Run()
	require.Error(t, err)
	assert.NoError(t, normalizeStopErr(err))
	assert.Error(t, normalizeStopErr(errors.New("other")))
}

func writeScript(t *testing.T, name string, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o700))
	return path
}
