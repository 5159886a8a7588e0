package converter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/rmitchellscott/creativeforge/internal/logging"
)

// ExecCommand and LookPath are replaced in tests.
var (
	ExecCommand = exec.CommandContext
	LookPath    = exec.LookPath
)

// run executes an external tool, returning stdout. stderr is folded into the
// error so failures are diagnosable from logs.
func run(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error) {
	cmd := ExecCommand(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdin = stdin
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 2000 {
			msg = msg[len(msg)-2000:]
		}
		logging.Warnf("[CONVERT] %s failed: %v: %s", name, err, msg)
		return nil, fmt.Errorf("%s failed (exit: %v): %s", name, err, msg)
	}
	return stdout.Bytes(), nil
}

// available reports whether a tool is on PATH.
func available(name string) bool {
	_, err := LookPath(name)
	return err == nil
}
