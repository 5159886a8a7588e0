package documents

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rmitchellscott/creativeforge/internal/logging"
)

// ExecCommand is exec.CommandContext by default, but can be overridden in tests.
var ExecCommand = exec.CommandContext

func run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := ExecCommand(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		logging.Warnf("[DOCUMENTS] %s failed: %v: %s", name, err, msg)
		return nil, fmt.Errorf("%s failed: %w: %s", name, err, msg)
	}
	return stdout.Bytes(), nil
}
