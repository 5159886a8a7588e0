package documents

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/rmitchellscott/creativeforge/internal/compressor"
)

func fakeExecCommand(ctx context.Context, command string, args ...string) *exec.Cmd {
	cs := []string{"-test.run=TestHelperProcess", "--", command}
	cs = append(cs, args...)
	cmd := exec.CommandContext(ctx, os.Args[0], cs...)
	cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")
	return cmd
}

func stubTools(t *testing.T) {
	t.Helper()
	ExecCommand = fakeExecCommand
	compressor.ExecCommand = fakeExecCommand
	t.Cleanup(func() {
		ExecCommand = exec.CommandContext
		compressor.ExecCommand = exec.CommandContext
	})
}

// TestHelperProcess stands in for mutool, pdftotext and gs.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	name, rest := args[1], args[2:]

	switch name {
	case "mutool":
		for i, a := range rest {
			if a == "-o" {
				os.WriteFile(rest[i+1], []byte("%PDF-1.4 rendered"), 0644)
			}
		}
	case "pdftotext":
		fmt.Print("First line of the PDF\n\nSecond line & more\n")
	case "gs":
		for _, a := range rest {
			if strings.HasPrefix(a, "-sOutputFile=") {
				os.WriteFile(strings.TrimPrefix(a, "-sOutputFile="), []byte("%PDF"), 0644)
			}
		}
	}
	os.Exit(0)
}
