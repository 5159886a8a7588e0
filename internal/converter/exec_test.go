package converter

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"testing"
)

// fakeExec re-runs the test binary as the requested tool; see
// TestHelperProcess.
func fakeExec(t *testing.T, calls *[][]string) {
	t.Helper()
	origExec, origLook := ExecCommand, LookPath
	ExecCommand = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		if calls != nil {
			*calls = append(*calls, append([]string{name}, args...))
		}
		cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")
		return cmd
	}
	LookPath = func(file string) (string, error) { return "/usr/bin/" + file, nil }
	t.Cleanup(func() {
		ExecCommand, LookPath = origExec, origLook
	})
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) < 2 {
		os.Exit(2)
	}
	name, rest := args[1], args[2:]

	switch name {
	case "ffmpeg":
		out := rest[len(rest)-1]
		if err := os.WriteFile(out, []byte("transcoded-media"), 0644); err != nil {
			os.Exit(1)
		}
	case "ffprobe":
		fmt.Print("12.5\n")
	case "convert", "magick":
		io.Copy(io.Discard, os.Stdin)
		fmt.Print("RIFF\x00\x00\x00\x00WEBPVP8 fake")
	case "broken":
		fmt.Fprint(os.Stderr, "boom")
		os.Exit(1)
	}
	os.Exit(0)
}
