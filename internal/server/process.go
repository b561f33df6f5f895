// Package server owns the lifecycle of the child analysis-server process and
// its protocol streams.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/rs/zerolog/log"
)

// stopGrace is how long Stop waits for a clean exit before killing.
const stopGrace = 5 * time.Second

// Process is a running analysis server. It is spawned exactly once, after
// priming completes, and consumes the framed-JSON protocol on stdin.
type Process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
}

// Spawn starts the analysis server. The child's stderr is inherited so its
// diagnostics land next to the interposer's own logs.
func Spawn(ctx context.Context, argv []string) (*Process, error) {
	if len(argv) == 0 {
		return nil, errors.New("server: empty command")
	}
	path, err := exec.LookPath(argv[0])
	if err != nil {
		return nil, fmt.Errorf("server: locate %s: %w", argv[0], err)
	}

	cmd := exec.CommandContext(ctx, path, argv[1:]...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("server: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("server: stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("server: start %s: %w", path, err)
	}

	log.Info().Str("cmd", path).Int("pid", cmd.Process.Pid).Msg("server: analysis server started")
	return &Process{cmd: cmd, stdin: stdin, stdout: stdout}, nil
}

// Stdin is the child's protocol input.
func (p *Process) Stdin() io.Writer { return p.stdin }

// Stdout is the child's protocol output.
func (p *Process) Stdout() io.Reader { return p.stdout }

// Stop closes the child's input and waits for it to exit, killing it if it
// lingers past the grace period.
func (p *Process) Stop() error {
	_ = p.stdin.Close()

	done := make(chan error, 1)
	go func() { done <- p.cmd.Wait() }()

	select {
	case err := <-done:
		return err
	case <-time.After(stopGrace):
		log.Warn().Int("pid", p.cmd.Process.Pid).Msg("server: child did not exit, killing")
		_ = p.cmd.Process.Kill()
		return <-done
	}
}
