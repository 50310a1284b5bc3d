package log

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const maxLineSize = 64 * 1024

type execOption struct {
	stdout, stderr zapcore.Level
	prefix         string
}

// ExecOption configures Exec
type ExecOption func(eo *execOption)

// StdoutLevel sets the level of the lines written on stdout (default: Info)
func StdoutLevel(l zapcore.Level) ExecOption {
	return func(eo *execOption) { eo.stdout = l }
}

// StderrLevel sets the level of the lines written on stderr (default: Warn)
func StderrLevel(l zapcore.Level) ExecOption {
	return func(eo *execOption) { eo.stderr = l }
}

// Prefix is prepended to each logged line
func Prefix(p string) ExecOption {
	return func(eo *execOption) { eo.prefix = p }
}

// Exec runs the command and sends its outputs to Logger(ctx), line by line.
// Outputs already redirected by the caller (cmd.Stdout, cmd.Stderr) are left untouched.
// The command is killed when ctx is done.
func Exec(ctx context.Context, cmd *exec.Cmd, options ...ExecOption) error {
	opts := execOption{stdout: zapcore.InfoLevel, stderr: zapcore.WarnLevel}
	for _, o := range options {
		o(&opts)
	}
	logger := Logger(ctx)

	type pipe struct {
		r     io.Reader
		level zapcore.Level
	}
	var pipes []pipe
	if cmd.Stdout == nil {
		r, err := cmd.StdoutPipe()
		if err != nil {
			return fmt.Errorf("Exec.StdoutPipe: %w", err)
		}
		pipes = append(pipes, pipe{r, opts.stdout})
	}
	if cmd.Stderr == nil {
		r, err := cmd.StderrPipe()
		if err != nil {
			return fmt.Errorf("Exec.StderrPipe: %w", err)
		}
		pipes = append(pipes, pipe{r, opts.stderr})
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("Exec.Start: %w", err)
	}

	wg := sync.WaitGroup{}
	for _, p := range pipes {
		wg.Add(1)
		go func(p pipe) {
			defer wg.Done()
			logLines(logger, p.r, p.level, opts.prefix)
		}(p)
	}

	done := make(chan error, 1)
	go func() {
		// Pipes must be drained before Wait
		wg.Wait()
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if err := cmd.Process.Kill(); err != nil {
			logger.Sugar().Warnf("Exec.Kill: %v", err)
		}
		<-done
		return ctx.Err()
	}
}

func logLines(logger *zap.Logger, r io.Reader, level zapcore.Level, prefix string) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 4096), maxLineSize)
	for scanner.Scan() {
		if line := strings.TrimRight(scanner.Text(), "\r"); line != "" {
			if ce := logger.Check(level, prefix+line); ce != nil {
				ce.Write()
			}
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Warn(prefix + "[output clipped]: " + err.Error())
		io.Copy(io.Discard, r)
	}
}
