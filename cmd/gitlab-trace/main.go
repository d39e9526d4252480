package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/waabox/gitlab-trace/internal/report"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

func main() {
	// Writes to a closed pipe return EPIPE instead of killing the process.
	signal.Ignore(syscall.SIGPIPE)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	dir, err := os.Getwd()
	if err != nil {
		dir = "."
	}
	code := run(ctx, os.Args[1:], &environment{
		In:          os.Stdin,
		Out:         os.Stdout,
		Err:         os.Stderr,
		Dir:         dir,
		Interactive: term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stderr.Fd())),
	})
	stop()
	os.Exit(code)
}

// exitError ends the process with a status code without printing anything more.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func run(ctx context.Context, args []string, env *environment) int {
	rep := report.New(env.Err, zapcore.InfoLevel)
	defer rep.Close()

	root := newRootCmd(env, rep)
	if cmd, _, err := root.Find(args); err != nil || cmd == root {
		args = hoistPositionals(args, root.Flags(), root.PersistentFlags())
	}
	root.SetArgs(args)
	root.SetIn(env.In)
	root.SetOut(env.Out)
	root.SetErr(env.Err)

	return exitCode(root.ExecuteContext(ctx), rep)
}

func exitCode(err error, rep *report.Logger) int {
	if err == nil {
		return 0
	}
	var exit *exitError
	switch {
	case errors.As(err, &exit):
		return exit.code
	case errors.Is(err, context.Canceled), errors.Is(err, syscall.EPIPE), errors.Is(err, io.ErrClosedPipe):
		return 0
	}
	rep.Errorf("%v", err)
	return 1
}
