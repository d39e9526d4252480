package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/waabox/gitlab-trace/internal/auth"
)

func newLoginCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authenticate with GitLab using the OAuth device flow",
		Long: `Authenticate with GitLab using the OAuth device flow.

The instance needs the client_id of an OAuth application registered on that
GitLab server. The resulting tokens are stored in the config file and refreshed
automatically when they expire.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.login(cmd.Context())
		},
	}
}

// login runs the GitLab Device Authorization Flow interactively.
// All prompts are written to stderr so stdout remains clean for piping.
func (a *app) login(ctx context.Context) error {
	name := a.instanceName()
	inst, err := a.cfg.Instance(name)
	if err != nil {
		return err
	}
	if inst.ClientID == "" {
		return errors.Errorf("client_id is not set for instance %s in %s", displayName(name), a.cfgPath)
	}

	flow := auth.NewGitLabDeviceFlow(inst.ClientID, inst.URLOrDefault())
	code, err := flow.RequestCode(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.env.Err, "Visit:      %s\n", code.VerificationURI)
	fmt.Fprintf(a.env.Err, "Enter code: %s\n", code.UserCode)
	fmt.Fprintf(a.env.Err, "Waiting for authorization...\n")

	codeCtx := ctx
	if code.ExpiresIn > 0 {
		var cancel context.CancelFunc
		codeCtx, cancel = context.WithTimeout(ctx, time.Duration(code.ExpiresIn)*time.Second)
		defer cancel()
	}
	tokens, err := flow.PollToken(codeCtx, code.DeviceCode, code.Interval)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return errors.New("device code expired, run `gitlab-trace login` again")
		}
		return err
	}

	if err := auth.NewTokenManager(&a.cfg, a.cfgPath, name).Store(tokens); err != nil {
		return errors.Wrap(err, "saving tokens")
	}
	fmt.Fprintf(a.env.Err, "Authenticated. Token saved to %s\n", a.cfgPath)
	return nil
}
