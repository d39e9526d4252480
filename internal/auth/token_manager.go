package auth

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/waabox/gitlab-trace/internal/config"
)

// TokenManager handles silent token refresh and config persistence for one instance.
type TokenManager struct {
	cfg        *config.Config
	configPath string
	instance   string
	mu         sync.Mutex
}

// NewTokenManager creates a TokenManager for the named instance ("" is [gitlab]).
// An empty configPath keeps refreshed tokens in memory only.
func NewTokenManager(cfg *config.Config, configPath string, instance string) *TokenManager {
	return &TokenManager{
		cfg:        cfg,
		configPath: configPath,
		instance:   instance,
	}
}

// Refresh exchanges the stored refresh token for a new access token.
// On success, it updates the config in memory and persists it to disk.
func (tm *TokenManager) Refresh(ctx context.Context) (string, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	inst, err := tm.cfg.Instance(tm.instance)
	if err != nil {
		return "", err
	}
	if inst.RefreshToken == "" {
		return "", errors.New("no refresh token available")
	}
	if inst.ClientID == "" {
		return "", errors.New("no client_id configured for token refresh")
	}

	flow := NewGitLabDeviceFlow(inst.ClientID, inst.URLOrDefault())
	resp, err := flow.RefreshToken(ctx, inst.RefreshToken)
	if err != nil {
		return "", err
	}

	inst.OAuthToken = resp.AccessToken
	if resp.RefreshToken != "" {
		inst.RefreshToken = resp.RefreshToken
	}
	tm.cfg.SetInstance(tm.instance, inst)

	if err := tm.persist(inst); err != nil {
		// The token is usable for this session even if it could not be persisted.
		return resp.AccessToken, errors.Wrap(err, "token refreshed but failed to save config")
	}
	return resp.AccessToken, nil
}

// Store records tokens obtained from a device authorization and persists them.
func (tm *TokenManager) Store(tokens TokenResponse) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	inst, err := tm.cfg.Instance(tm.instance)
	if err != nil {
		return err
	}
	inst.OAuthToken = tokens.AccessToken
	inst.RefreshToken = tokens.RefreshToken
	tm.cfg.SetInstance(tm.instance, inst)
	return tm.persist(inst)
}

// persist writes the tokens of inst into the file as it is on disk, so
// environment overrides applied at load time never end up in the file.
func (tm *TokenManager) persist(inst config.Instance) error {
	if tm.configPath == "" {
		return nil
	}
	onDisk, err := config.LoadRaw(tm.configPath)
	if err != nil {
		return err
	}
	stored, err := onDisk.Instance(tm.instance)
	if err != nil {
		stored = config.Instance{URL: inst.URL, ClientID: inst.ClientID}
	}
	stored.OAuthToken = inst.OAuthToken
	stored.RefreshToken = inst.RefreshToken
	onDisk.SetInstance(tm.instance, stored)
	return config.Save(tm.configPath, onDisk)
}
