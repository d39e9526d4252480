package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waabox/gitlab-trace/internal/config"
)

func TestLogin_StoresTokensForInstance(t *testing.T) {
	t.Setenv("GITLAB_TOKEN", "")
	t.Setenv("GITLAB_URL", "")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/oauth/authorize_device":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"device_code":      "dev",
				"user_code":        "ABCD-1234",
				"verification_uri": "https://gitlab.example.com/oauth/device",
				"expires_in":       60,
				"interval":         0,
			})
		case "/oauth/token":
			json.NewEncoder(w).Encode(map[string]string{"access_token": "access", "refresh_token": "refresh"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[instances.work]\nurl = \""+server.URL+"\"\nclient_id = \"cid\"\n"), 0600))

	var out, errOut strings.Builder
	code := run(context.Background(), []string{"login", "-g", "work", "--config", path}, &environment{
		In: strings.NewReader(""), Out: &out, Err: &errOut, Dir: dir,
	})
	require.Equal(t, 0, code, errOut.String())
	assert.Contains(t, errOut.String(), "Enter code: ABCD-1234\n")
	assert.Empty(t, out.String())

	cfg, err := config.LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "access", cfg.Instances["work"].OAuthToken)
	assert.Equal(t, "refresh", cfg.Instances["work"].RefreshToken)
	assert.Equal(t, "cid", cfg.Instances["work"].ClientID)
}

func TestLogin_RequiresClientID(t *testing.T) {
	dir := t.TempDir()
	var out, errOut strings.Builder
	code := run(context.Background(), []string{"--config", filepath.Join(dir, "missing.toml"), "login"}, &environment{
		In: strings.NewReader(""), Out: &out, Err: &errOut, Dir: dir,
	})
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut.String(), "client_id is not set for instance gitlab")
}
