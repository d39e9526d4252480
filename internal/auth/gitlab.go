package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const gitlabDefaultBaseURL = "https://gitlab.com"

// GitLabDeviceFlow implements the OAuth 2.0 Device Authorization Flow for GitLab.
// See https://docs.gitlab.com/ee/api/oauth2.html#device-authorization-grant-flow
type GitLabDeviceFlow struct {
	clientID string
	baseURL  string
	client   *http.Client
}

// NewGitLabDeviceFlow creates a GitLabDeviceFlow.
// Pass an empty baseURL to use gitlab.com. Pass a test server URL in tests.
func NewGitLabDeviceFlow(clientID string, baseURL string) *GitLabDeviceFlow {
	if baseURL == "" {
		baseURL = gitlabDefaultBaseURL
	}
	return &GitLabDeviceFlow{
		clientID: clientID,
		baseURL:  baseURL,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// DeviceCodeResponse is GitLab's answer to a device authorization request:
// the code to show the user and how to poll for the result.
type DeviceCodeResponse struct {
	DeviceCode      string
	UserCode        string
	VerificationURI string
	// ExpiresIn and Interval are in seconds.
	ExpiresIn int
	Interval  int
}

// TokenResponse is an OAuth access/refresh token pair.
type TokenResponse struct {
	AccessToken  string
	RefreshToken string
}

type tokenPayload struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (f *GitLabDeviceFlow) post(ctx context.Context, path string, data url.Values, out interface{}) (int, error) {
	endpoint, err := url.JoinPath(f.baseURL, path)
	if err != nil {
		return 0, errors.Wrap(err, "building URL")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return 0, errors.Wrap(err, "creating request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, errors.Wrapf(err, "decoding %s response", path)
	}
	return resp.StatusCode, nil
}

// RequestCode requests a device code and user code from GitLab.
// The returned UserCode must be shown to the user along with VerificationURI.
func (f *GitLabDeviceFlow) RequestCode(ctx context.Context) (DeviceCodeResponse, error) {
	data := url.Values{}
	data.Set("client_id", f.clientID)
	data.Set("scope", "read_api")

	var raw struct {
		DeviceCode      string `json:"device_code"`
		UserCode        string `json:"user_code"`
		VerificationURI string `json:"verification_uri"`
		ExpiresIn       int    `json:"expires_in"`
		Interval        int    `json:"interval"`
		Error           string `json:"error"`
	}
	status, err := f.post(ctx, "/oauth/authorize_device", data, &raw)
	if err != nil {
		return DeviceCodeResponse{}, errors.Wrap(err, "requesting device code")
	}
	if status != http.StatusOK || raw.DeviceCode == "" {
		return DeviceCodeResponse{}, errors.Errorf("device authorization rejected (HTTP %d): %s", status, raw.Error)
	}
	return DeviceCodeResponse{
		DeviceCode:      raw.DeviceCode,
		UserCode:        raw.UserCode,
		VerificationURI: raw.VerificationURI,
		ExpiresIn:       raw.ExpiresIn,
		Interval:        raw.Interval,
	}, nil
}

// PollToken polls the GitLab token endpoint until tokens are granted or an error occurs.
// interval is the polling interval in seconds; 0 skips the sleep.
// Handles authorization_pending, slow_down, expired_token, and access_denied error codes.
func (f *GitLabDeviceFlow) PollToken(ctx context.Context, deviceCode string, interval int) (TokenResponse, error) {
	if interval < 0 {
		interval = 0
	}

	for {
		if interval > 0 {
			select {
			case <-time.After(time.Duration(interval) * time.Second):
			case <-ctx.Done():
				return TokenResponse{}, ctx.Err()
			}
		} else if err := ctx.Err(); err != nil {
			return TokenResponse{}, err
		}

		data := url.Values{}
		data.Set("client_id", f.clientID)
		data.Set("device_code", deviceCode)
		data.Set("grant_type", "urn:ietf:params:oauth:grant-type:device_code")

		var raw tokenPayload
		if _, err := f.post(ctx, "/oauth/token", data, &raw); err != nil {
			return TokenResponse{}, errors.Wrap(err, "polling token")
		}

		switch raw.Error {
		case "":
			if raw.AccessToken != "" {
				return TokenResponse{AccessToken: raw.AccessToken, RefreshToken: raw.RefreshToken}, nil
			}
		case "authorization_pending":
		case "slow_down":
			interval += 5
		case "expired_token":
			return TokenResponse{}, errors.New("device code expired, run `gitlab-trace login` again")
		case "access_denied":
			return TokenResponse{}, errors.New("access denied by user")
		default:
			msg := raw.Error
			if len(msg) > 100 {
				msg = msg[:100]
			}
			return TokenResponse{}, errors.Errorf("unexpected error from GitLab: %s", msg)
		}
	}
}

// RefreshToken exchanges a refresh token for a new access/refresh token pair.
func (f *GitLabDeviceFlow) RefreshToken(ctx context.Context, refreshToken string) (TokenResponse, error) {
	data := url.Values{}
	data.Set("client_id", f.clientID)
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)

	var raw tokenPayload
	status, err := f.post(ctx, "/oauth/token", data, &raw)
	if err != nil {
		return TokenResponse{}, errors.Wrap(err, "refreshing token")
	}
	if status != http.StatusOK || raw.AccessToken == "" {
		if raw.ErrorDescription != "" {
			return TokenResponse{}, errors.Errorf("token refresh failed (HTTP %d): %s", status, raw.ErrorDescription)
		}
		return TokenResponse{}, errors.Errorf("token refresh failed (HTTP %d): %s", status, raw.Error)
	}
	return TokenResponse{AccessToken: raw.AccessToken, RefreshToken: raw.RefreshToken}, nil
}
