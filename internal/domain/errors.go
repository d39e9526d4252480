// internal/domain/errors.go
package domain

import "errors"

// ErrUnauthorized is returned by sources when the API responds with HTTP 401.
// Callers can check for it using errors.Is to trigger token refresh or re-auth.
var ErrUnauthorized = errors.New("unauthorized")

// ErrNoArtifacts is returned when an artifact download is requested for a job
// that did not upload one.
var ErrNoArtifacts = errors.New("job has no artifacts")
