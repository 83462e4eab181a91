package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/meridian-social/meridian-users/internal/shared"
	"github.com/meridian-social/meridian-users/internal/users"
)

// DefaultQueueWait bounds how long the resolver waits for the per-identity
// queue to yield before reporting not found.
const DefaultQueueWait = 5 * time.Second

// Directory triggers a cache/queue population for a username. In-process this
// is the user directory service itself; split deployments put an internal RPC
// behind this interface.
type Directory interface {
	GetByUsername(ctx context.Context, username string) (users.Profile, error)
}

// Consumer drains exactly one message from a named queue within a bounded wait.
type Consumer interface {
	ConsumeOne(ctx context.Context, queue string, wait time.Duration) ([]byte, error)
}

// Resolver reconstructs the authenticated principal from a bearer token: it
// validates the token, asks the directory to populate the per-identity queue,
// then drains that queue for the caller's profile.
type Resolver struct {
	tokens    *TokenIssuer
	directory Directory
	queue     Consumer
	wait      time.Duration
	logger    *slog.Logger
}

// NewResolver constructs a Resolver. A non-positive wait falls back to the
// default bounded wait.
func NewResolver(tokens *TokenIssuer, directory Directory, queue Consumer, wait time.Duration, logger *slog.Logger) *Resolver {
	if wait <= 0 {
		wait = DefaultQueueWait
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{tokens: tokens, directory: directory, queue: queue, wait: wait, logger: logger}
}

// Resolve turns a bearer token into the caller's profile.
func (r *Resolver) Resolve(ctx context.Context, token string) (users.Profile, error) {
	username, err := r.tokens.Subject(token)
	if err != nil {
		return users.Profile{}, err
	}

	// The lookup's side effect is what matters here: it publishes the
	// caller's profile onto the per-username queue drained below.
	if _, err := r.directory.GetByUsername(ctx, username); err != nil {
		r.logger.Warn("directory lookup failed during resolution",
			slog.String("username", username), slog.Any("error", err))
		return users.Profile{}, fmt.Errorf("directory lookup for %s: %w", username, shared.ErrUnavailable)
	}

	payload, err := r.queue.ConsumeOne(ctx, users.LookupByUsernameKey(username), r.wait)
	if err != nil {
		return users.Profile{}, err
	}

	var profile users.Profile
	if err := json.Unmarshal(payload, &profile); err != nil {
		return users.Profile{}, fmt.Errorf("decode queued profile: %v: %w", err, shared.ErrUnavailable)
	}
	return profile, nil
}
