package users

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-social/meridian-users/internal/shared"
)

// minUsernameLen is the shortest username accepted at account creation.
const minUsernameLen = 6

// RepositoryPort defines data access methods for user accounts.
type RepositoryPort interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	ExistsByUsernameEmail(ctx context.Context, username, email string) (bool, error)
	UsernameTakenByOther(ctx context.Context, username string, excludeID int64) (bool, error)
	Create(ctx context.Context, u User) (*User, error)
	UpdateProfile(ctx context.Context, id int64, patch ProfilePatch) (*User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	UpdatePicture(ctx context.Context, id int64, fileName string) (previous *string, err error)
}

// CachePort is the read-through cache the lookup operations consult.
type CachePort interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, payload []byte) error
}

// Publisher fans a resolved profile out to a per-identity queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, payload []byte) error
}

// FileStorePort is the slice of the media store the service needs.
type FileStorePort interface {
	NewName() string
	Save(name string, r io.Reader) error
	Delete(name string) error
}

// PicturePurger schedules background removal of a replaced picture file.
type PicturePurger interface {
	EnqueuePicturePurge(ctx context.Context, fileName string) error
}

// Service orchestrates account lookups and mutations: cache-then-store
// resolution on reads, post-resolution queue publishes, and commit-or-fail
// mutations.
type Service struct {
	repo    RepositoryPort
	cache   CachePort
	channel Publisher
	files   FileStorePort
	purger  PicturePurger
	logger  *slog.Logger
}

// NewService builds a Service instance. The purger may be nil, in which case
// replaced pictures are deleted inline.
func NewService(repo RepositoryPort, cache CachePort, channel Publisher, files FileStorePort, purger PicturePurger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, channel: channel, files: files, purger: purger, logger: logger}
}

// Create opens a new account. The username/email pair must be unused and the
// username at least six characters; the password is stored one-way hashed.
func (s *Service) Create(ctx context.Context, params CreateParams) (Profile, error) {
	exists, err := s.repo.ExistsByUsernameEmail(ctx, params.Username, params.Email)
	if err != nil {
		return Profile{}, err
	}
	if exists {
		s.logger.Warn("account already exists", slog.String("username", params.Username))
		return Profile{}, fmt.Errorf("username %s: %w", params.Username, shared.ErrConflict)
	}
	if len(params.Username) < minUsernameLen {
		return Profile{}, fmt.Errorf("username %s is too short: %w", params.Username, shared.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return Profile{}, err
	}

	created, err := s.repo.Create(ctx, User{
		Username:     params.Username,
		PasswordHash: string(hash),
		Email:        params.Email,
	})
	if err != nil {
		return Profile{}, err
	}
	s.logger.Info("account created", slog.Int64("id", created.ID), slog.String("username", created.Username))
	return ProfileOf(*created), nil
}

// GetByID resolves a profile through the cache. A hit republishes the cached
// payload to the identity's queue; a miss loads from storage, populates the
// cache, and publishes the same payload.
func (s *Service) GetByID(ctx context.Context, id int64) (Profile, error) {
	return s.lookup(ctx, LookupByIDKey(id), func(ctx context.Context) (*User, error) {
		return s.repo.GetByID(ctx, id)
	})
}

// GetByUsername is the username variant of GetByID.
func (s *Service) GetByUsername(ctx context.Context, username string) (Profile, error) {
	return s.lookup(ctx, LookupByUsernameKey(username), func(ctx context.Context) (*User, error) {
		return s.repo.GetByUsername(ctx, username)
	})
}

// lookup is the shared cache-then-store resolution. The cache key doubles as
// the notification queue name so that queue consumers can derive it from the
// identity alone.
func (s *Service) lookup(ctx context.Context, key string, load func(context.Context) (*User, error)) (Profile, error) {
	cached, err := s.cache.Get(ctx, key)
	if err != nil {
		return Profile{}, fmt.Errorf("cache get %s: %v: %w", key, err, shared.ErrUnavailable)
	}
	if cached != nil {
		var profile Profile
		if err := json.Unmarshal(cached, &profile); err == nil {
			if err := s.channel.Publish(ctx, key, cached); err != nil {
				return Profile{}, err
			}
			s.logger.Debug("returning cached profile", slog.String("key", key))
			return profile, nil
		}
		// Undecodable entry: fall through to storage and overwrite it.
		s.logger.Warn("discarding corrupt cache entry", slog.String("key", key))
	}

	user, err := load(ctx)
	if err != nil {
		return Profile{}, err
	}
	profile := ProfileOf(*user)
	payload, err := json.Marshal(profile)
	if err != nil {
		return Profile{}, err
	}
	if err := s.cache.Set(ctx, key, payload); err != nil {
		return Profile{}, fmt.Errorf("cache set %s: %v: %w", key, err, shared.ErrUnavailable)
	}
	if err := s.channel.Publish(ctx, key, payload); err != nil {
		return Profile{}, err
	}
	return profile, nil
}

// GetByCredentials authenticates a username/password pair. The cache is
// bypassed; on success the profile is published to the credential queue.
func (s *Service) GetByCredentials(ctx context.Context, username, password string) (Profile, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return Profile{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Profile{}, fmt.Errorf("password mismatch for %s: %w", username, shared.ErrUnauthorized)
	}
	profile := ProfileOf(*user)
	payload, err := json.Marshal(profile)
	if err != nil {
		return Profile{}, err
	}
	if err := s.channel.Publish(ctx, CredentialQueueName(username, password), payload); err != nil {
		return Profile{}, err
	}
	return profile, nil
}

// UpdateProfile overwrites the present patch fields on the caller's own record
// and returns the committed state.
func (s *Service) UpdateProfile(ctx context.Context, callerID int64, patch ProfilePatch) (Profile, error) {
	current, err := s.repo.GetByID(ctx, callerID)
	if err != nil {
		return Profile{}, fmt.Errorf("caller %d: %w", callerID, shared.ErrForbidden)
	}

	if patch.Username != nil && *patch.Username != current.Username {
		taken, err := s.repo.UsernameTakenByOther(ctx, *patch.Username, callerID)
		if err != nil {
			return Profile{}, err
		}
		if taken {
			s.logger.Warn("username already used", slog.String("username", *patch.Username))
			return Profile{}, fmt.Errorf("username %s: %w", *patch.Username, shared.ErrUsernameTaken)
		}
	}

	updated, err := s.repo.UpdateProfile(ctx, callerID, patch)
	if err != nil {
		return Profile{}, err
	}
	s.logger.Info("profile updated", slog.Int64("id", callerID))
	return ProfileOf(*updated), nil
}

// UpdatePassword replaces the caller's password after verifying the old one.
func (s *Service) UpdatePassword(ctx context.Context, callerID int64, oldPassword, newPassword string) error {
	user, err := s.repo.GetByID(ctx, callerID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return fmt.Errorf("old password mismatch: %w", shared.ErrUnauthorized)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, callerID, string(hash)); err != nil {
		return err
	}
	s.logger.Info("password updated", slog.Int64("id", callerID))
	return nil
}

// UpdatePicture stores the uploaded stream under a fresh unique name, swaps
// the reference, and disposes of the previous file. Disposal is best-effort:
// a failure is logged or retried in the background, never surfaced.
func (s *Service) UpdatePicture(ctx context.Context, callerID int64, picture io.Reader) (string, error) {
	if _, err := s.repo.GetByID(ctx, callerID); err != nil {
		return "", fmt.Errorf("caller %d: %w", callerID, shared.ErrForbidden)
	}

	name := s.files.NewName()
	if err := s.files.Save(name, picture); err != nil {
		return "", err
	}
	previous, err := s.repo.UpdatePicture(ctx, callerID, name)
	if err != nil {
		// The row was not updated; do not leave the fresh file behind.
		if cleanupErr := s.files.Delete(name); cleanupErr != nil {
			s.logger.Warn("orphaned upload left behind", slog.String("file", name), slog.Any("error", cleanupErr))
		}
		return "", err
	}
	s.logger.Info("picture saved", slog.Int64("id", callerID), slog.String("file", name))

	if previous != nil && *previous != "" {
		s.disposeOldPicture(ctx, *previous)
	}
	return name, nil
}

func (s *Service) disposeOldPicture(ctx context.Context, name string) {
	if s.purger != nil {
		err := s.purger.EnqueuePicturePurge(ctx, name)
		if err == nil {
			return
		}
		s.logger.Warn("purge enqueue failed, deleting inline", slog.String("file", name), slog.Any("error", err))
	}
	if err := s.files.Delete(name); err != nil {
		s.logger.Warn("old picture not deleted", slog.String("file", name), slog.Any("error", err))
		return
	}
	s.logger.Info("old picture deleted", slog.String("file", name))
}

// CredentialQueueName derives the queue name for the credential-check path.
// The password is folded through SHA-256 so no secret material lands in queue
// names, which operators routinely see in logs and dashboards.
func CredentialQueueName(username, password string) string {
	digest := sha256.Sum256([]byte(password))
	return fmt.Sprintf("lookup-by-username-%s-password-%s", username, hex.EncodeToString(digest[:]))
}
