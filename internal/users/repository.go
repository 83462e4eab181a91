package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-social/meridian-users/internal/platform/db"
	"github.com/meridian-social/meridian-users/internal/shared"
)

const userColumns = `id, created_at, username, password_hash, email, profile_picture,
	name, surname, gender, is_private, social_link, bio, location`

// Repository provides PostgreSQL backed persistence for user accounts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.CreatedAt, &u.Username, &u.PasswordHash, &u.Email,
		&u.ProfilePicture, &u.Name, &u.Surname, &u.Gender, &u.IsPrivate,
		&u.SocialLink, &u.Bio, &u.Location)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetByID fetches a user by primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByUsername fetches a user by username.
func (r *Repository) GetByUsername(ctx context.Context, username string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return scanUser(row)
}

// ExistsByUsernameEmail reports whether an account with both the given
// username and email is already present.
func (r *Repository) ExistsByUsernameEmail(ctx context.Context, username, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 AND email = $2)`,
		username, email).Scan(&exists)
	return exists, err
}

// UsernameTakenByOther reports whether a user other than excludeID holds the
// given username.
func (r *Repository) UsernameTakenByOther(ctx context.Context, username string, excludeID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 AND id <> $2)`,
		username, excludeID).Scan(&exists)
	return exists, err
}

// Create inserts a new account and returns the persisted row.
func (r *Repository) Create(ctx context.Context, u User) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (username, password_hash, email)
		VALUES ($1, $2, $3)
		RETURNING `+userColumns,
		u.Username, u.PasswordHash, u.Email)
	created, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, shared.ErrConflict
		}
		return nil, err
	}
	return created, nil
}

// UpdateProfile overwrites the present patch fields and returns the committed
// row. The unique constraint on username is the authoritative conflict guard
// for concurrent renames.
func (r *Repository) UpdateProfile(ctx context.Context, id int64, patch ProfilePatch) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE users SET
			username    = COALESCE($2, username),
			email       = COALESCE($3, email),
			bio         = COALESCE($4, bio),
			name        = COALESCE($5, name),
			surname     = COALESCE($6, surname),
			location    = COALESCE($7, location),
			gender      = COALESCE($8, gender),
			social_link = COALESCE($9, social_link)
		WHERE id = $1
		RETURNING `+userColumns,
		id, patch.Username, patch.Email, patch.Bio, patch.Name,
		patch.Surname, patch.Location, patch.Gender, patch.SocialLink)
	updated, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, shared.ErrUsernameTaken
		}
		return nil, err
	}
	return updated, nil
}

// UpdatePassword stores a new password hash.
func (r *Repository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, id, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// UpdatePicture replaces the stored picture reference and returns the previous
// one. Read and write run in one transaction so concurrent uploads cannot both
// observe the same old file.
func (r *Repository) UpdatePicture(ctx context.Context, id int64, fileName string) (*string, error) {
	var previous *string
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT profile_picture FROM users WHERE id = $1 FOR UPDATE`, id)
		if err := row.Scan(&previous); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return shared.ErrNotFound
			}
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE users SET profile_picture = $2 WHERE id = $1`, id, fileName)
		return err
	})
	if err != nil {
		return nil, err
	}
	return previous, nil
}

// ListPictureRefs returns every stored picture reference. Used by the orphan
// sweep job to reconcile the media directory against the table.
func (r *Repository) ListPictureRefs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT profile_picture FROM users WHERE profile_picture IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var refs []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return refs, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
