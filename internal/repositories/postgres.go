package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/models"
)

// UserRepository defines the data access contract for users.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	SwapRefreshToken(ctx context.Context, userID, expected, next string) error
}

// WatchHistoryRepository edits the capped per-user watch history. Entries are added by
// VideoRepository.RecordView.
type WatchHistoryRepository interface {
	RemoveWatchHistory(ctx context.Context, userID, videoID string) error
	ClearWatchHistory(ctx context.Context, userID string) error
}

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

const userColumns = `id::text, username, email, full_name, avatar_url, avatar_key,
        cover_image_url, cover_image_key, password_hash, COALESCE(refresh_token, ''), created_at, updated_at`

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.FullName,
		&user.Avatar.URL, &user.Avatar.StorageKey,
		&user.CoverImage.URL, &user.CoverImage.StorageKey,
		&user.Password, &user.RefreshToken, &user.CreatedAt, &user.UpdatedAt,
	)
	return user, err
}

// Create persists a new user record.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO users (id, username, email, full_name, avatar_url, avatar_key,
            cover_image_url, cover_image_key, password_hash, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
    `, user.ID, user.Username, user.Email, user.FullName, user.Avatar.URL, user.Avatar.StorageKey,
		user.CoverImage.URL, user.CoverImage.StorageKey, user.Password, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return classify(err, "insert user")
	}

	return nil
}

func (r *PostgresUserRepository) findOne(ctx context.Context, where string, arg any) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	user, err := scanUser(conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("select user: %w", err)
	}
	return user, nil
}

// FindByID fetches a user by identifier.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	return r.findOne(ctx, "id = $1", id)
}

// FindByEmail fetches a user by their email address.
func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return r.findOne(ctx, "email = $1", email)
}

// FindByUsername fetches a user by their lower-cased username.
func (r *PostgresUserRepository) FindByUsername(ctx context.Context, username string) (models.User, error) {
	return r.findOne(ctx, "username = $1", username)
}

// SwapRefreshToken replaces the user's refresh token only while it still equals expected. An
// empty token clears the slot. A lost race returns ErrStale.
func (r *PostgresUserRepository) SwapRefreshToken(ctx context.Context, userID, expected, next string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users
        SET refresh_token = NULLIF($3, ''), updated_at = now()
        WHERE id = $1 AND COALESCE(refresh_token, '') = $2
    `, userID, expected, next)
	if err != nil {
		return fmt.Errorf("swap refresh token: %w", err)
	}

	if tag.RowsAffected() == 0 {
		if _, err := r.FindByID(ctx, userID); err != nil {
			return err
		}
		return ErrStale
	}

	return nil
}

// pushWatchHistory moves videoID to the front of the user's history and trims it to
// models.MaxWatchHistory entries.
func pushWatchHistory(ctx context.Context, tx pgx.Tx, userID, videoID string, at time.Time) error {
	if _, err := tx.Exec(ctx, `
        DELETE FROM watch_history WHERE user_id = $1 AND video_id = $2
    `, userID, videoID); err != nil {
		return fmt.Errorf("remove watch history entry: %w", err)
	}

	if _, err := tx.Exec(ctx, `
        INSERT INTO watch_history (user_id, video_id, watched_at) VALUES ($1, $2, $3)
    `, userID, videoID, at); err != nil {
		return classify(err, "insert watch history entry")
	}

	if _, err := tx.Exec(ctx, `
        DELETE FROM watch_history
        WHERE user_id = $1 AND video_id NOT IN (
            SELECT video_id FROM watch_history
            WHERE user_id = $1
            ORDER BY watched_at DESC, video_id
            LIMIT $2
        )
    `, userID, models.MaxWatchHistory); err != nil {
		return fmt.Errorf("trim watch history: %w", err)
	}
	return nil
}

// RemoveWatchHistory deletes one entry from the user's history.
func (r *PostgresUserRepository) RemoveWatchHistory(ctx context.Context, userID, videoID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        DELETE FROM watch_history WHERE user_id = $1 AND video_id = $2
    `, userID, videoID)
	if err != nil {
		return fmt.Errorf("delete watch history entry: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// ClearWatchHistory deletes every entry of the user's history.
func (r *PostgresUserRepository) ClearWatchHistory(ctx context.Context, userID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `DELETE FROM watch_history WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear watch history: %w", err)
	}
	return nil
}

var _ UserRepository = (*PostgresUserRepository)(nil)
var _ WatchHistoryRepository = (*PostgresUserRepository)(nil)
