package repositories

import (
	"context"
	"fmt"

	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/models"
)

// LikeRepository stores likes. Uniqueness of (likedBy, target) is enforced by the database.
type LikeRepository interface {
	Create(ctx context.Context, like models.Like) error
	Delete(ctx context.Context, likedBy string, kind models.LikeTarget, targetID string) (bool, error)
}

// PostgresLikeRepository provides PostgreSQL-backed persistence for likes.
type PostgresLikeRepository struct {
	pool db.Pool
}

// NewPostgresLikeRepository constructs a like repository backed by PostgreSQL.
func NewPostgresLikeRepository(pool db.Pool) *PostgresLikeRepository {
	return &PostgresLikeRepository{pool: pool}
}

func likeColumn(kind models.LikeTarget) (string, error) {
	switch kind {
	case models.LikeTargetVideo:
		return "video_id", nil
	case models.LikeTargetComment:
		return "comment_id", nil
	case models.LikeTargetTweet:
		return "tweet_id", nil
	default:
		return "", fmt.Errorf("unknown like target %q", kind)
	}
}

// Create stores a like. An existing like for the same target returns ErrConflict.
func (r *PostgresLikeRepository) Create(ctx context.Context, like models.Like) error {
	column, err := likeColumn(like.TargetKind)
	if err != nil {
		return err
	}

	stmt, args, err := psql.Insert("likes").
		Columns("id", "liked_by", column, "created_at", "updated_at").
		Values(like.ID, like.LikedBy, like.TargetID, like.CreatedAt, like.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build like insert: %w", err)
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, stmt, args...); err != nil {
		return classify(err, "insert like")
	}
	return nil
}

// Delete removes the like of likedBy on the target and reports whether one existed.
func (r *PostgresLikeRepository) Delete(ctx context.Context, likedBy string, kind models.LikeTarget, targetID string) (bool, error) {
	column, err := likeColumn(kind)
	if err != nil {
		return false, err
	}

	stmt, args, err := psql.Delete("likes").
		Where(map[string]any{"liked_by": likedBy, column: targetID}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build like delete: %w", err)
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, stmt, args...)
	if err != nil {
		return false, fmt.Errorf("delete like: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

var _ LikeRepository = (*PostgresLikeRepository)(nil)
