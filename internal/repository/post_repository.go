package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	"github.com/example/image-posts/internal/models"
)

var (
	// ErrConstraint is matched by every ConstraintError.
	ErrConstraint = errors.New("post violates a required-field constraint")
	ErrNotFound   = errors.New("post not found")
)

// ConstraintError names the column whose constraint a row broke. Field is
// empty when the backend did not say which one.
type ConstraintError struct {
	Field string
}

func (e *ConstraintError) Error() string {
	if e.Field == "" {
		return ErrConstraint.Error()
	}
	return ErrConstraint.Error() + " on " + e.Field
}

func (e *ConstraintError) Is(target error) bool { return target == ErrConstraint }

// PostgreSQL SQLSTATE codes for the constraints on posts.
const (
	pgNotNullViolation = "23502"
	pgCheckViolation   = "23514"
)

type PostRepository struct{ db *gorm.DB }

func NewPostRepository(db *gorm.DB) *PostRepository { return &PostRepository{db: db} }

// Create inserts p inside tx. ID and UploadedOn are filled in by the store.
func (r *PostRepository) Create(ctx context.Context, tx *gorm.DB, p *models.Post) error {
	if strings.TrimSpace(p.Title) == "" {
		return &ConstraintError{Field: "title"}
	}
	if p.Cover == "" {
		return &ConstraintError{Field: "cover"}
	}
	return translate(tx.WithContext(ctx).Create(p).Error)
}

// List returns every post in insertion order. An empty store gives an empty slice.
func (r *PostRepository) List(ctx context.Context) ([]models.Post, error) {
	posts := []models.Post{}
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *PostRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).First(&post, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *PostRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Post{}).Count(&n).Error
	return n, err
}

func (r *PostRepository) LogActivity(ctx context.Context, tx *gorm.DB, action string, postID uint) error {
	entry := models.ActivityLog{Action: action, PostID: postID}
	return tx.WithContext(ctx).Create(&entry).Error
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == pgNotNullViolation || pgErr.Code == pgCheckViolation) {
		field := pgErr.ColumnName
		if field == "" {
			field = fieldIn(pgErr.ConstraintName)
		}
		return &ConstraintError{Field: field}
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) && liteErr.Code == sqlite3.ErrConstraint {
		// "NOT NULL constraint failed: posts.title", "CHECK constraint failed: chk_posts_cover"
		return &ConstraintError{Field: fieldIn(liteErr.Error())}
	}
	return err
}

func fieldIn(msg string) string {
	for _, f := range []string{"title", "cover"} {
		if strings.Contains(msg, f) {
			return f
		}
	}
	return ""
}
