package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/image-posts/internal/db/dbtest"
	"github.com/example/image-posts/internal/models"
)

func TestListEmpty(t *testing.T) {
	repo := NewPostRepository(dbtest.NewSQLite(t).Gorm)

	posts, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, posts)
	assert.Empty(t, posts)
}

func TestCreateAssignsIDAndTimestamp(t *testing.T) {
	database := dbtest.NewSQLite(t)
	repo := NewPostRepository(database.Gorm)
	ctx := context.Background()

	before := time.Now().Add(-time.Second)
	p := &models.Post{Title: "Sunset", Cover: "images/sunset.jpg"}
	require.NoError(t, repo.Create(ctx, database.Gorm, p))

	assert.NotZero(t, p.ID)
	assert.True(t, p.UploadedOn.After(before))

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sunset", got.Title)
	assert.Equal(t, "images/sunset.jpg", got.Cover)
	assert.True(t, p.UploadedOn.Equal(got.UploadedOn))
}

func TestListInsertionOrder(t *testing.T) {
	database := dbtest.NewSQLite(t)
	repo := NewPostRepository(database.Gorm)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		p := &models.Post{Title: fmt.Sprintf("post %d", i), Cover: fmt.Sprintf("images/%d.jpg", i)}
		require.NoError(t, repo.Create(ctx, database.Gorm, p))
	}

	posts, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 3)
	for i, p := range posts {
		assert.Equal(t, fmt.Sprintf("post %d", i), p.Title)
	}

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestCreateRejectsMissingFields(t *testing.T) {
	database := dbtest.NewSQLite(t)
	repo := NewPostRepository(database.Gorm)
	ctx := context.Background()

	tests := []struct {
		name  string
		post  models.Post
		field string
	}{
		{"no title", models.Post{Cover: "images/a.jpg"}, "title"},
		{"blank title", models.Post{Title: "  ", Cover: "images/a.jpg"}, "title"},
		{"no cover", models.Post{Title: "A"}, "cover"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.post
			err := repo.Create(ctx, database.Gorm, &p)
			assert.ErrorIs(t, err, ErrConstraint)
			var cerr *ConstraintError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.field, cerr.Field)
		})
	}

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCheckConstraintInDatabase(t *testing.T) {
	database := dbtest.NewSQLite(t)

	// Bypass the repository guard to hit the table constraints directly.
	tests := map[string]models.Post{
		"title": {Title: "", Cover: "images/a.jpg"},
		"cover": {Title: "A", Cover: ""},
	}
	for field, post := range tests {
		p := post
		err := translate(database.Gorm.Create(&p).Error)
		assert.ErrorIs(t, err, ErrConstraint, field)
		var cerr *ConstraintError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, field, cerr.Field)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	repo := NewPostRepository(dbtest.NewSQLite(t).Gorm)

	_, err := repo.GetByID(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLogActivity(t *testing.T) {
	database := dbtest.NewSQLite(t)
	repo := NewPostRepository(database.Gorm)
	ctx := context.Background()

	require.NoError(t, repo.LogActivity(ctx, database.Gorm, models.ActionNewPost, 7))

	var logs []models.ActivityLog
	require.NoError(t, database.Gorm.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, models.ActionNewPost, logs[0].Action)
	assert.EqualValues(t, 7, logs[0].PostID)
}

func TestTranslatePostgresErrors(t *testing.T) {
	assert.NoError(t, translate(nil))
	assert.ErrorIs(t, translate(&pgconn.PgError{Code: pgNotNullViolation}), ErrConstraint)
	assert.ErrorIs(t, translate(fmt.Errorf("insert: %w", &pgconn.PgError{Code: pgCheckViolation})), ErrConstraint)

	var cerr *ConstraintError
	require.ErrorAs(t, translate(&pgconn.PgError{Code: pgNotNullViolation, ColumnName: "cover"}), &cerr)
	assert.Equal(t, "cover", cerr.Field)
	require.ErrorAs(t, translate(&pgconn.PgError{Code: pgCheckViolation, ConstraintName: "chk_posts_title"}), &cerr)
	assert.Equal(t, "title", cerr.Field)
	require.ErrorAs(t, translate(&pgconn.PgError{Code: pgCheckViolation}), &cerr)
	assert.Empty(t, cerr.Field)

	other := &pgconn.PgError{Code: "08006"}
	assert.Same(t, other, translate(other))

	plain := errors.New("connection refused")
	assert.Equal(t, plain, translate(plain))
}
