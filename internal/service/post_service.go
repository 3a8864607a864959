package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/example/image-posts/internal/db"
	"github.com/example/image-posts/internal/models"
	"github.com/example/image-posts/internal/repository"
	"github.com/example/image-posts/internal/search"
	"github.com/example/image-posts/internal/storage"
)

const (
	MsgRequired  = "This field is required."
	MsgEmptyFile = "The submitted file is empty."
	MsgRejected  = "The post could not be saved because a required field is missing."
)

// FormField is the ValidationError key for errors not tied to a single field.
const FormField = "form"

// FileStore persists uploaded covers. The returned upload is committed once the
// post row is stored and discarded otherwise.
type FileStore interface {
	Save(ctx context.Context, filename string, r io.Reader) (*storage.Pending, error)
}

// Indexer feeds post titles to full-text search.
type Indexer interface {
	IndexPost(ctx context.Context, p *models.Post) error
	Search(ctx context.Context, query string) ([]search.Hit, error)
}

// Publisher announces created posts to other systems.
type Publisher interface {
	PublishPostCreated(ctx context.Context, p *models.Post) error
}

// ValidationError maps form field names to user-facing messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid post: " + strings.Join(parts, "; ")
}

type PostService struct {
	db        *db.Database
	files     FileStore
	index     Indexer
	publisher Publisher
	repo      *repository.PostRepository
}

func NewPostService(database *db.Database, files FileStore, index Indexer, publisher Publisher) *PostService {
	return &PostService{
		db:        database,
		files:     files,
		index:     index,
		publisher: publisher,
		repo:      repository.NewPostRepository(database.Gorm),
	}
}

// CreatePostInput carries one submission. Cover is nil when no file was sent.
type CreatePostInput struct {
	Title     string
	CoverName string
	CoverSize int64
	Cover     io.Reader
}

func (in CreatePostInput) validate() *ValidationError {
	fields := map[string]string{}
	if strings.TrimSpace(in.Title) == "" {
		fields["title"] = MsgRequired
	}
	switch {
	case in.Cover == nil || in.CoverName == "":
		fields["cover"] = MsgRequired
	case in.CoverSize == 0:
		fields["cover"] = MsgEmptyFile
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// CreatePost stores the cover file and inserts the post with its activity row.
// The file only becomes visible at its final path when the transaction commits;
// if the insert fails it is discarded and any earlier file at that path is kept.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	if verr := in.validate(); verr != nil {
		return nil, verr
	}

	upload, err := s.files.Save(ctx, in.CoverName, in.Cover)
	if errors.Is(err, storage.ErrEmptyFile) {
		return nil, &ValidationError{Fields: map[string]string{"cover": MsgEmptyFile}}
	}
	if err != nil {
		return nil, fmt.Errorf("save cover: %w", err)
	}

	post := &models.Post{Title: strings.TrimSpace(in.Title), Cover: upload.Path}
	err = s.db.Transaction(ctx, func(tx *gorm.DB) error {
		if err := s.repo.Create(ctx, tx, post); err != nil {
			return err
		}
		if err := s.repo.LogActivity(ctx, tx, models.ActionNewPost, post.ID); err != nil {
			return err
		}
		return upload.Commit()
	})
	if err != nil {
		if dErr := upload.Discard(); dErr != nil {
			log.Printf("discard cover %s: %v", upload.Path, dErr)
		}
		var cerr *repository.ConstraintError
		if errors.As(err, &cerr) {
			return nil, constraintValidation(cerr)
		}
		return nil, fmt.Errorf("insert post: %w", err)
	}

	if err := s.index.IndexPost(ctx, post); err != nil {
		log.Printf("index post %d: %v", post.ID, err)
	}
	if err := s.publisher.PublishPostCreated(ctx, post); err != nil {
		log.Printf("publish post %d: %v", post.ID, err)
	}
	return post, nil
}

func constraintValidation(cerr *repository.ConstraintError) *ValidationError {
	switch cerr.Field {
	case "title", "cover":
		return &ValidationError{Fields: map[string]string{cerr.Field: MsgRequired}}
	default:
		return &ValidationError{Fields: map[string]string{FormField: MsgRejected}}
	}
}

func (s *PostService) ListPosts(ctx context.Context) ([]models.Post, error) {
	posts, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

// GetPost returns repository.ErrNotFound when no post has that id.
func (s *PostService) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	return s.repo.GetByID(ctx, id)
}

// Ping reports whether the record store answers.
func (s *PostService) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostService) CountPosts(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}

func (s *PostService) SearchPosts(ctx context.Context, q string) ([]search.Hit, error) {
	return s.index.Search(ctx, q)
}
