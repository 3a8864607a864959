package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/example/image-posts/internal/config"
	"github.com/example/image-posts/internal/db"
	"github.com/example/image-posts/internal/events"
	"github.com/example/image-posts/internal/search"
	"github.com/example/image-posts/internal/service"
	"github.com/example/image-posts/internal/storage"
	"github.com/example/image-posts/internal/transport/http"
)

type Application struct {
	Config    *config.Config
	DB        *db.Database
	Files     *storage.Local
	Publisher *events.RedisPublisher
	Search    *search.Elastic
	Service   *service.PostService
	Router    http.Router
}

// OpenDatabase connects and migrates; shared by serve and migrate.
func OpenDatabase(cfg *config.Config) (*db.Database, error) {
	database, err := db.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if err := database.Migrate(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("db migrate: %w", err)
	}
	return database, nil
}

func Initialize(cfg *config.Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	database, err := OpenDatabase(cfg)
	if err != nil {
		return nil, err
	}
	a := &Application{Config: cfg, DB: database}

	a.Files, err = storage.NewLocal(cfg.MediaRoot, cfg.CollisionPolicy)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("media storage: %w", err)
	}
	log.Printf("storing covers under %s (collision policy %q)", cfg.MediaRoot, cfg.CollisionPolicy)

	var indexer service.Indexer = search.Noop{}
	if cfg.ElasticAddr != "" {
		a.Search, err = search.NewElastic(cfg)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("elasticsearch: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.Search.EnsurePostsIndex(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("ensure ES index: %w", err)
		}
		indexer = a.Search
	} else {
		log.Println("ELASTICSEARCH_ADDR not set, search disabled")
	}

	var publisher service.Publisher = events.Noop{}
	if cfg.RedisAddr != "" {
		a.Publisher = events.NewRedisPublisher(cfg)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.Publisher.Ping(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		publisher = a.Publisher
	} else {
		log.Println("REDIS_ADDR not set, post events disabled")
	}

	a.Service = service.NewPostService(database, a.Files, indexer, publisher)
	a.Router = http.NewRouter(cfg, a.Service)
	return a, nil
}

func (a *Application) Close() {
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	}
	if a.Publisher != nil {
		_ = a.Publisher.Close()
	}
}
