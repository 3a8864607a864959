package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/example/image-posts/internal/app"
	"github.com/example/image-posts/internal/config"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "app",
		Short: "Upload and list image posts",
		Long: `Serves a listing of image posts at / and an upload form at /post/.

Configuration comes from the environment (or a .env file), e.g.
DB_DRIVER, DB_HOST, MEDIA_ROOT, UPLOAD_COLLISION_POLICY, REDIS_ADDR, ELASTICSEARCH_ADDR.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Migrate the database and start the HTTP server",
			RunE: func(cmd *cobra.Command, args []string) error {
				return serve()
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the database tables and exit",
			RunE: func(cmd *cobra.Command, args []string) error {
				return migrate()
			},
		},
	)
	return root
}

func migrate() error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}
	database, err := app.OpenDatabase(cfg)
	if err != nil {
		return err
	}
	log.Println("database migrated")
	return database.Close()
}

func serve() error {
	application, err := app.Initialize(config.Load())
	if err != nil {
		return fmt.Errorf("failed to initialize app: %w", err)
	}
	defer application.Close()

	srv := &http.Server{
		Addr:         ":" + application.Config.Port,
		Handler:      application.Router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("HTTP server listening on :%s", application.Config.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
		log.Println("shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}
	log.Println("server gracefully stopped")
	return nil
}
