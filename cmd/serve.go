package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attend/internal/attendance"
	"github.com/kozaktomas/face-attend/internal/config"
	"github.com/kozaktomas/face-attend/internal/gallery"
	"github.com/kozaktomas/face-attend/internal/gallery/postgres"
	"github.com/kozaktomas/face-attend/internal/index"
	"github.com/kozaktomas/face-attend/internal/ingest"
	"github.com/kozaktomas/face-attend/internal/recognize"
	"github.com/kozaktomas/face-attend/internal/vision"
	"github.com/kozaktomas/face-attend/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the attendance service",
	Long: `Start the attendance API server.
Frames posted by cameras are matched against the enrolled gallery and
accepted sightings become attendance entries, at most one per person
per window.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("gallery", "gallery.gob", "Path to the enrolled gallery file (ignored with DATABASE_URL)")
	serveCmd.Flags().Float64("min-det-score", 0.5, "Minimum face detection score")
}

// loadGalleryStore loads enrollments either from PostgreSQL (when
// DATABASE_URL is set) or from the local gallery file.
func loadGalleryStore(ctx context.Context, cfg *config.Config, galleryPath string) (*gallery.Store, error) {
	if cfg.Database.PostgresURL != "" {
		fmt.Println("Connecting to PostgreSQL gallery...")
		pool, err := postgres.NewPool(&cfg.Database, cfg.Recognition.Dim)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		defer pool.Close()

		if err := pool.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("running migrations: %w", err)
		}

		corpus, err := postgres.NewEnrollmentRepository(pool).LoadCorpus(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading enrollments: %w", err)
		}

		store, err := gallery.NewStore(cfg.Recognition.Dim)
		if err != nil {
			return nil, err
		}
		for label, embeddings := range corpus {
			for _, embedding := range embeddings {
				if err := store.Append(label, embedding); err != nil {
					return nil, fmt.Errorf("loading %q into gallery: %w", label, err)
				}
			}
		}
		return store, nil
	}

	store, err := gallery.Load(galleryPath)
	if errors.Is(err, os.ErrNotExist) {
		fmt.Printf("Gallery file %s not found, starting with an empty gallery\n", galleryPath)
		return gallery.NewStore(cfg.Recognition.Dim)
	}
	if err != nil {
		return nil, fmt.Errorf("loading gallery from %s: %w", galleryPath, err)
	}
	if store.Dim() != cfg.Recognition.Dim {
		return nil, fmt.Errorf("gallery dimension %d does not match configured %d", store.Dim(), cfg.Recognition.Dim)
	}
	return store, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	galleryPath := resolveGalleryPath(cmd, cfg)
	minDetScore := mustGetFloat64(cmd, "min-det-score")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := loadGalleryStore(ctx, cfg, galleryPath)
	if err != nil {
		return err
	}
	fmt.Printf("Gallery loaded: %d embeddings across %d identities\n",
		store.Count(), len(store.Identities()))

	matcher, err := recognize.NewMatcher(cfg.Recognition.Dim, cfg.Recognition.Threshold,
		index.Options{HNSWThreshold: cfg.Index.HNSWThreshold})
	if err != nil {
		return fmt.Errorf("creating matcher: %w", err)
	}
	if store.Count() > 0 {
		if err := matcher.Rebuild(store.Corpus()); err != nil {
			return fmt.Errorf("building initial index: %w", err)
		}
		fmt.Printf("Similarity index ready with %d embeddings\n", matcher.IndexSize())
	} else {
		fmt.Println("Gallery is empty, matching disabled until enrollment and rebuild")
	}

	recorder, err := attendance.NewSQLiteRecorder(cfg.Database.SQLitePath)
	if err != nil {
		return fmt.Errorf("opening attendance database: %w", err)
	}
	defer recorder.Close()

	dedup, err := attendance.NewDeduplicator(recorder, attendance.Options{
		Window:        cfg.Attendance.Window,
		DebounceHits:  cfg.Attendance.DebounceHits,
		CommitRetries: cfg.Attendance.CommitRetries,
		FlushInterval: cfg.Attendance.FlushInterval,
		PerCamera:     cfg.Attendance.PerCamera,
	})
	if err != nil {
		return fmt.Errorf("creating deduplicator: %w", err)
	}

	visionClient := vision.NewClient(cfg.Vision.URL, minDetScore)

	coordinator, err := ingest.NewCoordinator(visionClient, matcher, dedup, ingest.Options{
		QueueSize:     cfg.Cameras.QueueSize,
		MaxFailures:   cfg.Cameras.MaxFailures,
		RecentMatches: cfg.Cameras.RecentMatches,
	})
	if err != nil {
		return fmt.Errorf("creating ingestion coordinator: %w", err)
	}

	server := web.NewServer(cfg, web.Deps{
		Corpus:     store,
		Matcher:    matcher,
		Ingestor:   coordinator,
		Detector:   visionClient,
		Attendance: dedup,
	})

	go func() {
		if err := dedup.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			fmt.Printf("Attendance flush loop stopped: %v\n", err)
		}
	}()
	go func() {
		if err := coordinator.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			fmt.Printf("Ingestion coordinator stopped: %v\n", err)
		}
	}()

	go func() {
		<-ctx.Done()
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting attendance API on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
