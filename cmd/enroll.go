package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attend/internal/config"
	"github.com/kozaktomas/face-attend/internal/gallery"
	"github.com/kozaktomas/face-attend/internal/gallery/postgres"
	"github.com/kozaktomas/face-attend/internal/vision"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <dataset-dir>",
	Short: "Enroll identities from a dataset directory",
	Long: `Enroll identities from a directory of labeled face images.
The directory layout is one subdirectory per person:

  dataset/
    Jan Novak/
      photo1.jpg
      photo2.jpg
    Alice Smith/
      front.png

Every image is sent to the embedding server; the best detected face
becomes one enrolled embedding for that person. Results go to the
gallery file, or to PostgreSQL when DATABASE_URL is set.

Examples:
  # Enroll into the local gallery file
  face-attend enroll ./dataset

  # Merge into an existing gallery
  face-attend enroll ./dataset --gallery gallery.gob`,
	Args: cobra.ExactArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("gallery", "gallery.gob", "Path to the gallery file (ignored with DATABASE_URL)")
	enrollCmd.Flags().Float64("min-det-score", 0.5, "Minimum face detection score")
	enrollCmd.Flags().Int("max-size", 1920, "Resize images above this size before embedding")
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".bmp", ".webp":
		return true
	}
	return false
}

// collectDataset lists (label, path) pairs from a dataset directory.
func collectDataset(root string) (map[string][]string, error) {
	persons, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset directory: %w", err)
	}

	dataset := make(map[string][]string)
	for _, person := range persons {
		if !person.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(root, person.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", person.Name(), err)
		}
		for _, f := range files {
			if f.IsDir() || !isImageFile(f.Name()) {
				continue
			}
			dataset[person.Name()] = append(dataset[person.Name()], filepath.Join(root, person.Name(), f.Name()))
		}
	}
	return dataset, nil
}

// enrollSink abstracts the two enrollment backends.
type enrollSink interface {
	add(ctx context.Context, label string, embedding []float32) error
	finish() error
}

type fileSink struct {
	store *gallery.Store
	path  string
}

func (s *fileSink) add(_ context.Context, label string, embedding []float32) error {
	return s.store.Append(label, embedding)
}

func (s *fileSink) finish() error {
	return s.store.Save(s.path)
}

type pgSink struct {
	repo *postgres.EnrollmentRepository
	pool *postgres.Pool
}

func (s *pgSink) add(ctx context.Context, label string, embedding []float32) error {
	return s.repo.Append(ctx, label, embedding)
}

func (s *pgSink) finish() error {
	return s.pool.Close()
}

func newEnrollSink(ctx context.Context, cfg *config.Config, galleryPath string) (enrollSink, error) {
	if cfg.Database.PostgresURL != "" {
		fmt.Println("Enrolling into PostgreSQL...")
		pool, err := postgres.NewPool(&cfg.Database, cfg.Recognition.Dim)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		if err := pool.Migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		return &pgSink{repo: postgres.NewEnrollmentRepository(pool), pool: pool}, nil
	}

	store, err := gallery.Load(galleryPath)
	if errors.Is(err, os.ErrNotExist) {
		store, err = gallery.NewStore(cfg.Recognition.Dim)
	}
	if err != nil {
		return nil, fmt.Errorf("opening gallery: %w", err)
	}
	fmt.Printf("Enrolling into %s (%d existing embeddings)\n", galleryPath, store.Count())
	return &fileSink{store: store, path: galleryPath}, nil
}

func runEnroll(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	galleryPath := resolveGalleryPath(cmd, cfg)
	minDetScore := mustGetFloat64(cmd, "min-det-score")
	maxSize := mustGetInt(cmd, "max-size")

	ctx := context.Background()

	dataset, err := collectDataset(args[0])
	if err != nil {
		return err
	}
	total := 0
	for _, files := range dataset {
		total += len(files)
	}
	if total == 0 {
		return fmt.Errorf("no images found under %s", args[0])
	}
	fmt.Printf("Found %d images for %d identities\n", total, len(dataset))

	sink, err := newEnrollSink(ctx, cfg, galleryPath)
	if err != nil {
		return err
	}

	client := vision.NewClient(cfg.Vision.URL, minDetScore)

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Enrolling faces"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var enrolled, skipped, failed int
	for label, files := range dataset {
		for _, path := range files {
			imageData, err := os.ReadFile(path)
			if err != nil {
				failed++
				bar.Add(1)
				continue
			}

			resized, err := vision.ResizeFrame(imageData, maxSize)
			if err != nil {
				failed++
				bar.Add(1)
				continue
			}

			face, err := client.BestFace(ctx, resized)
			if errors.Is(err, vision.ErrNoFace) {
				skipped++
				bar.Add(1)
				continue
			}
			if err != nil {
				failed++
				bar.Add(1)
				continue
			}

			if err := sink.add(ctx, label, face.Embedding); err != nil {
				return fmt.Errorf("enrolling %s from %s: %w", label, path, err)
			}
			enrolled++
			bar.Add(1)
		}
	}
	fmt.Println()

	if err := sink.finish(); err != nil {
		return fmt.Errorf("saving enrollments: %w", err)
	}

	fmt.Printf("\nEnrolled %d embeddings (%d without a usable face, %d errors)\n", enrolled, skipped, failed)
	return nil
}
