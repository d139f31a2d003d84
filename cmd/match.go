package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attend/internal/config"
	"github.com/kozaktomas/face-attend/internal/gallery"
	"github.com/kozaktomas/face-attend/internal/index"
	"github.com/kozaktomas/face-attend/internal/recognize"
	"github.com/kozaktomas/face-attend/internal/vision"
)

var matchCmd = &cobra.Command{
	Use:   "match <image>",
	Short: "Match a single image against the enrolled gallery",
	Long: `Match one image against the enrolled gallery and print the verdict.
Useful for checking a threshold or verifying an enrollment without
running the server.

Examples:
  face-attend match photo.jpg
  face-attend match photo.jpg --gallery gallery.gob
  face-attend match photo.jpg --index index.gob`,
	Args: cobra.ExactArgs(1),
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().String("gallery", "gallery.gob", "Path to the gallery file")
	matchCmd.Flags().String("index", "", "Path to an index persisted by rebuild (skips the gallery build)")
	matchCmd.Flags().Float64("min-det-score", 0.5, "Minimum face detection score")
}

// newOneShotMatcher builds a ready matcher from either a persisted index
// or the gallery file.
func newOneShotMatcher(cmd *cobra.Command, cfg *config.Config) (*recognize.Matcher, error) {
	opts := index.Options{HNSWThreshold: cfg.Index.HNSWThreshold}

	if indexPath := mustGetString(cmd, "index"); indexPath != "" {
		idx, err := index.LoadIndex(indexPath, opts)
		if err != nil {
			return nil, fmt.Errorf("loading index from %s: %w", indexPath, err)
		}
		matcher, err := recognize.NewMatcher(idx.Dim(), cfg.Recognition.Threshold, opts)
		if err != nil {
			return nil, err
		}
		if err := matcher.Adopt(idx); err != nil {
			return nil, fmt.Errorf("installing index: %w", err)
		}
		return matcher, nil
	}

	store, err := gallery.Load(resolveGalleryPath(cmd, cfg))
	if err != nil {
		return nil, fmt.Errorf("loading gallery: %w", err)
	}
	if store.Count() == 0 {
		return nil, errors.New("gallery is empty, enroll identities first")
	}

	matcher, err := recognize.NewMatcher(store.Dim(), cfg.Recognition.Threshold, opts)
	if err != nil {
		return nil, err
	}
	if err := matcher.Rebuild(store.Corpus()); err != nil {
		return nil, fmt.Errorf("building index: %w", err)
	}
	return matcher, nil
}

func runMatch(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	minDetScore := mustGetFloat64(cmd, "min-det-score")

	matcher, err := newOneShotMatcher(cmd, cfg)
	if err != nil {
		return err
	}

	imageData, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}

	ctx := context.Background()
	client := vision.NewClient(cfg.Vision.URL, minDetScore)

	face, err := client.BestFace(ctx, imageData)
	if errors.Is(err, vision.ErrNoFace) {
		return errors.New("no usable face in the image")
	}
	if err != nil {
		return fmt.Errorf("detecting face: %w", err)
	}

	result, err := matcher.Match(face.Embedding)
	if err != nil {
		return fmt.Errorf("matching: %w", err)
	}

	fmt.Printf("Label:      %s\n", result.Label)
	fmt.Printf("Similarity: %.4f (threshold %.4f)\n", result.Similarity, matcher.Threshold())
	fmt.Printf("Decision:   %s\n", result.Decision)
	return nil
}
