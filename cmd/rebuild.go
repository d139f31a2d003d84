package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attend/internal/config"
	"github.com/kozaktomas/face-attend/internal/index"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the similarity index and persist it",
	Long: `Rebuild the similarity index from the enrolled gallery and write it
to disk. The persisted index can be served with "match --index" without
paying the build cost on every invocation.

Examples:
  face-attend rebuild
  face-attend rebuild --gallery gallery.gob --out index.gob`,
	RunE: runRebuild,
}

func init() {
	rootCmd.AddCommand(rebuildCmd)

	rebuildCmd.Flags().String("gallery", "gallery.gob", "Path to the enrolled gallery file (ignored with DATABASE_URL)")
	rebuildCmd.Flags().String("out", "index.gob", "Output path for the persisted index")
}

func runRebuild(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	galleryPath := resolveGalleryPath(cmd, cfg)
	outPath := mustGetString(cmd, "out")

	store, err := loadGalleryStore(context.Background(), cfg, galleryPath)
	if err != nil {
		return err
	}
	if store.Count() == 0 {
		return errors.New("gallery is empty, enroll identities first")
	}

	opts := index.Options{HNSWThreshold: cfg.Index.HNSWThreshold}
	idx, err := index.Build(store.Corpus(), opts)
	if err != nil {
		return fmt.Errorf("building index: %w", err)
	}
	if err := index.SaveIndex(idx, outPath); err != nil {
		return fmt.Errorf("saving index: %w", err)
	}

	// Read the file back so a bad write fails here, not at serve time.
	loaded, err := index.LoadIndex(outPath, opts)
	if err != nil {
		return fmt.Errorf("verifying persisted index: %w", err)
	}

	fmt.Printf("Index rebuilt: %d embeddings across %d identities, written to %s\n",
		loaded.Len(), len(store.Identities()), outPath)
	return nil
}
