package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shiro-ka/shushu/internal/state"
	"github.com/shiro-ka/shushu/internal/store"
	"github.com/spf13/cobra"
)

var statusRecent int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cursor position and archive summary",
	RunE:  statusAction,
}

func init() {
	statusCmd.Flags().IntVar(&statusRecent, "recent", 5, "number of recent mirrored posts to list")
	rootCmd.AddCommand(statusCmd)
}

func statusAction(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cursorPath := filepath.Join(projectDir, state.DefaultCursorFile)
	cursor, err := state.NewStore(cursorPath)
	if err != nil {
		return fmt.Errorf("create cursor store: %w", err)
	}

	cur, err := cursor.Load()
	if err != nil {
		return fmt.Errorf("load cursor: %w", err)
	}

	if !cur.Initialized {
		fmt.Println("Cursor: not initialized (next run is the first run)")
	} else {
		fmt.Printf("Cursor: last processed id %s, updated %s\n",
			cur.LastProcessedID, cur.LastUpdated.Format(time.RFC3339))
	}

	archivePath := filepath.Join(projectDir, store.DefaultArchiveFile)
	if _, err := os.Stat(archivePath); err != nil {
		fmt.Println("Archive: no database yet")
		return nil
	}

	archive, err := store.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer func() { _ = archive.Close() }()

	total, err := archive.Count(ctx)
	if err != nil {
		return fmt.Errorf("count archive: %w", err)
	}
	fmt.Printf("Archive: %d mirrored posts\n", total)

	recent, err := archive.Recent(ctx, statusRecent)
	if err != nil {
		return fmt.Errorf("read recent: %w", err)
	}
	for _, m := range recent {
		fmt.Printf("  %s  %s/%s -> %s\n",
			m.MirroredAt.Format("2006-01-02 15:04"), m.Source, m.ItemID, m.BskyURI)
	}

	return nil
}
