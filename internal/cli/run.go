package cli

import (
	"fmt"
	"path/filepath"

	"github.com/shiro-ka/shushu/internal/bluesky"
	"github.com/shiro-ka/shushu/internal/config"
	"github.com/shiro-ka/shushu/internal/mirror"
	"github.com/shiro-ka/shushu/internal/source"
	"github.com/shiro-ka/shushu/internal/state"
	"github.com/shiro-ka/shushu/internal/store"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Mirror new posts in one pass",
	Long:  "run fetches posts newer than the stored cursor, re-posts each on Bluesky, and advances the cursor. Per-item failures are counted but do not fail the run.",
	RunE:  runAction,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runAction(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(projectDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	creds, err := config.LoadCredentials(cfg.Source == config.SourceTwitter)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}

	feed, err := buildFeed(cfg, creds)
	if err != nil {
		return fmt.Errorf("create %s source: %w", cfg.Source, err)
	}

	client, err := bluesky.NewClient(bluesky.DefaultPDS)
	if err != nil {
		return fmt.Errorf("create bluesky client: %w", err)
	}
	if err := client.Login(ctx, creds.BlueskyHandle, creds.BlueskyPassword); err != nil {
		return fmt.Errorf("bluesky login: %w", err)
	}

	cursor, err := state.NewStore(filepath.Join(projectDir, state.DefaultCursorFile))
	if err != nil {
		return fmt.Errorf("create cursor store: %w", err)
	}

	// The archive is a duplicate guard on top of the cursor; run
	// without it rather than fail the pass.
	archive, err := store.Open(filepath.Join(projectDir, store.DefaultArchiveFile))
	if err != nil {
		fmt.Printf("warning: open archive: %v\n", err)
		archive = nil
	} else {
		defer func() { _ = archive.Close() }()
	}

	runner, err := mirror.NewRunner(feed, client, mirror.NewMediaTransferer(client), cursor, archive, cfg)
	if err != nil {
		return fmt.Errorf("create runner: %w", err)
	}

	report, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Mirrored %d of %d items", report.Succeeded, report.Fetched)
	if report.Failed > 0 {
		fmt.Printf(" (%d failed)", report.Failed)
	}
	if report.Skipped > 0 {
		fmt.Printf(" (%d already mirrored)", report.Skipped)
	}
	fmt.Println()

	return nil
}

func buildFeed(cfg *config.Config, creds *config.Credentials) (source.Feed, error) {
	switch cfg.Source {
	case config.SourceNitter:
		return source.NewNitter(cfg.NitterBaseURL, cfg.TwitterUsername)
	default:
		return source.NewTwitter(cfg.TwitterUsername, creds.TwitterAPIKey, creds.TwitterAPISecret)
	}
}
