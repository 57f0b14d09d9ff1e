package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shiro-ka/shushu/internal/config"
	"github.com/shiro-ka/shushu/internal/state"
	"github.com/shiro-ka/shushu/internal/store"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check project health and credentials",
	RunE:  doctorAction,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func doctorAction(cmd *cobra.Command, _ []string) error {
	ok := true

	// Project dir
	if info, err := os.Stat(projectDir); err != nil || !info.IsDir() {
		printCheck(false, "project directory %s", projectDir)
		ok = false
	} else {
		printCheck(true, "project directory %s", projectDir)
	}

	// Config file
	cfg, err := config.Load(projectDir)
	if err != nil {
		printCheck(false, "config.json: %v", err)
		ok = false
	} else {
		printCheck(true, "config.json (@%s -> bluesky, source %s, link mode %s)",
			cfg.TwitterUsername, cfg.Source, cfg.LinkMode)
	}

	// Credentials
	needTwitter := cfg == nil || cfg.Source == config.SourceTwitter
	if _, err := config.LoadCredentials(needTwitter); err != nil {
		printCheck(false, "credentials: %v", err)
		ok = false
	} else {
		printCheck(true, "credentials present in environment")
	}

	// Cursor file
	cursor, err := state.NewStore(filepath.Join(projectDir, state.DefaultCursorFile))
	if err == nil {
		cur, err := cursor.Load()
		switch {
		case err != nil:
			printCheck(false, "cursor.json: %v", err)
			ok = false
		case !cur.Initialized:
			printCheck(true, "cursor.json (first run pending)")
		default:
			printCheck(true, "cursor.json (last id %s)", cur.LastProcessedID)
		}
	}

	// Archive
	archive, err := store.Open(filepath.Join(projectDir, store.DefaultArchiveFile))
	if err != nil {
		printCheck(false, "archive: %v", err)
		ok = false
	} else {
		n, err := archive.Count(cmd.Context())
		_ = archive.Close()
		if err != nil {
			printCheck(false, "archive: %v", err)
			ok = false
		} else {
			printCheck(true, "archive (%d mirrored posts)", n)
		}
	}

	if !ok {
		return errors.New("doctor found problems")
	}
	fmt.Println("All checks passed.")
	return nil
}

func printCheck(ok bool, format string, args ...any) {
	mark := "✓"
	if !ok {
		mark = "✗"
	}
	fmt.Printf("  %s %s\n", mark, fmt.Sprintf(format, args...))
}
