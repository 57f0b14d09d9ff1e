package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/shiro-ka/shushu/internal/config"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a project directory with an example config",
	RunE:  initAction,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func initAction(_ *cobra.Command, _ []string) error {
	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		return fmt.Errorf("create project dir: %w", err)
	}

	configPath := filepath.Join(projectDir, config.DefaultConfigFile)
	wrote, err := writeIfNotExists(configPath, []byte(exampleConfig))
	if err != nil {
		return err
	}

	if !wrote {
		fmt.Printf("Project %s already initialized.\n", projectDir)
		return nil
	}

	fmt.Printf("Initialized %s.\n", projectDir)
	fmt.Printf("Set %s, %s, %s and %s before running.\n",
		config.EnvTwitterAPIKey, config.EnvTwitterAPISecret,
		config.EnvBlueskyHandle, config.EnvBlueskyPassword)
	return nil
}

// writeIfNotExists writes data to path if the file does not exist.
// Returns true if the file was created.
func writeIfNotExists(path string, data []byte) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("  exists: %s\n", path)
		return false, nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Printf("  created: %s\n", path)
	return true, nil
}

const exampleConfig = `{
  "twitter_username": "your_account_here",
  "header_text": "[mirror]",
  "initial_post_limit": 10,
  "link_mode": "header",
  "post_delay": "1s",
  "source": "twitter"
}
`
