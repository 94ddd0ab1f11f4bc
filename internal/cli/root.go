package cli

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/strandworks/crosslink/internal/config"
	"github.com/strandworks/crosslink/internal/store"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "crosslink",
	Short: "Rule-based, self-tuning content linking for markdown vaults",
	Long: "Crosslink discovers which documents in a vault should reference each other,\n" +
		"inserts or suggests those links, and tunes its own rule set from observed outcomes.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Local overrides (CROSSLINK_DB, CROSSLINK_RULES, ...) may live in a
	// .env file next to the working directory.
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (YAML)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(markCmd)
	rootCmd.AddCommand(serveCmd)
}

// loadConfig resolves the config file path (flag, then CROSSLINK_CONFIG)
// and loads it over the defaults.
func loadConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("CROSSLINK_CONFIG")
	}
	return config.Load(path)
}

// openStore opens the outcome/report database, resolving the default
// path when the config leaves it empty.
func openStore(cfg config.Config) (*store.DB, error) {
	path := cfg.Database.Path
	if path == "" {
		var err error
		path, err = store.DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}
	return store.Open(path)
}
