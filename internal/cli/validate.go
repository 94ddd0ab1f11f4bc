package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/strandworks/crosslink/internal/rules"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the rule file without running a cycle",
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	repo := rules.NewRepo(cfg.Rules.Path)
	set, rejected, err := repo.Load()
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}

	for _, rec := range rejected {
		fmt.Fprintf(os.Stderr, "invalid: %v\n", rec)
	}
	fmt.Printf("%d valid rules (version %d)\n", len(set.Rules), set.Version)

	if len(rejected) > 0 {
		return fmt.Errorf("%d invalid rule records", len(rejected))
	}
	return nil
}
