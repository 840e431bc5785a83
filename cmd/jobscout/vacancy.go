package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var vacancyCmd = &cobra.Command{
	Use:   "vacancy <site> <id>",
	Short: "Print the canonical link for a vacancy id",
	Long:  "Look up the canonical vacancy URL for a provider job id, e.g. from a saved record or a webhook payload.",
	Args:  cobra.ExactArgs(2),
	RunE:  runVacancy,
}

func init() {
	rootCmd.AddCommand(vacancyCmd)
}

func runVacancy(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}

	eng, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	site, id := args[0], args[1]
	a, ok := eng.orch.Adapter(site)
	if !ok {
		return fmt.Errorf("unknown site %q", site)
	}

	fmt.Println(a.BuildJobURL(cmd.Context(), id))
	return nil
}
