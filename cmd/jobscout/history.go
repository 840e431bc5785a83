package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent searches",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of entries to show")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
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

	entries, err := eng.store.RecentSearches(historyLimit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no searches recorded yet")
		return nil
	}

	for _, e := range entries {
		line := fmt.Sprintf("%s  %-25s", e.CreatedAt.Format("2006-01-02 15:04"), e.Keyword)
		if e.Location != "" {
			line += " @" + e.Location
		}
		line += fmt.Sprintf("  [%s]  %d results in %s",
			strings.Join(e.Sites, ","), e.Records, e.Duration.Round(time.Millisecond))
		fmt.Println(line)
	}
	return nil
}
