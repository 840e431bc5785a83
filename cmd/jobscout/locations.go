package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

var locationsList bool

var locationsCmd = &cobra.Command{
	Use:   "locations [place]",
	Short: "Resolve a place name to a provider location id",
	Long:  "Resolve a place name through the location cache, or list the cached entries with --list.",
	RunE:  runLocations,
}

func init() {
	locationsCmd.Flags().BoolVar(&locationsList, "list", false, "list cached location entries")
	rootCmd.AddCommand(locationsCmd)
}

func runLocations(cmd *cobra.Command, args []string) error {
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

	if locationsList {
		entries := eng.cache.Entries()
		if len(entries) == 0 {
			fmt.Println("location cache is empty")
			return nil
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Query < entries[j].Query })
		for _, e := range entries {
			state := "fresh"
			if !eng.cache.Fresh(e) {
				state = "stale"
			}
			fmt.Printf("%-30s %-10s %s (%s)\n", e.Query, e.ResolvedID, e.ResolvedAt.Format("2006-01-02"), state)
		}
		return nil
	}

	if len(args) == 0 {
		return fmt.Errorf("a place name is required (or --list)")
	}

	start := time.Now()
	res, err := eng.cache.Resolve(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("resolving %q: %w", args[0], err)
	}

	fmt.Printf("%s → %s (%s)\n", args[0], res.ID, time.Since(start).Round(time.Millisecond))
	if res.Stale {
		fmt.Println("note: served from a stale cache entry")
	}
	return nil
}
