package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/akarpov/jobscout/internal/browse"
	"github.com/akarpov/jobscout/internal/model"
)

var (
	searchLocation    string
	searchSites       []string
	searchExperience  string
	searchEmployment  string
	searchSchedule    string
	searchInteractive bool
	searchJSON        bool
)

var searchCmd = &cobra.Command{
	Use:   "search <keyword>",
	Short: "Search vacancies across the configured job boards",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchLocation, "location", "l", "", "location (free text like \"Москва\" or a provider area id)")
	searchCmd.Flags().StringSliceVarP(&searchSites, "sites", "s", nil, "sites to query (default: all configured)")
	searchCmd.Flags().StringVar(&searchExperience, "experience", "", "experience filter, provider vocabulary (e.g. between1And3)")
	searchCmd.Flags().StringVar(&searchEmployment, "employment", "", "employment filter (e.g. full)")
	searchCmd.Flags().StringVar(&searchSchedule, "schedule", "", "schedule filter (e.g. remote)")
	searchCmd.Flags().BoolVarP(&searchInteractive, "interactive", "i", false, "browse results in an interactive view")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "print results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
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

	sites := searchSites
	if len(sites) == 0 {
		sites = cfg.SiteIDs()
		sort.Strings(sites)
	}

	query := model.SearchQuery{
		Keyword:  strings.Join(args, " "),
		Location: searchLocation,
		Sites:    sites,
		Filters: model.Filters{
			Experience: searchExperience,
			Employment: searchEmployment,
			Schedule:   searchSchedule,
		},
	}

	result, err := eng.orch.Search(cmd.Context(), query)
	if err != nil {
		printStatuses(result)
		return err
	}

	if herr := eng.store.AddSearch(model.SearchLogEntry{
		Keyword:  query.Keyword,
		Location: query.Location,
		Sites:    sites,
		Records:  len(result.Records),
		Duration: result.Elapsed,
	}); herr != nil {
		logger.Warn("recording search history failed", "error", herr)
	}

	switch {
	case searchInteractive:
		return browse.Run(result)
	case searchJSON:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	default:
		printRecords(result)
		printStatuses(result)
		return nil
	}
}

func printRecords(result model.AggregatedResult) {
	if len(result.Records) == 0 {
		fmt.Println("no vacancies found")
		return
	}
	for i, r := range result.Records {
		fmt.Printf("%2d. %s\n", i+1, r.Title)
		if r.Company != "" {
			fmt.Printf("    %s\n", r.Company)
		}
		var details []string
		if r.Location != "" {
			details = append(details, r.Location)
		}
		if r.Salary != "" {
			details = append(details, r.Salary)
		}
		if r.PublishedAt != nil {
			details = append(details, r.PublishedAt.Format("02.01.2006"))
		}
		if len(details) > 0 {
			fmt.Printf("    %s\n", strings.Join(details, " · "))
		}
		fmt.Printf("    %s\n\n", r.URL)
	}
}

func printStatuses(result model.AggregatedResult) {
	sites := make([]string, 0, len(result.Sources))
	for site := range result.Sources {
		sites = append(sites, site)
	}
	sort.Strings(sites)

	for _, site := range sites {
		st := result.Sources[site]
		switch st.State {
		case model.StateOK:
			line := fmt.Sprintf("%s: %d vacancies in %s", site, st.Records, st.Elapsed.Round(time.Millisecond))
			if st.Skipped > 0 {
				line += fmt.Sprintf(" (%d malformed skipped)", st.Skipped)
			}
			fmt.Println(line)
		case model.StateTimedOut:
			fmt.Printf("%s: timed out\n", site)
		default:
			fmt.Printf("%s: failed (%s)\n", site, st.Reason)
		}
	}
	if result.LocationStale {
		fmt.Println("note: location resolved from a stale cache entry")
	}
}
