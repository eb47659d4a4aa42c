// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/openshelf/openshelf/internal/catalog"
	"github.com/openshelf/openshelf/internal/coordinator"
	"github.com/openshelf/openshelf/internal/guard"
	"github.com/openshelf/openshelf/internal/query"
	"github.com/openshelf/openshelf/internal/realtime"
	"github.com/openshelf/openshelf/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Run a one-shot search from the terminal",
	Long: `Search answers a query from the local catalog and, with --wait, stays
attached until the external provider fan-out completes and prints the
streamed results as they arrive.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().Int("year", 0, "filter by first publication year")
	searchCmd.Flags().String("order", "relevance", "result ordering: relevance, newest, or title")
	searchCmd.Flags().Bool("covers", false, "prefer results with cover images")
	searchCmd.Flags().Bool("json", false, "output results as JSON")
	searchCmd.Flags().Bool("wait", false, "wait for the provider fan-out and print streamed results")
	searchCmd.Flags().Duration("wait-timeout", 30*time.Second, "maximum time to wait for the fan-out")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	year, _ := cmd.Flags().GetInt("year")
	order, _ := cmd.Flags().GetString("order")
	covers, _ := cmd.Flags().GetBool("covers")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	wait, _ := cmd.Flags().GetBool("wait")
	waitTimeout, _ := cmd.Flags().GetDuration("wait-timeout")

	raw := strings.Join(args, " ")
	filters := types.Filters{
		PublishedYear: year,
		OrderBy:       types.OrderBy(order),
		PreferCovers:  covers,
	}

	store, err := catalog.Open(cfg.Catalog)
	if err != nil {
		return err
	}
	defer store.Close()

	hub := realtime.NewHub()
	defer hub.Close()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	coord := coordinator.New(store, buildProviders(cfg), guard.NewRegistry(cfg.Guard), hub, cfg.Search, log)

	// Subscribe before issuing the search so no streamed batch is missed.
	var events <-chan realtime.Event
	if wait {
		q := query.Plan(raw, filters)
		ch, cancel := hub.Subscribe(q.Hash)
		defer cancel()
		events = ch
	}

	rs, err := coord.Search(context.Background(), coordinator.Request{Query: raw, Filters: filters})
	if err != nil {
		return err
	}

	results := rs.Results
	if wait {
		streamed, err := drainFanOut(events, waitTimeout, jsonOutput)
		if err != nil {
			return err
		}
		results = append(results, streamed...)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(types.ResultSet{
			QueryHash:  rs.QueryHash,
			Results:    results,
			Total:      len(results),
			HasMore:    rs.HasMore,
			NextOffset: rs.NextOffset,
		})
	}

	formatResultsTable(results)
	return nil
}

// drainFanOut consumes hub events until the terminal complete event.
// Progress lines go to stderr so stdout stays machine-readable.
func drainFanOut(events <-chan realtime.Event, timeout time.Duration, quiet bool) ([]types.CandidateResult, error) {
	var streamed []types.CandidateResult
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return streamed, nil
			}
			switch ev.Type {
			case realtime.EventCandidates:
				streamed = append(streamed, ev.Candidates...)
			case realtime.EventComplete:
				return streamed, nil
			case realtime.EventProviderFailure:
				if !quiet {
					fmt.Fprintf(os.Stderr, "provider %s (%s) failed: %s\n", ev.Provider, ev.Tier, ev.Reason)
				}
			}
		case <-deadline:
			return streamed, fmt.Errorf("fan-out did not complete within %v", timeout)
		}
	}
}

func formatResultsTable(results []types.CandidateResult) {
	if len(results) == 0 {
		fmt.Println("No results found.")
		return
	}

	fmt.Fprintf(os.Stdout, "%-4s  %-44s  %-28s  %-12s  %-6s  %s\n",
		"Rank", "Title", "Authors", "Source", "Year", "Cover")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 108))

	for i, r := range results {
		title := r.Title
		if len(title) > 44 {
			title = title[:41] + "..."
		}
		authors := strings.Join(r.Authors, ", ")
		if len(authors) > 28 {
			authors = authors[:25] + "..."
		}
		year := ""
		if !r.Published.IsZero() {
			year = fmt.Sprintf("%d", r.Published.Year())
		}
		cover := ""
		if r.HasCover() {
			cover = "yes"
		}
		fmt.Fprintf(os.Stdout, "%-4d  %-44s  %-28s  %-12s  %-6s  %s\n",
			i+1, title, authors, r.Source, year, cover)
	}

	fmt.Fprintf(os.Stdout, "\n%d results\n", len(results))
}
