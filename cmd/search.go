package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/lpsn-scraper/internal/lpsn"
)

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <word>",
		Short: "Scrape the species matching word and print them as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runSearch,
	}
	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), appInstance.Config().RequestTimeout())
	defer cancel()

	records, err := appInstance.GetScraper().List(ctx, args[0])
	if err != nil {
		return fmt.Errorf("list %q: %w", args[0], err)
	}
	if records == nil {
		records = []lpsn.Species{}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	return nil
}
