package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/adelyne/pydex/internal/cache"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Full-text search over cached objects",
	Long: `Searches the extraction cache for objects whose path, name,
signature or docstring matches an FTS5 query.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 50, "maximum number of results")
}

func runSearch(cmd *cobra.Command, args []string) error {
	store, err := cache.NewStore(cfg.Cache.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	results, err := store.Search(args[0], searchLimit)
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Fprintln(os.Stderr, "no results")
		return nil
	}

	enc := json.NewEncoder(os.Stdout)
	for _, result := range results {
		if err := enc.Encode(result); err != nil {
			return err
		}
	}
	return nil
}
