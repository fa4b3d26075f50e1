package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/docsift/docsift/pkg/types"
)

var (
	searchSources  []string
	searchAccounts []string
)

var searchCmd = &cobra.Command{
	Use:   "search [name]",
	Short: "Search for a document across all connected sources",
	Long: `Search for a document by name across every enabled source.

Results print one per line, tab-separated: source, title, modified time
(ISO 8601, or "-" when unknown), and path or URL. Omitting the name lists
recent/available documents instead of matching.

Examples:
  docsift search "quarterly report"
  docsift search budget --sources google-drive,gmail-attachment
  docsift search notes --accounts work --sources microsoft`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		query := ""
		if len(args) > 0 {
			query = args[0]
		}

		client := getClient()
		results, err := client.Search(context.Background(), types.SearchRequest{
			Query:    query,
			Sources:  searchSources,
			Accounts: searchAccounts,
		})
		if err != nil {
			exitError(err)
		}

		if PrintJSON(results) {
			return
		}

		if len(results) == 0 {
			fmt.Println("No matches")
			return
		}

		for _, r := range results {
			fmt.Printf("%s\t%s\t%s\t%s\n", r.Source, r.Title, formatModified(r.Modified), formatLocation(r))
		}
	},
}

func init() {
	searchCmd.Flags().StringSliceVar(&searchSources, "sources", nil, "Only include these source tags (e.g. local,google-drive)")
	searchCmd.Flags().StringSliceVar(&searchAccounts, "accounts", nil, "Only include these account aliases")
	rootCmd.AddCommand(searchCmd)
}

func formatModified(ms *int64) string {
	if ms == nil {
		return "-"
	}
	return time.UnixMilli(*ms).UTC().Format(time.RFC3339)
}

func formatLocation(r types.SearchResult) string {
	if r.URL == "" {
		return "-"
	}
	return r.URL
}
