package cli

import (
	"github.com/spf13/cobra"

	"github.com/docsift/docsift/pkg/gateway"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the search gateway in the foreground",
	Long: `Run the docsift gateway: the HTTP API, the OAuth callback endpoint,
and the credential store live here. Search, connect, and accounts commands
talk to it. Stop with Ctrl-C.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := gateway.NewGateway()
		if err != nil {
			return err
		}
		return g.Start()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
