package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	apiv1 "github.com/docsift/docsift/pkg/api/v1"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List configured accounts and their connection state",
	Run: func(cmd *cobra.Command, args []string) {
		client := getClient()
		accounts, err := client.Accounts(context.Background())
		if err != nil {
			exitError(err)
		}

		if PrintJSON(accounts) {
			return
		}

		if len(accounts) == 0 {
			PrintInfo("No accounts configured")
			PrintHint("Add accounts under providers.google / providers.microsoft in " + CodeStyle.Render("~/.docsift/config.yaml"))
			return
		}

		PrintHeader("Accounts")

		table := NewTable("PROVIDER", "ALIAS", "EMAIL", "STATUS", "TOKEN EXPIRES")
		for _, a := range accounts {
			status := DimStyle.Render("not connected")
			if a.Connected {
				status = SuccessStyle.Render("connected")
			}
			table.AddRow(a.Provider, a.Alias, Truncate(a.Email, 40), status, formatExpiry(a.ExpiresAt))
		}
		table.Print()
		PrintNewline()

		if !anyConnected(accounts) {
			PrintHint("Connect one with: docsift connect <provider> <alias>")
		}
	},
}

func init() {
	rootCmd.AddCommand(accountsCmd)
}

func formatExpiry(ms int64) string {
	if ms == 0 {
		return "-"
	}
	t := time.UnixMilli(ms)
	if t.Before(time.Now()) {
		return "expired"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func anyConnected(accounts []apiv1.AccountStatus) bool {
	for _, a := range accounts {
		if a.Connected {
			return true
		}
	}
	return false
}
