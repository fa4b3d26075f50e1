package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

type StatusInfo struct {
	Gateway   string `json:"gateway"`
	Running   bool   `json:"running"`
	Error     string `json:"error,omitempty"`
	Connected int    `json:"connected_accounts"`
	Total     int    `json:"configured_accounts"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show gateway status",
	Run: func(cmd *cobra.Command, args []string) {
		client := getClient()
		status := StatusInfo{Gateway: gatewayHTTPAddr}

		if err := client.Health(context.Background()); err != nil {
			status.Error = FormatError(err)
		} else {
			status.Running = true
			if accounts, err := client.Accounts(context.Background()); err == nil {
				status.Total = len(accounts)
				status.Connected = 0
				for _, a := range accounts {
					if a.Connected {
						status.Connected++
					}
				}
			}
		}

		if jsonOutput {
			data, _ := json.MarshalIndent(status, "", "  ")
			fmt.Println(string(data))
			return
		}

		fmt.Println()
		PrintKeyValue("Gateway", status.Gateway)
		if status.Running {
			PrintKeyValue("Status", SuccessStyle.Render("running"))
			PrintKeyValue("Accounts", fmt.Sprintf("%d connected / %d configured", status.Connected, status.Total))
		} else {
			PrintKeyValue("Status", DimStyle.Render("unreachable"))
			PrintKeyValue("Detail", DimStyle.Render(status.Error))
		}
		fmt.Println()

		if !status.Running {
			PrintHint("Run 'docsift serve' to start the gateway")
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
