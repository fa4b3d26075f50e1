package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the docsift version",
	Run: func(cmd *cobra.Command, args []string) {
		if PrintJSON(map[string]string{"version": Version}) {
			return
		}
		fmt.Printf("  %s version %s\n", BrandStyle.Render("docsift"), Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
