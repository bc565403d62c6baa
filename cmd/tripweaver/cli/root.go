package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tripweaver",
	Short: "Route-based trip planner",
	Long:  "TripWeaver plans multi-day road trips: routes, daily segments, stops worth the detour.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
