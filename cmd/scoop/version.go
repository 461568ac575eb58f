package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	obs "github.com/teovin/scoop/internal/infrastructure/observability"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%s %s\n", obs.Name, obs.Version)
		fmt.Printf("Commit:     %s\n", obs.Commit)
		fmt.Printf("Built:      %s\n", obs.Date)
		fmt.Printf("Go Version: %s\n", runtime.Version())
		fmt.Printf("OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
