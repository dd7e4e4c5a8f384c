package cmd

import (
	"fmt"

	"github.com/riiicil/autometa/internal/pkg/utils"
	"github.com/spf13/cobra"
)

func addVersionCmd(root *cobra.Command) {
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show the version number",
		Run: func(_ *cobra.Command, _ []string) {
			version := utils.GetVersion()
			fmt.Println("autometa", version.Version)
			fmt.Println("- go/version:", version.GoVersion)
		},
	}

	root.AddCommand(versionCmd)
}
