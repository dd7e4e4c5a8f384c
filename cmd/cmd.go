package cmd

import (
	"fmt"
	"os"

	"github.com/riiicil/autometa/internal/pkg/config"
	"github.com/spf13/cobra"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "autometa",
	Short: "Batch metadata generator for stock marketplaces",
	Long: `Autometa sends images, vectors and video frames to a vision-capable LLM
provider, embeds the returned metadata into the files and exports rows for
the major stock marketplaces (Adobe Stock, Shutterstock, 123RF, Vecteezy,
Depositphotos).`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Bind only the executed command's flags so sibling commands sharing
		// flag names do not clobber each other in viper
		config.BindFlags(cmd.Flags())
		config.BindFlags(cmd.InheritedFlags())

		// Initialize config here, after cobra has parsed command line flags
		if err := config.InitConfig(); err != nil {
			fmt.Printf("error initializing config: %s", err)
			os.Exit(1)
		}

		cfg = config.Get()
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Run the root command
func Run() error {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().String("log-level", "info", "stdout log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("no-stdout-log", false, "disable stdout logging")
	rootCmd.PersistentFlags().String("log-file-output-dir", "", "directory to write log files to")
	rootCmd.PersistentFlags().String("log-file-level", "info", "log file level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("config-file", "", "config file (default is $HOME/autometa-config.yaml)")

	addProcessCmd(rootCmd)
	addCheckCmd(rootCmd)
	addVersionCmd(rootCmd)

	return rootCmd.Execute()
}
