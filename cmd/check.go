package cmd

import (
	"fmt"

	"github.com/riiicil/autometa/internal/pkg/config"
	"github.com/riiicil/autometa/internal/pkg/provider"
	"github.com/riiicil/autometa/internal/pkg/stop"
	"github.com/spf13/cobra"
)

func addCheckCmd(root *cobra.Command) {
	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Probe API key validity against the provider",
		PreRunE: func(_ *cobra.Command, _ []string) error {
			if cfg == nil {
				return fmt.Errorf("viper config is nil")
			}
			return nil
		},
		RunE: runCheck,
	}

	checkCmd.PersistentFlags().String("provider", "gemini", "metadata provider (gemini, openai, openrouter, groq, blackbox, litellm)")
	checkCmd.PersistentFlags().StringSlice("api-key", []string{}, "API key, repeatable")
	checkCmd.PersistentFlags().String("key-file", "", "dotenv-style file whose values are API keys")
	checkCmd.PersistentFlags().String("model", "", "model to probe with, empty uses the provider default")

	root.AddCommand(checkCmd)
}

func runCheck(_ *cobra.Command, _ []string) error {
	keys, err := config.LoadAPIKeys()
	if err != nil {
		return err
	}

	prov, err := provider.New(cfg.Provider, keys)
	if err != nil {
		return err
	}

	fmt.Printf("Checking %d key(s) against %s...\n", len(keys), prov.Name())
	statuses := provider.CheckKeys(prov, stop.NewToken(), keys, cfg.Model)
	for _, key := range keys {
		status := statuses[key]
		fmt.Printf("  %s: %d %s\n", redactKey(key), status.Code, status.Message)
	}
	return nil
}

// redactKey keeps enough of the key to identify it without printing the secret
func redactKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
