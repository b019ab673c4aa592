// Package cmd implements the restock-tracker CLI commands.
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	apiclient "github.com/donaldgifford/restock-tracker/internal/api/client"
	"github.com/donaldgifford/restock-tracker/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "restock-tracker",
	Short: "Track product restocks and text subscribers",
	Long: "restock-tracker polls storefronts for product availability, keeps a state\n" +
		"table and change history on disk, and sends SMS notifications when\n" +
		"subscribed products come back in stock.\n\n" +
		"serve, check and subscribers work on the local data files. products,\n" +
		"history, sms-stats and jobs query a running server.",
	SilenceUsage: true,
}

// Root returns the root cobra command for documentation generation.
func Root() *cobra.Command {
	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().
		String("config", "config.yaml", "config file path")
	rootCmd.PersistentFlags().
		String("server", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().
		String("output", "table", "output format (table, json)")

	for _, name := range []string{"config", "server", "output"} {
		cobra.CheckErr(viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)))
	}

	rootCmd.AddCommand(
		serveCmd(),
		checkCmd(),
		subscribersCmd(),
		productsCmd(),
		historyCmd(),
		smsStatsCmd(),
		jobsCmd(),
		versionCmd(),
	)
}

func initConfig() {
	viper.SetEnvPrefix("RESTOCK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func loadConfig() (*config.Config, error) {
	path := viper.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	return cfg, nil
}

func newClient() *apiclient.Client {
	return apiclient.New(viper.GetString("server"))
}

func jsonOutput() bool {
	return viper.GetString("output") == "json"
}
