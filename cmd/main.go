package main

import (
	"os"

	"github.com/spf13/cobra"

	"bitbucket.org/novatechnologies/barfeed/infra"
	"bitbucket.org/novatechnologies/barfeed/infra/logger"
)

var configPathFlag string

var rootCmd = &cobra.Command{
	Use:          "barfeed",
	Short:        "Realtime OHLCV bar feed for chart widgets",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPathFlag, "config", "c", "./config/.env", "Path to an optional .env file")
}

func main() {
	if err := rootCmd.ExecuteContext(infra.GetContext()); err != nil {
		logger.DefaultLogger.WithError(err).Error("barfeed failed")
		os.Exit(1)
	}
}
