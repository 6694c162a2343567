package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "trader",
	Short: "Automated strategy execution for derivatives exchanges",
	Long: `Trader turns exchange trade ticks into candles, evaluates technical or
breakout strategies on them and manages the resulting positions with
contract-aware PnL for linear, inverse and quanto contracts.

It ships with an in-process paper exchange so strategies can be run
end to end without an exchange account.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
