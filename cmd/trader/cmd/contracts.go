package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/autotrader/config"
)

var contractsPath string

var contractsCmd = &cobra.Command{
	Use:   "contracts",
	Short: "List the contracts of the configured exchange",
	RunE:  runContracts,
}

func init() {
	rootCmd.AddCommand(contractsCmd)
	contractsCmd.Flags().StringVarP(&contractsPath, "file", "f", "", "path to config file (defaults if empty)")
}

func runContracts(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if contractsPath != "" {
		var err error
		if cfg, err = config.LoadFromFile(contractsPath); err != nil {
			return err
		}
	}
	ex, err := cfg.PaperExchange()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tMODEL\tMULTIPLIER\tMARGIN\tTICK\tLOT\tPRICE DP\tQTY DP")
	for _, c := range ex.Contracts() {
		fmt.Fprintf(w, "%s\t%s\t%g\t%s\t%g\t%g\t%d\t%d\n",
			c.Symbol(), c.Model(), c.Multiplier(), c.MarginAsset(),
			c.TickSize(), c.LotSize(), c.PriceDecimals(), c.QuantityDecimals())
	}
	return w.Flush()
}
