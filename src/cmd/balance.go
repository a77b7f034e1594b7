package cmd

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/spf13/cobra"
	"github.com/warp-contracts/lightsync/src/sync"
	"github.com/warp-contracts/lightsync/src/utils/store"
)

func init() {
	RootCmd.AddCommand(balanceCmd)
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print the persisted wallet tip, balance and unspent outputs",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		walletStore, err := store.New(ctx, conf)
		if err != nil {
			return
		}
		defer walletStore.Close()

		w, err := sync.LoadWallet(ctx, conf, walletStore)
		if err != nil {
			return
		}

		out := cmd.OutOrStdout()
		tip := w.LatestCheckpoint()
		fmt.Fprintf(out, "network: %s\n", w.Network().Name)
		fmt.Fprintf(out, "tip: %d %s\n", tip.Height(), tip.Hash())
		fmt.Fprintf(out, "balance: %s\n", w.Balance())

		for _, output := range w.ListUnspent() {
			status := "pending"
			if output.Position.Confirmed {
				status = fmt.Sprintf("confirmed at %d", output.Position.Anchor.Block.Height)
			}
			fmt.Fprintf(out, "%s %s %s\n", output.OutPoint, btcutil.Amount(output.TxOut.Value), status)
		}
		return
	},
}
