package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/txscript"
	"github.com/spf13/cobra"
	"github.com/warp-contracts/lightsync/src/lightclient"
	"github.com/warp-contracts/lightsync/src/sync"
	"github.com/warp-contracts/lightsync/src/utils/store"
)

func init() {
	RootCmd.AddCommand(watchlistCmd)
}

var watchlistCmd = &cobra.Command{
	Use:   "watchlist",
	Short: "Print the scripts the light client would watch for",
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

		scripts, err := lightclient.BuildWatchlist(w.Index(), conf.LightClient.WatchlistLookahead)
		if err != nil {
			return
		}

		for _, script := range scripts.Slice() {
			_, addresses, _, err := txscript.ExtractPkScriptAddrs(script, w.Network())
			if err != nil || len(addresses) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(script))
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", hex.EncodeToString(script), addresses[0].EncodeAddress())
		}
		return
	},
}
