package cmd

import (
	"github.com/spf13/cobra"
	"github.com/warp-contracts/lightsync/src/sync"
	"github.com/warp-contracts/lightsync/src/utils/logger"
)

func init() {
	RootCmd.AddCommand(syncCmd)
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run sync sessions until interrupted, persisting wallet changes",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		controller, err := sync.NewController(conf)
		if err != nil {
			return
		}

		err = controller.Start()
		if err != nil {
			return
		}

		select {
		case <-ctx.Done():
		case <-controller.CtxRunning.Done():
		}

		controller.StopWait()
		return
	},
	PostRunE: func(cmd *cobra.Command, args []string) (err error) {
		log := logger.NewSublogger("root-cmd")
		log.Debug("Finished sync command")
		return
	},
}
