package neutrino

import (
	"sync"

	neutrinolib "github.com/lightninglabs/neutrino"

	"github.com/warp-contracts/lightsync/src/utils/logger"
)

var useLoggerOnce sync.Once

// Routes neutrino's own logs to logrus
func useLogger() {
	useLoggerOnce.Do(func() {
		neutrinolib.UseLogger(logger.NewBtcLogger("neutrino-lib"))
	})
}
