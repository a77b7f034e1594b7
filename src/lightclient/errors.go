package lightclient

import (
	"errors"
	"fmt"

	"github.com/warp-contracts/lightsync/src/utils/txgraph"
)

var (
	// Node didn't acknowledge the stop in time. The node goroutine may still be running.
	ErrShutdownTimeout = errors.New("node failed to stop in time")

	// Update stream ended before producing any data
	ErrChannelClosedEarly = errors.New("node stopped before sending any update")

	// Request already turned into a client
	ErrRequestConsumed = errors.New("request already consumed")
)

// Invalid or missing option, reported when building the light client
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (self *ConfigurationError) Error() string {
	if self.Err != nil {
		return fmt.Sprintf("invalid %s: %s: %s", self.Field, self.Reason, self.Err)
	}
	return fmt.Sprintf("invalid %s: %s", self.Field, self.Reason)
}

func (self *ConfigurationError) Unwrap() error {
	return self.Err
}

// Update shares no common block with the wallet's chain. Nothing was applied.
type ChainInconsistencyError struct {
	Err error
}

func (self *ChainInconsistencyError) Error() string {
	return fmt.Sprintf("update doesn't connect to the wallet chain: %s", self.Err)
}

func (self *ChainInconsistencyError) Unwrap() error {
	return self.Err
}

// Transaction anchored in a block that isn't part of the chain. Nothing was applied.
type ReferentialConsistencyError struct {
	Anchor txgraph.Anchor
}

func (self *ReferentialConsistencyError) Error() string {
	return fmt.Sprintf("anchor references unknown block: %s", self.Anchor)
}
