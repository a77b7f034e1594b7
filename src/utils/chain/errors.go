package chain

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCheckpoint     = errors.New("checkpoint has no blocks")
	ErrNonIncreasingHeight = errors.New("checkpoint height must be greater than its parent's")
	ErrNoPointOfAgreement  = errors.New("update shares no block with the local chain")
	ErrMissingGenesis      = errors.New("local chain has no genesis block")
	ErrGenesisRemoval      = errors.New("changeset removes the genesis block")
)

// Update can't be connected to the local chain.
// Including a block at TryIncludeHeight in the update may make it connectable.
type CannotConnectError struct {
	TryIncludeHeight uint32
}

func (self *CannotConnectError) Error() string {
	return fmt.Sprintf("%s, try including height %d", ErrNoPointOfAgreement, self.TryIncludeHeight)
}

func (self *CannotConnectError) Unwrap() error {
	return ErrNoPointOfAgreement
}
