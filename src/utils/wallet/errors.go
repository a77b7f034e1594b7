package wallet

import "errors"

var (
	ErrUnknownNetwork     = errors.New("unknown network")
	ErrMissingNetwork     = errors.New("changeset has no network")
	ErrNetworkMismatch    = errors.New("wallet was created for a different network")
	ErrGenesisMismatch    = errors.New("genesis block doesn't match the network")
	ErrMissingDescriptors = errors.New("changeset has no descriptors")
	ErrEmptyChangeSet     = errors.New("nothing to load")
)
