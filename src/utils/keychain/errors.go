package keychain

import "errors"

var (
	ErrMissingDescriptor     = errors.New("keychain has no descriptor")
	ErrDescriptorChanged     = errors.New("keychain already has a different descriptor")
	ErrInvalidDescriptor     = errors.New("invalid descriptor")
	ErrUnsupportedDescriptor = errors.New("unsupported descriptor")
	ErrWrongNetwork          = errors.New("descriptor key is for a different network")
	ErrIndexOutOfRange       = errors.New("derivation index out of range")
)
