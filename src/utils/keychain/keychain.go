package keychain

import "fmt"

// Named group of derived scripts
type Keychain uint8

const (
	// Receiving addresses
	External Keychain = iota

	// Change addresses
	Internal
)

func (self Keychain) String() string {
	switch self {
	case External:
		return "external"
	case Internal:
		return "internal"
	default:
		return fmt.Sprintf("keychain-%d", uint8(self))
	}
}

// Position of a script in the wallet
type ScriptIndex struct {
	Keychain Keychain
	Index    uint32
}

func ParseKeychain(name string) (Keychain, error) {
	switch name {
	case "external":
		return External, nil
	case "internal":
		return Internal, nil
	}
	var index uint8
	_, err := fmt.Sscanf(name, "keychain-%d", &index)
	if err != nil {
		return 0, fmt.Errorf("unknown keychain %q", name)
	}
	return Keychain(index), nil
}
