package sync

import (
	"encoding/json"

	"github.com/rs/xid"
)

// Published after every update merged into the wallet
type Event struct {
	Wallet  string `json:"wallet"`
	Session xid.ID `json:"session"`

	Height uint32 `json:"height"`
	Hash   string `json:"hash"`

	// Transactions added by this update
	Txids []string `json:"txids"`

	// Satoshis
	Confirmed int64 `json:"confirmed"`
	Pending   int64 `json:"pending"`
	Immature  int64 `json:"immature"`
}

func (self *Event) MarshalBinary() ([]byte, error) {
	return json.Marshal(self)
}
