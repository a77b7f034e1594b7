package txgraph

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
)

// Blocks until a coinbase output can be spent
const coinbaseMaturity = 100

type Balance struct {
	// Outputs of coinbase transactions that can't be spent yet
	Immature btcutil.Amount

	// Outputs of transactions confirmed in the chain
	Confirmed btcutil.Amount

	// Outputs of transactions not confirmed yet
	Pending btcutil.Amount
}

func (self Balance) Total() btcutil.Amount {
	return self.Immature + self.Confirmed + self.Pending
}

func (self Balance) Add(other Balance) Balance {
	return Balance{
		Immature:  self.Immature + other.Immature,
		Confirmed: self.Confirmed + other.Confirmed,
		Pending:   self.Pending + other.Pending,
	}
}

func (self Balance) String() string {
	return fmt.Sprintf("confirmed=%s pending=%s immature=%s", self.Confirmed, self.Pending, self.Immature)
}
