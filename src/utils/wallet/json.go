package wallet

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/warp-contracts/lightsync/src/utils/chain"
	"github.com/warp-contracts/lightsync/src/utils/keychain"
	"github.com/warp-contracts/lightsync/src/utils/txgraph"
)

// Persisted form of the changeset. Hashes are hex, transactions are hex of the wire encoding.
type changeSetJSON struct {
	Network      string             `json:"network,omitempty"`
	Descriptors  map[string]string  `json:"descriptors,omitempty"`
	Chain        map[uint32]*string `json:"chain,omitempty"`
	Txs          []string           `json:"txs,omitempty"`
	Anchors      []anchorJSON       `json:"anchors,omitempty"`
	LastSeen     map[string]int64   `json:"last_seen,omitempty"`
	LastRevealed map[string]uint32  `json:"last_revealed,omitempty"`
}

type anchorJSON struct {
	Height           uint32 `json:"height"`
	Block            string `json:"block"`
	Txid             string `json:"txid"`
	ConfirmationTime int64  `json:"confirmation_time,omitempty"`
}

func (self ChangeSet) MarshalJSON() ([]byte, error) {
	out := changeSetJSON{
		Network:      self.Network,
		Descriptors:  make(map[string]string, len(self.Descriptors)),
		Chain:        make(map[uint32]*string, len(self.Chain)),
		LastSeen:     make(map[string]int64, len(self.Graph.LastSeen)),
		LastRevealed: make(map[string]uint32, len(self.Indexer.LastRevealed)),
	}

	for k, descriptor := range self.Descriptors {
		out.Descriptors[k.String()] = descriptor
	}

	for height, hash := range self.Chain {
		if hash == nil {
			out.Chain[height] = nil
			continue
		}
		s := hash.String()
		out.Chain[height] = &s
	}

	txids := maps.Keys(self.Graph.Txs)
	slices.SortFunc(txids, func(a, b chainhash.Hash) int { return bytes.Compare(a[:], b[:]) })
	for _, txid := range txids {
		var buf bytes.Buffer
		err := self.Graph.Txs[txid].Serialize(&buf)
		if err != nil {
			return nil, err
		}
		out.Txs = append(out.Txs, hex.EncodeToString(buf.Bytes()))
	}

	anchors := maps.Keys(self.Graph.Anchors)
	slices.SortFunc(anchors, func(a, b txgraph.Anchor) int {
		if a.Less(b) {
			return -1
		}
		if b.Less(a) {
			return 1
		}
		return 0
	})
	for _, anchor := range anchors {
		out.Anchors = append(out.Anchors, anchorJSON{
			Height:           anchor.Block.Height,
			Block:            anchor.Block.Hash.String(),
			Txid:             anchor.Txid.String(),
			ConfirmationTime: anchor.ConfirmationTime,
		})
	}

	for txid, seen := range self.Graph.LastSeen {
		out.LastSeen[txid.String()] = seen
	}

	for k, index := range self.Indexer.LastRevealed {
		out.LastRevealed[k.String()] = index
	}

	return json.Marshal(out)
}

func (self *ChangeSet) UnmarshalJSON(data []byte) (err error) {
	var in changeSetJSON
	err = json.Unmarshal(data, &in)
	if err != nil {
		return
	}

	*self = NewChangeSet()
	self.Network = in.Network

	for name, descriptor := range in.Descriptors {
		var k keychain.Keychain
		k, err = keychain.ParseKeychain(name)
		if err != nil {
			return
		}
		self.Descriptors[k] = descriptor
	}

	for height, s := range in.Chain {
		if s == nil {
			self.Chain[height] = nil
			continue
		}
		self.Chain[height], err = chainhash.NewHashFromStr(*s)
		if err != nil {
			return
		}
	}

	for _, s := range in.Txs {
		var raw []byte
		raw, err = hex.DecodeString(s)
		if err != nil {
			return
		}
		tx := wire.NewMsgTx(wire.TxVersion)
		err = tx.Deserialize(bytes.NewReader(raw))
		if err != nil {
			return fmt.Errorf("invalid transaction: %w", err)
		}
		self.Graph.AddTx(tx)
	}

	for _, a := range in.Anchors {
		var block, txid *chainhash.Hash
		block, err = chainhash.NewHashFromStr(a.Block)
		if err != nil {
			return
		}
		txid, err = chainhash.NewHashFromStr(a.Txid)
		if err != nil {
			return
		}
		self.Graph.AddAnchor(txgraph.Anchor{
			Block:            chain.BlockId{Height: a.Height, Hash: *block},
			Txid:             *txid,
			ConfirmationTime: a.ConfirmationTime,
		})
	}

	for s, seen := range in.LastSeen {
		var txid *chainhash.Hash
		txid, err = chainhash.NewHashFromStr(s)
		if err != nil {
			return
		}
		self.Graph.SetLastSeen(*txid, seen)
	}

	for name, index := range in.LastRevealed {
		var k keychain.Keychain
		k, err = keychain.ParseKeychain(name)
		if err != nil {
			return
		}
		self.Indexer.LastRevealed[k] = index
	}

	return
}
