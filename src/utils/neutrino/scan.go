package neutrino

import (
	"sync"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/warp-contracts/lightsync/src/utils/node"
)

// Collects rescan notifications between two updates.
// Notification handlers run on the rescan goroutine, Run drains the batch.
type batch struct {
	mtx sync.Mutex

	// Highest connected block
	tip    node.HeaderCheckpoint
	hasTip bool

	blocks map[uint32]node.Block

	// Transactions already reported, filters may match the same block twice after a reorg
	seen *lru.Cache

	// Signalled on every connected block
	notify chan struct{}
}

func newBatch(seenSize int) (self *batch, err error) {
	self = &batch{
		blocks: make(map[uint32]node.Block),
		notify: make(chan struct{}, 1),
	}
	self.seen, err = lru.New(seenSize)
	return
}

func (self *batch) connected(height int32, header *wire.BlockHeader, txs []*btcutil.Tx) {
	self.mtx.Lock()
	defer self.mtx.Unlock()

	hash := header.BlockHash()
	self.tip = node.HeaderCheckpoint{Height: uint32(height), Hash: hash}
	self.hasTip = true

	block := node.Block{
		Height: uint32(height),
		Hash:   hash,
		Time:   header.Timestamp,
	}
	for _, tx := range txs {
		key := seenKey(hash, *tx.Hash())
		if ok, _ := self.seen.ContainsOrAdd(key, struct{}{}); ok {
			continue
		}
		block.Txs = append(block.Txs, tx.MsgTx())
	}
	if len(block.Txs) > 0 {
		self.blocks[block.Height] = block
	}

	select {
	case self.notify <- struct{}{}:
	default:
	}
}

func (self *batch) disconnected(height int32, header *wire.BlockHeader) {
	self.mtx.Lock()
	defer self.mtx.Unlock()

	for h, block := range self.blocks {
		if h >= uint32(height) {
			for _, tx := range block.Txs {
				self.seen.Remove(seenKey(block.Hash, tx.TxHash()))
			}
			delete(self.blocks, h)
		}
	}

	if height > 0 {
		self.tip = node.HeaderCheckpoint{Height: uint32(height) - 1, Hash: header.PrevBlock}
	}
}

func (self *batch) currentTip() (node.HeaderCheckpoint, bool) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	return self.tip, self.hasTip
}

// Takes collected blocks, ascending
func (self *batch) take() (tip node.HeaderCheckpoint, blocks []node.Block) {
	self.mtx.Lock()
	defer self.mtx.Unlock()

	tip = self.tip

	heights := maps.Keys(self.blocks)
	slices.Sort(heights)
	for _, h := range heights {
		blocks = append(blocks, self.blocks[h])
	}
	self.blocks = make(map[uint32]node.Block)
	return
}

type seenTx struct {
	block chainhash.Hash
	tx    chainhash.Hash
}

func seenKey(block, tx chainhash.Hash) seenTx {
	return seenTx{block: block, tx: tx}
}
