package txgraph

import (
	"fmt"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/warp-contracts/lightsync/src/utils/chain"
	"github.com/warp-contracts/lightsync/src/utils/keychain"
)

func TestTxGraphTestSuite(t *testing.T) {
	suite.Run(t, new(TxGraphTestSuite))
}

type TxGraphTestSuite struct {
	suite.Suite
	chain *chain.LocalChain
	owner scriptOwner
}

// Owns scripts starting with 0x51
type scriptOwner struct{}

func (scriptOwner) Lookup(script []byte) (keychain.ScriptIndex, bool) {
	if len(script) > 1 && script[0] == 0x51 {
		return keychain.ScriptIndex{Keychain: keychain.External, Index: uint32(script[1])}, true
	}
	return keychain.ScriptIndex{}, false
}

func ours(index byte) []byte {
	return []byte{0x51, index}
}

func theirs() []byte {
	return []byte{0x6a, 0x00}
}

func blockHash(height uint32) chainhash.Hash {
	return chainhash.DoubleHashH([]byte(fmt.Sprintf("block-%d", height)))
}

func blockId(height uint32) chain.BlockId {
	return chain.BlockId{Height: height, Hash: blockHash(height)}
}

func (s *TxGraphTestSuite) SetupTest() {
	var blocks []chain.BlockId
	for h := uint32(0); h <= 10; h++ {
		blocks = append(blocks, blockId(h))
	}
	tip, err := chain.FromBlockIds(blocks)
	s.Require().NoError(err)

	s.chain, _ = chain.NewFromGenesis(blockHash(0))
	_, err = s.chain.ApplyUpdate(tip)
	s.Require().NoError(err)
}

func tx(inputs []wire.OutPoint, outputs ...*wire.TxOut) *wire.MsgTx {
	out := wire.NewMsgTx(2)
	for i := range inputs {
		out.AddTxIn(wire.NewTxIn(&inputs[i], nil, nil))
	}
	for _, o := range outputs {
		out.AddTxOut(o)
	}
	return out
}

func funding(seed uint32, outputs ...*wire.TxOut) *wire.MsgTx {
	return tx([]wire.OutPoint{{Hash: chainhash.DoubleHashH([]byte(fmt.Sprintf("external-%d", seed)))}}, outputs...)
}

func confirm(changeset *ChangeSet, t *wire.MsgTx, height uint32) {
	changeset.AddTx(t)
	changeset.AddAnchor(Anchor{Block: blockId(height), Txid: t.TxHash(), ConfirmationTime: int64(height) * 600})
}

func (s *TxGraphTestSuite) TestApplyIsIdempotent() {
	changeset := NewChangeSet()
	confirm(&changeset, funding(1, wire.NewTxOut(1000, ours(0))), 3)
	unconfirmed := funding(2, wire.NewTxOut(500, ours(1)))
	changeset.AddTx(unconfirmed)
	changeset.SetLastSeen(unconfirmed.TxHash(), 100)

	graph := New()
	graph.ApplyChangeSet(changeset)
	once := graph.InitialChangeSet()
	balance := graph.Balance(s.chain, s.owner)

	graph.ApplyChangeSet(changeset)
	require.Equal(s.T(), once, graph.InitialChangeSet())
	require.Equal(s.T(), balance, graph.Balance(s.chain, s.owner))
	require.Equal(s.T(), btcutil.Amount(1000), balance.Confirmed)
	require.Equal(s.T(), btcutil.Amount(500), balance.Pending)
}

func (s *TxGraphTestSuite) TestSpendRemovesUnspent() {
	parent := funding(1, wire.NewTxOut(1000, ours(0)), wire.NewTxOut(2000, theirs()))
	child := tx([]wire.OutPoint{{Hash: parent.TxHash(), Index: 0}}, wire.NewTxOut(900, ours(1)))

	changeset := NewChangeSet()
	confirm(&changeset, parent, 2)
	confirm(&changeset, child, 5)

	graph := New()
	graph.ApplyChangeSet(changeset)

	outputs := graph.Outputs(s.chain, s.owner)
	require.Len(s.T(), outputs, 2)

	unspents := graph.Unspents(s.chain, s.owner)
	require.Len(s.T(), unspents, 1)
	require.Equal(s.T(), wire.OutPoint{Hash: child.TxHash(), Index: 0}, unspents[0].OutPoint)
	require.Equal(s.T(), btcutil.Amount(900), graph.Balance(s.chain, s.owner).Confirmed)
}

func (s *TxGraphTestSuite) TestAnchorOutsideChainIsPending() {
	t := funding(1, wire.NewTxOut(1000, ours(0)))

	changeset := NewChangeSet()
	changeset.AddTx(t)
	changeset.AddAnchor(Anchor{Block: chain.BlockId{Height: 4, Hash: chainhash.DoubleHashH([]byte("stale"))}, Txid: t.TxHash()})

	graph := New()
	graph.ApplyChangeSet(changeset)

	balance := graph.Balance(s.chain, s.owner)
	require.Equal(s.T(), btcutil.Amount(0), balance.Confirmed)
	require.Equal(s.T(), btcutil.Amount(1000), balance.Pending)
}

func (s *TxGraphTestSuite) TestPendingConflictingWithConfirmedIsDropped() {
	parent := funding(1, wire.NewTxOut(1000, ours(0)))
	spent := wire.OutPoint{Hash: parent.TxHash(), Index: 0}
	confirmed := tx([]wire.OutPoint{spent}, wire.NewTxOut(800, theirs()))
	replaced := tx([]wire.OutPoint{spent}, wire.NewTxOut(900, ours(1)))
	descendant := tx([]wire.OutPoint{{Hash: replaced.TxHash(), Index: 0}}, wire.NewTxOut(850, ours(2)))

	changeset := NewChangeSet()
	confirm(&changeset, parent, 1)
	confirm(&changeset, confirmed, 6)
	changeset.AddTx(replaced)
	changeset.SetLastSeen(replaced.TxHash(), 1000)
	changeset.AddTx(descendant)
	changeset.SetLastSeen(descendant.TxHash(), 1001)

	graph := New()
	graph.ApplyChangeSet(changeset)

	positions := graph.Canonical(s.chain)
	require.Contains(s.T(), positions, confirmed.TxHash())
	require.NotContains(s.T(), positions, replaced.TxHash())
	require.NotContains(s.T(), positions, descendant.TxHash())
	require.Equal(s.T(), Balance{}, graph.Balance(s.chain, s.owner))
}

func (s *TxGraphTestSuite) TestMostRecentlySeenWinsPendingConflict() {
	parent := funding(1, wire.NewTxOut(1000, ours(0)))
	spent := wire.OutPoint{Hash: parent.TxHash(), Index: 0}
	older := tx([]wire.OutPoint{spent}, wire.NewTxOut(900, ours(1)))
	newer := tx([]wire.OutPoint{spent}, wire.NewTxOut(700, ours(2)))

	changeset := NewChangeSet()
	confirm(&changeset, parent, 1)
	changeset.AddTx(older)
	changeset.SetLastSeen(older.TxHash(), 10)
	changeset.AddTx(newer)
	changeset.SetLastSeen(newer.TxHash(), 20)

	graph := New()
	graph.ApplyChangeSet(changeset)

	balance := graph.Balance(s.chain, s.owner)
	require.Equal(s.T(), btcutil.Amount(700), balance.Pending)
	require.Equal(s.T(), btcutil.Amount(0), balance.Confirmed)
}

func (s *TxGraphTestSuite) TestImmatureCoinbase() {
	coinbase := tx([]wire.OutPoint{{Index: wire.MaxPrevOutIndex}}, wire.NewTxOut(5000, ours(0)))

	changeset := NewChangeSet()
	confirm(&changeset, coinbase, 9)

	graph := New()
	graph.ApplyChangeSet(changeset)

	balance := graph.Balance(s.chain, s.owner)
	require.Equal(s.T(), btcutil.Amount(5000), balance.Immature)
	require.Equal(s.T(), btcutil.Amount(5000), balance.Total())
}

func (s *TxGraphTestSuite) TestChangeSetMerge() {
	a := NewChangeSet()
	a.SetLastSeen(blockHash(1), 5)
	b := NewChangeSet()
	b.SetLastSeen(blockHash(1), 3)
	confirm(&b, funding(1), 2)

	a.Merge(b)
	require.Equal(s.T(), int64(5), a.LastSeen[blockHash(1)])
	require.Len(s.T(), a.Txs, 1)
	require.Len(s.T(), a.Anchors, 1)
	require.False(s.T(), a.IsEmpty())
}
