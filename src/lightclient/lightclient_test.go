package lightclient

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/warp-contracts/lightsync/src/utils/chain"
	"github.com/warp-contracts/lightsync/src/utils/keychain"
	"github.com/warp-contracts/lightsync/src/utils/keychain/keychaintest"
	"github.com/warp-contracts/lightsync/src/utils/node"
	"github.com/warp-contracts/lightsync/src/utils/node/nodetest"
	"github.com/warp-contracts/lightsync/src/utils/txgraph"
	"github.com/warp-contracts/lightsync/src/utils/wallet"
)

func TestLightClientTestSuite(t *testing.T) {
	suite.Run(t, new(LightClientTestSuite))
}

type LightClientTestSuite struct {
	suite.Suite
	ctx      context.Context
	cancel   context.CancelFunc
	params   *chaincfg.Params
	external string
	internal string
	peers    []node.TrustedPeer
	nonce    uint32
}

func (s *LightClientTestSuite) SetupSuite() {
	s.params = &chaincfg.RegressionNetParams
	s.external, s.internal = keychaintest.MustDescriptors(s.params, "wpkh", 7)
	s.peers = []node.TrustedPeer{{Host: "10.0.0.1"}, {Host: "10.0.0.2", Port: 18444}}
}

func (s *LightClientTestSuite) SetupTest() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 10*time.Second)
}

func (s *LightClientTestSuite) TearDownTest() {
	s.cancel()
}

func blockHash(height uint32, branch string) chainhash.Hash {
	return chainhash.DoubleHashH([]byte(fmt.Sprintf("%s-%d", branch, height)))
}

func blockId(height uint32, branch string) chain.BlockId {
	return chain.BlockId{Height: height, Hash: blockHash(height, branch)}
}

func header(height uint32, branch string) node.HeaderCheckpoint {
	return node.HeaderCheckpoint{Height: height, Hash: blockHash(height, branch)}
}

// Wallet with blocks 1..tip on the main branch
func (s *LightClientTestSuite) wallet(tip uint32) *wallet.Wallet {
	w, err := wallet.New(s.params, s.external, s.internal, 25)
	s.Require().NoError(err)

	changeset := wallet.NewChangeSet()
	for h := uint32(1); h <= tip; h++ {
		hash := blockHash(h, "main")
		changeset.Chain[h] = &hash
	}
	s.Require().NoError(w.ApplyChangeSet(changeset))
	w.TakeStaged()
	return w
}

// Transaction paying to the wallet's external script at index
func (s *LightClientTestSuite) pay(w *wallet.Wallet, index uint32, value int64) *wire.MsgTx {
	script, err := w.Index().Peek(keychain.External, index)
	s.Require().NoError(err)

	s.nonce++
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: chainhash.HashH([]byte(fmt.Sprintf("funding-%d", s.nonce)))}, nil, nil))
	tx.AddTxOut(wire.NewTxOut(value, script))
	return tx
}

func (s *LightClientTestSuite) update(blocks []chain.BlockId, anchored map[*wire.MsgTx]chain.BlockId) *Update {
	checkpoint, err := chain.FromBlockIds(blocks)
	s.Require().NoError(err)

	update := &Update{
		Checkpoint: checkpoint,
		Graph:      txgraph.NewChangeSet(),
		Indexer:    keychain.NewChangeSet(),
	}
	for tx, block := range anchored {
		update.Graph.AddTx(tx)
		update.Graph.AddAnchor(txgraph.Anchor{Block: block, Txid: tx.TxHash()})
	}
	return update
}

func (s *LightClientTestSuite) TestWatchlistIsUnionOfPeekedScripts() {
	w := s.wallet(0)
	index := w.Index()

	scripts, err := BuildWatchlist(index, 30)
	require.Nil(s.T(), err)

	expected := make(ScriptSet)
	for _, k := range []keychain.Keychain{keychain.External, keychain.Internal} {
		for i := uint32(0); i <= 30; i++ {
			script, err := index.Peek(k, i)
			require.Nil(s.T(), err)
			expected.Add(script)
		}
	}
	require.Equal(s.T(), expected, scripts)
	require.Equal(s.T(), 62, len(scripts))

	for _, k := range []keychain.Keychain{keychain.External, keychain.Internal} {
		_, revealed := index.LastRevealed(k)
		require.False(s.T(), revealed)
	}
	require.True(s.T(), w.TakeStaged().IsEmpty())
}

func (s *LightClientTestSuite) TestWatchlistWithoutDescriptors() {
	_, err := BuildWatchlist(keychain.NewIndex(10), 10)

	var configErr *ConfigurationError
	require.ErrorAs(s.T(), err, &configErr)
	require.ErrorIs(s.T(), err, keychain.ErrMissingDescriptor)
}

func (s *LightClientTestSuite) TestAnchorSelection() {
	tip := s.wallet(100).LatestCheckpoint()
	atTip := header(100, "main")

	require.Equal(s.T(), atTip, SelectAnchor(tip, nil))

	birthday := header(50, "main")
	require.Equal(s.T(), birthday, SelectAnchor(tip, &birthday))

	birthday = header(100, "main")
	require.Equal(s.T(), atTip, SelectAnchor(tip, &birthday))

	birthday = header(150, "main")
	require.Equal(s.T(), atTip, SelectAnchor(tip, &birthday))
}

func (s *LightClientTestSuite) TestBuildPassesNodeConfig() {
	w := s.wallet(100)
	require.Nil(s.T(), w.ApplyChangeSet(s.confirmedPayment(w)))

	fake := nodetest.NewFake()
	birthday := header(40, "main")
	_, client, err := NewLightClientBuilder(w).
		AddPeers(s.peers).
		AddPeers(s.peers[:1]).
		AddBirthday(birthday).
		AddDataDir("/tmp/unused").
		WithNodeFactory(fake.Factory).
		Build()
	require.Nil(s.T(), err)
	require.NotNil(s.T(), client)

	config := fake.Config()
	require.Equal(s.T(), birthday, config.Anchor)
	require.Equal(s.T(), 2, config.Peers.Len())
	require.Equal(s.T(), uint8(DefaultRequiredPeers), config.RequiredPeers)
	require.Equal(s.T(), "/tmp/unused", config.DataDir)
	require.Len(s.T(), config.Scripts, 2*(TargetIndex+1))
	require.Len(s.T(), config.Outpoints, 1)

	// Everything from the tip down to the first block below the anchor
	require.Equal(s.T(), []uint32{100, 99}, config.Locators[:2])
	require.Equal(s.T(), uint32(39), config.Locators[len(config.Locators)-1])

	require.Nil(s.T(), client.Shutdown(s.ctx))
}

// Confirms one payment at height 60
func (s *LightClientTestSuite) confirmedPayment(w *wallet.Wallet) wallet.ChangeSet {
	tx := s.pay(w, 0, 1000)
	changeset := wallet.NewChangeSet()
	changeset.Graph.AddTx(tx)
	changeset.Graph.AddAnchor(txgraph.Anchor{Block: blockId(60, "main"), Txid: tx.TxHash()})
	return changeset
}

func (s *LightClientTestSuite) TestBuildReportsAllErrors() {
	w := s.wallet(10)
	_, _, err := Build(w, Config{
		Birthday: &node.HeaderCheckpoint{Height: 5},
	}, WithNodeFactory(nodetest.NewFake().Factory))

	var configErr *ConfigurationError
	require.ErrorAs(s.T(), err, &configErr)
	require.Contains(s.T(), err.Error(), "peers")
	require.Contains(s.T(), err.Error(), "birthday")

	_, _, err = Build(nil, Config{})
	require.ErrorAs(s.T(), err, &configErr)

	// Discovery makes peers optional
	_, client, err := Build(w, Config{Discovery: true}, WithNodeFactory(nodetest.NewFake().Factory))
	require.Nil(s.T(), err)
	require.Nil(s.T(), client.Shutdown(s.ctx))
}

// Wallet at 100, node finds three payments worth 0.5 BTC and reaches 120
func (s *LightClientTestSuite) TestSyncFrom100To120() {
	defer leaktest.Check(s.T())()

	w := s.wallet(100)
	before := w.Balance().Total()

	blockTime := time.Unix(1_700_000_000, 0)
	txs := []*wire.MsgTx{
		s.pay(w, 0, 20_000_000),
		s.pay(w, 1, 20_000_000),
		s.pay(w, 2, 10_000_000),
	}
	unrelated := wire.NewMsgTx(2)
	unrelated.AddTxIn(wire.NewTxIn(&wire.OutPoint{Index: 7}, nil, nil))
	unrelated.AddTxOut(wire.NewTxOut(99_000_000, []byte{0x6a}))

	fake := nodetest.NewFake(&node.Update{
		Tip: header(120, "main"),
		Headers: []node.HeaderCheckpoint{
			header(100, "main"),
			header(105, "main"),
			header(117, "main"),
			header(120, "main"),
		},
		Blocks: []node.Block{
			{Height: 105, Hash: blockHash(105, "main"), Time: blockTime, Txs: []*wire.MsgTx{txs[0], unrelated}},
			{Height: 117, Hash: blockHash(117, "main"), Time: blockTime, Txs: []*wire.MsgTx{txs[1], txs[2]}},
		},
	})

	supervisor, client, err := Build(w, Config{Peers: s.peers}, WithNodeFactory(fake.Factory))
	require.Nil(s.T(), err)
	require.Equal(s.T(), header(100, "main"), fake.Config().Anchor)

	require.Nil(s.T(), supervisor.Start())

	update, err := client.Update(s.ctx)
	require.Nil(s.T(), err)
	require.NotNil(s.T(), update)
	require.Len(s.T(), update.Graph.Txs, 3)
	require.Equal(s.T(), client.ID(), update.Session)

	_, err = ApplyUpdate(w, update)
	require.Nil(s.T(), err)

	require.Equal(s.T(), uint32(120), w.LatestCheckpoint().Height())
	half, _ := btcutil.NewAmount(0.5)
	require.Equal(s.T(), half, w.Balance().Total()-before)
	require.Equal(s.T(), half, w.Balance().Confirmed)

	last, ok := w.Index().LastRevealed(keychain.External)
	require.True(s.T(), ok)
	require.Equal(s.T(), uint32(2), last)

	require.Nil(s.T(), client.Shutdown(s.ctx))
	require.Nil(s.T(), supervisor.StopWaitContext(s.ctx))
}

func (s *LightClientTestSuite) TestExtendingUpdateKeepsUnspents() {
	w := s.wallet(100)
	funding := s.pay(w, 0, 5_000)

	_, err := ApplyUpdate(w, s.update(
		[]chain.BlockId{blockId(100, "main"), blockId(101, "main")},
		map[*wire.MsgTx]chain.BlockId{funding: blockId(101, "main")},
	))
	require.Nil(s.T(), err)
	unspents := w.ListUnspent()
	require.Len(s.T(), unspents, 1)

	_, err = ApplyUpdate(w, s.update(
		[]chain.BlockId{blockId(101, "main"), blockId(110, "main"), blockId(130, "main")},
		nil,
	))
	require.Nil(s.T(), err)

	require.Equal(s.T(), uint32(130), w.LatestCheckpoint().Height())
	require.Equal(s.T(), unspents, w.ListUnspent())
}

func (s *LightClientTestSuite) TestApplyTwiceIsIdempotent() {
	w := s.wallet(100)
	update := s.update(
		[]chain.BlockId{blockId(100, "main"), blockId(104, "main"), blockId(108, "main")},
		map[*wire.MsgTx]chain.BlockId{
			s.pay(w, 0, 1_000): blockId(104, "main"),
			s.pay(w, 3, 2_000): blockId(108, "main"),
		},
	)
	update.Indexer.LastRevealed[keychain.External] = 3

	_, err := ApplyUpdate(w, update)
	require.Nil(s.T(), err)
	once := w.InitialChangeSet()
	balance := w.Balance()

	changeset, err := ApplyUpdate(w, update)
	require.Nil(s.T(), err)
	require.True(s.T(), changeset.Chain.IsEmpty())
	require.Equal(s.T(), once, w.InitialChangeSet())
	require.Equal(s.T(), balance, w.Balance())
}

func (s *LightClientTestSuite) TestReorgAt80() {
	w := s.wallet(100)

	early := s.pay(w, 0, 1_000)
	late := s.pay(w, 1, 2_000)
	_, err := ApplyUpdate(w, s.update(
		[]chain.BlockId{blockId(50, "main"), blockId(90, "main"), blockId(100, "main")},
		map[*wire.MsgTx]chain.BlockId{early: blockId(50, "main"), late: blockId(90, "main")},
	))
	require.Nil(s.T(), err)
	require.Equal(s.T(), btcutil.Amount(3_000), w.Balance().Confirmed)

	// Fork from 80 up to 105
	blocks := []chain.BlockId{blockId(79, "main")}
	for h := uint32(80); h <= 105; h++ {
		blocks = append(blocks, blockId(h, "fork"))
	}
	onFork := s.pay(w, 2, 4_000)
	stale := s.pay(w, 3, 8_000)
	_, err = ApplyUpdate(w, s.update(blocks, map[*wire.MsgTx]chain.BlockId{
		onFork: blockId(85, "fork"),
		stale:  blockId(90, "main"),
	}))
	require.Nil(s.T(), err)

	local := w.LocalChain()
	for h := uint32(1); h <= 79; h++ {
		hash, ok := local.Get(h)
		require.True(s.T(), ok)
		require.Equal(s.T(), blockHash(h, "main"), hash)
	}
	for h := uint32(80); h <= 105; h++ {
		hash, ok := local.Get(h)
		require.True(s.T(), ok)
		require.Equal(s.T(), blockHash(h, "fork"), hash)
	}
	require.Equal(s.T(), uint32(105), w.LatestCheckpoint().Height())

	_, ok := w.Graph().Tx(stale.TxHash())
	require.False(s.T(), ok)

	// The transaction from the discarded block waits for confirmation again
	balance := w.Balance()
	require.Equal(s.T(), btcutil.Amount(5_000), balance.Confirmed)
	require.Equal(s.T(), btcutil.Amount(2_000), balance.Pending)
}

func (s *LightClientTestSuite) TestUpdateWithoutCommonBlockIsRejected() {
	w := s.wallet(100)
	before := w.InitialChangeSet()

	var blocks []chain.BlockId
	for h := uint32(101); h <= 110; h++ {
		blocks = append(blocks, blockId(h, "fork"))
	}
	_, err := ApplyUpdate(w, s.update(blocks, map[*wire.MsgTx]chain.BlockId{
		s.pay(w, 0, 1_000): blockId(105, "fork"),
	}))

	var inconsistency *ChainInconsistencyError
	require.ErrorAs(s.T(), err, &inconsistency)
	require.ErrorIs(s.T(), err, chain.ErrNoPointOfAgreement)
	require.Equal(s.T(), before, w.InitialChangeSet())

	// Divergence with no agreement below it
	_, err = ApplyUpdate(w, s.update([]chain.BlockId{blockId(50, "fork"), blockId(100, "main")}, nil))
	require.ErrorAs(s.T(), err, &inconsistency)
	require.Equal(s.T(), before, w.InitialChangeSet())
}

func (s *LightClientTestSuite) TestAnchorInUnknownBlockIsRejected() {
	w := s.wallet(100)
	before := w.InitialChangeSet()

	_, err := ApplyUpdate(w, s.update(
		[]chain.BlockId{blockId(100, "main"), blockId(110, "main")},
		map[*wire.MsgTx]chain.BlockId{s.pay(w, 0, 1_000): blockId(105, "main")},
	))

	var referential *ReferentialConsistencyError
	require.ErrorAs(s.T(), err, &referential)
	require.Equal(s.T(), uint32(105), referential.Anchor.Block.Height)
	require.Equal(s.T(), before, w.InitialChangeSet())
	require.Equal(s.T(), uint32(100), w.LatestCheckpoint().Height())
}

func (s *LightClientTestSuite) TestShutdownAfterNodeStopped() {
	defer leaktest.Check(s.T())()

	fake := nodetest.NewFake().WithExitWhenDone()
	supervisor, client, err := Build(s.wallet(10), Config{Peers: s.peers}, WithNodeFactory(fake.Factory))
	require.Nil(s.T(), err)
	require.Nil(s.T(), supervisor.Start())

	update, err := client.Update(s.ctx)
	require.ErrorIs(s.T(), err, ErrChannelClosedEarly)
	require.Nil(s.T(), update)

	start := time.Now()
	require.Nil(s.T(), client.Shutdown(s.ctx))
	require.Nil(s.T(), client.Shutdown(s.ctx))
	require.Less(s.T(), time.Since(start), time.Second)

	<-supervisor.Done()
	require.Nil(s.T(), supervisor.Err())
}

func (s *LightClientTestSuite) TestPendingUpdateResolvesOnShutdown() {
	defer leaktest.Check(s.T())()

	fake := nodetest.NewFake()
	supervisor, client, err := Build(s.wallet(10), Config{Peers: s.peers}, WithNodeFactory(fake.Factory))
	require.Nil(s.T(), err)
	require.Nil(s.T(), supervisor.Start())
	require.Eventually(s.T(), supervisor.IsRunning, time.Second, time.Millisecond)

	type result struct {
		update *Update
		err    error
	}
	done := make(chan result, 1)
	go func() {
		update, err := client.Update(s.ctx)
		done <- result{update, err}
	}()

	time.Sleep(50 * time.Millisecond)
	require.Nil(s.T(), client.Shutdown(s.ctx))

	select {
	case r := <-done:
		require.Nil(s.T(), r.err)
		require.Nil(s.T(), r.update)
	case <-s.ctx.Done():
		s.T().Fatal("update didn't resolve")
	}

	require.Nil(s.T(), supervisor.StopWaitContext(s.ctx))
}

func (s *LightClientTestSuite) TestSupervisorStartsNodeOnce() {
	defer leaktest.Check(s.T())()

	fake := nodetest.NewFake()
	supervisor, client, err := Build(s.wallet(10), Config{Peers: s.peers}, WithNodeFactory(fake.Factory))
	require.Nil(s.T(), err)

	require.False(s.T(), supervisor.IsRunning())
	require.Nil(s.T(), supervisor.Start())
	require.Eventually(s.T(), supervisor.IsRunning, time.Second, time.Millisecond)
	require.Nil(s.T(), supervisor.Start())
	require.Equal(s.T(), int32(1), fake.Runs())

	require.Nil(s.T(), client.Shutdown(s.ctx))
	require.Nil(s.T(), supervisor.StopWaitContext(s.ctx))
}

func (s *LightClientTestSuite) TestShutdownTimeout() {
	handle := node.NewHandle(0)
	require.True(s.T(), handle.Begin())

	client, err := NewRequest(s.wallet(1).LatestCheckpoint(), s.wallet(1).Index()).IntoClient(handle, 10*time.Millisecond)
	require.Nil(s.T(), err)

	err = client.Shutdown(s.ctx)
	require.ErrorIs(s.T(), err, ErrShutdownTimeout)

	handle.Close()
	require.Nil(s.T(), client.Shutdown(s.ctx))
}

func (s *LightClientTestSuite) TestRequestIsConsumedOnce() {
	w := s.wallet(5)
	request := NewRequest(w.LatestCheckpoint(), w.Index())

	// Snapshot doesn't follow the wallet
	_, err := w.RevealNextAddress(keychain.External)
	require.Nil(s.T(), err)
	_, ok := request.Index().LastRevealed(keychain.External)
	require.False(s.T(), ok)

	_, err = request.IntoClient(node.NewHandle(0), time.Second)
	require.Nil(s.T(), err)
	_, err = request.IntoClient(node.NewHandle(0), time.Second)
	require.True(s.T(), errors.Is(err, ErrRequestConsumed))
}

// Node update confirming the transactions in block 101 on top of the wallet tip 100
func (s *LightClientTestSuite) block101(txs ...*wire.MsgTx) *node.Update {
	return &node.Update{
		Tip:     header(101, "main"),
		Headers: []node.HeaderCheckpoint{header(100, "main"), header(101, "main")},
		Blocks: []node.Block{
			{Height: 101, Hash: blockHash(101, "main"), Time: time.Unix(1_700_000_000, 0), Txs: txs},
		},
	}
}

func (s *LightClientTestSuite) syncOnce(w *wallet.Wallet, fake *nodetest.Fake) *Update {
	supervisor, client, err := Build(w, Config{Peers: s.peers}, WithNodeFactory(fake.Factory))
	require.Nil(s.T(), err)
	require.Nil(s.T(), supervisor.Start())

	update, err := client.Update(s.ctx)
	require.Nil(s.T(), err)
	require.NotNil(s.T(), update)

	_, err = ApplyUpdate(w, update)
	require.Nil(s.T(), err)

	require.Nil(s.T(), client.Shutdown(s.ctx))
	require.Nil(s.T(), supervisor.StopWaitContext(s.ctx))
	return update
}

func (s *LightClientTestSuite) TestPaymentAboveWalletLookaheadIsKept() {
	defer leaktest.Check(s.T())()

	w := s.wallet(100)
	far := s.pay(w, 50, 30_000)
	edge := s.pay(w, TargetIndex, 20_000)

	fake := nodetest.NewFake(s.block101(far, edge))
	update := s.syncOnce(w, fake)

	require.Len(s.T(), update.Graph.Txs, 2)
	require.Equal(s.T(), uint32(TargetIndex), update.Indexer.LastRevealed[keychain.External])

	require.Equal(s.T(), btcutil.Amount(50_000), w.Balance().Confirmed)
	require.Len(s.T(), w.ListUnspent(), 2)
	last, ok := w.Index().LastRevealed(keychain.External)
	require.True(s.T(), ok)
	require.Equal(s.T(), uint32(TargetIndex), last)
}

func (s *LightClientTestSuite) TestPaymentToAddressRevealedDuringSession() {
	defer leaktest.Check(s.T())()

	w := s.wallet(100)
	fake := nodetest.NewFake()
	supervisor, client, err := Build(w, Config{Peers: s.peers}, WithNodeFactory(fake.Factory))
	require.Nil(s.T(), err)

	// User hands out a new address after the session started
	_, err = w.Index().RevealTo(keychain.External, 40)
	require.Nil(s.T(), err)
	tx := s.pay(w, 40, 70_000)
	fake.Updates = append(fake.Updates, s.block101(tx))

	require.Nil(s.T(), supervisor.Start())
	update, err := client.Update(s.ctx)
	require.Nil(s.T(), err)
	require.NotNil(s.T(), update)
	require.Len(s.T(), update.Graph.Txs, 1)

	_, err = ApplyUpdate(w, update)
	require.Nil(s.T(), err)
	require.Equal(s.T(), btcutil.Amount(70_000), w.Balance().Confirmed)

	require.Nil(s.T(), client.Shutdown(s.ctx))
	require.Nil(s.T(), supervisor.StopWaitContext(s.ctx))
}
