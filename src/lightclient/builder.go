package lightclient

import (
	"errors"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/warp-contracts/lightsync/src/utils/chain"
	"github.com/warp-contracts/lightsync/src/utils/logger"
	"github.com/warp-contracts/lightsync/src/utils/neutrino"
	"github.com/warp-contracts/lightsync/src/utils/node"
	"github.com/warp-contracts/lightsync/src/utils/wallet"
)

const (
	DefaultRequiredPeers   = 2
	DefaultUpdateBuffer    = 8
	DefaultShutdownTimeout = 15 * time.Second
)

// Options of the light client. Zero values mean defaults.
type Config struct {
	Peers []node.TrustedPeer

	// Allow the node to find peers through DNS seeds when Peers is empty
	Discovery bool

	// Where to start scanning, ignored unless it's below the wallet tip
	Birthday *node.HeaderCheckpoint

	DataDir string

	// Connected peers needed before scanning
	RequiredPeers uint8

	// Watch-list lookahead, TargetIndex by default
	Lookahead uint32

	UpdateBuffer int

	ShutdownTimeout time.Duration
}

type buildOptions struct {
	factory node.Factory
}

type Option func(*buildOptions)

// Replaces the neutrino node, e.g. in tests
func WithNodeFactory(factory node.Factory) Option {
	return func(o *buildOptions) {
		o.factory = factory
	}
}

// Anchor selection: the birthday if it's strictly below the tip, the tip otherwise
func SelectAnchor(tip *chain.Checkpoint, birthday *node.HeaderCheckpoint) node.HeaderCheckpoint {
	if birthday != nil && birthday.Height < tip.Height() {
		return *birthday
	}
	return node.HeaderCheckpoint{Height: tip.Height(), Hash: tip.Hash()}
}

// Wallet blocks at or above the anchor and the highest one below it.
// The node reports its hashes at these heights, which lets updates connect to the wallet chain.
func locators(tip *chain.Checkpoint, anchor node.HeaderCheckpoint) (out []uint32) {
	tip.Iterate(func(cp *chain.Checkpoint) bool {
		out = append(out, cp.Height())
		return cp.Height() >= anchor.Height
	})
	return
}

// Validates the config and creates the node together with the client.
// All configuration errors are reported at once.
func Build(w *wallet.Wallet, config Config, opts ...Option) (supervisor *Supervisor, client *Client, err error) {
	log := logger.NewSublogger("builder")

	options := buildOptions{factory: neutrino.New}
	for _, opt := range opts {
		opt(&options)
	}

	if w == nil {
		return nil, nil, &ConfigurationError{Field: "wallet", Reason: "missing"}
	}

	if config.RequiredPeers == 0 {
		config.RequiredPeers = DefaultRequiredPeers
	}
	if config.Lookahead == 0 {
		config.Lookahead = TargetIndex
	}
	if config.UpdateBuffer <= 0 {
		config.UpdateBuffer = DefaultUpdateBuffer
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = DefaultShutdownTimeout
	}

	var errs []error

	peers := node.NewTrustedPeerSet(config.Peers...)
	for _, peer := range peers.Peers() {
		if peer.Host == "" {
			errs = append(errs, &ConfigurationError{Field: "peers", Reason: "empty host", Err: node.ErrInvalidPeer})
		}
	}
	if peers.Len() == 0 && !config.Discovery {
		errs = append(errs, &ConfigurationError{Field: "peers", Reason: "no peers and discovery is disabled"})
	}
	if peers.Len() > 0 && peers.Len() < int(config.RequiredPeers) && !config.Discovery {
		log.WithField("peers", peers.Len()).
			WithField("required", config.RequiredPeers).
			Warn("Fewer peers than required, sync won't complete unless more connect")
	}

	if config.Birthday != nil && config.Birthday.Height > 0 && config.Birthday.Hash == (chainhash.Hash{}) {
		errs = append(errs, &ConfigurationError{Field: "birthday", Reason: "missing block hash"})
	}

	scripts, err := BuildWatchlist(w.Index(), config.Lookahead)
	if err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return nil, nil, errors.Join(errs...)
	}

	tip := w.LatestCheckpoint()
	anchor := SelectAnchor(tip, config.Birthday)

	var outpoints []node.WatchedOutPoint
	for _, output := range w.ListUnspent() {
		outpoints = append(outpoints, node.WatchedOutPoint{
			OutPoint: output.OutPoint,
			PkScript: output.TxOut.PkScript,
		})
	}

	nodeConfig := &node.Config{
		Network:       w.Network(),
		Peers:         peers,
		Discovery:     config.Discovery,
		Scripts:       scripts.Slice(),
		Outpoints:     outpoints,
		Anchor:        anchor,
		Locators:      locators(tip, anchor),
		RequiredPeers: config.RequiredPeers,
		DataDir:       config.DataDir,
		UpdateBuffer:  config.UpdateBuffer,
	}

	n, handle, err := options.factory(nodeConfig)
	if err != nil {
		return nil, nil, &ConfigurationError{Field: "node", Reason: "failed to create", Err: err}
	}

	request := NewRequest(tip, w.Index())
	err = request.WatchTo(config.Lookahead)
	if err != nil {
		return nil, nil, &ConfigurationError{Field: "lookahead", Reason: "out of range", Err: err}
	}

	client, err = request.IntoClient(handle, config.ShutdownTimeout)
	if err != nil {
		return
	}

	log.WithField("anchor", anchor).
		WithField("scripts", len(scripts)).
		WithField("outpoints", len(outpoints)).
		WithField("session", request.ID().String()).
		Info("Light client built")

	return NewSupervisor(n), client, nil
}

// Fluent way to fill Config
type LightClientBuilder struct {
	wallet  *wallet.Wallet
	config  Config
	options []Option
}

func NewLightClientBuilder(w *wallet.Wallet) *LightClientBuilder {
	return &LightClientBuilder{wallet: w}
}

func (self *LightClientBuilder) AddBirthday(birthday node.HeaderCheckpoint) *LightClientBuilder {
	self.config.Birthday = &birthday
	return self
}

func (self *LightClientBuilder) AddPeers(peers []node.TrustedPeer) *LightClientBuilder {
	self.config.Peers = append(self.config.Peers, peers...)
	return self
}

func (self *LightClientBuilder) AddDataDir(dir string) *LightClientBuilder {
	self.config.DataDir = dir
	return self
}

func (self *LightClientBuilder) AddRequiredPeers(count uint8) *LightClientBuilder {
	self.config.RequiredPeers = count
	return self
}

func (self *LightClientBuilder) WithDiscovery() *LightClientBuilder {
	self.config.Discovery = true
	return self
}

func (self *LightClientBuilder) WithNodeFactory(factory node.Factory) *LightClientBuilder {
	self.options = append(self.options, WithNodeFactory(factory))
	return self
}

func (self *LightClientBuilder) Build() (*Supervisor, *Client, error) {
	return Build(self.wallet, self.config, self.options...)
}

