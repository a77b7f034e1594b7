package sync

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/warp-contracts/lightsync/src/utils/config"
	"github.com/warp-contracts/lightsync/src/utils/keychain/keychaintest"
	"github.com/warp-contracts/lightsync/src/utils/node"
	"github.com/warp-contracts/lightsync/src/utils/node/nodetest"
)

func TestControllerTestSuite(t *testing.T) {
	suite.Run(t, new(ControllerTestSuite))
}

type ControllerTestSuite struct {
	suite.Suite
	ctx    context.Context
	cancel context.CancelFunc
	config *config.Config
}

func (s *ControllerTestSuite) SetupTest() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 10*time.Second)

	external, _ := keychaintest.MustDescriptors(&chaincfg.RegressionNetParams, "tr", 5)
	s.config = config.Default()
	s.config.RESTListenAddress = "127.0.0.1:0"
	s.config.StopTimeout = 5 * time.Second
	s.config.Wallet.Network = "regtest"
	s.config.Wallet.ExternalDescriptor = external
	s.config.Store.Path = filepath.Join(s.T().TempDir(), "wallet")
	s.config.LightClient.Peers = []string{"127.0.0.1"}
	s.config.LightClient.RequiredPeers = 1
}

func (s *ControllerTestSuite) TearDownTest() {
	s.cancel()
}

func (s *ControllerTestSuite) TestLifecycle() {
	fake := nodetest.NewFake(&node.Update{
		Tip:     header(0, ""),
		Headers: []node.HeaderCheckpoint{header(0, "")},
	})

	controller, err := NewController(s.config)
	require.Nil(s.T(), err)
	controller.WithNodeFactory(fake.Factory)

	require.Nil(s.T(), controller.Start())
	require.Eventually(s.T(), func() bool {
		return controller.Monitor.GetReport().Sync.State.UpdatesApplied.Load() == 1
	}, 5*time.Second, 10*time.Millisecond)

	require.Nil(s.T(), controller.StopWaitContext(s.ctx))
	require.Equal(s.T(), uint64(1), controller.Monitor.GetReport().Sync.State.SessionsFinished.Load())
}

func (s *ControllerTestSuite) TestUnknownStoreBackend() {
	s.config.Store.Backend = "sqlite"
	_, err := NewController(s.config)
	require.NotNil(s.T(), err)
}
