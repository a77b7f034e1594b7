package chain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestLocalChainTestSuite(t *testing.T) {
	suite.Run(t, new(LocalChainTestSuite))
}

type LocalChainTestSuite struct {
	suite.Suite
}

func hash(height uint32, branch string) chainhash.Hash {
	return chainhash.DoubleHashH([]byte(fmt.Sprintf("%s-%d", branch, height)))
}

func block(height uint32, branch string) BlockId {
	return BlockId{Height: height, Hash: hash(height, branch)}
}

// Chain with every height in [from, to] on the given branch
func blocks(from, to uint32, branch string) (out []BlockId) {
	for h := from; h <= to; h++ {
		out = append(out, block(h, branch))
	}
	return
}

func (s *LocalChainTestSuite) chain(to uint32) *LocalChain {
	c, _ := NewFromGenesis(hash(0, "main"))
	tip, err := c.Tip().Extend(blocks(1, to, "main"))
	s.Require().NoError(err)
	_, err = c.ApplyUpdate(tip)
	s.Require().NoError(err)
	s.Require().Equal(to, c.Tip().Height())
	return c
}

func (s *LocalChainTestSuite) TestCheckpointRejectsNonIncreasingHeight() {
	cp := NewCheckpoint(block(10, "main"))
	_, err := cp.Push(block(10, "main"))
	require.ErrorIs(s.T(), err, ErrNonIncreasingHeight)
	_, err = cp.Push(block(9, "main"))
	require.ErrorIs(s.T(), err, ErrNonIncreasingHeight)
}

func (s *LocalChainTestSuite) TestCheckpointGet() {
	tip, err := FromBlockIds([]BlockId{block(0, "main"), block(5, "main"), block(9, "main")})
	s.Require().NoError(err)

	require.Equal(s.T(), block(5, "main"), tip.Get(5).BlockId())
	require.Nil(s.T(), tip.Get(6))
	require.Equal(s.T(), []BlockId{block(0, "main"), block(5, "main"), block(9, "main")}, tip.BlockIds())
}

func (s *LocalChainTestSuite) TestExtend() {
	c := s.chain(100)

	update, err := NewCheckpoint(block(100, "main")).Extend([]BlockId{block(110, "main"), block(120, "main")})
	s.Require().NoError(err)

	changeset, err := c.ApplyUpdate(update)
	s.Require().NoError(err)

	require.Equal(s.T(), []uint32{110, 120}, changeset.Heights())
	require.Equal(s.T(), uint32(120), c.Tip().Height())
	for h := uint32(0); h <= 100; h++ {
		require.True(s.T(), c.Contains(block(h, "main")), "height %d", h)
	}
}

func (s *LocalChainTestSuite) TestApplyTwiceIsNoop() {
	c := s.chain(10)
	update, err := FromBlockIds([]BlockId{block(10, "main"), block(15, "main")})
	s.Require().NoError(err)

	_, err = c.ApplyUpdate(update)
	s.Require().NoError(err)
	before := c.InitialChangeSet()

	changeset, err := c.ApplyUpdate(update)
	s.Require().NoError(err)
	require.True(s.T(), changeset.IsEmpty())
	require.Equal(s.T(), before, c.InitialChangeSet())
}

func (s *LocalChainTestSuite) TestReorg() {
	c := s.chain(100)

	// Agrees at 79, diverges from 80 on
	update, err := FromBlockIds(append([]BlockId{block(79, "main")}, blocks(80, 105, "fork")...))
	s.Require().NoError(err)

	changeset, err := c.ApplyUpdate(update)
	s.Require().NoError(err)

	for h := uint32(0); h <= 79; h++ {
		require.True(s.T(), c.Contains(block(h, "main")), "height %d", h)
	}
	for h := uint32(80); h <= 105; h++ {
		require.True(s.T(), c.Contains(block(h, "fork")), "height %d", h)
		require.NotNil(s.T(), changeset[h])
	}
	require.Equal(s.T(), uint32(105), c.Tip().Height())
}

func (s *LocalChainTestSuite) TestReorgDropsBlocksNotInUpdate() {
	c := s.chain(100)

	// Shorter fork, local blocks above the update's tip are gone as well
	update, err := FromBlockIds([]BlockId{block(79, "main"), block(80, "fork"), block(90, "fork")})
	s.Require().NoError(err)

	changeset, err := c.ApplyUpdate(update)
	s.Require().NoError(err)

	require.Equal(s.T(), uint32(90), c.Tip().Height())
	_, ok := c.Get(95)
	require.False(s.T(), ok)
	require.Contains(s.T(), changeset, uint32(95))
	require.Nil(s.T(), changeset[95])
	require.True(s.T(), c.Contains(block(79, "main")))
}

func (s *LocalChainTestSuite) TestNoPointOfAgreement() {
	c := s.chain(100)
	before := c.InitialChangeSet()

	update, err := FromBlockIds(blocks(50, 120, "fork"))
	s.Require().NoError(err)

	_, err = c.ApplyUpdate(update)
	require.ErrorIs(s.T(), err, ErrNoPointOfAgreement)

	var cannotConnect *CannotConnectError
	require.True(s.T(), errors.As(err, &cannotConnect))
	require.Equal(s.T(), uint32(49), cannotConnect.TryIncludeHeight)

	// Nothing changed
	require.Equal(s.T(), before, c.InitialChangeSet())
}

func (s *LocalChainTestSuite) TestAgreementAboveDivergenceIsRejected() {
	c := s.chain(100)

	update, err := FromBlockIds([]BlockId{block(80, "fork"), block(90, "main")})
	s.Require().NoError(err)

	_, err = c.ApplyUpdate(update)
	require.ErrorIs(s.T(), err, ErrNoPointOfAgreement)
}

func (s *LocalChainTestSuite) TestDisjointUpdateHeights() {
	c := s.chain(10)

	// Update only above the local tip, nothing to agree on
	update, err := FromBlockIds(blocks(11, 12, "main"))
	s.Require().NoError(err)

	_, err = c.ApplyUpdate(update)
	require.ErrorIs(s.T(), err, ErrNoPointOfAgreement)
}

func (s *LocalChainTestSuite) TestChangeSetRoundTrip() {
	c := s.chain(20)
	restored, err := FromChangeSet(c.InitialChangeSet())
	s.Require().NoError(err)
	require.Equal(s.T(), c.Tip().BlockIds(), restored.Tip().BlockIds())
}

func (s *LocalChainTestSuite) TestGenesisCannotBeRemoved() {
	c := s.chain(5)
	err := c.ApplyChangeSet(ChangeSet{0: nil})
	require.ErrorIs(s.T(), err, ErrGenesisRemoval)

	_, err = FromChangeSet(ChangeSet{})
	require.ErrorIs(s.T(), err, ErrMissingGenesis)
}
