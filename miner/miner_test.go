// Copyright 2024 The gavel Authors
// This file is part of the gavel library.
//
// The gavel library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The gavel library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the gavel library. If not, see <http://www.gnu.org/licenses/>.

package miner

import (
	"crypto/ecdsa"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/gavel-eth/gavel/core"
	"github.com/gavel-eth/gavel/core/state"
	"github.com/gavel-eth/gavel/core/txpool"
	"github.com/gavel-eth/gavel/evm"
)

var (
	testChainID = big.NewInt(1337)
	testBaseFee = big.NewInt(1_000_000_000)
)

type harness struct {
	mu    sync.Mutex
	chain *core.Blockchain
	pool  *txpool.Pool
	miner *Miner
	keys  []*ecdsa.PrivateKey
	addrs []common.Address
}

func newHarness(t *testing.T, accounts int) *harness {
	t.Helper()
	statedb := state.New(nil)
	h := &harness{}
	for i := 0; i < accounts; i++ {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		addr := crypto.PubkeyToAddress(key.PublicKey)
		statedb.SetBalance(addr, new(uint256.Int).Mul(uint256.NewInt(100000), uint256.NewInt(1e18)))
		h.keys = append(h.keys, key)
		h.addrs = append(h.addrs, addr)
	}
	statedb.Finalise()

	h.chain = core.NewBlockchain(core.ChainSpec{
		ChainID:     testChainID,
		GenesisTime: 1_700_000_000,
		GasLimit:    30_000_000,
		BaseFee:     testBaseFee,
		State:       statedb,
	})
	h.pool = txpool.New(txpool.DefaultConfig, testChainID, h.chain)
	h.miner = New(&h.mu, h.chain, h.pool, evm.New(), core.ConstantFee{Price: testBaseFee}, Config{
		GasLimit: 30_000_000,
	})
	return h
}

func (h *harness) transfer(t *testing.T, key *ecdsa.PrivateKey, nonce uint64, to common.Address, value *big.Int) *types.Transaction {
	t.Helper()
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      21000,
		GasPrice: new(big.Int).Mul(testBaseFee, big.NewInt(2)),
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(testChainID), key)
	require.NoError(t, err)
	_, err = h.pool.Add(signed)
	require.NoError(t, err)
	return signed
}

func TestMineTransferBlock(t *testing.T) {
	h := newHarness(t, 2)
	sender, receiver := h.addrs[0], h.addrs[1]
	initialSender := h.chain.State().GetBalance(sender).Clone()
	initialReceiver := h.chain.State().GetBalance(receiver).Clone()

	amount := new(big.Int).Exp(big.NewInt(10), big.NewInt(17), nil) // 0.1 ether
	tx := h.transfer(t, h.keys[0], 0, receiver, amount)

	blocks, err := h.miner.Mine(1, 0)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	block := blocks[0]

	require.Equal(t, uint64(1), block.NumberU64())
	require.Equal(t, h.chain.Genesis().Hash(), block.ParentHash())
	require.Len(t, block.Transactions(), 1)

	receipt, err := h.chain.GetReceipt(tx.Hash())
	require.NoError(t, err)
	require.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
	require.Equal(t, evm.TxGas, receipt.GasUsed)

	// sender = initial - value - gasUsed * effectiveGasPrice
	fee := new(uint256.Int).Mul(uint256.NewInt(receipt.GasUsed), uint256.MustFromBig(receipt.EffectiveGasPrice))
	wantSender := new(uint256.Int).Sub(initialSender, uint256.MustFromBig(amount))
	wantSender.Sub(wantSender, fee)
	require.Equal(t, wantSender, h.chain.State().GetBalance(sender))

	wantReceiver := new(uint256.Int).Add(initialReceiver, uint256.MustFromBig(amount))
	require.Equal(t, wantReceiver, h.chain.State().GetBalance(receiver))

	// Included transactions leave the pool.
	require.Zero(t, h.pool.Len())
	require.Equal(t, uint64(1), h.chain.State().GetNonce(sender))
}

func TestNonceOrderAcrossBlocks(t *testing.T) {
	h := newHarness(t, 2)
	to := h.addrs[1]
	for n := uint64(0); n < 5; n++ {
		h.transfer(t, h.keys[0], n, to, big.NewInt(1))
	}
	_, err := h.miner.Mine(1, 0)
	require.NoError(t, err)

	block := h.chain.CurrentBlock()
	require.Len(t, block.Transactions(), 5)
	for i, tx := range block.Transactions() {
		require.Equal(t, uint64(i), tx.Nonce(), "receipt order must follow nonces")
		receipt, err := h.chain.GetReceipt(tx.Hash())
		require.NoError(t, err)
		require.Equal(t, uint(i), receipt.TransactionIndex)
	}
}

func TestEmptyBlock(t *testing.T) {
	h := newHarness(t, 1)
	blocks, err := h.miner.Mine(3, 0)
	require.NoError(t, err)
	require.Len(t, blocks, 3)
	require.Equal(t, uint64(3), h.chain.CurrentBlock().NumberU64())
	for i, block := range blocks {
		require.Equal(t, types.EmptyTxsHash, block.TxHash())
		if i > 0 {
			require.Equal(t, blocks[i-1].Hash(), block.ParentHash())
			require.Greater(t, block.Time(), blocks[i-1].Time())
		}
	}
}

func TestMineWithInterval(t *testing.T) {
	h := newHarness(t, 1)
	blocks, err := h.miner.Mine(3, 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, blocks[0].Time()+5, blocks[1].Time())
	require.Equal(t, blocks[1].Time()+5, blocks[2].Time())
}

func TestTimestampOverride(t *testing.T) {
	h := newHarness(t, 1)
	h.miner.SetNextTimestamp(2_000_000_000)
	blocks, err := h.miner.Mine(2, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(2_000_000_000), blocks[0].Time())
	// The override is one-shot.
	require.Greater(t, blocks[1].Time(), blocks[0].Time())
	require.NotEqual(t, uint64(2_000_000_000), blocks[1].Time())
}

func TestConstantBaseFee(t *testing.T) {
	h := newHarness(t, 1)
	_, err := h.miner.Mine(4, 0)
	require.NoError(t, err)
	for n := uint64(1); n <= 4; n++ {
		block := h.chain.GetBlockByNumber(n)
		require.NotNil(t, block)
		require.Zero(t, block.BaseFee().Cmp(testBaseFee))
	}
}

func TestAutomine(t *testing.T) {
	h := newHarness(t, 2)
	h.miner.Start()
	defer h.miner.Stop()
	h.miner.SetAutomine(true)

	h.transfer(t, h.keys[0], 0, h.addrs[1], big.NewInt(1))

	deadline := time.After(5 * time.Second)
	for h.chain.CurrentBlock().NumberU64() == 0 {
		select {
		case <-deadline:
			t.Fatal("automine did not produce a block")
		case <-time.After(10 * time.Millisecond):
		}
	}
	require.Len(t, h.chain.CurrentBlock().Transactions(), 1)
}

func TestIntervalMining(t *testing.T) {
	h := newHarness(t, 1)
	h.miner.Start()
	defer h.miner.Stop()
	h.miner.SetIntervalMining(50 * time.Millisecond)

	deadline := time.After(5 * time.Second)
	for h.chain.CurrentBlock().NumberU64() < 2 {
		select {
		case <-deadline:
			t.Fatal("interval mining did not produce blocks")
		case <-time.After(10 * time.Millisecond):
		}
	}
	require.Equal(t, ModeInterval, h.miner.Mode())
	h.miner.SetIntervalMining(0)
	require.Equal(t, ModeManual, h.miner.Mode())
}

func TestPauseBlocksSealing(t *testing.T) {
	h := newHarness(t, 1)
	h.miner.Pause()

	_, err := h.miner.MineOne(SealOptions{})
	require.ErrorIs(t, err, ErrPaused)
	require.Zero(t, h.chain.CurrentBlock().NumberU64())

	// Force sealing goes through the pause.
	block, err := h.miner.MineOne(SealOptions{Force: true})
	require.NoError(t, err)
	require.Equal(t, uint64(1), block.NumberU64())

	h.miner.Resume()
	block, err = h.miner.MineOne(SealOptions{})
	require.NoError(t, err)
	require.Equal(t, uint64(2), block.NumberU64())
}

// revertEngine rejects every execution with a revert, consuming all gas.
type revertEngine struct{}

func (revertEngine) Execute(db *state.StateDB, msg *core.Message, ctx *core.BlockContext) (*core.ExecutionResult, error) {
	return &core.ExecutionResult{
		Err:     core.ErrExecutionReverted,
		GasUsed: msg.Gas,
		Trace: &core.CallFrame{
			Kind: core.CallKindCall, From: msg.From, To: *msg.To,
			Gas: msg.Gas, GasUsed: msg.Gas, Err: core.ErrExecutionReverted.Error(),
		},
	}, nil
}

func TestRevertedTxStillConsumesGas(t *testing.T) {
	h := newHarness(t, 2)
	reverting := New(&h.mu, h.chain, h.pool, revertEngine{}, core.ConstantFee{Price: testBaseFee}, Config{GasLimit: 30_000_000})

	sender := h.addrs[0]
	before := h.chain.State().GetBalance(sender).Clone()
	tx := h.transfer(t, h.keys[0], 0, h.addrs[1], big.NewInt(1000))

	_, err := reverting.Mine(1, 0)
	require.NoError(t, err)

	receipt, err := h.chain.GetReceipt(tx.Hash())
	require.NoError(t, err)
	require.Equal(t, types.ReceiptStatusFailed, receipt.Status)
	require.Equal(t, tx.Gas(), receipt.GasUsed)
	require.Empty(t, receipt.Logs)

	// Gas is paid, value is not moved, the nonce still advances.
	fee := new(uint256.Int).Mul(uint256.NewInt(receipt.GasUsed), uint256.MustFromBig(receipt.EffectiveGasPrice))
	want := new(uint256.Int).Sub(before, fee)
	require.Equal(t, want, h.chain.State().GetBalance(sender))
	require.Equal(t, uint64(1), h.chain.State().GetNonce(sender))
}