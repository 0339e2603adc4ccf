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

package core

import (
	"math/big"
	"testing"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/gavel-eth/gavel/core/state"
)

var chainTestID = big.NewInt(1337)

func newTestChain(t *testing.T) *Blockchain {
	t.Helper()
	statedb := state.New(nil)
	statedb.SetBalance(common.HexToAddress("0xa0"), uint256.NewInt(1_000_000))
	statedb.Finalise()
	return NewBlockchain(ChainSpec{
		ChainID:     chainTestID,
		GenesisTime: 1_700_000_000,
		GasLimit:    30_000_000,
		BaseFee:     big.NewInt(1_000_000_000),
		State:       statedb,
	})
}

// seal executes mutate against a copy of the head state and appends the
// resulting block carrying the given transactions.
func seal(t *testing.T, bc *Blockchain, txs types.Transactions, senders []common.Address, receipts types.Receipts, mutate func(*state.StateDB)) *types.Block {
	t.Helper()
	parent := bc.CurrentBlock()
	workState := bc.State().Copy()
	delta := state.NewDelta()
	workState.StartRecording(delta)
	if mutate != nil {
		mutate(workState)
	}
	workState.Finalise()
	workState.StopRecording()

	header := &types.Header{
		ParentHash:  parent.Hash(),
		UncleHash:   types.EmptyUncleHash,
		Root:        workState.SummaryHash(),
		TxHash:      types.EmptyTxsHash,
		ReceiptHash: types.EmptyReceiptsHash,
		Number:      new(big.Int).Add(parent.Number(), big.NewInt(1)),
		GasLimit:    parent.GasLimit(),
		Time:        parent.Time() + 1,
		BaseFee:     new(big.Int).Set(parent.BaseFee()),
		Difficulty:  new(big.Int),
	}
	block := types.NewBlockWithHeader(header).WithBody(types.Body{Transactions: txs})
	bc.Append(block, receipts, senders, workState, delta)
	return block
}

func TestResolveNumber(t *testing.T) {
	bc := newTestChain(t)
	seal(t, bc, nil, nil, nil, nil)
	seal(t, bc, nil, nil, nil, nil)

	for _, tag := range []rpc.BlockNumber{rpc.PendingBlockNumber, rpc.LatestBlockNumber, rpc.SafeBlockNumber, rpc.FinalizedBlockNumber} {
		n, err := bc.ResolveNumber(tag)
		require.NoError(t, err)
		require.Equal(t, uint64(2), n)
	}
	n, err := bc.ResolveNumber(rpc.EarliestBlockNumber)
	require.NoError(t, err)
	require.Zero(t, n)

	n, err = bc.ResolveNumber(rpc.BlockNumber(1))
	require.NoError(t, err)
	require.Equal(t, uint64(1), n)

	_, err = bc.ResolveNumber(rpc.BlockNumber(3))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAppendIndexesBlock(t *testing.T) {
	bc := newTestChain(t)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	from := crypto.PubkeyToAddress(key.PublicKey)
	to := common.HexToAddress("0xb0")
	tx := types.NewTx(&types.LegacyTx{Nonce: 0, To: &to, Gas: 21000, GasPrice: big.NewInt(1), Value: big.NewInt(5)})
	tx, err = types.SignTx(tx, types.LatestSignerForChainID(chainTestID), key)
	require.NoError(t, err)

	receipt := &types.Receipt{
		TxHash: tx.Hash(),
		Status: types.ReceiptStatusSuccessful,
		Logs: []*types.Log{
			{Address: to, Topics: []common.Hash{common.HexToHash("0x01")}},
			{Address: to, Topics: []common.Hash{common.HexToHash("0x02")}},
		},
	}
	block := seal(t, bc, types.Transactions{tx}, []common.Address{from}, types.Receipts{receipt}, nil)

	require.Equal(t, block, bc.GetBlockByNumber(1))
	require.Equal(t, block, bc.GetBlockByHash(block.Hash()))
	require.Nil(t, bc.GetBlockByNumber(2))
	require.True(t, bc.HasTransaction(tx.Hash()))

	got, blockHash, number, index, err := bc.GetTransaction(tx.Hash())
	require.NoError(t, err)
	require.Equal(t, tx.Hash(), got.Hash())
	require.Equal(t, block.Hash(), blockHash)
	require.Equal(t, uint64(1), number)
	require.Zero(t, index)

	r, err := bc.GetReceipt(tx.Hash())
	require.NoError(t, err)
	require.Equal(t, block.Hash(), r.BlockHash)
	require.Equal(t, uint(0), r.TransactionIndex)
	for i, l := range r.Logs {
		require.Equal(t, block.Hash(), l.BlockHash)
		require.Equal(t, uint64(1), l.BlockNumber)
		require.Equal(t, uint(i), l.Index)
	}

	sender, err := bc.SenderOf(tx)
	require.NoError(t, err)
	require.Equal(t, from, sender)

	_, err = bc.GetReceipt(common.HexToHash("0xdead"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSenderOfFallsBackToRecovery(t *testing.T) {
	bc := newTestChain(t)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	from := crypto.PubkeyToAddress(key.PublicKey)
	to := common.HexToAddress("0xb0")
	tx := types.NewTx(&types.LegacyTx{Nonce: 7, To: &to, Gas: 21000, GasPrice: big.NewInt(1)})
	tx, err = types.SignTx(tx, types.LatestSignerForChainID(chainTestID), key)
	require.NoError(t, err)

	// Never appended, so the sender index has no entry.
	sender, err := bc.SenderOf(tx)
	require.NoError(t, err)
	require.Equal(t, from, sender)
}

func TestStateAtReconstruction(t *testing.T) {
	bc := newTestChain(t)
	addr := common.HexToAddress("0xa0")
	slot := common.HexToHash("0x01")

	seal(t, bc, nil, nil, nil, func(s *state.StateDB) {
		s.SetBalance(addr, uint256.NewInt(100))
		s.SetState(addr, slot, common.HexToHash("0xaa"))
	})
	seal(t, bc, nil, nil, nil, func(s *state.StateDB) {
		s.SetBalance(addr, uint256.NewInt(200))
		s.SetState(addr, slot, common.HexToHash("0xbb"))
	})

	s0, err := bc.StateAt(0)
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(1_000_000), s0.GetBalance(addr))
	require.Equal(t, common.Hash{}, s0.GetState(addr, slot))

	s1, err := bc.StateAt(1)
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(100), s1.GetBalance(addr))
	require.Equal(t, common.HexToHash("0xaa"), s1.GetState(addr, slot))

	s2, err := bc.StateAt(2)
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(200), s2.GetBalance(addr))

	_, err = bc.StateAt(3)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStateAtExcludesOpenOverrides(t *testing.T) {
	bc := newTestChain(t)
	addr := common.HexToAddress("0xa0")
	seal(t, bc, nil, nil, nil, nil)

	// A between-block override lands in the open delta, shows on the head
	// state and stays out of sealed history.
	bc.State().SetBalance(addr, uint256.NewInt(42))
	bc.State().Finalise()

	head, err := bc.StateAt(1)
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(42), head.GetBalance(addr))

	s0, err := bc.StateAt(0)
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(1_000_000), s0.GetBalance(addr))

	// Sealing folds the override into the next block's delta.
	seal(t, bc, nil, nil, nil, nil)
	s1, err := bc.StateAt(1)
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(1_000_000), s1.GetBalance(addr))
	s2, err := bc.StateAt(2)
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(42), s2.GetBalance(addr))
}

func TestRollbackChain(t *testing.T) {
	bc := newTestChain(t)
	addr := common.HexToAddress("0xa0")
	b1 := seal(t, bc, nil, nil, nil, func(s *state.StateDB) {
		s.SetBalance(addr, uint256.NewInt(100))
	})
	b2 := seal(t, bc, nil, nil, nil, func(s *state.StateDB) {
		s.SetBalance(addr, uint256.NewInt(200))
	})

	removed, err := bc.Rollback(2)
	require.NoError(t, err)
	require.Equal(t, []*types.Block{b2, b1}, removed, "removed blocks come newest first")

	require.Zero(t, bc.CurrentBlock().NumberU64())
	require.Nil(t, bc.GetBlockByHash(b1.Hash()))
	require.Nil(t, bc.GetBlockByNumber(1))
	require.Equal(t, uint256.NewInt(1_000_000), bc.State().GetBalance(addr))

	_, err = bc.Rollback(1)
	require.ErrorIs(t, err, ErrBlockOutOfRange)
}

func TestGetTransactionCountAt(t *testing.T) {
	bc := newTestChain(t)
	addr := common.HexToAddress("0xa0")
	seal(t, bc, nil, nil, nil, func(s *state.StateDB) {
		s.SetNonce(addr, 3)
	})

	nonce, err := bc.GetTransactionCount(addr, rpc.LatestBlockNumber)
	require.NoError(t, err)
	require.Equal(t, uint64(3), nonce)

	nonce, err = bc.GetTransactionCount(addr, rpc.BlockNumber(0))
	require.NoError(t, err)
	require.Zero(t, nonce)

	_, err = bc.GetTransactionCount(addr, rpc.BlockNumber(9))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetLogs(t *testing.T) {
	bc := newTestChain(t)
	emitterA := common.HexToAddress("0xaa")
	emitterB := common.HexToAddress("0xbb")
	topic1 := common.HexToHash("0x01")
	topic2 := common.HexToHash("0x02")

	tx1 := types.NewTx(&types.LegacyTx{Nonce: 0, To: &emitterA, Gas: 21000, GasPrice: big.NewInt(1)})
	seal(t, bc, types.Transactions{tx1}, []common.Address{emitterA}, types.Receipts{{
		TxHash: tx1.Hash(),
		Status: types.ReceiptStatusSuccessful,
		Logs: []*types.Log{
			{Address: emitterA, Topics: []common.Hash{topic1}},
			{Address: emitterB, Topics: []common.Hash{topic2}},
		},
	}}, nil)
	tx2 := types.NewTx(&types.LegacyTx{Nonce: 1, To: &emitterA, Gas: 21000, GasPrice: big.NewInt(1)})
	block2 := seal(t, bc, types.Transactions{tx2}, []common.Address{emitterA}, types.Receipts{{
		TxHash: tx2.Hash(),
		Status: types.ReceiptStatusSuccessful,
		Logs: []*types.Log{
			{Address: emitterA, Topics: []common.Hash{topic2}},
		},
	}}, nil)

	all, err := bc.GetLogs(ethereum.FilterQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	byAddr, err := bc.GetLogs(ethereum.FilterQuery{Addresses: []common.Address{emitterB}})
	require.NoError(t, err)
	require.Len(t, byAddr, 1)
	require.Equal(t, emitterB, byAddr[0].Address)

	// Positional topic alternatives are OR-combined.
	byTopic, err := bc.GetLogs(ethereum.FilterQuery{Topics: [][]common.Hash{{topic1, topic2}}})
	require.NoError(t, err)
	require.Len(t, byTopic, 3)

	byBoth, err := bc.GetLogs(ethereum.FilterQuery{
		Addresses: []common.Address{emitterA},
		Topics:    [][]common.Hash{{topic2}},
	})
	require.NoError(t, err)
	require.Len(t, byBoth, 1)
	require.Equal(t, block2.NumberU64(), byBoth[0].BlockNumber)

	blockHash := block2.Hash()
	byBlock, err := bc.GetLogs(ethereum.FilterQuery{BlockHash: &blockHash})
	require.NoError(t, err)
	require.Len(t, byBlock, 1)

	_, err = bc.GetLogs(ethereum.FilterQuery{FromBlock: big.NewInt(2), ToBlock: big.NewInt(1)})
	require.ErrorIs(t, err, ErrBlockOutOfRange)
}

func TestFeeHistoryRange(t *testing.T) {
	bc := newTestChain(t)
	for i := 0; i < 4; i++ {
		seal(t, bc, nil, nil, nil, nil)
	}

	res, err := bc.FeeHistory(3, rpc.LatestBlockNumber)
	require.NoError(t, err)
	require.Equal(t, uint64(2), res.OldestBlock)
	require.Len(t, res.BaseFees, 3)
	require.Len(t, res.GasUsedRatio, 3)

	// More blocks requested than exist clamps at the genesis.
	res, err = bc.FeeHistory(100, rpc.LatestBlockNumber)
	require.NoError(t, err)
	require.Zero(t, res.OldestBlock)
	require.Len(t, res.BaseFees, 5)
}

func TestRollbackRestoresSelfDestructedAccount(t *testing.T) {
	bc := newTestChain(t)
	contract := common.HexToAddress("0xc0")
	slot := common.HexToHash("0x01")

	seal(t, bc, nil, nil, nil, func(s *state.StateDB) {
		s.SetBalance(contract, uint256.NewInt(500))
		s.SetCode(contract, []byte{0x60, 0x00})
		s.SetState(contract, slot, common.HexToHash("0xbeef"))
	})
	seal(t, bc, nil, nil, nil, func(s *state.StateDB) {
		s.SelfDestruct(contract)
	})

	s1, err := bc.StateAt(1)
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(500), s1.GetBalance(contract))
	require.Equal(t, common.HexToHash("0xbeef"), s1.GetState(contract, slot))
	require.NotEmpty(t, s1.GetCode(contract))

	// At the head the account is a zeroed tombstone, not deleted.
	s2, err := bc.StateAt(2)
	require.NoError(t, err)
	require.True(t, s2.Exist(contract))
	require.True(t, s2.GetBalance(contract).IsZero())
	require.Empty(t, s2.GetCode(contract))
	require.Equal(t, common.Hash{}, s2.GetState(contract, slot))

	// Rolling back the destruct block brings the account back on the
	// live state.
	_, err = bc.Rollback(1)
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(500), bc.State().GetBalance(contract))
	require.Equal(t, common.HexToHash("0xbeef"), bc.State().GetState(contract, slot))
	require.NotEmpty(t, bc.State().GetCode(contract))
}

func TestChainHeadEvents(t *testing.T) {
	bc := newTestChain(t)
	ch := make(chan ChainHeadEvent, 4)
	sub := bc.SubscribeChainHead(ch)
	defer sub.Unsubscribe()

	block := seal(t, bc, nil, nil, nil, nil)
	ev := <-ch
	require.Equal(t, block.Hash(), ev.Block.Hash())
}

func TestRollbackEvents(t *testing.T) {
	bc := newTestChain(t)
	rmCh := make(chan RemovedLogsEvent, 4)
	rmSub := bc.SubscribeRemovedLogs(rmCh)
	defer rmSub.Unsubscribe()
	resetCh := make(chan ChainResetEvent, 4)
	resetSub := bc.SubscribeChainReset(resetCh)
	defer resetSub.Unsubscribe()

	emitter := common.HexToAddress("0xaa")
	tx := types.NewTx(&types.LegacyTx{Nonce: 0, To: &emitter, Gas: 21000, GasPrice: big.NewInt(1)})
	block := seal(t, bc, types.Transactions{tx}, []common.Address{emitter}, types.Receipts{{
		TxHash: tx.Hash(),
		Status: types.ReceiptStatusSuccessful,
		Logs: []*types.Log{
			{Address: emitter, Topics: []common.Hash{common.HexToHash("0x01")}},
		},
	}}, nil)

	_, err := bc.Rollback(1)
	require.NoError(t, err)

	rm := <-rmCh
	require.Len(t, rm.Logs, 1)
	require.Equal(t, emitter, rm.Logs[0].Address)

	reset := <-resetCh
	require.Equal(t, []common.Hash{block.Hash()}, reset.Dropped)
	require.Zero(t, reset.Head.NumberU64())
}

func TestResetGenesisEvents(t *testing.T) {
	bc := newTestChain(t)
	b1 := seal(t, bc, nil, nil, nil, nil)
	b2 := seal(t, bc, nil, nil, nil, nil)

	resetCh := make(chan ChainResetEvent, 4)
	resetSub := bc.SubscribeChainReset(resetCh)
	defer resetSub.Unsubscribe()

	statedb := state.New(nil)
	statedb.Finalise()
	bc.ResetGenesis(ChainSpec{
		ChainID:     chainTestID,
		GenesisTime: 1_700_000_000,
		GasLimit:    30_000_000,
		BaseFee:     big.NewInt(1_000_000_000),
		State:       statedb,
	})

	reset := <-resetCh
	require.Equal(t, []common.Hash{b2.Hash(), b1.Hash()}, reset.Dropped, "dropped blocks come newest first")
	require.Zero(t, reset.Head.NumberU64())
	require.Equal(t, reset.Head.Hash(), bc.CurrentBlock().Hash())
}
