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

// Package tracers reconstructs execution call trees by replay. The chain
// stores no traces; tracing a transaction rebuilds the pre-state of its
// block, re-executes everything ahead of it and captures the call tree the
// engine reports. One canonical tree feeds both the flat and the nested
// serialization.
package tracers

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"

	"github.com/gavel-eth/gavel/core"
)

// Tracer replays mined transactions and hypothetical calls against
// reconstructed historical state.
type Tracer struct {
	chain  *core.Blockchain
	engine core.Engine
	logger log.Logger
}

// New creates a tracer over the given chain, replaying through engine.
func New(chain *core.Blockchain, engine core.Engine) *Tracer {
	return &Tracer{
		chain:  chain,
		engine: engine,
		logger: log.New("module", "tracer"),
	}
}

// TraceTransaction returns the flat trace of a locally mined transaction.
func (t *Tracer) TraceTransaction(hash common.Hash) ([]*FlatTrace, error) {
	res, block, index, err := t.replayTransaction(hash)
	if err != nil {
		return nil, err
	}
	return Flatten(res.Trace, block.Hash(), block.NumberU64(), hash, index), nil
}

// TraceTransactionCall returns the nested trace of a locally mined
// transaction.
func (t *Tracer) TraceTransactionCall(hash common.Hash, cfg *CallConfig) (*CallTrace, error) {
	res, _, _, err := t.replayTransaction(hash)
	if err != nil {
		return nil, err
	}
	return Nest(res.Trace, cfg), nil
}

// TraceBlock returns the flat traces of every transaction in the block, in
// inclusion order. Tracing a block is exactly the concatenation of tracing
// its transactions.
func (t *Tracer) TraceBlock(ref rpc.BlockNumber) ([]*FlatTrace, error) {
	number, err := t.chain.ResolveNumber(ref)
	if err != nil {
		return nil, err
	}
	block := t.chain.GetBlockByNumber(number)
	if block == nil {
		return nil, fmt.Errorf("%w: block %d not local", core.ErrNotFound, number)
	}
	results, err := t.executeBlock(block, len(block.Transactions()))
	if err != nil {
		return nil, err
	}
	var out []*FlatTrace
	for i, res := range results {
		out = append(out, Flatten(res.Trace, block.Hash(), block.NumberU64(), block.Transactions()[i].Hash(), uint64(i))...)
	}
	return out, nil
}

// TraceCall executes a hypothetical message on top of the referenced block
// and returns its nested trace. Nothing is committed.
func (t *Tracer) TraceCall(msg *core.Message, ref rpc.BlockNumber, cfg *CallConfig) (*CallTrace, error) {
	number, err := t.chain.ResolveNumber(ref)
	if err != nil {
		return nil, err
	}
	block := t.chain.GetBlockByNumber(number)
	if block == nil {
		return nil, fmt.Errorf("%w: block %d not local", core.ErrNotFound, number)
	}
	statedb, err := t.chain.StateAt(number)
	if err != nil {
		return nil, err
	}
	msg.SkipNonceCheck = true
	if msg.Gas == 0 {
		msg.Gas = block.GasLimit()
	}
	if msg.Value == nil {
		msg.Value = new(uint256.Int)
	}
	if msg.GasPrice == nil {
		msg.GasPrice = new(uint256.Int)
	}
	ctx := &core.BlockContext{
		Number:   number + 1,
		Time:     block.Time() + 1,
		GasLimit: block.GasLimit(),
		Coinbase: block.Coinbase(),
	}
	ctx.BaseFee, _ = uint256.FromBig(block.BaseFee())

	gp := core.NewGasPool(block.GasLimit())
	res, err := core.ApplyMessage(t.engine, statedb, gp, msg, ctx)
	if err != nil {
		return nil, err
	}
	statedb.Finalise()
	res.Logs = statedb.TakeLogs()
	return Nest(res.Trace, cfg), nil
}

// replayTransaction rebuilds the execution of one mined transaction and
// returns its result together with the containing block and position.
func (t *Tracer) replayTransaction(hash common.Hash) (*core.ExecutionResult, *types.Block, uint64, error) {
	if !t.chain.HasTransaction(hash) {
		return nil, nil, 0, fmt.Errorf("%w: transaction %s not mined locally", core.ErrNotFound, hash)
	}
	_, blockHash, _, index, err := t.chain.GetTransaction(hash)
	if err != nil {
		return nil, nil, 0, err
	}
	block := t.chain.GetBlockByHash(blockHash)
	results, err := t.executeBlock(block, int(index)+1)
	if err != nil {
		return nil, nil, 0, err
	}
	return results[index], block, index, nil
}

// executeBlock re-executes the first count transactions of a sealed block
// against the reconstructed parent state. Replay of already mined
// transactions cannot legitimately fail; a failure means the historical
// state diverged and is reported as such.
func (t *Tracer) executeBlock(block *types.Block, count int) ([]*core.ExecutionResult, error) {
	if count == 0 {
		return nil, nil
	}
	statedb, err := t.chain.StateAt(block.NumberU64() - 1)
	if err != nil {
		return nil, err
	}
	ctx := &core.BlockContext{
		Number:   block.NumberU64(),
		Time:     block.Time(),
		GasLimit: block.GasLimit(),
		Coinbase: block.Coinbase(),
	}
	ctx.BaseFee, _ = uint256.FromBig(block.BaseFee())

	gp := core.NewGasPool(block.GasLimit())
	results := make([]*core.ExecutionResult, 0, count)
	for i := 0; i < count; i++ {
		tx := block.Transactions()[i]
		from, err := t.chain.SenderOf(tx)
		if err != nil {
			return nil, fmt.Errorf("sender of %s: %w", tx.Hash(), err)
		}
		msg, err := core.TxToMessage(tx, from, block.BaseFee())
		if err != nil {
			return nil, err
		}
		statedb.SetTxContext(tx.Hash(), i)
		res, err := core.ApplyMessage(t.engine, statedb, gp, msg, ctx)
		if err != nil {
			return nil, fmt.Errorf("replay diverged at tx %d of block %d: %w", i, block.NumberU64(), err)
		}
		statedb.Finalise()
		res.Logs = statedb.TakeLogs()
		results = append(results, res)
	}
	return results, nil
}
