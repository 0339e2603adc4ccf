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

// Package evm provides the built-in execution engine of the node. It covers
// the transaction shapes a development chain exercises most — value
// transfers and contract deployment bookkeeping — behind the same Engine
// seam a full interpreter plugs into.
package evm

import (
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/gavel-eth/gavel/core"
	"github.com/gavel-eth/gavel/core/state"
)

const (
	// TxGas is the intrinsic cost of a plain transaction.
	TxGas uint64 = 21000
	// TxGasContractCreation is the intrinsic cost of a creation.
	TxGasContractCreation uint64 = 53000
	// TxDataZeroGas is the per-byte cost of zero calldata bytes.
	TxDataZeroGas uint64 = 4
	// TxDataNonZeroGas is the per-byte cost of non-zero calldata bytes.
	TxDataNonZeroGas uint64 = 16
	// codeDepositGas is charged per byte of deployed code.
	codeDepositGas uint64 = 200
)

// Engine is the default core.Engine implementation.
type Engine struct{}

// New returns the built-in engine.
func New() *Engine {
	return &Engine{}
}

// IntrinsicGas computes the gas a message costs before any code runs.
func IntrinsicGas(data []byte, isCreation bool) uint64 {
	gas := TxGas
	if isCreation {
		gas = TxGasContractCreation
	}
	for _, b := range data {
		if b == 0 {
			gas += TxDataZeroGas
		} else {
			gas += TxDataNonZeroGas
		}
	}
	return gas
}

// Execute runs one message. State writes go through the StateDB journal
// and are rolled back in full when the execution fails, so a failed result
// leaves only the caller's surrounding gas accounting visible.
func (e *Engine) Execute(db *state.StateDB, msg *core.Message, ctx *core.BlockContext) (*core.ExecutionResult, error) {
	isCreation := msg.To == nil
	intrinsic := IntrinsicGas(msg.Data, isCreation)

	frame := &core.CallFrame{
		From:  msg.From,
		Value: new(uint256.Int).Set(msg.Value),
		Input: msg.Data,
		Gas:   msg.Gas,
	}
	res := &core.ExecutionResult{Trace: frame}

	if msg.Gas < intrinsic {
		frame.Kind = core.CallKindCall
		frame.Err = core.ErrOutOfGas.Error()
		frame.GasUsed = msg.Gas
		res.Err = core.ErrOutOfGas
		res.GasUsed = msg.Gas
		return res, nil
	}

	snapshot := db.Snapshot()
	gasUsed := intrinsic

	if isCreation {
		frame.Kind = core.CallKindCreate
		created := crypto.CreateAddress(msg.From, msg.Nonce)
		frame.To = created
		gasUsed += uint64(len(msg.Data)) * codeDepositGas
		if gasUsed > msg.Gas {
			db.RevertToSnapshot(snapshot)
			frame.Err = core.ErrOutOfGas.Error()
			frame.GasUsed = msg.Gas
			res.Err = core.ErrOutOfGas
			res.GasUsed = msg.Gas
			return res, nil
		}
		if db.GetBalance(msg.From).Cmp(msg.Value) < 0 {
			db.RevertToSnapshot(snapshot)
			frame.Err = core.ErrInsufficientFundsForTransfer.Error()
			frame.GasUsed = gasUsed
			res.Err = core.ErrExecutionReverted
			res.GasUsed = gasUsed
			return res, nil
		}
		db.SubBalance(msg.From, msg.Value)
		db.AddBalance(created, msg.Value)
		db.SetNonce(created, 1)
		db.SetCode(created, msg.Data)
		frame.Output = msg.Data
		frame.GasUsed = gasUsed
		res.GasUsed = gasUsed
		res.ReturnData = msg.Data
		res.CreatedContract = &created
		return res, nil
	}

	frame.Kind = core.CallKindCall
	frame.To = *msg.To
	if db.GetBalance(msg.From).Cmp(msg.Value) < 0 {
		db.RevertToSnapshot(snapshot)
		frame.Err = core.ErrInsufficientFundsForTransfer.Error()
		frame.GasUsed = gasUsed
		res.Err = core.ErrExecutionReverted
		res.GasUsed = gasUsed
		return res, nil
	}
	db.SubBalance(msg.From, msg.Value)
	db.AddBalance(*msg.To, msg.Value)
	frame.GasUsed = gasUsed
	res.GasUsed = gasUsed
	return res, nil
}
