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

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"

	"github.com/gavel-eth/gavel/core/state"
)

// Message is a fully derived transaction ready for execution: the sender is
// resolved and the gas price is the effective per-unit price for the block
// it executes in.
type Message struct {
	From     common.Address
	To       *common.Address // nil means contract creation
	Nonce    uint64
	Value    *uint256.Int
	Gas      uint64
	GasPrice *uint256.Int
	Data     []byte

	// SkipNonceCheck is set for hypothetical calls (eth_call, gas
	// estimation, trace sandboxes) which execute against arbitrary state.
	SkipNonceCheck bool
}

// BlockContext carries the header-derived environment an execution runs in.
type BlockContext struct {
	Number   uint64
	Time     uint64
	GasLimit uint64
	BaseFee  *uint256.Int
	Coinbase common.Address
}

// CallKind labels a frame of the execution call tree.
type CallKind string

const (
	CallKindCall         CallKind = "CALL"
	CallKindDelegateCall CallKind = "DELEGATECALL"
	CallKindStaticCall   CallKind = "STATICCALL"
	CallKindCreate       CallKind = "CREATE"
	CallKindSelfDestruct CallKind = "SELFDESTRUCT"
)

// CallFrame is one node of the canonical call tree an execution produces.
// Every trace serialization is derived from this one representation. A
// self-destruct appears as its own frame with To set to the beneficiary.
type CallFrame struct {
	Kind    CallKind
	From    common.Address
	To      common.Address
	Value   *uint256.Int
	Input   []byte
	Output  []byte
	Gas     uint64
	GasUsed uint64
	Err     string
	Logs    []*types.Log
	Calls   []*CallFrame
}

// Copy deep-copies the frame and its subtree.
func (f *CallFrame) Copy() *CallFrame {
	if f == nil {
		return nil
	}
	cp := *f
	if f.Value != nil {
		cp.Value = new(uint256.Int).Set(f.Value)
	}
	cp.Input = common.CopyBytes(f.Input)
	cp.Output = common.CopyBytes(f.Output)
	cp.Calls = make([]*CallFrame, len(f.Calls))
	for i, c := range f.Calls {
		cp.Calls[i] = c.Copy()
	}
	return &cp
}

// ExecutionResult is what the execution engine reports for one message.
type ExecutionResult struct {
	// Err is nil on success, or one of the Execution-class errors
	// (ErrExecutionReverted, ErrOutOfGas, ErrInvalidOpcode). Engine
	// failures that are not attributable to the transaction are returned
	// from Execute itself, not stored here.
	Err             error
	GasUsed         uint64
	ReturnData      []byte
	Logs            []*types.Log
	CreatedContract *common.Address
	Trace           *CallFrame
}

// Failed reports whether the message execution ended in a non-success
// receipt status.
func (r *ExecutionResult) Failed() bool { return r.Err != nil }

// Engine is the pluggable execution backend. An implementation executes
// one message against the given state, moving value, running code and
// emitting logs through StateDB.AddLog, and reports the outcome. It must
// leave the state untouched when the result is a failure (revert its own
// writes via the StateDB journal). The caller harvests emitted logs from
// the StateDB after finalising, so engines need not fill Logs themselves.
type Engine interface {
	Execute(db *state.StateDB, msg *Message, ctx *BlockContext) (*ExecutionResult, error)
}

// TxToMessage derives an executable message from a signed transaction. The
// effective gas price is min(feeCap, baseFee+tipCap) for dynamic-fee
// transactions and the literal gas price for legacy ones.
func TxToMessage(tx *types.Transaction, from common.Address, baseFee *big.Int) (*Message, error) {
	price := new(big.Int).Set(tx.GasPrice())
	if baseFee != nil && tx.Type() == types.DynamicFeeTxType {
		price = price.Add(tx.GasTipCap(), baseFee)
		if price.Cmp(tx.GasFeeCap()) > 0 {
			price.Set(tx.GasFeeCap())
		}
	}
	value, overflow := uint256.FromBig(tx.Value())
	if overflow {
		return nil, ErrInsufficientFunds
	}
	gasPrice, overflow := uint256.FromBig(price)
	if overflow {
		return nil, ErrInsufficientFunds
	}
	return &Message{
		From:     from,
		To:       tx.To(),
		Nonce:    tx.Nonce(),
		Value:    value,
		Gas:      tx.Gas(),
		GasPrice: gasPrice,
		Data:     tx.Data(),
	}, nil
}
