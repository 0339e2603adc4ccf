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
	"fmt"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"

	"github.com/gavel-eth/gavel/core/state"
)

// ApplyMessage runs one message against db through the engine, with the
// surrounding accounting a block producer needs: nonce check and bump, gas
// purchase up front, refund of the unused remainder and fee payment to the
// coinbase. A failed execution (revert, out of gas) still consumes gas and
// yields a result with Err set; an error return means the message could
// not be applied at all and the state must be considered dirty only by the
// amount the caller's own snapshot covers.
func ApplyMessage(engine Engine, db *state.StateDB, gp *GasPool, msg *Message, ctx *BlockContext) (*ExecutionResult, error) {
	if !msg.SkipNonceCheck {
		stNonce := db.GetNonce(msg.From)
		if msg.Nonce < stNonce {
			return nil, fmt.Errorf("%w: address %v, tx: %d state: %d", ErrNonceTooLow, msg.From, msg.Nonce, stNonce)
		}
		if msg.Nonce > stNonce {
			return nil, fmt.Errorf("%w: address %v, tx: %d state: %d", ErrNonceTooHigh, msg.From, msg.Nonce, stNonce)
		}
	}
	if err := gp.SubGas(msg.Gas); err != nil {
		return nil, err
	}
	// Buy gas. The full allowance is debited here and the unused part
	// refunded after execution.
	gasCost := new(uint256.Int).Mul(new(uint256.Int).SetUint64(msg.Gas), msg.GasPrice)
	total := new(uint256.Int).Add(gasCost, msg.Value)
	if db.GetBalance(msg.From).Cmp(total) < 0 {
		gp.AddGas(msg.Gas)
		return nil, fmt.Errorf("%w: address %v", ErrInsufficientFunds, msg.From)
	}
	db.SubBalance(msg.From, gasCost)
	if !msg.SkipNonceCheck {
		db.SetNonce(msg.From, msg.Nonce+1)
	}

	res, err := engine.Execute(db, msg, ctx)
	if err != nil {
		// Engine-level failure, not attributable to the transaction.
		return nil, err
	}
	if res.GasUsed > msg.Gas {
		return nil, fmt.Errorf("engine used %d gas, allowance was %d", res.GasUsed, msg.Gas)
	}

	// Refund the unused allowance and pay the fee to the coinbase.
	remaining := new(uint256.Int).Mul(new(uint256.Int).SetUint64(msg.Gas-res.GasUsed), msg.GasPrice)
	db.AddBalance(msg.From, remaining)
	fee := new(uint256.Int).Mul(new(uint256.Int).SetUint64(res.GasUsed), msg.GasPrice)
	db.AddBalance(ctx.Coinbase, fee)
	gp.AddGas(msg.Gas - res.GasUsed)
	return res, nil
}

// MakeReceipt assembles the receipt for an executed transaction.
func MakeReceipt(tx *types.Transaction, res *ExecutionResult, msg *Message, cumulativeGas uint64, blockNumber uint64, txIndex uint) *types.Receipt {
	receipt := &types.Receipt{
		Type:              tx.Type(),
		CumulativeGasUsed: cumulativeGas,
		TxHash:            tx.Hash(),
		GasUsed:           res.GasUsed,
		EffectiveGasPrice: msg.GasPrice.ToBig(),
		TransactionIndex:  txIndex,
	}
	if res.Failed() {
		receipt.Status = types.ReceiptStatusFailed
	} else {
		receipt.Status = types.ReceiptStatusSuccessful
		receipt.Logs = res.Logs
	}
	if msg.To == nil && res.CreatedContract != nil {
		receipt.ContractAddress = *res.CreatedContract
	}
	for _, l := range receipt.Logs {
		l.BlockNumber = blockNumber
		l.TxHash = tx.Hash()
		l.TxIndex = txIndex
	}
	receipt.Bloom = types.CreateBloom(receipt)
	return receipt
}
