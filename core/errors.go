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
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

var (
	// ErrNotFound is returned when a referenced block, transaction or
	// receipt does not exist in the chain.
	ErrNotFound = errors.New("not found")

	// ErrNonceTooLow is returned if the nonce of a transaction is lower
	// than the one present in the local chain.
	ErrNonceTooLow = errors.New("nonce too low")

	// ErrNonceTooHigh is returned if the nonce of a transaction is higher
	// than the next one expected based on the local chain.
	ErrNonceTooHigh = errors.New("nonce too high")

	// ErrInsufficientFunds is returned if the total cost of executing a
	// transaction is higher than the balance of the user's account.
	ErrInsufficientFunds = errors.New("insufficient funds for gas * price + value")

	// ErrInsufficientFundsForTransfer is returned if the transaction sender
	// doesn't have enough funds for the transfer (topmost call only).
	ErrInsufficientFundsForTransfer = errors.New("insufficient funds for transfer")

	// ErrGasLimitReached is returned by the gas pool if the amount of gas
	// required by a transaction is higher than what's left in the block.
	ErrGasLimitReached = errors.New("gas limit reached")

	// ErrIntrinsicGas is returned if the transaction is specified to use
	// less gas than required to start the invocation.
	ErrIntrinsicGas = errors.New("intrinsic gas too low")

	// ErrOutOfGas is returned when execution exhausts its gas allowance.
	ErrOutOfGas = errors.New("out of gas")

	// ErrInvalidOpcode is returned when execution hits an undefined
	// instruction.
	ErrInvalidOpcode = errors.New("invalid opcode")

	// ErrExecutionReverted is returned when execution reverted explicitly.
	// Callers that need the revert payload should use RevertError.
	ErrExecutionReverted = errors.New("execution reverted")

	// ErrBlockOutOfRange is returned when a block reference points past
	// the current chain head.
	ErrBlockOutOfRange = errors.New("block out of range")
)

// RevertError wraps an execution revert together with the raw return data,
// so the reason can be surfaced to the caller.
type RevertError struct {
	reason []byte
}

// NewRevertError returns a revert error carrying the given return data.
func NewRevertError(reason []byte) *RevertError {
	return &RevertError{reason: reason}
}

func (e *RevertError) Error() string {
	if len(e.reason) == 0 {
		return ErrExecutionReverted.Error()
	}
	return fmt.Sprintf("%s: %s", ErrExecutionReverted, hexutil.Encode(e.reason))
}

// Reason returns the raw revert payload.
func (e *RevertError) Reason() []byte { return e.reason }

func (e *RevertError) Unwrap() error { return ErrExecutionReverted }
