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

	"github.com/ethereum/go-ethereum/core/types"
)

// FeePolicy decides the base fee of each new block. It is evaluated once
// per sealed block with the parent header.
type FeePolicy interface {
	NextBaseFee(parent *types.Header) *big.Int
}

// ConstantFee pins the base fee to a fixed value, the default policy of a
// development chain: fees never drift under load, so test assertions about
// costs stay stable.
type ConstantFee struct {
	Price *big.Int
}

// NextBaseFee implements FeePolicy.
func (c ConstantFee) NextBaseFee(*types.Header) *big.Int {
	return new(big.Int).Set(c.Price)
}

// ElasticFee adjusts the base fee from the parent's gas usage the way
// EIP-1559 does: above-target usage raises the fee, below-target usage
// lowers it, bounded by the change denominator. It must be configured
// explicitly; nothing selects it by default.
type ElasticFee struct {
	ElasticityMultiplier uint64
	BaseFeeChangeDenom   uint64
	MinimumBaseFee       *big.Int
	InitialBaseFee       *big.Int
}

// NextBaseFee implements FeePolicy.
func (e ElasticFee) NextBaseFee(parent *types.Header) *big.Int {
	if parent == nil || parent.BaseFee == nil {
		return new(big.Int).Set(e.InitialBaseFee)
	}
	target := parent.GasLimit / e.ElasticityMultiplier
	parentFee := parent.BaseFee
	switch {
	case parent.GasUsed == target:
		return new(big.Int).Set(parentFee)
	case parent.GasUsed > target:
		delta := new(big.Int).SetUint64(parent.GasUsed - target)
		delta.Mul(delta, parentFee)
		delta.Div(delta, new(big.Int).SetUint64(target))
		delta.Div(delta, new(big.Int).SetUint64(e.BaseFeeChangeDenom))
		if delta.Sign() == 0 {
			delta.SetUint64(1)
		}
		return delta.Add(parentFee, delta)
	default:
		delta := new(big.Int).SetUint64(target - parent.GasUsed)
		delta.Mul(delta, parentFee)
		delta.Div(delta, new(big.Int).SetUint64(target))
		delta.Div(delta, new(big.Int).SetUint64(e.BaseFeeChangeDenom))
		next := new(big.Int).Sub(parentFee, delta)
		if next.Cmp(e.MinimumBaseFee) < 0 {
			next.Set(e.MinimumBaseFee)
		}
		return next
	}
}
