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

package tracers

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/gavel-eth/gavel/core"
)

// Action is the initiating half of a flat trace entry. Which fields are
// populated depends on the entry type: calls carry from/to/input, creations
// carry init, self-destructs carry the destructed address, the refund
// beneficiary and the swept balance.
type Action struct {
	CallType      string          `json:"callType,omitempty"`
	From          *common.Address `json:"from,omitempty"`
	To            *common.Address `json:"to,omitempty"`
	Gas           hexutil.Uint64  `json:"gas"`
	Value         *hexutil.Big    `json:"value,omitempty"`
	Input         hexutil.Bytes   `json:"input,omitempty"`
	Init          hexutil.Bytes   `json:"init,omitempty"`
	Address       *common.Address `json:"address,omitempty"`
	RefundAddress *common.Address `json:"refundAddress,omitempty"`
	Balance       *hexutil.Big    `json:"balance,omitempty"`
}

// ActionResult is the outcome half of a successful flat trace entry.
type ActionResult struct {
	GasUsed hexutil.Uint64  `json:"gasUsed"`
	Output  hexutil.Bytes   `json:"output,omitempty"`
	Address *common.Address `json:"address,omitempty"`
	Code    hexutil.Bytes   `json:"code,omitempty"`
}

// FlatTrace is one entry of the depth-first flattening of a call tree,
// addressed by its path from the root. Failed entries carry Error and no
// Result.
type FlatTrace struct {
	Type                string        `json:"type"`
	Action              Action        `json:"action"`
	Result              *ActionResult `json:"result,omitempty"`
	Error               string        `json:"error,omitempty"`
	Subtraces           int           `json:"subtraces"`
	TraceAddress        []int         `json:"traceAddress"`
	BlockHash           common.Hash   `json:"blockHash"`
	BlockNumber         uint64        `json:"blockNumber"`
	TransactionHash     common.Hash   `json:"transactionHash"`
	TransactionPosition uint64        `json:"transactionPosition"`
}

// from returns the initiating address of the entry, whatever its type.
func (ft *FlatTrace) from() *common.Address {
	if ft.Action.From != nil {
		return ft.Action.From
	}
	return ft.Action.Address
}

// destination returns the receiving address of the entry: the callee, the
// created contract or the refund beneficiary.
func (ft *FlatTrace) destination() *common.Address {
	switch {
	case ft.Action.To != nil:
		return ft.Action.To
	case ft.Result != nil && ft.Result.Address != nil:
		return ft.Result.Address
	case ft.Action.RefundAddress != nil:
		return ft.Action.RefundAddress
	}
	return nil
}

// Flatten serializes a call tree into its flat form, depth first, stamping
// every entry with the inclusion position of the traced transaction.
func Flatten(root *core.CallFrame, blockHash common.Hash, blockNumber uint64, txHash common.Hash, txIndex uint64) []*FlatTrace {
	if root == nil {
		return nil
	}
	var out []*FlatTrace
	var walk func(f *core.CallFrame, path []int)
	walk = func(f *core.CallFrame, path []int) {
		ft := flattenFrame(f)
		ft.TraceAddress = path
		ft.BlockHash = blockHash
		ft.BlockNumber = blockNumber
		ft.TransactionHash = txHash
		ft.TransactionPosition = txIndex
		out = append(out, ft)
		for i, child := range f.Calls {
			childPath := make([]int, len(path)+1)
			copy(childPath, path)
			childPath[len(path)] = i
			walk(child, childPath)
		}
	}
	walk(root, []int{})
	return out
}

func flattenFrame(f *core.CallFrame) *FlatTrace {
	from, to := f.From, f.To
	var value *hexutil.Big
	if f.Value != nil {
		value = (*hexutil.Big)(f.Value.ToBig())
	}
	switch f.Kind {
	case core.CallKindSelfDestruct:
		return &FlatTrace{
			Type: "suicide",
			Action: Action{
				Address:       &from,
				RefundAddress: &to,
				Balance:       value,
			},
			Subtraces: len(f.Calls),
		}
	case core.CallKindCreate:
		ft := &FlatTrace{
			Type: "create",
			Action: Action{
				From:  &from,
				Gas:   hexutil.Uint64(f.Gas),
				Value: value,
				Init:  f.Input,
			},
			Subtraces: len(f.Calls),
		}
		if f.Err != "" {
			ft.Error = f.Err
			return ft
		}
		ft.Result = &ActionResult{
			GasUsed: hexutil.Uint64(f.GasUsed),
			Code:    f.Output,
			Address: &to,
		}
		return ft
	default:
		ft := &FlatTrace{
			Type: "call",
			Action: Action{
				CallType: strings.ToLower(string(f.Kind)),
				From:     &from,
				To:       &to,
				Gas:      hexutil.Uint64(f.Gas),
				Value:    value,
				Input:    f.Input,
			},
			Subtraces: len(f.Calls),
		}
		if f.Err != "" {
			ft.Error = f.Err
			return ft
		}
		ft.Result = &ActionResult{
			GasUsed: hexutil.Uint64(f.GasUsed),
			Output:  f.Output,
		}
		return ft
	}
}
