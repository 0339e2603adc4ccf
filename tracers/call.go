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
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/gavel-eth/gavel/core"
)

// CallConfig tunes the nested serialization.
type CallConfig struct {
	// TopCallOnly drops everything below the root frame.
	TopCallOnly bool
	// WithLogs includes the logs emitted inside each frame.
	WithLogs bool
}

// CallLog is a log entry attributed to the frame that emitted it.
type CallLog struct {
	Address  common.Address `json:"address"`
	Topics   []common.Hash  `json:"topics"`
	Data     hexutil.Bytes  `json:"data"`
	Position hexutil.Uint   `json:"position"`
}

// CallTrace is the nested serialization of a call tree: the tree shape is
// preserved and every frame reports its own gas window and outcome.
type CallTrace struct {
	Type    string         `json:"type"`
	From    common.Address `json:"from"`
	To      common.Address `json:"to,omitempty"`
	Value   *hexutil.Big   `json:"value,omitempty"`
	Gas     hexutil.Uint64 `json:"gas"`
	GasUsed hexutil.Uint64 `json:"gasUsed"`
	Input   hexutil.Bytes  `json:"input"`
	Output  hexutil.Bytes  `json:"output,omitempty"`
	Error   string         `json:"error,omitempty"`
	Logs    []CallLog      `json:"logs,omitempty"`
	Calls   []*CallTrace   `json:"calls,omitempty"`
}

// Nest serializes a call tree into its nested form.
func Nest(root *core.CallFrame, cfg *CallConfig) *CallTrace {
	if root == nil {
		return nil
	}
	if cfg == nil {
		cfg = &CallConfig{}
	}
	return nestFrame(root, cfg)
}

func nestFrame(f *core.CallFrame, cfg *CallConfig) *CallTrace {
	ct := &CallTrace{
		Type:    string(f.Kind),
		From:    f.From,
		To:      f.To,
		Gas:     hexutil.Uint64(f.Gas),
		GasUsed: hexutil.Uint64(f.GasUsed),
		Input:   f.Input,
		Output:  f.Output,
		Error:   f.Err,
	}
	if f.Value != nil {
		ct.Value = (*hexutil.Big)(f.Value.ToBig())
	}
	if cfg.WithLogs && f.Err == "" {
		ct.Logs = callLogs(f.Logs)
	}
	if cfg.TopCallOnly {
		return ct
	}
	for _, child := range f.Calls {
		ct.Calls = append(ct.Calls, nestFrame(child, cfg))
	}
	return ct
}

func callLogs(logs []*types.Log) []CallLog {
	out := make([]CallLog, 0, len(logs))
	for i, l := range logs {
		out = append(out, CallLog{
			Address:  l.Address,
			Topics:   l.Topics,
			Data:     l.Data,
			Position: hexutil.Uint(i),
		})
	}
	return out
}
