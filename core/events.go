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
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// NewTxsEvent is posted when a batch of transactions enters the pool.
type NewTxsEvent struct{ Txs []*types.Transaction }

// ChainHeadEvent is posted when a new block has been sealed and appended.
type ChainHeadEvent struct {
	Block *types.Block
	Logs  []*types.Log
}

// RemovedLogsEvent is posted when a reorg or rollback discards blocks.
type RemovedLogsEvent struct{ Logs []*types.Log }

// ChainResetEvent is posted when the chain is rewound below its previous
// head, by rollback, reorg or snapshot revert.
type ChainResetEvent struct {
	Head    *types.Block
	Dropped []common.Hash
}
