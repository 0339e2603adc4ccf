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
	"math/big"
	"sync"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/gavel-eth/gavel/core/state"
)

// ForkDelegate serves chain data the local ledger does not own, i.e. blocks
// at or below the pinned fork height. Nil when the node is not forking.
type ForkDelegate interface {
	PinnedBlock() uint64
	NonceAt(addr common.Address, blockNumber uint64) (uint64, error)
	BlockByNumber(blockNumber uint64) (*types.Block, error)
	TransactionByHash(hash common.Hash) (*types.Transaction, error)
	ReceiptByHash(hash common.Hash) (*types.Receipt, error)
}

// ChainSpec parameterizes a fresh chain.
type ChainSpec struct {
	ChainID       *big.Int
	GenesisNumber uint64      // first local block number (fork height + 1 when forking)
	GenesisParent common.Hash // hash of the remote fork block, zero otherwise
	GenesisTime   uint64
	GasLimit      uint64
	BaseFee       *big.Int
	State         *state.StateDB // pre-funded world state
	Fork          ForkDelegate

	// Lock serializes access to the live world state. Every writer of the
	// head state must hold it; StateAt takes it while copying the head so
	// historical reads see a consistent point in time. Nil allocates a
	// private one.
	Lock *sync.Mutex
}

type txLookup struct {
	blockHash common.Hash
	index     uint64
}

// Blockchain is the append-only ledger plus the current world state. Blocks
// are indexed by number and hash; per-block undo deltas make any historical
// state reachable by rewinding a copy of the head.
//
// Writes arrive through stateMu, the single-writer lock shared with the
// block producer; StateAt takes it while copying the head. The internal
// RWMutex only protects the index maps, so block and receipt lookups never
// need the big lock.
type Blockchain struct {
	mu      sync.RWMutex
	stateMu *sync.Mutex // serializes live-state access; see ChainSpec.Lock

	chainID       *big.Int
	genesisNumber uint64

	blocks   []*types.Block // blocks[i] has number genesisNumber+i
	byHash   map[common.Hash]*types.Block
	receipts map[common.Hash]types.Receipts
	txs      map[common.Hash]txLookup
	senders  map[common.Hash]common.Address
	deltas   map[uint64]*state.Delta

	statedb      *state.StateDB
	pendingDelta *state.Delta // open recording since the last sealed block

	fork ForkDelegate

	chainHeadFeed  event.Feed
	rmLogsFeed     event.Feed
	chainResetFeed event.Feed
	logger         log.Logger
}

func sealGenesis(spec ChainSpec) *types.Block {
	header := &types.Header{
		ParentHash:  spec.GenesisParent,
		Number:      new(big.Int).SetUint64(spec.GenesisNumber),
		Time:        spec.GenesisTime,
		GasLimit:    spec.GasLimit,
		BaseFee:     new(big.Int).Set(spec.BaseFee),
		Difficulty:  new(big.Int),
		Root:        spec.State.SummaryHash(),
		TxHash:      types.EmptyTxsHash,
		ReceiptHash: types.EmptyReceiptsHash,
		UncleHash:   types.EmptyUncleHash,
	}
	return types.NewBlockWithHeader(header)
}

// NewBlockchain seals the genesis block over the given pre-state and
// returns a chain ready to append to.
func NewBlockchain(spec ChainSpec) *Blockchain {
	genesis := sealGenesis(spec)
	lock := spec.Lock
	if lock == nil {
		lock = new(sync.Mutex)
	}
	bc := &Blockchain{
		stateMu:       lock,
		chainID:       spec.ChainID,
		genesisNumber: spec.GenesisNumber,
		blocks:        []*types.Block{genesis},
		byHash:        map[common.Hash]*types.Block{genesis.Hash(): genesis},
		receipts:      make(map[common.Hash]types.Receipts),
		txs:           make(map[common.Hash]txLookup),
		senders:       make(map[common.Hash]common.Address),
		deltas:        make(map[uint64]*state.Delta),
		statedb:       spec.State,
		pendingDelta:  state.NewDelta(),
		fork:          spec.Fork,
		logger:        log.New("module", "chain"),
	}
	bc.statedb.StartRecording(bc.pendingDelta)
	bc.logger.Info("Chain initialized", "genesis", genesis.Hash(), "number", spec.GenesisNumber)
	return bc
}

// ResetGenesis discards the whole local history and reseals a fresh
// genesis over the given spec. The chain identifier and subscribers are
// kept. The caller must hold the node state lock.
func (bc *Blockchain) ResetGenesis(spec ChainSpec) {
	genesis := sealGenesis(spec)
	bc.mu.Lock()
	var (
		dropped     []common.Hash
		removedLogs []*types.Log
	)
	for i := len(bc.blocks) - 1; i > 0; i-- {
		block := bc.blocks[i]
		dropped = append(dropped, block.Hash())
		for _, receipt := range bc.receipts[block.Hash()] {
			removedLogs = append(removedLogs, receipt.Logs...)
		}
	}
	bc.genesisNumber = spec.GenesisNumber
	bc.blocks = []*types.Block{genesis}
	bc.byHash = map[common.Hash]*types.Block{genesis.Hash(): genesis}
	bc.receipts = make(map[common.Hash]types.Receipts)
	bc.txs = make(map[common.Hash]txLookup)
	bc.senders = make(map[common.Hash]common.Address)
	bc.deltas = make(map[uint64]*state.Delta)
	bc.statedb = spec.State
	bc.pendingDelta = state.NewDelta()
	bc.fork = spec.Fork
	bc.mu.Unlock()
	bc.statedb.StartRecording(bc.pendingDelta)
	if len(removedLogs) > 0 {
		bc.rmLogsFeed.Send(RemovedLogsEvent{Logs: removedLogs})
	}
	bc.chainResetFeed.Send(ChainResetEvent{Head: genesis, Dropped: dropped})
	bc.chainHeadFeed.Send(ChainHeadEvent{Block: genesis})
	bc.logger.Info("Chain reset", "genesis", genesis.Hash(), "number", spec.GenesisNumber)
}

// ChainID returns the chain identifier transactions must be signed for.
func (bc *Blockchain) ChainID() *big.Int { return bc.chainID }

// GenesisNumber returns the number of the first locally owned block.
func (bc *Blockchain) GenesisNumber() uint64 { return bc.genesisNumber }

// Fork returns the fork delegate, or nil when not forking.
func (bc *Blockchain) Fork() ForkDelegate { return bc.fork }

// CurrentBlock returns the head of the chain.
func (bc *Blockchain) CurrentBlock() *types.Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.blocks[len(bc.blocks)-1]
}

// CurrentHeader returns the header of the chain head.
func (bc *Blockchain) CurrentHeader() *types.Header {
	return bc.CurrentBlock().Header()
}

// Genesis returns the first locally owned block.
func (bc *Blockchain) Genesis() *types.Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.blocks[0]
}

// State returns the live head world state. The caller must hold the node
// state lock for any mutation.
func (bc *Blockchain) State() *state.StateDB {
	return bc.statedb
}

// ResolveNumber maps a block reference onto a concrete local block number.
// Literal references outside the chain fail with ErrNotFound; numbers below
// the genesis are only valid when a fork delegate owns them.
func (bc *Blockchain) ResolveNumber(ref rpc.BlockNumber) (uint64, error) {
	bc.mu.RLock()
	head := bc.blocks[len(bc.blocks)-1].NumberU64()
	bc.mu.RUnlock()
	switch {
	case ref == rpc.PendingBlockNumber, ref == rpc.LatestBlockNumber,
		ref == rpc.SafeBlockNumber, ref == rpc.FinalizedBlockNumber:
		return head, nil
	case ref == rpc.EarliestBlockNumber:
		return bc.genesisNumber, nil
	case ref < 0:
		return 0, fmt.Errorf("%w: block %d", ErrNotFound, ref)
	default:
		n := uint64(ref)
		if n > head {
			return 0, fmt.Errorf("%w: block %d past head %d", ErrNotFound, n, head)
		}
		if n < bc.genesisNumber && bc.fork == nil {
			return 0, fmt.Errorf("%w: block %d below genesis %d", ErrNotFound, n, bc.genesisNumber)
		}
		return n, nil
	}
}

// GetBlockByNumber retrieves a locally owned block, or nil when the number
// is out of the local range.
func (bc *Blockchain) GetBlockByNumber(number uint64) *types.Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	if number < bc.genesisNumber {
		return nil
	}
	idx := number - bc.genesisNumber
	if idx >= uint64(len(bc.blocks)) {
		return nil
	}
	return bc.blocks[idx]
}

// GetBlockByHash retrieves a locally owned block by hash, or nil.
func (bc *Blockchain) GetBlockByHash(hash common.Hash) *types.Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.byHash[hash]
}

// GetReceipts returns the receipts of a locally owned block.
func (bc *Blockchain) GetReceipts(blockHash common.Hash) types.Receipts {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.receipts[blockHash]
}

// GetReceipt returns the receipt of a mined transaction, consulting the
// fork delegate for transactions mined upstream.
func (bc *Blockchain) GetReceipt(txHash common.Hash) (*types.Receipt, error) {
	bc.mu.RLock()
	lookup, ok := bc.txs[txHash]
	if ok {
		receipts := bc.receipts[lookup.blockHash]
		bc.mu.RUnlock()
		if lookup.index < uint64(len(receipts)) {
			return receipts[lookup.index], nil
		}
		return nil, ErrNotFound
	}
	bc.mu.RUnlock()
	if bc.fork != nil {
		return bc.fork.ReceiptByHash(txHash)
	}
	return nil, ErrNotFound
}

// GetTransaction looks up a mined transaction with its inclusion position.
func (bc *Blockchain) GetTransaction(txHash common.Hash) (*types.Transaction, common.Hash, uint64, uint64, error) {
	bc.mu.RLock()
	lookup, ok := bc.txs[txHash]
	if ok {
		block := bc.byHash[lookup.blockHash]
		bc.mu.RUnlock()
		return block.Transactions()[lookup.index], lookup.blockHash, block.NumberU64(), lookup.index, nil
	}
	bc.mu.RUnlock()
	if bc.fork != nil {
		tx, err := bc.fork.TransactionByHash(txHash)
		if err != nil {
			return nil, common.Hash{}, 0, 0, err
		}
		receipt, err := bc.fork.ReceiptByHash(txHash)
		if err != nil {
			return nil, common.Hash{}, 0, 0, err
		}
		return tx, receipt.BlockHash, receipt.BlockNumber.Uint64(), uint64(receipt.TransactionIndex), nil
	}
	return nil, common.Hash{}, 0, 0, ErrNotFound
}

// SenderOf returns the sender of a locally mined transaction. Signature
// recovery is the fallback for transactions that predate the sender index.
func (bc *Blockchain) SenderOf(tx *types.Transaction) (common.Address, error) {
	bc.mu.RLock()
	from, ok := bc.senders[tx.Hash()]
	bc.mu.RUnlock()
	if ok {
		return from, nil
	}
	return types.Sender(types.LatestSignerForChainID(bc.chainID), tx)
}

// HasTransaction reports whether the transaction was mined locally.
func (bc *Blockchain) HasTransaction(txHash common.Hash) bool {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	_, ok := bc.txs[txHash]
	return ok
}

// Append seals a new head: the block, its receipts, the senders of its
// transactions in order, the world state after executing it and the undo
// delta recorded during execution. The open between-block delta (explicit
// state overrides since the previous seal) is folded into the block's
// delta so rewinds stay exact. Senders are kept alongside the lookup index
// because impersonated transactions carry unrecoverable signatures.
func (bc *Blockchain) Append(block *types.Block, receipts types.Receipts, senders []common.Address, newState *state.StateDB, delta *state.Delta) {
	bc.mu.Lock()
	head := bc.blocks[len(bc.blocks)-1]
	if block.ParentHash() != head.Hash() {
		bc.logger.Crit("Ledger corruption: appended block does not extend head",
			"head", head.Hash(), "parent", block.ParentHash(), "number", block.NumberU64())
	}
	if block.NumberU64() != head.NumberU64()+1 {
		bc.logger.Crit("Ledger corruption: non-contiguous block number",
			"head", head.NumberU64(), "block", block.NumberU64())
	}
	bc.statedb.StopRecording()
	pending := bc.pendingDelta
	pending.Merge(delta)

	bc.blocks = append(bc.blocks, block)
	bc.byHash[block.Hash()] = block
	bc.deltas[block.NumberU64()] = pending

	var logs []*types.Log
	logIndex := uint(0)
	for i, receipt := range receipts {
		receipt.BlockHash = block.Hash()
		receipt.BlockNumber = block.Number()
		receipt.TransactionIndex = uint(i)
		for _, l := range receipt.Logs {
			l.BlockHash = block.Hash()
			l.BlockNumber = block.NumberU64()
			l.Index = logIndex
			logIndex++
			logs = append(logs, l)
		}
		txHash := block.Transactions()[i].Hash()
		bc.txs[txHash] = txLookup{blockHash: block.Hash(), index: uint64(i)}
		if i < len(senders) {
			bc.senders[txHash] = senders[i]
		}
	}
	bc.receipts[block.Hash()] = receipts

	bc.statedb = newState
	bc.pendingDelta = state.NewDelta()
	bc.statedb.StartRecording(bc.pendingDelta)
	bc.mu.Unlock()

	bc.logger.Info("Sealed block", "number", block.NumberU64(), "hash", block.Hash(),
		"txs", len(block.Transactions()), "gas", block.GasUsed())
	bc.chainHeadFeed.Send(ChainHeadEvent{Block: block, Logs: logs})
}

// StateAt reconstructs the world state as of the given block number by
// rewinding a copy of the head through the recorded deltas. The head
// number returns the live state (including open state overrides) copied.
// The copy is taken under the state lock, so concurrent writers cannot
// interleave with it; callers must not hold that lock themselves.
func (bc *Blockchain) StateAt(number uint64) (*state.StateDB, error) {
	bc.stateMu.Lock()
	defer bc.stateMu.Unlock()
	bc.mu.RLock()
	head := bc.blocks[len(bc.blocks)-1].NumberU64()
	if number > head {
		bc.mu.RUnlock()
		return nil, fmt.Errorf("%w: block %d past head %d", ErrNotFound, number, head)
	}
	if number < bc.genesisNumber {
		bc.mu.RUnlock()
		return nil, fmt.Errorf("%w: block %d below genesis %d", ErrNotFound, number, bc.genesisNumber)
	}
	s := bc.statedb.Copy()
	if number == head {
		bc.mu.RUnlock()
		return s, nil
	}
	bc.pendingDelta.Unapply(s)
	for n := head; n > number; n-- {
		if d := bc.deltas[n]; d != nil {
			d.Unapply(s)
		}
	}
	bc.mu.RUnlock()
	return s, nil
}

// GetTransactionCount returns the account nonce as of the referenced block.
// Heights below the local genesis are served by the fork delegate.
func (bc *Blockchain) GetTransactionCount(addr common.Address, ref rpc.BlockNumber) (uint64, error) {
	number, err := bc.ResolveNumber(ref)
	if err != nil {
		return 0, err
	}
	if number < bc.genesisNumber {
		return bc.fork.NonceAt(addr, number)
	}
	s, err := bc.StateAt(number)
	if err != nil {
		return 0, err
	}
	return s.GetNonce(addr), nil
}

// Rollback discards the last depth sealed blocks, rewinding the world
// state to the moment immediately before them. Open state overrides are
// discarded with the blocks. It returns the removed blocks, newest first.
func (bc *Blockchain) Rollback(depth uint64) ([]*types.Block, error) {
	bc.mu.Lock()
	head := bc.blocks[len(bc.blocks)-1].NumberU64()
	if depth == 0 {
		bc.mu.Unlock()
		return nil, nil
	}
	if depth > head-bc.genesisNumber {
		bc.mu.Unlock()
		return nil, fmt.Errorf("%w: rollback depth %d exceeds chain length %d", ErrBlockOutOfRange, depth, head-bc.genesisNumber)
	}
	bc.statedb.StopRecording()
	bc.pendingDelta.Unapply(bc.statedb)

	removed := make([]*types.Block, 0, depth)
	var (
		dropped     []common.Hash
		removedLogs []*types.Log
	)
	for n := head; n > head-depth; n-- {
		block := bc.blocks[len(bc.blocks)-1]
		bc.blocks = bc.blocks[:len(bc.blocks)-1]
		delete(bc.byHash, block.Hash())
		for _, tx := range block.Transactions() {
			delete(bc.txs, tx.Hash())
			delete(bc.senders, tx.Hash())
		}
		for _, receipt := range bc.receipts[block.Hash()] {
			removedLogs = append(removedLogs, receipt.Logs...)
		}
		delete(bc.receipts, block.Hash())
		if d := bc.deltas[n]; d != nil {
			d.Unapply(bc.statedb)
			delete(bc.deltas, n)
		}
		removed = append(removed, block)
		dropped = append(dropped, block.Hash())
	}
	bc.pendingDelta = state.NewDelta()
	bc.statedb.StartRecording(bc.pendingDelta)
	newHead := bc.blocks[len(bc.blocks)-1]
	bc.mu.Unlock()

	bc.logger.Info("Chain rolled back", "depth", depth, "head", newHead.NumberU64())
	if len(removedLogs) > 0 {
		bc.rmLogsFeed.Send(RemovedLogsEvent{Logs: removedLogs})
	}
	bc.chainResetFeed.Send(ChainResetEvent{Head: newHead, Dropped: dropped})
	bc.chainHeadFeed.Send(ChainHeadEvent{Block: newHead})
	return removed, nil
}

// RestoreTo rewinds the chain to the given height and replaces the world
// state wholesale. Used by snapshot revert, where an exact captured state
// exists and replaying deltas would be redundant.
func (bc *Blockchain) RestoreTo(height uint64, snapshot *state.StateDB) error {
	bc.mu.Lock()
	head := bc.blocks[len(bc.blocks)-1].NumberU64()
	if height > head || height < bc.genesisNumber {
		bc.mu.Unlock()
		return fmt.Errorf("%w: restore height %d not in [%d,%d]", ErrBlockOutOfRange, height, bc.genesisNumber, head)
	}
	var (
		dropped     []common.Hash
		removedLogs []*types.Log
	)
	for n := head; n > height; n-- {
		block := bc.blocks[len(bc.blocks)-1]
		bc.blocks = bc.blocks[:len(bc.blocks)-1]
		delete(bc.byHash, block.Hash())
		for _, tx := range block.Transactions() {
			delete(bc.txs, tx.Hash())
			delete(bc.senders, tx.Hash())
		}
		for _, receipt := range bc.receipts[block.Hash()] {
			removedLogs = append(removedLogs, receipt.Logs...)
		}
		delete(bc.receipts, block.Hash())
		delete(bc.deltas, n)
		dropped = append(dropped, block.Hash())
	}
	bc.statedb.StopRecording()
	bc.statedb = snapshot
	bc.pendingDelta = state.NewDelta()
	bc.statedb.StartRecording(bc.pendingDelta)
	newHead := bc.blocks[len(bc.blocks)-1]
	bc.mu.Unlock()

	bc.logger.Info("Chain restored", "height", height)
	if len(removedLogs) > 0 {
		bc.rmLogsFeed.Send(RemovedLogsEvent{Logs: removedLogs})
	}
	bc.chainResetFeed.Send(ChainResetEvent{Head: newHead, Dropped: dropped})
	bc.chainHeadFeed.Send(ChainHeadEvent{Block: newHead})
	return nil
}

// FeeHistoryResult is the per-block fee information over a trailing range.
type FeeHistoryResult struct {
	OldestBlock  uint64
	BaseFees     []*big.Int
	GasUsedRatio []float64
}

// FeeHistory reports base fees and gas-used ratios for up to blockCount
// blocks ending at last.
func (bc *Blockchain) FeeHistory(blockCount uint64, last rpc.BlockNumber) (*FeeHistoryResult, error) {
	end, err := bc.ResolveNumber(last)
	if err != nil {
		return nil, err
	}
	if blockCount == 0 {
		return &FeeHistoryResult{OldestBlock: end}, nil
	}
	start := bc.genesisNumber
	if end >= blockCount && end-blockCount+1 > start {
		start = end - blockCount + 1
	}
	res := &FeeHistoryResult{OldestBlock: start}
	for n := start; n <= end; n++ {
		block := bc.GetBlockByNumber(n)
		if block == nil {
			return nil, fmt.Errorf("%w: block %d", ErrNotFound, n)
		}
		baseFee := block.BaseFee()
		if baseFee == nil {
			baseFee = new(big.Int)
		}
		res.BaseFees = append(res.BaseFees, baseFee)
		ratio := 0.0
		if block.GasLimit() > 0 {
			ratio = float64(block.GasUsed()) / float64(block.GasLimit())
		}
		res.GasUsedRatio = append(res.GasUsedRatio, ratio)
	}
	return res, nil
}

// GetLogs returns the logs matching the filter query over locally owned
// blocks. Nil from/to bounds default to the genesis and head respectively.
func (bc *Blockchain) GetLogs(q ethereum.FilterQuery) ([]*types.Log, error) {
	var from, to uint64
	if q.BlockHash != nil {
		block := bc.GetBlockByHash(*q.BlockHash)
		if block == nil {
			return nil, fmt.Errorf("%w: block %s", ErrNotFound, q.BlockHash)
		}
		from, to = block.NumberU64(), block.NumberU64()
	} else {
		from = bc.genesisNumber
		if q.FromBlock != nil {
			n, err := bc.ResolveNumber(rpc.BlockNumber(q.FromBlock.Int64()))
			if err != nil {
				return nil, err
			}
			from = n
		}
		head := bc.CurrentBlock().NumberU64()
		to = head
		if q.ToBlock != nil {
			n, err := bc.ResolveNumber(rpc.BlockNumber(q.ToBlock.Int64()))
			if err != nil {
				return nil, err
			}
			to = n
		}
		if from > to {
			return nil, fmt.Errorf("%w: inverted range [%d,%d]", ErrBlockOutOfRange, from, to)
		}
	}
	var out []*types.Log
	for n := from; n <= to; n++ {
		block := bc.GetBlockByNumber(n)
		if block == nil {
			continue
		}
		for _, receipt := range bc.GetReceipts(block.Hash()) {
			for _, l := range receipt.Logs {
				if matchLog(l, q) {
					out = append(out, l)
				}
			}
		}
	}
	return out, nil
}

func matchLog(l *types.Log, q ethereum.FilterQuery) bool {
	if len(q.Addresses) > 0 {
		found := false
		for _, addr := range q.Addresses {
			if addr == l.Address {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	// Positional topic filter: each position is an OR-list, nil matches any.
	if len(q.Topics) > len(l.Topics) {
		return false
	}
	for i, alternatives := range q.Topics {
		if len(alternatives) == 0 {
			continue
		}
		match := false
		for _, topic := range alternatives {
			if l.Topics[i] == topic {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}
	return true
}

// SubscribeChainHead subscribes to sealed-block notifications.
func (bc *Blockchain) SubscribeChainHead(ch chan<- ChainHeadEvent) event.Subscription {
	return bc.chainHeadFeed.Subscribe(ch)
}

// SubscribeRemovedLogs subscribes to logs discarded by rollbacks, reorgs
// and snapshot reverts.
func (bc *Blockchain) SubscribeRemovedLogs(ch chan<- RemovedLogsEvent) event.Subscription {
	return bc.rmLogsFeed.Subscribe(ch)
}

// SubscribeChainReset subscribes to head-rewind notifications.
func (bc *Blockchain) SubscribeChainReset(ch chan<- ChainResetEvent) event.Subscription {
	return bc.chainResetFeed.Subscribe(ch)
}
