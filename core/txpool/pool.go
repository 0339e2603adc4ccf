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

package txpool

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"

	"github.com/gavel-eth/gavel/core"
	"github.com/gavel-eth/gavel/core/state"
)

// BlockChain supplies the pool with the chain context admission checks
// need: the head header for gas limits and the head state for nonces and
// balances.
type BlockChain interface {
	CurrentHeader() *types.Header
	State() *state.StateDB
}

// Config are the admission parameters of the pool.
type Config struct {
	PriceLimit   uint64 // minimum effective gas price to accept
	PriceBump    uint64 // minimum price bump percentage to replace a same-nonce transaction
	GlobalSlots  int    // maximum number of transactions in the pool
	AccountSlots int    // maximum number of transactions per account
}

// DefaultConfig contains the default configurations for the transaction
// pool.
var DefaultConfig = Config{
	PriceLimit:   1,
	PriceBump:    10,
	GlobalSlots:  10240,
	AccountSlots: 1024,
}

func (c Config) sanitized() Config {
	if c.PriceBump == 0 {
		c.PriceBump = DefaultConfig.PriceBump
	}
	if c.GlobalSlots == 0 {
		c.GlobalSlots = DefaultConfig.GlobalSlots
	}
	if c.AccountSlots == 0 {
		c.AccountSlots = DefaultConfig.AccountSlots
	}
	return c
}

// SavedTx is the portable form of a pool entry, used by node snapshots to
// capture and restore pool contents exactly.
type SavedTx struct {
	Tx           *types.Transaction
	From         common.Address
	Time         time.Time
	Impersonated bool
}

// Pool holds transactions admitted but not yet included in a sealed
// block, ordered for block production.
type Pool struct {
	mu     sync.RWMutex
	config Config
	signer types.Signer
	chain  BlockChain

	pending map[common.Address]*list
	all     map[common.Hash]*pooledTx

	txFeed event.Feed
	logger log.Logger
}

// New creates a transaction pool bound to the given chain.
func New(config Config, chainID *big.Int, chain BlockChain) *Pool {
	return &Pool{
		config:  config.sanitized(),
		signer:  types.LatestSignerForChainID(chainID),
		chain:   chain,
		pending: make(map[common.Address]*list),
		all:     make(map[common.Hash]*pooledTx),
		logger:  log.New("module", "txpool"),
	}
}

// Add validates a signed transaction and admits it into the pool,
// returning its hash.
func (p *Pool) Add(tx *types.Transaction) (common.Hash, error) {
	from, err := types.Sender(p.signer, tx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", ErrInvalidSender, err)
	}
	return p.add(tx, from, false)
}

// AddWithSender admits a transaction on behalf of an impersonated sender,
// bypassing signature recovery. The caller vouches for the authorization.
func (p *Pool) AddWithSender(tx *types.Transaction, from common.Address) (common.Hash, error) {
	return p.add(tx, from, true)
}

func (p *Pool) add(tx *types.Transaction, from common.Address, impersonated bool) (common.Hash, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	hash := tx.Hash()
	if _, ok := p.all[hash]; ok {
		return common.Hash{}, ErrAlreadyKnown
	}
	head := p.chain.CurrentHeader()
	if tx.Gas() > head.GasLimit {
		return common.Hash{}, ErrGasLimit
	}
	if tx.GasFeeCapIntCmp(new(big.Int).SetUint64(p.config.PriceLimit)) < 0 {
		return common.Hash{}, ErrUnderpriced
	}
	statedb := p.chain.State()
	if tx.Nonce() < statedb.GetNonce(from) {
		return common.Hash{}, fmt.Errorf("%w: address %v, tx: %d state: %d",
			core.ErrNonceTooLow, from, tx.Nonce(), statedb.GetNonce(from))
	}
	if statedb.GetBalance(from).ToBig().Cmp(tx.Cost()) < 0 {
		return common.Hash{}, fmt.Errorf("%w: address %v", core.ErrInsufficientFunds, from)
	}

	queue := p.pending[from]
	if queue == nil {
		queue = newList()
		p.pending[from] = queue
	}
	entry := &pooledTx{tx: tx, from: from, time: time.Now(), impersonated: impersonated}
	if old := queue.Get(tx.Nonce()); old != nil {
		if !priceBumped(old.tx, tx, p.config.PriceBump) {
			return common.Hash{}, ErrReplaceUnderpriced
		}
		// A replacement inherits the original admission time, keeping
		// price-tie ordering stable across resubmissions.
		entry.time = old.time
		delete(p.all, old.tx.Hash())
		p.logger.Debug("Replaced pending transaction", "old", old.tx.Hash(), "new", hash)
	} else {
		if len(p.all) >= p.config.GlobalSlots {
			return common.Hash{}, ErrTxPoolOverflow
		}
		if queue.Len() >= p.config.AccountSlots {
			return common.Hash{}, ErrTxPoolOverflow
		}
	}
	queue.Put(entry)
	p.all[hash] = entry

	p.logger.Debug("Admitted transaction", "hash", hash, "from", from, "nonce", tx.Nonce())
	p.txFeed.Send(core.NewTxsEvent{Txs: []*types.Transaction{tx}})
	return hash, nil
}

// priceBumped reports whether the replacement pays at least the required
// percentage more than the original, on both the fee cap and the tip.
func priceBumped(old, repl *types.Transaction, bump uint64) bool {
	threshold := func(price *big.Int) *big.Int {
		t := new(big.Int).Mul(price, new(big.Int).SetUint64(100+bump))
		return t.Div(t, big.NewInt(100))
	}
	if repl.GasFeeCap().Cmp(threshold(old.GasFeeCap())) < 0 {
		return false
	}
	return repl.GasTipCap().Cmp(threshold(old.GasTipCap())) >= 0
}

// Pending returns the executable transactions grouped per sender and
// merged by effective fee under the given base fee. The returned set is a
// point-in-time snapshot; concurrent pool mutations do not affect it.
func (p *Pool) Pending(baseFee *big.Int) *PendingSet {
	p.mu.RLock()
	defer p.mu.RUnlock()

	statedb := p.chain.State()
	ready := make(map[common.Address][]*pooledTx, len(p.pending))
	for from, queue := range p.pending {
		if txs := queue.Ready(statedb.GetNonce(from)); len(txs) > 0 {
			ready[from] = txs
		}
	}
	return newPendingSet(ready, baseFee)
}

// Get returns a pooled transaction by hash, or nil.
func (p *Pool) Get(hash common.Hash) *types.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if entry, ok := p.all[hash]; ok {
		return entry.tx
	}
	return nil
}

// Has reports whether the pool holds the given transaction.
func (p *Pool) Has(hash common.Hash) bool {
	return p.Get(hash) != nil
}

// Sender returns the resolved sender of a pooled transaction.
func (p *Pool) Sender(hash common.Hash) (common.Address, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if entry, ok := p.all[hash]; ok {
		return entry.from, true
	}
	return common.Address{}, false
}

// Impersonated reports whether the pooled transaction was admitted via
// impersonation.
func (p *Pool) Impersonated(hash common.Hash) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	entry, ok := p.all[hash]
	return ok && entry.impersonated
}

// Nonce returns the next free nonce of an account, taking the contiguous
// pending run into account.
func (p *Pool) Nonce(addr common.Address) uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	next := p.chain.State().GetNonce(addr)
	if queue := p.pending[addr]; queue != nil {
		for _, entry := range queue.Ready(next) {
			next = entry.tx.Nonce() + 1
		}
	}
	return next
}

// Drop removes a single transaction from the pool.
func (p *Pool) Drop(hash common.Hash) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.all[hash]
	if !ok {
		return false
	}
	delete(p.all, hash)
	if queue := p.pending[entry.from]; queue != nil {
		queue.Remove(entry.tx.Nonce())
		if queue.Len() == 0 {
			delete(p.pending, entry.from)
		}
	}
	return true
}

// Clear removes every transaction from the pool.
func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = make(map[common.Address]*list)
	p.all = make(map[common.Hash]*pooledTx)
}

// RemoveBySender removes all transactions of one sender, returning how
// many were dropped.
func (p *Pool) RemoveBySender(addr common.Address) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	queue := p.pending[addr]
	if queue == nil {
		return 0
	}
	dropped := 0
	for _, entry := range queue.Flatten() {
		delete(p.all, entry.tx.Hash())
		dropped++
	}
	delete(p.pending, addr)
	return dropped
}

// Included removes mined transactions and, per affected sender, demotes
// everything made unexecutable by the advanced account nonce.
func (p *Pool) Included(txs []*types.Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	statedb := p.chain.State()
	senders := make(map[common.Address]struct{})
	for _, tx := range txs {
		entry, ok := p.all[tx.Hash()]
		if !ok {
			continue
		}
		delete(p.all, tx.Hash())
		if queue := p.pending[entry.from]; queue != nil {
			queue.Remove(tx.Nonce())
		}
		senders[entry.from] = struct{}{}
	}
	for from := range senders {
		queue := p.pending[from]
		if queue == nil {
			continue
		}
		for _, stale := range queue.Forward(statedb.GetNonce(from)) {
			delete(p.all, stale.tx.Hash())
		}
		if queue.Len() == 0 {
			delete(p.pending, from)
		}
	}
}

// Requeue puts a transaction skipped during block assembly back into the
// pool, preserving its original admission time.
func (p *Pool) Requeue(tx *types.Transaction, from common.Address, admitted time.Time, impersonated bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.all[tx.Hash()]; ok {
		return
	}
	queue := p.pending[from]
	if queue == nil {
		queue = newList()
		p.pending[from] = queue
	}
	entry := &pooledTx{tx: tx, from: from, time: admitted, impersonated: impersonated}
	queue.Put(entry)
	p.all[tx.Hash()] = entry
}

// Content returns all pooled transactions grouped by sender, nonce-sorted.
func (p *Pool) Content() map[common.Address][]*types.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[common.Address][]*types.Transaction, len(p.pending))
	for from, queue := range p.pending {
		for _, entry := range queue.Flatten() {
			out[from] = append(out[from], entry.tx)
		}
	}
	return out
}

// ContentFrom returns the nonce-sorted pooled transactions of one sender.
func (p *Pool) ContentFrom(addr common.Address) []*types.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	queue := p.pending[addr]
	if queue == nil {
		return nil
	}
	entries := queue.Flatten()
	out := make([]*types.Transaction, len(entries))
	for i, entry := range entries {
		out[i] = entry.tx
	}
	return out
}

// Len returns the number of pooled transactions.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.all)
}

// Save captures the exact pool contents for a node snapshot.
func (p *Pool) Save() []SavedTx {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]SavedTx, 0, len(p.all))
	for _, queue := range p.pending {
		for _, entry := range queue.Flatten() {
			out = append(out, SavedTx{Tx: entry.tx, From: entry.from, Time: entry.time, Impersonated: entry.impersonated})
		}
	}
	return out
}

// Restore replaces the pool contents with a previously saved capture.
func (p *Pool) Restore(saved []SavedTx) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = make(map[common.Address]*list)
	p.all = make(map[common.Hash]*pooledTx)
	for _, s := range saved {
		queue := p.pending[s.From]
		if queue == nil {
			queue = newList()
			p.pending[s.From] = queue
		}
		entry := &pooledTx{tx: s.Tx, from: s.From, time: s.Time, impersonated: s.Impersonated}
		queue.Put(entry)
		p.all[s.Tx.Hash()] = entry
	}
}

// SubscribeNewTxs subscribes to transaction admission events.
func (p *Pool) SubscribeNewTxs(ch chan<- core.NewTxsEvent) event.Subscription {
	return p.txFeed.Subscribe(ch)
}
