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

// Package miner turns pool transactions into sealed blocks under one of
// three production policies: automine (a block per admitted batch),
// interval (timer driven) and manual (explicit mine calls only).
package miner

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"

	"github.com/holiman/uint256"

	"github.com/gavel-eth/gavel/core"
	"github.com/gavel-eth/gavel/core/state"
	"github.com/gavel-eth/gavel/core/txpool"
)

// ErrPaused is returned by Mine calls while production is held off.
var ErrPaused = errors.New("block production paused")

// Mode is the block production policy.
type Mode int

const (
	// ModeManual produces blocks only on explicit Mine calls.
	ModeManual Mode = iota
	// ModeAuto attempts a block whenever the pool receives transactions.
	ModeAuto
	// ModeInterval produces a block per timer tick, empty or not.
	ModeInterval
)

func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeInterval:
		return "interval"
	default:
		return "manual"
	}
}

// Config holds the adjustable sealing parameters.
type Config struct {
	GasLimit uint64
	Coinbase common.Address
	Interval time.Duration // zero disables interval mining
	Automine bool
}

// SealOptions tweak a single sealed block.
type SealOptions struct {
	Timestamp uint64 // explicit timestamp, 0 means policy-derived
	Extra     []byte // extra header bytes (reorg salt)
	Force     bool   // seal even while production is paused
}

// Miner drains the pool into sealed blocks appended to the chain. All
// sealing runs under the node state lock so production never interleaves
// with snapshots, rollbacks or submissions.
type Miner struct {
	stateMu *sync.Mutex // the node's single-writer lock, shared

	chain     *core.Blockchain
	pool      *txpool.Pool
	engine    core.Engine
	feePolicy core.FeePolicy

	mu            sync.Mutex // guards the fields below
	mode          Mode
	paused        bool
	interval      time.Duration
	gasLimit      uint64
	coinbase      common.Address
	nextTimestamp uint64 // one-shot timestamp override
	timeOffset    int64  // accumulated IncreaseTime drift

	resetCh chan struct{} // wakes the loop after a mode change
	exitCh  chan struct{}
	wg      sync.WaitGroup

	logger log.Logger
}

// New creates a miner. Start must be called before mode-driven production
// happens; explicit Mine calls work regardless.
func New(stateMu *sync.Mutex, chain *core.Blockchain, pool *txpool.Pool, engine core.Engine, feePolicy core.FeePolicy, config Config) *Miner {
	mode := ModeManual
	switch {
	case config.Interval > 0:
		mode = ModeInterval
	case config.Automine:
		mode = ModeAuto
	}
	return &Miner{
		stateMu:   stateMu,
		chain:     chain,
		pool:      pool,
		engine:    engine,
		feePolicy: feePolicy,
		mode:      mode,
		interval:  config.Interval,
		gasLimit:  config.GasLimit,
		coinbase:  config.Coinbase,
		resetCh:   make(chan struct{}, 1),
		exitCh:    make(chan struct{}),
		logger:    log.New("module", "miner"),
	}
}

// Start launches the production loop.
func (m *Miner) Start() {
	m.wg.Add(1)
	go m.loop()
}

// Stop terminates the production loop and waits for it to exit.
func (m *Miner) Stop() {
	close(m.exitCh)
	m.wg.Wait()
}

func (m *Miner) loop() {
	defer m.wg.Done()

	txsCh := make(chan core.NewTxsEvent, 64)
	txsSub := m.pool.SubscribeNewTxs(txsCh)
	defer txsSub.Unsubscribe()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	rearm := func() {
		timer.Stop()
		mode, interval := m.Mode(), m.Interval()
		if mode == ModeInterval && interval > 0 {
			timer.Reset(interval)
		}
	}
	rearm()

	for {
		select {
		case <-txsCh:
			if m.Mode() == ModeAuto && !m.isPaused() {
				if _, err := m.Mine(1, 0); err != nil && !errors.Is(err, ErrPaused) {
					m.logger.Error("Automine failed", "err", err)
				}
			}
		case <-timer.C:
			if m.Mode() == ModeInterval && !m.isPaused() {
				if _, err := m.Mine(1, 0); err != nil && !errors.Is(err, ErrPaused) {
					m.logger.Error("Interval mine failed", "err", err)
				}
			}
			rearm()
		case <-m.resetCh:
			rearm()
		case <-m.exitCh:
			return
		}
	}
}

// Mode returns the current production policy.
func (m *Miner) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// Interval returns the configured interval duration.
func (m *Miner) Interval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interval
}

// SetAutomine switches between automine and manual production. Enabling
// automine immediately drains any waiting transactions.
func (m *Miner) SetAutomine(enabled bool) {
	m.mu.Lock()
	if enabled {
		m.mode = ModeAuto
	} else {
		m.mode = ModeManual
	}
	m.mu.Unlock()
	m.kick()
	if enabled && m.pool.Len() > 0 {
		if _, err := m.Mine(1, 0); err != nil {
			m.logger.Error("Automine catch-up failed", "err", err)
		}
	}
}

// SetIntervalMining switches to timer-driven production every d. A zero
// duration returns the miner to manual mode.
func (m *Miner) SetIntervalMining(d time.Duration) {
	m.mu.Lock()
	if d > 0 {
		m.mode = ModeInterval
		m.interval = d
	} else {
		m.mode = ModeManual
		m.interval = 0
	}
	m.mu.Unlock()
	m.kick()
}

// Pause holds all block production off until Resume. Sealing requests
// that raced past the mode check fail with ErrPaused instead of landing
// a block; SealOptions.Force bypasses the gate.
func (m *Miner) Pause() {
	m.mu.Lock()
	m.paused = true
	m.mu.Unlock()
}

// Resume lifts a Pause.
func (m *Miner) Resume() {
	m.mu.Lock()
	m.paused = false
	m.mu.Unlock()
	m.kick()
}

func (m *Miner) isPaused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// RestoreMode reinstates a previously observed production policy. Unlike
// SetAutomine it never seals a catch-up block, so snapshot reverts do not
// mine on restore.
func (m *Miner) RestoreMode(mode Mode, interval time.Duration) {
	m.mu.Lock()
	m.mode = mode
	m.interval = interval
	m.mu.Unlock()
	m.kick()
}

func (m *Miner) kick() {
	select {
	case m.resetCh <- struct{}{}:
	default:
	}
}

// SetGasLimit adjusts the block gas limit for future blocks.
func (m *Miner) SetGasLimit(limit uint64) {
	m.mu.Lock()
	m.gasLimit = limit
	m.mu.Unlock()
}

// SetCoinbase changes the fee recipient for future blocks.
func (m *Miner) SetCoinbase(addr common.Address) {
	m.mu.Lock()
	m.coinbase = addr
	m.mu.Unlock()
}

// SetNextTimestamp pins the timestamp of the next sealed block.
func (m *Miner) SetNextTimestamp(ts uint64) {
	m.mu.Lock()
	m.nextTimestamp = ts
	m.mu.Unlock()
}

// IncreaseTime shifts the wall clock seen by future blocks forward.
func (m *Miner) IncreaseTime(seconds int64) {
	m.mu.Lock()
	m.timeOffset += seconds
	m.mu.Unlock()
}

// ResetTime clears the accumulated clock drift and any pending timestamp
// override.
func (m *Miner) ResetTime() {
	m.mu.Lock()
	m.nextTimestamp = 0
	m.timeOffset = 0
	m.mu.Unlock()
}

// Mine seals count blocks back to back, spacing their timestamps by
// interval. It always produces, regardless of the current mode.
func (m *Miner) Mine(count uint64, interval time.Duration) ([]*types.Block, error) {
	blocks := make([]*types.Block, 0, count)
	for i := uint64(0); i < count; i++ {
		var opts SealOptions
		if interval > 0 && i > 0 {
			opts.Timestamp = blocks[i-1].Time() + uint64(interval/time.Second)
		}
		block, err := m.MineOne(opts)
		if err != nil {
			return blocks, err
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}

// MineOne seals exactly one block.
func (m *Miner) MineOne(opts SealOptions) (*types.Block, error) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.sealBlock(opts)
}

// sealBlock assembles, executes and appends one block. The caller must
// hold the node state lock. On error nothing is committed: execution runs
// on a copy of the head state that is only installed on success.
func (m *Miner) sealBlock(opts SealOptions) (*types.Block, error) {
	parent := m.chain.CurrentBlock()

	m.mu.Lock()
	if m.paused && !opts.Force {
		m.mu.Unlock()
		return nil, ErrPaused
	}
	gasLimit := m.gasLimit
	coinbase := m.coinbase
	timestamp := opts.Timestamp
	if timestamp == 0 && m.nextTimestamp != 0 {
		timestamp = m.nextTimestamp
		m.nextTimestamp = 0
	}
	if timestamp == 0 {
		timestamp = uint64(time.Now().Unix() + m.timeOffset)
	}
	m.mu.Unlock()
	if timestamp <= parent.Time() {
		timestamp = parent.Time() + 1
	}

	baseFee := m.feePolicy.NextBaseFee(parent.Header())
	number := parent.NumberU64() + 1
	ctx := &core.BlockContext{
		Number:   number,
		Time:     timestamp,
		GasLimit: gasLimit,
		Coinbase: coinbase,
	}
	var overflow bool
	if ctx.BaseFee, overflow = uint256.FromBig(baseFee); overflow {
		return nil, fmt.Errorf("fee policy produced base fee beyond 256 bits")
	}

	workState := m.chain.State().Copy()
	delta := state.NewDelta()
	workState.StartRecording(delta)
	gp := core.NewGasPool(gasLimit)
	set := m.pool.Pending(baseFee)

	var (
		txs      types.Transactions
		senders  []common.Address
		receipts types.Receipts
		gasUsed  uint64
	)
	for !set.Empty() {
		tx, from := set.Peek()
		msg, err := core.TxToMessage(tx, from, baseFee)
		if err != nil {
			m.logger.Warn("Dropping unconvertible transaction", "hash", tx.Hash(), "err", err)
			set.Shift()
			continue
		}
		workState.SetTxContext(tx.Hash(), len(txs))
		res, err := core.ApplyMessage(m.engine, workState, gp, msg, ctx)
		switch {
		case errors.Is(err, core.ErrNonceTooLow):
			// Raced with an earlier inclusion; skip, the pool demotes it
			// when the block lands.
			m.logger.Debug("Skipping stale transaction", "hash", tx.Hash(), "from", from)
			set.Shift()
			continue
		case errors.Is(err, core.ErrNonceTooHigh):
			// A gap opened under this sender; everything behind it stays
			// queued for a later block.
			set.Pop()
			continue
		case errors.Is(err, core.ErrGasLimitReached):
			set.Pop()
			continue
		case errors.Is(err, core.ErrInsufficientFunds):
			set.Pop()
			continue
		case err != nil:
			// Engine-level failure: abort the whole block, commit nothing.
			return nil, fmt.Errorf("execution aborted block %d: %w", number, err)
		}
		workState.Finalise()
		res.Logs = workState.TakeLogs()
		gasUsed += res.GasUsed
		receipts = append(receipts, core.MakeReceipt(tx, res, msg, gasUsed, number, uint(len(txs))))
		txs = append(txs, tx)
		senders = append(senders, from)
		set.Shift()
	}
	workState.StopRecording()

	header := &types.Header{
		ParentHash:  parent.Hash(),
		UncleHash:   types.EmptyUncleHash,
		Coinbase:    coinbase,
		Root:        workState.SummaryHash(),
		TxHash:      deriveHash(txs),
		ReceiptHash: deriveReceiptsHash(receipts),
		Number:      new(big.Int).SetUint64(number),
		GasLimit:    gasLimit,
		GasUsed:     gasUsed,
		Time:        timestamp,
		Extra:       opts.Extra,
		BaseFee:     baseFee,
		Difficulty:  new(big.Int),
	}
	block := types.NewBlockWithHeader(header).WithBody(types.Body{Transactions: txs})

	m.chain.Append(block, receipts, senders, workState, delta)
	m.pool.Included(txs)
	return block, nil
}

// deriveHash folds the ordered transaction hashes into one digest. The
// chain never serves state proofs, so a keccak chain stands in for the
// canonical trie root while remaining a deterministic function of the
// body.
func deriveHash(txs types.Transactions) common.Hash {
	if len(txs) == 0 {
		return types.EmptyTxsHash
	}
	buf := make([]byte, 0, len(txs)*common.HashLength)
	for _, tx := range txs {
		h := tx.Hash()
		buf = append(buf, h.Bytes()...)
	}
	return crypto.Keccak256Hash(buf)
}

func deriveReceiptsHash(receipts types.Receipts) common.Hash {
	if len(receipts) == 0 {
		return types.EmptyReceiptsHash
	}
	buf := make([]byte, 0, len(receipts)*(common.HashLength+9))
	for _, r := range receipts {
		buf = append(buf, r.TxHash.Bytes()...)
		buf = append(buf, byte(r.Status))
		var gas [8]byte
		for i := 0; i < 8; i++ {
			gas[i] = byte(r.GasUsed >> (8 * i))
		}
		buf = append(buf, gas[:]...)
	}
	return crypto.Keccak256Hash(buf)
}
