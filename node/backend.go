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

// Package node assembles the chain, pool, miner, tracer and optional fork
// proxy into one in-process development node. All state mutation funnels
// through a single writer lock, so sealing, snapshots, cheats and reorgs
// never interleave.
package node

import (
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"

	"github.com/gavel-eth/gavel/core"
	"github.com/gavel-eth/gavel/core/state"
	"github.com/gavel-eth/gavel/core/txpool"
	"github.com/gavel-eth/gavel/evm"
	"github.com/gavel-eth/gavel/fork"
	"github.com/gavel-eth/gavel/miner"
	"github.com/gavel-eth/gavel/tracers"
)

// ErrBalanceOverflow is returned when a requested balance does not fit the
// 256-bit account balance representation.
var ErrBalanceOverflow = errors.New("balance exceeds 256 bits")

type snapshot struct {
	height   uint64
	state    *state.StateDB
	pool     []txpool.SavedTx
	mode     miner.Mode
	interval time.Duration
}

// Node is the assembled development chain.
type Node struct {
	config Config
	signer types.Signer

	stateMu sync.Mutex // single writer over chain state

	chain    *core.Blockchain
	pool     *txpool.Pool
	miner    *miner.Miner
	tracer   *tracers.Tracer
	engine   core.Engine
	accounts *accountRegistry
	forked   *fork.Backend // nil when not forking

	snapshots  map[uint64]*snapshot // guarded by stateMu
	nextSnapID uint64

	logger log.Logger
}

// New assembles and starts a node. When config.Fork is set, the world
// state is an overlay over the remote chain pinned at the fork height.
func New(config Config) (*Node, error) {
	cfg := config.sanitized()
	accounts, err := newAccountRegistry(cfg.Seed, cfg.Accounts)
	if err != nil {
		return nil, err
	}

	var (
		forked        *fork.Backend
		reader        state.Reader
		delegate      core.ForkDelegate
		genesisNumber uint64
		genesisParent common.Hash
		genesisTime   = cfg.GenesisTime
	)
	if cfg.Fork != nil {
		client, err := ethclient.Dial(cfg.Fork.URL)
		if err != nil {
			return nil, fmt.Errorf("dial fork upstream: %w", err)
		}
		pinned := cfg.Fork.BlockNumber
		if pinned == 0 {
			if pinned, err = client.BlockNumber(context.Background()); err != nil {
				return nil, fmt.Errorf("resolve fork height: %w", err)
			}
		}
		forked = fork.New(client, pinned, cfg.Fork.Timeout)
		pinBlock, err := forked.BlockByNumber(pinned)
		if err != nil {
			return nil, fmt.Errorf("fetch fork block %d: %w", pinned, err)
		}
		reader = forked.StateReader()
		delegate = forked
		genesisNumber = pinned + 1
		genesisParent = pinBlock.Hash()
		if genesisTime <= pinBlock.Time() {
			genesisTime = pinBlock.Time() + 1
		}
	}

	statedb := state.New(reader)
	balance, overflow := uint256.FromBig(cfg.AccountBalance)
	if overflow {
		return nil, ErrBalanceOverflow
	}
	for _, addr := range accounts.Accounts() {
		statedb.SetBalance(addr, balance.Clone())
	}
	statedb.Finalise()

	n := &Node{
		config:    cfg,
		signer:    types.LatestSignerForChainID(cfg.ChainID),
		accounts:  accounts,
		forked:    forked,
		snapshots: make(map[uint64]*snapshot),
		logger:    log.New("module", "node"),
	}
	n.chain = core.NewBlockchain(core.ChainSpec{
		ChainID:       cfg.ChainID,
		GenesisNumber: genesisNumber,
		GenesisParent: genesisParent,
		GenesisTime:   genesisTime,
		GasLimit:      cfg.GasLimit,
		BaseFee:       cfg.BaseFee,
		State:         statedb,
		Fork:          delegate,
		Lock:          &n.stateMu,
	})
	n.pool = txpool.New(txpool.DefaultConfig, cfg.ChainID, n.chain)
	n.engine = evm.New()
	n.tracer = tracers.New(n.chain, n.engine)
	n.miner = miner.New(&n.stateMu, n.chain, n.pool, n.engine, cfg.FeePolicy, miner.Config{
		GasLimit: cfg.GasLimit,
		Coinbase: cfg.Coinbase,
		Interval: cfg.Interval,
		Automine: cfg.Automine,
	})
	n.miner.Start()
	n.logger.Info("Node started", "chainid", cfg.ChainID, "accounts", cfg.Accounts, "forked", forked != nil)
	return n, nil
}

// Close stops block production.
func (n *Node) Close() {
	n.miner.Stop()
}

// Chain exposes the underlying ledger.
func (n *Node) Chain() *core.Blockchain { return n.chain }

// Pool exposes the transaction pool.
func (n *Node) Pool() *txpool.Pool { return n.pool }

// Miner exposes the block producer.
func (n *Node) Miner() *miner.Miner { return n.miner }

// Tracer exposes the replay tracer.
func (n *Node) Tracer() *tracers.Tracer { return n.tracer }

// Accounts lists the unlocked development accounts.
func (n *Node) Accounts() []common.Address { return n.accounts.Accounts() }

// ChainID returns the chain identifier.
func (n *Node) ChainID() *big.Int { return n.chain.ChainID() }

// SubmitTransaction admits a signed transaction into the pool.
func (n *Node) SubmitTransaction(tx *types.Transaction) (common.Hash, error) {
	return n.pool.Add(tx)
}

// SubmitUnsigned admits a transaction on behalf of from: signed with the
// development key when the account is unlocked, or verbatim when the
// sender is impersonated.
func (n *Node) SubmitUnsigned(tx *types.Transaction, from common.Address) (common.Hash, error) {
	if _, unlocked := n.accounts.Key(from); unlocked {
		signed, err := n.accounts.SignTx(from, tx, n.signer)
		if err != nil {
			return common.Hash{}, err
		}
		return n.pool.Add(signed)
	}
	if !n.accounts.Impersonated(from) {
		return common.Hash{}, fmt.Errorf("account %s is neither unlocked nor impersonated", from)
	}
	return n.pool.AddWithSender(tx, from)
}

// ImpersonateAccount allows from to send transactions without signatures.
func (n *Node) ImpersonateAccount(addr common.Address) {
	n.accounts.Impersonate(addr)
	n.logger.Info("Impersonating account", "address", addr)
}

// StopImpersonatingAccount revokes an impersonation.
func (n *Node) StopImpersonatingAccount(addr common.Address) {
	n.accounts.StopImpersonating(addr)
}

// SetAutoImpersonate treats every sender as impersonated while enabled.
func (n *Node) SetAutoImpersonate(enabled bool) {
	n.accounts.SetAutoImpersonate(enabled)
}

// GetBalance returns the balance of addr at the referenced block.
func (n *Node) GetBalance(addr common.Address, ref rpc.BlockNumber) (*big.Int, error) {
	number, err := n.chain.ResolveNumber(ref)
	if err != nil {
		return nil, err
	}
	if number < n.chain.GenesisNumber() {
		_, balance, _, _, err := n.forked.AccountAt(addr, number)
		if err != nil {
			return nil, err
		}
		return balance.ToBig(), nil
	}
	s, err := n.chain.StateAt(number)
	if err != nil {
		return nil, err
	}
	return s.GetBalance(addr).ToBig(), nil
}

// GetCode returns the code of addr at the referenced block.
func (n *Node) GetCode(addr common.Address, ref rpc.BlockNumber) ([]byte, error) {
	number, err := n.chain.ResolveNumber(ref)
	if err != nil {
		return nil, err
	}
	if number < n.chain.GenesisNumber() {
		_, _, code, _, err := n.forked.AccountAt(addr, number)
		return code, err
	}
	s, err := n.chain.StateAt(number)
	if err != nil {
		return nil, err
	}
	return s.GetCode(addr), nil
}

// GetStorageAt returns one storage slot of addr at the referenced block.
func (n *Node) GetStorageAt(addr common.Address, slot common.Hash, ref rpc.BlockNumber) (common.Hash, error) {
	number, err := n.chain.ResolveNumber(ref)
	if err != nil {
		return common.Hash{}, err
	}
	if number < n.chain.GenesisNumber() {
		return n.forked.StorageAt(addr, slot, number)
	}
	s, err := n.chain.StateAt(number)
	if err != nil {
		return common.Hash{}, err
	}
	return s.GetState(addr, slot), nil
}

// GetTransactionCount returns the nonce of addr at the referenced block.
func (n *Node) GetTransactionCount(addr common.Address, ref rpc.BlockNumber) (uint64, error) {
	if ref == rpc.PendingBlockNumber {
		// The pending nonce includes the contiguous pool run.
		return n.pool.Nonce(addr), nil
	}
	return n.chain.GetTransactionCount(addr, ref)
}

// GetBlockByNumber returns the block at the referenced height, consulting
// the fork for heights below the local genesis.
func (n *Node) GetBlockByNumber(ref rpc.BlockNumber) (*types.Block, error) {
	number, err := n.chain.ResolveNumber(ref)
	if err != nil {
		return nil, err
	}
	if number < n.chain.GenesisNumber() {
		return n.forked.BlockByNumber(number)
	}
	block := n.chain.GetBlockByNumber(number)
	if block == nil {
		return nil, fmt.Errorf("%w: block %d", core.ErrNotFound, number)
	}
	return block, nil
}

// GetBlockByHash returns a locally sealed block by hash.
func (n *Node) GetBlockByHash(hash common.Hash) (*types.Block, error) {
	block := n.chain.GetBlockByHash(hash)
	if block == nil {
		return nil, fmt.Errorf("%w: block %s", core.ErrNotFound, hash)
	}
	return block, nil
}

// GetTransaction looks up a mined transaction and its inclusion position.
func (n *Node) GetTransaction(hash common.Hash) (*types.Transaction, common.Hash, uint64, uint64, error) {
	return n.chain.GetTransaction(hash)
}

// GetTransactionInBlock returns the transaction at the given index of a
// locally sealed block.
func (n *Node) GetTransactionInBlock(blockHash common.Hash, index uint64) (*types.Transaction, error) {
	block := n.chain.GetBlockByHash(blockHash)
	if block == nil {
		return nil, fmt.Errorf("%w: block %s", core.ErrNotFound, blockHash)
	}
	if index >= uint64(len(block.Transactions())) {
		return nil, fmt.Errorf("%w: index %d in block of %d transactions", core.ErrNotFound, index, len(block.Transactions()))
	}
	return block.Transactions()[index], nil
}

// GetReceipt returns the receipt of a mined transaction.
func (n *Node) GetReceipt(hash common.Hash) (*types.Receipt, error) {
	return n.chain.GetReceipt(hash)
}

// GetLogs returns logs matching the filter over locally sealed blocks.
func (n *Node) GetLogs(q ethereum.FilterQuery) ([]*types.Log, error) {
	return n.chain.GetLogs(q)
}

// FeeHistory reports base fees and gas usage over a trailing block range.
func (n *Node) FeeHistory(blockCount uint64, last rpc.BlockNumber) (*core.FeeHistoryResult, error) {
	return n.chain.FeeHistory(blockCount, last)
}

// Call executes a message against the referenced block's state without
// committing anything and returns its output. Reverts carry the revert
// payload via RevertError.
func (n *Node) Call(msg *core.Message, ref rpc.BlockNumber) ([]byte, error) {
	res, err := n.execute(msg, ref)
	if err != nil {
		return nil, err
	}
	if res.Err != nil {
		if errors.Is(res.Err, core.ErrExecutionReverted) {
			return nil, core.NewRevertError(res.ReturnData)
		}
		return nil, res.Err
	}
	return res.ReturnData, nil
}

// EstimateGas executes the message and returns its gas use with headroom:
// the estimate is always strictly above the measured consumption so a
// transaction submitted with it does not run out on live state drift.
func (n *Node) EstimateGas(msg *core.Message, ref rpc.BlockNumber) (uint64, error) {
	res, err := n.execute(msg, ref)
	if err != nil {
		return 0, err
	}
	if res.Err != nil {
		if errors.Is(res.Err, core.ErrExecutionReverted) {
			return 0, core.NewRevertError(res.ReturnData)
		}
		return 0, res.Err
	}
	estimate := res.GasUsed + res.GasUsed/5 + 1000
	if limit := n.chain.CurrentHeader().GasLimit; estimate > limit {
		estimate = limit
	}
	return estimate, nil
}

func (n *Node) execute(msg *core.Message, ref rpc.BlockNumber) (*core.ExecutionResult, error) {
	number, err := n.chain.ResolveNumber(ref)
	if err != nil {
		return nil, err
	}
	block := n.chain.GetBlockByNumber(number)
	if block == nil {
		return nil, fmt.Errorf("%w: block %d", core.ErrNotFound, number)
	}
	statedb, err := n.chain.StateAt(number)
	if err != nil {
		return nil, err
	}
	call := *msg
	call.SkipNonceCheck = true
	if call.Gas == 0 {
		call.Gas = block.GasLimit()
	}
	if call.Value == nil {
		call.Value = new(uint256.Int)
	}
	if call.GasPrice == nil {
		call.GasPrice = new(uint256.Int)
	}
	ctx := &core.BlockContext{
		Number:   number + 1,
		Time:     block.Time() + 1,
		GasLimit: block.GasLimit(),
		Coinbase: block.Coinbase(),
	}
	ctx.BaseFee, _ = uint256.FromBig(block.BaseFee())

	gp := core.NewGasPool(block.GasLimit())
	return core.ApplyMessage(n.engine, statedb, gp, &call, ctx)
}

// SetBalance overrides an account balance in place. The change is visible
// immediately and survives into the next sealed block.
func (n *Node) SetBalance(addr common.Address, balance *big.Int) error {
	amount, overflow := uint256.FromBig(balance)
	if overflow {
		return ErrBalanceOverflow
	}
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	n.chain.State().SetBalance(addr, amount)
	n.chain.State().Finalise()
	return nil
}

// SetNonce overrides an account nonce in place.
func (n *Node) SetNonce(addr common.Address, nonce uint64) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	n.chain.State().SetNonce(addr, nonce)
	n.chain.State().Finalise()
}

// SetCode overrides an account's code in place.
func (n *Node) SetCode(addr common.Address, code []byte) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	n.chain.State().SetCode(addr, code)
	n.chain.State().Finalise()
}

// SetStorageAt overrides one storage slot in place.
func (n *Node) SetStorageAt(addr common.Address, slot, value common.Hash) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	n.chain.State().SetState(addr, slot, value)
	n.chain.State().Finalise()
}

// SetNextBlockTimestamp pins the timestamp of the next sealed block.
func (n *Node) SetNextBlockTimestamp(ts uint64) {
	n.miner.SetNextTimestamp(ts)
}

// IncreaseTime shifts the chain clock forward by the given seconds.
func (n *Node) IncreaseTime(seconds int64) {
	n.miner.IncreaseTime(seconds)
}

// Snapshot captures the chain height, world state, pool contents and
// mining mode and returns a handle to revert to. Handles are strictly
// increasing.
func (n *Node) Snapshot() uint64 {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	id := n.nextSnapID
	n.nextSnapID++
	n.snapshots[id] = &snapshot{
		height:   n.chain.CurrentBlock().NumberU64(),
		state:    n.chain.State().Copy(),
		pool:     n.pool.Save(),
		mode:     n.miner.Mode(),
		interval: n.miner.Interval(),
	}
	n.logger.Info("Snapshot taken", "id", id, "height", n.snapshots[id].height)
	return id
}

// RevertSnapshot restores the chain to a captured snapshot. The snapshot
// is consumed and every later snapshot is invalidated. It reports whether
// the handle was valid.
func (n *Node) RevertSnapshot(id uint64) bool {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	snap, ok := n.snapshots[id]
	if !ok {
		return false
	}
	if err := n.chain.RestoreTo(snap.height, snap.state); err != nil {
		n.logger.Error("Snapshot revert failed", "id", id, "err", err)
		return false
	}
	n.pool.Clear()
	n.pool.Restore(snap.pool)
	n.miner.RestoreMode(snap.mode, snap.interval)
	for sid := range n.snapshots {
		if sid >= id {
			delete(n.snapshots, sid)
		}
	}
	n.logger.Info("Snapshot reverted", "id", id, "height", snap.height)
	return true
}

// DumpState serializes the current world state.
func (n *Node) DumpState() ([]byte, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.chain.State().Dump()
}

// LoadState merges a serialized world state into the current one.
// Accounts present in the dump overwrite their local counterparts;
// everything else is untouched.
func (n *Node) LoadState(blob []byte) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.chain.State().LoadDump(blob)
}

// Rollback discards the newest depth blocks along with their transactions.
func (n *Node) Rollback(depth uint64) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	_, err := n.chain.Rollback(depth)
	return err
}

// ReorgTx injects a transaction into a rewritten block. Offset counts
// from the first rewritten height. A zero From is recovered from the
// signature; a non-zero From submits the transaction impersonated.
type ReorgTx struct {
	Tx     *types.Transaction
	From   common.Address
	Offset uint64
}

// Reorg rewinds depth blocks and re-seals the same heights on an
// alternative branch: the displaced transactions are requeued and mined
// again, optionally alongside injected ones, and the replacement blocks
// carry fresh seal salts so every rewritten height changes hash.
func (n *Node) Reorg(depth uint64, include []ReorgTx) ([]*types.Block, error) {
	type displaced struct {
		tx           *types.Transaction
		from         common.Address
		impersonated bool
	}
	// Background production is held off so no unsalted block can land at
	// a rewritten height between the rollback and the re-mine below.
	n.miner.Pause()
	defer n.miner.Resume()

	n.stateMu.Lock()
	head := n.chain.CurrentBlock().NumberU64()
	if depth == 0 || depth > head-n.chain.GenesisNumber() {
		n.stateMu.Unlock()
		return nil, fmt.Errorf("%w: reorg depth %d", core.ErrBlockOutOfRange, depth)
	}
	var entries []displaced
	for number := head - depth + 1; number <= head; number++ {
		block := n.chain.GetBlockByNumber(number)
		for _, tx := range block.Transactions() {
			from, err := n.chain.SenderOf(tx)
			if err != nil {
				n.logger.Warn("Dropping unattributable transaction from reorg", "hash", tx.Hash(), "err", err)
				continue
			}
			recovered, rerr := types.Sender(n.signer, tx)
			entries = append(entries, displaced{
				tx:           tx,
				from:         from,
				impersonated: rerr != nil || recovered != from,
			})
		}
	}
	if _, err := n.chain.Rollback(depth); err != nil {
		n.stateMu.Unlock()
		return nil, err
	}
	n.stateMu.Unlock()

	for _, e := range entries {
		n.pool.Requeue(e.tx, e.from, e.tx.Time(), e.impersonated)
	}
	blocks := make([]*types.Block, 0, depth)
	for i := uint64(0); i < depth; i++ {
		for _, inj := range include {
			if inj.Offset != i {
				continue
			}
			from, impersonated := inj.From, true
			if from == (common.Address{}) {
				recovered, err := types.Sender(n.signer, inj.Tx)
				if err != nil {
					return blocks, fmt.Errorf("reorg inclusion %s: %w", inj.Tx.Hash(), err)
				}
				from, impersonated = recovered, false
			}
			n.pool.Requeue(inj.Tx, from, time.Now(), impersonated)
		}
		salt := make([]byte, 8)
		if _, err := crand.Read(salt); err != nil {
			return blocks, err
		}
		block, err := n.miner.MineOne(miner.SealOptions{Extra: salt, Force: true})
		if err != nil {
			return blocks, err
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}

// Reset restores the node to its genesis state: all local blocks are
// unwound, the pool is emptied, snapshots are invalidated and the chain
// clock drift is cleared. With a nil forkCfg the existing fork, if any,
// stays pinned; a non-nil forkCfg repoints the node at the given
// upstream and height and reseals the genesis over the fresh fork state.
func (n *Node) Reset(forkCfg *fork.Config) error {
	if forkCfg == nil {
		n.stateMu.Lock()
		depth := n.chain.CurrentBlock().NumberU64() - n.chain.GenesisNumber()
		if depth > 0 {
			if _, err := n.chain.Rollback(depth); err != nil {
				n.stateMu.Unlock()
				return err
			}
		}
		n.snapshots = make(map[uint64]*snapshot)
		n.stateMu.Unlock()

		n.pool.Clear()
		n.miner.ResetTime()
		n.logger.Info("Node reset to genesis")
		return nil
	}

	client, err := ethclient.Dial(forkCfg.URL)
	if err != nil {
		return fmt.Errorf("dial fork upstream: %w", err)
	}
	pinned := forkCfg.BlockNumber
	if pinned == 0 {
		if pinned, err = client.BlockNumber(context.Background()); err != nil {
			return fmt.Errorf("resolve fork height: %w", err)
		}
	}
	if n.forked == nil {
		n.forked = fork.New(client, pinned, forkCfg.Timeout)
	} else {
		n.forked.Reset(client, pinned)
	}
	pinBlock, err := n.forked.BlockByNumber(pinned)
	if err != nil {
		return fmt.Errorf("fetch fork block %d: %w", pinned, err)
	}

	statedb := state.New(n.forked.StateReader())
	balance, overflow := uint256.FromBig(n.config.AccountBalance)
	if overflow {
		return ErrBalanceOverflow
	}
	for _, addr := range n.accounts.Accounts() {
		statedb.SetBalance(addr, balance.Clone())
	}
	statedb.Finalise()

	genesisTime := n.config.GenesisTime
	if genesisTime <= pinBlock.Time() {
		genesisTime = pinBlock.Time() + 1
	}
	n.stateMu.Lock()
	n.chain.ResetGenesis(core.ChainSpec{
		ChainID:       n.config.ChainID,
		GenesisNumber: pinned + 1,
		GenesisParent: pinBlock.Hash(),
		GenesisTime:   genesisTime,
		GasLimit:      n.config.GasLimit,
		BaseFee:       n.config.BaseFee,
		State:         statedb,
		Fork:          n.forked,
	})
	n.snapshots = make(map[uint64]*snapshot)
	n.stateMu.Unlock()

	n.pool.Clear()
	n.miner.ResetTime()
	n.logger.Info("Node reset onto fork", "pinned", pinned)
	return nil
}

// WaitForTransaction blocks until the transaction is mined or ctx ends.
func (n *Node) WaitForTransaction(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ch := make(chan core.ChainHeadEvent, 16)
	sub := n.chain.SubscribeChainHead(ch)
	defer sub.Unsubscribe()
	for {
		if receipt, err := n.chain.GetReceipt(hash); err == nil && receipt != nil {
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ch:
		case err := <-sub.Err():
			return nil, err
		}
	}
}

// Mine seals count blocks immediately, spacing timestamps by interval.
func (n *Node) Mine(count uint64, interval time.Duration) ([]*types.Block, error) {
	return n.miner.Mine(count, interval)
}

// SetAutomine toggles automatic sealing per admitted transaction batch.
func (n *Node) SetAutomine(enabled bool) {
	n.miner.SetAutomine(enabled)
}

// SetIntervalMining switches to timer-driven sealing every d; zero
// returns to manual mode.
func (n *Node) SetIntervalMining(d time.Duration) {
	n.miner.SetIntervalMining(d)
}

// SetGasLimit adjusts the gas limit of future blocks.
func (n *Node) SetGasLimit(limit uint64) {
	n.miner.SetGasLimit(limit)
}

// SetCoinbase changes the fee recipient of future blocks.
func (n *Node) SetCoinbase(addr common.Address) {
	n.miner.SetCoinbase(addr)
}
