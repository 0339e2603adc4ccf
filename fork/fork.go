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

// Package fork proxies reads of remote chain state for a node forked off a
// live network. Everything at or below the pinned height is finalized
// upstream, so cache entries are immutable and live for the node's
// lifetime. Concurrent first reads of the same key are coalesced into one
// upstream call.
package fork

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	"golang.org/x/sync/singleflight"

	"github.com/gavel-eth/gavel/core/state"
)

var (
	// ErrUpstreamUnavailable wraps transport failures talking to the
	// remote endpoint. The request fails; the node stays healthy.
	ErrUpstreamUnavailable = errors.New("fork upstream unavailable")

	// ErrConversionFailed is returned when a remote value does not fit
	// the node's internal representation.
	ErrConversionFailed = errors.New("fork value conversion failed")

	// ErrBeyondFork is returned for reads above the pinned fork height,
	// which the local chain owns.
	ErrBeyondFork = errors.New("block beyond fork point")
)

// Client is the subset of the upstream RPC surface the fork backend
// consumes. *ethclient.Client implements it.
type Client interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	StorageAt(ctx context.Context, account common.Address, key common.Hash, blockNumber *big.Int) ([]byte, error)
	BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

var _ Client = (*ethclient.Client)(nil)

// Config describes where and at which height to fork.
type Config struct {
	URL         string
	BlockNumber uint64
	Timeout     time.Duration
}

// DefaultTimeout bounds each upstream fetch.
const DefaultTimeout = 30 * time.Second

type account struct {
	nonce   uint64
	balance *uint256.Int
	code    []byte
	exists  bool
}

// Backend is the cache-through proxy to the remote chain.
type Backend struct {
	client  Client
	pinned  uint64
	timeout time.Duration

	mu       sync.RWMutex
	accounts map[string]*account
	slots    map[string]common.Hash
	blocks   map[uint64]*types.Block
	txs      map[common.Hash]*types.Transaction
	receipts map[common.Hash]*types.Receipt

	group  singleflight.Group
	logger log.Logger
}

// New creates a fork backend pinned at the given remote height.
func New(client Client, pinned uint64, timeout time.Duration) *Backend {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	b := &Backend{
		client:  client,
		pinned:  pinned,
		timeout: timeout,
		logger:  log.New("module", "fork"),
	}
	b.resetCaches()
	return b
}

func (b *Backend) resetCaches() {
	b.accounts = make(map[string]*account)
	b.slots = make(map[string]common.Hash)
	b.blocks = make(map[uint64]*types.Block)
	b.txs = make(map[common.Hash]*types.Transaction)
	b.receipts = make(map[common.Hash]*types.Receipt)
}

// PinnedBlock returns the remote height the fork is frozen at.
func (b *Backend) PinnedBlock() uint64 { return b.pinned }

// Reset atomically repoints the backend at a new client and height,
// discarding every cached entry. A nil client disables the backend; all
// further reads fail upstream-unavailable.
func (b *Backend) Reset(client Client, pinned uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.client = client
	b.pinned = pinned
	b.resetCaches()
	b.logger.Info("Fork reset", "pinned", pinned, "enabled", client != nil)
}

func (b *Backend) callCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), b.timeout)
}

func (b *Backend) checkHeight(blockNumber uint64) error {
	if blockNumber > b.pinned {
		return fmt.Errorf("%w: %d > %d", ErrBeyondFork, blockNumber, b.pinned)
	}
	return nil
}

// AccountAt fetches (or serves from cache) the remote account at the
// given height. ok is false when the account does not exist upstream;
// that answer is cached too.
func (b *Backend) AccountAt(addr common.Address, blockNumber uint64) (nonce uint64, balance *uint256.Int, code []byte, ok bool, err error) {
	if err := b.checkHeight(blockNumber); err != nil {
		return 0, nil, nil, false, err
	}
	key := fmt.Sprintf("acct/%d/%s", blockNumber, addr.Hex())
	b.mu.RLock()
	if acct, hit := b.accounts[key]; hit {
		b.mu.RUnlock()
		return acct.nonce, acct.balance.Clone(), acct.code, acct.exists, nil
	}
	b.mu.RUnlock()

	v, err, _ := b.group.Do(key, func() (interface{}, error) {
		b.mu.RLock()
		if acct, hit := b.accounts[key]; hit {
			b.mu.RUnlock()
			return acct, nil
		}
		client := b.client
		b.mu.RUnlock()
		if client == nil {
			return nil, ErrUpstreamUnavailable
		}
		ctx, cancel := b.callCtx()
		defer cancel()
		height := new(big.Int).SetUint64(blockNumber)
		bal, err := client.BalanceAt(ctx, addr, height)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
		}
		balance, overflow := uint256.FromBig(bal)
		if overflow {
			return nil, fmt.Errorf("%w: balance of %s exceeds 256 bits", ErrConversionFailed, addr)
		}
		nonce, err := client.NonceAt(ctx, addr, height)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
		}
		code, err := client.CodeAt(ctx, addr, height)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
		}
		acct := &account{
			nonce:   nonce,
			balance: balance,
			code:    code,
			exists:  nonce != 0 || balance.Sign() != 0 || len(code) != 0,
		}
		b.mu.Lock()
		b.accounts[key] = acct
		b.mu.Unlock()
		return acct, nil
	})
	if err != nil {
		return 0, nil, nil, false, err
	}
	acct := v.(*account)
	return acct.nonce, acct.balance.Clone(), acct.code, acct.exists, nil
}

// NonceAt returns the remote account nonce at the given height.
func (b *Backend) NonceAt(addr common.Address, blockNumber uint64) (uint64, error) {
	nonce, _, _, _, err := b.AccountAt(addr, blockNumber)
	return nonce, err
}

// StorageAt fetches one storage slot at the given height.
func (b *Backend) StorageAt(addr common.Address, slot common.Hash, blockNumber uint64) (common.Hash, error) {
	if err := b.checkHeight(blockNumber); err != nil {
		return common.Hash{}, err
	}
	key := fmt.Sprintf("slot/%d/%s/%s", blockNumber, addr.Hex(), slot.Hex())
	b.mu.RLock()
	if val, hit := b.slots[key]; hit {
		b.mu.RUnlock()
		return val, nil
	}
	b.mu.RUnlock()

	v, err, _ := b.group.Do(key, func() (interface{}, error) {
		b.mu.RLock()
		if val, hit := b.slots[key]; hit {
			b.mu.RUnlock()
			return val, nil
		}
		client := b.client
		b.mu.RUnlock()
		if client == nil {
			return nil, ErrUpstreamUnavailable
		}
		ctx, cancel := b.callCtx()
		defer cancel()
		raw, err := client.StorageAt(ctx, addr, slot, new(big.Int).SetUint64(blockNumber))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
		}
		val := common.BytesToHash(raw)
		b.mu.Lock()
		b.slots[key] = val
		b.mu.Unlock()
		return val, nil
	})
	if err != nil {
		return common.Hash{}, err
	}
	return v.(common.Hash), nil
}

// BlockByNumber fetches a remote block at or below the fork point.
func (b *Backend) BlockByNumber(blockNumber uint64) (*types.Block, error) {
	if err := b.checkHeight(blockNumber); err != nil {
		return nil, err
	}
	b.mu.RLock()
	if block, hit := b.blocks[blockNumber]; hit {
		b.mu.RUnlock()
		return block, nil
	}
	b.mu.RUnlock()

	key := fmt.Sprintf("block/%d", blockNumber)
	v, err, _ := b.group.Do(key, func() (interface{}, error) {
		b.mu.RLock()
		if block, hit := b.blocks[blockNumber]; hit {
			b.mu.RUnlock()
			return block, nil
		}
		client := b.client
		b.mu.RUnlock()
		if client == nil {
			return nil, ErrUpstreamUnavailable
		}
		ctx, cancel := b.callCtx()
		defer cancel()
		block, err := client.BlockByNumber(ctx, new(big.Int).SetUint64(blockNumber))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
		}
		b.mu.Lock()
		b.blocks[blockNumber] = block
		b.mu.Unlock()
		return block, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*types.Block), nil
}

// TransactionByHash fetches a mined remote transaction.
func (b *Backend) TransactionByHash(hash common.Hash) (*types.Transaction, error) {
	b.mu.RLock()
	if tx, hit := b.txs[hash]; hit {
		b.mu.RUnlock()
		return tx, nil
	}
	client := b.client
	b.mu.RUnlock()
	if client == nil {
		return nil, ErrUpstreamUnavailable
	}
	key := "tx/" + hash.Hex()
	v, err, _ := b.group.Do(key, func() (interface{}, error) {
		ctx, cancel := b.callCtx()
		defer cancel()
		tx, pending, err := client.TransactionByHash(ctx, hash)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
		}
		if pending {
			return nil, fmt.Errorf("%w: transaction %s not finalized upstream", ErrUpstreamUnavailable, hash)
		}
		b.mu.Lock()
		b.txs[hash] = tx
		b.mu.Unlock()
		return tx, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*types.Transaction), nil
}

// ReceiptByHash fetches the receipt of a mined remote transaction.
func (b *Backend) ReceiptByHash(hash common.Hash) (*types.Receipt, error) {
	b.mu.RLock()
	if receipt, hit := b.receipts[hash]; hit {
		b.mu.RUnlock()
		return receipt, nil
	}
	client := b.client
	b.mu.RUnlock()
	if client == nil {
		return nil, ErrUpstreamUnavailable
	}
	key := "receipt/" + hash.Hex()
	v, err, _ := b.group.Do(key, func() (interface{}, error) {
		ctx, cancel := b.callCtx()
		defer cancel()
		receipt, err := client.TransactionReceipt(ctx, hash)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
		}
		b.mu.Lock()
		b.receipts[hash] = receipt
		b.mu.Unlock()
		return receipt, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*types.Receipt), nil
}

// stateReader adapts the backend to the world state's fallback interface,
// pinned at the fork height.
type stateReader struct {
	backend *Backend
}

// StateReader returns a state fallback reader serving the pinned height.
func (b *Backend) StateReader() state.Reader {
	return &stateReader{backend: b}
}

func (r *stateReader) Account(addr common.Address) (uint64, *uint256.Int, []byte, bool, error) {
	return r.backend.AccountAt(addr, r.backend.PinnedBlock())
}

func (r *stateReader) Storage(addr common.Address, slot common.Hash) (common.Hash, error) {
	return r.backend.StorageAt(addr, slot, r.backend.PinnedBlock())
}
