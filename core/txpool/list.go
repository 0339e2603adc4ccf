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
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// pooledTx wraps an admitted transaction with its resolved sender, the
// admission time used for deterministic tie breaking, and whether the
// sender authorized it by impersonation instead of signature.
type pooledTx struct {
	tx           *types.Transaction
	from         common.Address
	time         time.Time
	impersonated bool
}

// list is a nonce-sorted queue of transactions belonging to one sender.
// Transactions are held in a map keyed by nonce with a lazily maintained
// sorted index, the shape of the legacy pool's sortedMap.
type list struct {
	items map[uint64]*pooledTx
	index []uint64 // sorted nonces, rebuilt when stale
	stale bool
}

func newList() *list {
	return &list{items: make(map[uint64]*pooledTx)}
}

func (l *list) Len() int { return len(l.items) }

// Get returns the transaction with the given nonce, or nil.
func (l *list) Get(nonce uint64) *pooledTx {
	return l.items[nonce]
}

// Put inserts a transaction, overwriting any previous entry at the same
// nonce. Replacement pricing is the pool's concern, not the list's.
func (l *list) Put(tx *pooledTx) {
	nonce := tx.tx.Nonce()
	if _, ok := l.items[nonce]; !ok {
		l.stale = true
	}
	l.items[nonce] = tx
}

// Remove deletes the transaction with the given nonce, reporting whether
// something was removed.
func (l *list) Remove(nonce uint64) bool {
	if _, ok := l.items[nonce]; !ok {
		return false
	}
	delete(l.items, nonce)
	l.stale = true
	return true
}

func (l *list) sorted() []uint64 {
	if l.stale {
		l.index = l.index[:0]
		for nonce := range l.items {
			l.index = append(l.index, nonce)
		}
		sort.Slice(l.index, func(i, j int) bool { return l.index[i] < l.index[j] })
		l.stale = false
	}
	return l.index
}

// Ready returns the contiguous run of transactions executable from the
// given account nonce, in ascending nonce order. A gap ends the run.
func (l *list) Ready(start uint64) []*pooledTx {
	var ready []*pooledTx
	next := start
	for _, nonce := range l.sorted() {
		if nonce < next {
			continue
		}
		if nonce > next {
			break
		}
		ready = append(ready, l.items[nonce])
		next++
	}
	return ready
}

// Forward drops all transactions with a nonce below the threshold,
// returning the dropped entries.
func (l *list) Forward(threshold uint64) []*pooledTx {
	var dropped []*pooledTx
	for _, nonce := range l.sorted() {
		if nonce >= threshold {
			break
		}
		dropped = append(dropped, l.items[nonce])
		delete(l.items, nonce)
		l.stale = true
	}
	return dropped
}

// Flatten returns all transactions in ascending nonce order.
func (l *list) Flatten() []*pooledTx {
	out := make([]*pooledTx, 0, len(l.items))
	for _, nonce := range l.sorted() {
		out = append(out, l.items[nonce])
	}
	return out
}

// LastNonce returns the highest nonce held, valid only when Len() > 0.
func (l *list) LastNonce() uint64 {
	idx := l.sorted()
	return idx[len(idx)-1]
}
