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
	"container/heap"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

// txWithFee wraps a transaction with the effective per-gas fee it pays
// under the base fee of the block being assembled.
type txWithFee struct {
	tx  *pooledTx
	fee *uint256.Int
}

func newTxWithFee(tx *pooledTx, baseFee *big.Int) *txWithFee {
	fee := new(big.Int).Set(tx.tx.GasPrice())
	if baseFee != nil && tx.tx.Type() == types.DynamicFeeTxType {
		fee = new(big.Int).Add(tx.tx.GasTipCap(), baseFee)
		if fee.Cmp(tx.tx.GasFeeCap()) > 0 {
			fee.Set(tx.tx.GasFeeCap())
		}
	}
	f, overflow := uint256.FromBig(fee)
	if overflow {
		f = new(uint256.Int).SetAllOne()
	}
	return &txWithFee{tx: tx, fee: f}
}

// txByPriceAndTime implements both the sort and the heap interface, making
// it useful for all at once sorting as well as individually adding and
// removing elements.
type txByPriceAndTime []*txWithFee

func (s txByPriceAndTime) Len() int { return len(s) }
func (s txByPriceAndTime) Less(i, j int) bool {
	// If the prices are equal, use the admission time for deterministic
	// ordering.
	cmp := s[i].fee.Cmp(s[j].fee)
	if cmp == 0 {
		return s[i].tx.time.Before(s[j].tx.time)
	}
	return cmp > 0
}
func (s txByPriceAndTime) Swap(i, j int) { s[i], s[j] = s[j], s[i] }

func (s *txByPriceAndTime) Push(x interface{}) {
	*s = append(*s, x.(*txWithFee))
}

func (s *txByPriceAndTime) Pop() interface{} {
	old := *s
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*s = old[0 : n-1]
	return x
}

// PendingSet returns price-sorted transactions in a nonce-honouring way:
// per sender the nonce order is preserved, across senders the head
// transactions compete on effective fee. Shift advances within a sender,
// Pop abandons a sender entirely.
type PendingSet struct {
	txs     map[common.Address][]*pooledTx
	heads   txByPriceAndTime
	baseFee *big.Int
}

func newPendingSet(txs map[common.Address][]*pooledTx, baseFee *big.Int) *PendingSet {
	heads := make(txByPriceAndTime, 0, len(txs))
	for from, accTxs := range txs {
		if len(accTxs) == 0 {
			delete(txs, from)
			continue
		}
		heads = append(heads, newTxWithFee(accTxs[0], baseFee))
		txs[from] = accTxs[1:]
	}
	heap.Init(&heads)
	return &PendingSet{txs: txs, heads: heads, baseFee: baseFee}
}

// Peek returns the next transaction by price, without removing it.
func (p *PendingSet) Peek() (*types.Transaction, common.Address) {
	if len(p.heads) == 0 {
		return nil, common.Address{}
	}
	head := p.heads[0]
	return head.tx.tx, head.tx.from
}

// Shift replaces the current best head with the next one from the same
// account.
func (p *PendingSet) Shift() {
	if len(p.heads) == 0 {
		return
	}
	acc := p.heads[0].tx.from
	if txs := p.txs[acc]; len(txs) > 0 {
		p.heads[0] = newTxWithFee(txs[0], p.baseFee)
		p.txs[acc] = txs[1:]
		heap.Fix(&p.heads, 0)
		return
	}
	heap.Pop(&p.heads)
}

// Pop removes the best transaction and all remaining ones from the same
// account. Used when a transaction cannot be executed, which makes every
// later nonce of that sender unexecutable too.
func (p *PendingSet) Pop() {
	if len(p.heads) == 0 {
		return
	}
	delete(p.txs, p.heads[0].tx.from)
	heap.Pop(&p.heads)
}

// Empty reports whether the set has been exhausted.
func (p *PendingSet) Empty() bool {
	return len(p.heads) == 0
}
