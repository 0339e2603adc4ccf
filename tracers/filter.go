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
	"errors"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
)

// MaxFilterBlocks bounds the block span one filter request may scan.
// Tracing is replay, so a filter over N blocks re-executes N blocks.
const MaxFilterBlocks = 300

var (
	// ErrInvalidRange rejects inverted or out-of-chain filter ranges.
	ErrInvalidRange = errors.New("invalid trace filter range")
	// ErrRangeTooLarge rejects filter ranges spanning more than
	// MaxFilterBlocks blocks.
	ErrRangeTooLarge = fmt.Errorf("trace filter range exceeds %d blocks", MaxFilterBlocks)
)

// FilterMode selects how the from and to address predicates combine.
type FilterMode int

const (
	// FilterUnion matches traces satisfying either address predicate.
	FilterUnion FilterMode = iota
	// FilterIntersection matches traces satisfying both predicates; an
	// empty list is satisfied by every trace.
	FilterIntersection
)

// FilterRequest selects traces over a block range. A zero ToBlock means
// the chain head. Empty address lists with both predicates unset match
// everything.
type FilterRequest struct {
	FromBlock   uint64
	ToBlock     uint64
	FromAddress []common.Address
	ToAddress   []common.Address
	Mode        FilterMode
	After       uint64 // entries to skip
	Count       uint64 // entries to return, 0 means all
}

// TraceFilter scans the requested range and returns the matching flat
// traces in chain order. The range is validated in full before any block
// is replayed.
func (t *Tracer) TraceFilter(req FilterRequest) ([]*FlatTrace, error) {
	head := t.chain.CurrentBlock().NumberU64()
	from := req.FromBlock
	if from < t.chain.GenesisNumber() {
		from = t.chain.GenesisNumber()
	}
	to := req.ToBlock
	if to == 0 {
		to = head
	}
	if from > to {
		return nil, fmt.Errorf("%w: [%d,%d]", ErrInvalidRange, from, to)
	}
	if to-from+1 > MaxFilterBlocks {
		return nil, ErrRangeTooLarge
	}
	if to > head {
		return nil, fmt.Errorf("%w: end %d past head %d", ErrInvalidRange, to, head)
	}

	fromSet := mapset.NewSet(req.FromAddress...)
	toSet := mapset.NewSet(req.ToAddress...)
	match := func(ft *FlatTrace) bool {
		if fromSet.Cardinality() == 0 && toSet.Cardinality() == 0 {
			return true
		}
		src, dst := ft.from(), ft.destination()
		fromHit := fromSet.Cardinality() > 0 && src != nil && fromSet.Contains(*src)
		toHit := toSet.Cardinality() > 0 && dst != nil && toSet.Contains(*dst)
		if req.Mode == FilterUnion {
			return fromHit || toHit
		}
		// Intersection: an unset predicate is satisfied vacuously.
		if fromSet.Cardinality() > 0 && !fromHit {
			return false
		}
		if toSet.Cardinality() > 0 && !toHit {
			return false
		}
		return true
	}

	var (
		out     []*FlatTrace
		skipped uint64
	)
	for n := from; n <= to; n++ {
		block := t.chain.GetBlockByNumber(n)
		if block == nil || len(block.Transactions()) == 0 {
			continue
		}
		results, err := t.executeBlock(block, len(block.Transactions()))
		if err != nil {
			return nil, err
		}
		for i, res := range results {
			for _, ft := range Flatten(res.Trace, block.Hash(), n, block.Transactions()[i].Hash(), uint64(i)) {
				if !match(ft) {
					continue
				}
				if skipped < req.After {
					skipped++
					continue
				}
				out = append(out, ft)
				if req.Count > 0 && uint64(len(out)) == req.Count {
					return out, nil
				}
			}
		}
	}
	return out, nil
}
