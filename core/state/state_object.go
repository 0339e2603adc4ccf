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

package state

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// stateObject represents an account which is being modified.
//
// Unlike a trie backed account there is no pending/committed split: the
// object is the account. Storage is a plain slot map and the code is held
// inline, which is all a single-process development chain needs.
type stateObject struct {
	address  common.Address
	balance  *uint256.Int
	nonce    uint64
	code     []byte
	codeHash common.Hash
	storage  map[common.Hash]common.Hash

	// remote marks an object materialized from the fork overlay. Slot
	// reads that miss locally are allowed to fall through upstream.
	remote bool

	// fetched records storage slots already resolved through the fork
	// overlay, so a zero-valued remote slot is not re-fetched.
	fetched map[common.Hash]struct{}

	// selfDestructed is transient within a transaction; the finalise
	// step zeroes the account instead of deleting it.
	selfDestructed bool
}

func newObject(addr common.Address) *stateObject {
	return &stateObject{
		address:  addr,
		balance:  new(uint256.Int),
		codeHash: types.EmptyCodeHash,
		storage:  make(map[common.Hash]common.Hash),
	}
}

func (s *stateObject) empty() bool {
	return s.nonce == 0 && s.balance.IsZero() && s.codeHash == types.EmptyCodeHash
}

func (s *stateObject) setCode(code []byte) {
	s.code = code
	if len(code) == 0 {
		s.codeHash = types.EmptyCodeHash
	} else {
		s.codeHash = crypto.Keccak256Hash(code)
	}
}

// zero clears the account in place. Accounts are never removed from the
// state map once created; a self-destruct leaves a tombstone with empty
// fields so historical deltas stay addressable.
func (s *stateObject) zero() {
	s.balance = new(uint256.Int)
	s.nonce = 0
	s.code = nil
	s.codeHash = types.EmptyCodeHash
	s.storage = make(map[common.Hash]common.Hash)
	s.selfDestructed = false
}

func (s *stateObject) copy() *stateObject {
	obj := &stateObject{
		address:  s.address,
		balance:  new(uint256.Int).Set(s.balance),
		nonce:    s.nonce,
		codeHash: s.codeHash,
		storage:  make(map[common.Hash]common.Hash, len(s.storage)),
		remote:   s.remote,
	}
	if s.code != nil {
		obj.code = common.CopyBytes(s.code)
	}
	for k, v := range s.storage {
		obj.storage[k] = v
	}
	if s.fetched != nil {
		obj.fetched = make(map[common.Hash]struct{}, len(s.fetched))
		for k := range s.fetched {
			obj.fetched[k] = struct{}{}
		}
	}
	return obj
}
