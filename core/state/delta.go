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
	"github.com/holiman/uint256"
)

// Delta is the undo record for one block: the pre-image of every account
// field and storage slot first touched while the delta was recording.
// Applying a delta to the head state rewinds it across that block, which is
// how both Rollback and historical state reconstruction work.
type Delta struct {
	accounts map[common.Address]*accountDelta
}

type accountDelta struct {
	existed bool // account existed before the block
	balance *uint256.Int
	nonce   uint64
	code    []byte
	storage map[common.Hash]common.Hash
}

// NewDelta returns an empty recording target.
func NewDelta() *Delta {
	return &Delta{accounts: make(map[common.Address]*accountDelta)}
}

// Empty reports whether nothing was touched while recording.
func (d *Delta) Empty() bool {
	return len(d.accounts) == 0
}

func (d *Delta) account(obj *stateObject, existed bool) *accountDelta {
	if ad, ok := d.accounts[obj.address]; ok {
		return ad
	}
	ad := &accountDelta{
		existed: existed,
		storage: make(map[common.Hash]common.Hash),
	}
	if existed {
		ad.balance = new(uint256.Int).Set(obj.balance)
		ad.nonce = obj.nonce
		ad.code = common.CopyBytes(obj.code)
	}
	d.accounts[obj.address] = ad
	return ad
}

func (d *Delta) noteCreate(obj *stateObject) {
	d.account(obj, false)
}

func (d *Delta) noteTouch(obj *stateObject) {
	d.account(obj, true)
}

func (d *Delta) noteStorage(obj *stateObject, key, prev common.Hash) {
	ad := d.account(obj, true)
	if _, ok := ad.storage[key]; !ok {
		ad.storage[key] = prev
	}
}

// Merge folds a later delta into d. Pre-images already present in d win:
// d captured the state earlier, so its snapshot of a field predates the
// other's.
func (d *Delta) Merge(other *Delta) {
	if other == nil {
		return
	}
	for addr, oad := range other.accounts {
		ad, ok := d.accounts[addr]
		if !ok {
			d.accounts[addr] = oad
			continue
		}
		for key, prev := range oad.storage {
			if _, ok := ad.storage[key]; !ok {
				ad.storage[key] = prev
			}
		}
	}
}

// Unapply rewinds the delta on s, restoring every recorded pre-image.
// Accounts that did not exist before the block are removed outright; this
// is an undo of their creation, not a deletion of live state.
func (d *Delta) Unapply(s *StateDB) {
	for addr, ad := range d.accounts {
		if !ad.existed {
			delete(s.objects, addr)
			continue
		}
		obj := s.objects[addr]
		if obj == nil {
			obj = newObject(addr)
			s.objects[addr] = obj
		}
		obj.balance = new(uint256.Int).Set(ad.balance)
		obj.nonce = ad.nonce
		obj.setCode(common.CopyBytes(ad.code))
		for key, prev := range ad.storage {
			if prev == (common.Hash{}) {
				delete(obj.storage, key)
			} else {
				obj.storage[key] = prev
			}
		}
	}
}
