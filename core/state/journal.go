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

// journalEntry is a modification entry in the state change journal that can
// be reverted on demand.
type journalEntry interface {
	// revert undoes the change introduced by this entry.
	revert(*StateDB)
}

// journal contains the list of state modifications applied since the last
// state commit, indexed so that execution-level snapshots can unwind any
// suffix of it.
type journal struct {
	entries []journalEntry
}

func newJournal() *journal {
	return &journal{}
}

func (j *journal) append(entry journalEntry) {
	j.entries = append(j.entries, entry)
}

// revert undoes a batch of journalled modifications along with any reverted
// dirty handling too.
func (j *journal) revert(statedb *StateDB, snapshot int) {
	for i := len(j.entries) - 1; i >= snapshot; i-- {
		j.entries[i].revert(statedb)
	}
	j.entries = j.entries[:snapshot]
}

func (j *journal) length() int {
	return len(j.entries)
}

type (
	createObjectChange struct {
		account common.Address
	}
	balanceChange struct {
		account common.Address
		prev    *uint256.Int
	}
	nonceChange struct {
		account common.Address
		prev    uint64
	}
	storageChange struct {
		account common.Address
		key     common.Hash
		prev    common.Hash
	}
	codeChange struct {
		account common.Address
		prev    []byte
	}
	selfDestructChange struct {
		account     common.Address
		prevBalance *uint256.Int
	}
	addLogChange struct{}
)

func (ch createObjectChange) revert(s *StateDB) {
	delete(s.objects, ch.account)
}

func (ch balanceChange) revert(s *StateDB) {
	s.objects[ch.account].balance = ch.prev
}

func (ch nonceChange) revert(s *StateDB) {
	s.objects[ch.account].nonce = ch.prev
}

func (ch storageChange) revert(s *StateDB) {
	s.objects[ch.account].storage[ch.key] = ch.prev
}

func (ch codeChange) revert(s *StateDB) {
	s.objects[ch.account].setCode(ch.prev)
}

func (ch selfDestructChange) revert(s *StateDB) {
	obj := s.objects[ch.account]
	obj.selfDestructed = false
	obj.balance = ch.prevBalance
}

func (ch addLogChange) revert(s *StateDB) {
	s.logs = s.logs[:len(s.logs)-1]
}
