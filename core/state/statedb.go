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
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
)

// Reader supplies account data the local state does not own. In fork mode
// it is backed by the remote chain pinned at the fork height; reads through
// it materialize locally (copy-on-read), so each remote datum is fetched at
// most once per state lineage.
type Reader interface {
	// Account returns the remote account fields, or ok=false if the
	// account does not exist upstream.
	Account(addr common.Address) (nonce uint64, balance *uint256.Int, code []byte, ok bool, err error)
	// Storage returns the remote value of one storage slot.
	Storage(addr common.Address, slot common.Hash) (common.Hash, error)
}

// StateDB holds the full world state of the development chain: a flat
// account map with an execution journal on top. It is not safe for
// concurrent use; callers serialize access through the node's state lock.
type StateDB struct {
	objects map[common.Address]*stateObject
	remote  Reader

	journal        *journal
	validRevisions []revision
	nextRevisionID int

	// Per-transaction context for emitted logs.
	thash   common.Hash
	txIndex int
	logs    []*types.Log

	// recorder, when set, captures block-level undo pre-images.
	recorder *Delta

	logger log.Logger
}

type revision struct {
	id           int
	journalIndex int
}

// New creates an empty world state. The reader may be nil when the node is
// not forking.
func New(remote Reader) *StateDB {
	return &StateDB{
		objects: make(map[common.Address]*stateObject),
		remote:  remote,
		journal: newJournal(),
		logger:  log.New("module", "state"),
	}
}

// StartRecording directs all subsequent first-touch pre-images into d.
func (s *StateDB) StartRecording(d *Delta) {
	s.recorder = d
}

// StopRecording detaches and returns the active recording target.
func (s *StateDB) StopRecording() *Delta {
	d := s.recorder
	s.recorder = nil
	return d
}

func (s *StateDB) getStateObject(addr common.Address) *stateObject {
	if obj, ok := s.objects[addr]; ok {
		return obj
	}
	if s.remote == nil {
		return nil
	}
	// Copy-on-read from the fork overlay. Negative answers materialize
	// too, as an empty object, so the upstream is asked only once.
	nonce, balance, code, ok, err := s.remote.Account(addr)
	if err != nil {
		s.logger.Warn("Fork account read failed", "address", addr, "err", err)
		return nil
	}
	obj := newObject(addr)
	obj.remote = true
	obj.fetched = make(map[common.Hash]struct{})
	if ok {
		obj.nonce = nonce
		obj.balance = balance
		obj.setCode(code)
	}
	s.objects[addr] = obj
	return obj
}

func (s *StateDB) getOrNewStateObject(addr common.Address) *stateObject {
	if obj := s.getStateObject(addr); obj != nil {
		return obj
	}
	obj := newObject(addr)
	s.objects[addr] = obj
	s.journal.append(createObjectChange{account: addr})
	if s.recorder != nil {
		s.recorder.noteCreate(obj)
	}
	return obj
}

// Exist reports whether the given account exists in state. Notably this
// also returns true for self-destructed accounts within the transaction
// that destroyed them.
func (s *StateDB) Exist(addr common.Address) bool {
	return s.getStateObject(addr) != nil
}

// Empty returns whether the account is considered empty (no balance, no
// nonce, no code).
func (s *StateDB) Empty(addr common.Address) bool {
	obj := s.getStateObject(addr)
	return obj == nil || obj.empty()
}

func (s *StateDB) GetBalance(addr common.Address) *uint256.Int {
	if obj := s.getStateObject(addr); obj != nil {
		return new(uint256.Int).Set(obj.balance)
	}
	return new(uint256.Int)
}

func (s *StateDB) AddBalance(addr common.Address, amount *uint256.Int) {
	obj := s.getOrNewStateObject(addr)
	s.journal.append(balanceChange{account: addr, prev: obj.balance})
	if s.recorder != nil {
		s.recorder.noteTouch(obj)
	}
	obj.balance = new(uint256.Int).Add(obj.balance, amount)
}

func (s *StateDB) SubBalance(addr common.Address, amount *uint256.Int) {
	obj := s.getOrNewStateObject(addr)
	s.journal.append(balanceChange{account: addr, prev: obj.balance})
	if s.recorder != nil {
		s.recorder.noteTouch(obj)
	}
	obj.balance = new(uint256.Int).Sub(obj.balance, amount)
}

func (s *StateDB) SetBalance(addr common.Address, amount *uint256.Int) {
	obj := s.getOrNewStateObject(addr)
	s.journal.append(balanceChange{account: addr, prev: obj.balance})
	if s.recorder != nil {
		s.recorder.noteTouch(obj)
	}
	obj.balance = new(uint256.Int).Set(amount)
}

func (s *StateDB) GetNonce(addr common.Address) uint64 {
	if obj := s.getStateObject(addr); obj != nil {
		return obj.nonce
	}
	return 0
}

func (s *StateDB) SetNonce(addr common.Address, nonce uint64) {
	obj := s.getOrNewStateObject(addr)
	s.journal.append(nonceChange{account: addr, prev: obj.nonce})
	if s.recorder != nil {
		s.recorder.noteTouch(obj)
	}
	obj.nonce = nonce
}

func (s *StateDB) GetCode(addr common.Address) []byte {
	if obj := s.getStateObject(addr); obj != nil {
		return obj.code
	}
	return nil
}

func (s *StateDB) GetCodeSize(addr common.Address) int {
	return len(s.GetCode(addr))
}

func (s *StateDB) GetCodeHash(addr common.Address) common.Hash {
	if obj := s.getStateObject(addr); obj != nil {
		return obj.codeHash
	}
	return common.Hash{}
}

func (s *StateDB) SetCode(addr common.Address, code []byte) {
	obj := s.getOrNewStateObject(addr)
	s.journal.append(codeChange{account: addr, prev: obj.code})
	if s.recorder != nil {
		s.recorder.noteTouch(obj)
	}
	obj.setCode(common.CopyBytes(code))
}

func (s *StateDB) GetState(addr common.Address, key common.Hash) common.Hash {
	obj := s.getStateObject(addr)
	if obj == nil {
		return common.Hash{}
	}
	if val, ok := obj.storage[key]; ok {
		return val
	}
	if obj.remote && s.remote != nil {
		if _, done := obj.fetched[key]; !done {
			val, err := s.remote.Storage(addr, key)
			if err != nil {
				s.logger.Warn("Fork storage read failed", "address", addr, "slot", key, "err", err)
				return common.Hash{}
			}
			obj.fetched[key] = struct{}{}
			if val != (common.Hash{}) {
				obj.storage[key] = val
			}
			return val
		}
	}
	return common.Hash{}
}

func (s *StateDB) SetState(addr common.Address, key, value common.Hash) {
	obj := s.getOrNewStateObject(addr)
	prev := s.GetState(addr, key)
	if prev == value {
		return
	}
	s.journal.append(storageChange{account: addr, key: key, prev: prev})
	if s.recorder != nil {
		s.recorder.noteStorage(obj, key, prev)
	}
	if value == (common.Hash{}) {
		delete(obj.storage, key)
	} else {
		obj.storage[key] = value
	}
}

// SelfDestruct marks the account for destruction and zeroes its balance.
// The account object itself survives as a tombstone; Finalise clears the
// remaining fields at the end of the transaction.
func (s *StateDB) SelfDestruct(addr common.Address) {
	obj := s.getStateObject(addr)
	if obj == nil {
		return
	}
	s.journal.append(selfDestructChange{account: addr, prevBalance: obj.balance})
	if s.recorder != nil {
		s.recorder.noteTouch(obj)
		// Finalise wipes the whole storage map; the per-slot pre-images
		// must be captured now or the rewind loses them.
		for key, val := range obj.storage {
			s.recorder.noteStorage(obj, key, val)
		}
	}
	obj.selfDestructed = true
	obj.balance = new(uint256.Int)
}

func (s *StateDB) HasSelfDestructed(addr common.Address) bool {
	if obj := s.getStateObject(addr); obj != nil {
		return obj.selfDestructed
	}
	return false
}

// SetTxContext sets the current transaction hash and index which are used
// when the execution engine emits logs.
func (s *StateDB) SetTxContext(thash common.Hash, ti int) {
	s.thash = thash
	s.txIndex = ti
}

func (s *StateDB) AddLog(l *types.Log) {
	s.journal.append(addLogChange{})
	l.TxHash = s.thash
	l.TxIndex = uint(s.txIndex)
	s.logs = append(s.logs, l)
}

// Logs returns the logs accumulated since the last TakeLogs call.
func (s *StateDB) Logs() []*types.Log {
	return s.logs
}

// TakeLogs returns and clears the accumulated logs.
func (s *StateDB) TakeLogs() []*types.Log {
	logs := s.logs
	s.logs = nil
	return logs
}

// Snapshot returns an identifier for the current revision of the state.
func (s *StateDB) Snapshot() int {
	id := s.nextRevisionID
	s.nextRevisionID++
	s.validRevisions = append(s.validRevisions, revision{id, s.journal.length()})
	return id
}

// RevertToSnapshot reverts all state changes made since the given revision.
func (s *StateDB) RevertToSnapshot(revid int) {
	// Find the snapshot in the stack of valid snapshots.
	idx := sort.Search(len(s.validRevisions), func(i int) bool {
		return s.validRevisions[i].id >= revid
	})
	if idx == len(s.validRevisions) || s.validRevisions[idx].id != revid {
		panic(fmt.Errorf("revision id %v cannot be reverted", revid))
	}
	snapshot := s.validRevisions[idx].journalIndex

	s.journal.revert(s, snapshot)
	s.validRevisions = s.validRevisions[:idx]
}

// Finalise ends the current transaction: self-destructed accounts are
// zeroed in place and the journal is discarded, making all changes since
// the last Finalise irrevocable.
func (s *StateDB) Finalise() {
	for _, obj := range s.objects {
		if obj.selfDestructed {
			obj.zero()
		}
	}
	s.journal = newJournal()
	s.validRevisions = s.validRevisions[:0]
	s.nextRevisionID = 0
}

// Copy creates a deep, independent copy of the state. Snapshots of the
// copy cannot be reverted on the origin and vice versa. The recording
// target is not carried over.
func (s *StateDB) Copy() *StateDB {
	cp := &StateDB{
		objects: make(map[common.Address]*stateObject, len(s.objects)),
		remote:  s.remote,
		journal: newJournal(),
		logger:  s.logger,
	}
	for addr, obj := range s.objects {
		cp.objects[addr] = obj.copy()
	}
	return cp
}

// SummaryHash folds every account into one deterministic digest, used as
// the sealed block's state root. Two states with identical accounts hash
// identically regardless of touch order.
func (s *StateDB) SummaryHash() common.Hash {
	addrs := make([]common.Address, 0, len(s.objects))
	for addr := range s.objects {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool {
		return addrs[i].Cmp(addrs[j]) < 0
	})
	h := make([]byte, 0, len(addrs)*128)
	for _, addr := range addrs {
		obj := s.objects[addr]
		h = append(h, addr.Bytes()...)
		b := obj.balance.Bytes32()
		h = append(h, b[:]...)
		h = append(h, byte(obj.nonce), byte(obj.nonce>>8), byte(obj.nonce>>16), byte(obj.nonce>>24),
			byte(obj.nonce>>32), byte(obj.nonce>>40), byte(obj.nonce>>48), byte(obj.nonce>>56))
		h = append(h, obj.codeHash.Bytes()...)
		h = append(h, obj.storageHash().Bytes()...)
	}
	return crypto.Keccak256Hash(h)
}

func (s *stateObject) storageHash() common.Hash {
	if len(s.storage) == 0 {
		return common.Hash{}
	}
	keys := make([]common.Hash, 0, len(s.storage))
	for k := range s.storage {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].Cmp(keys[j]) < 0
	})
	h := make([]byte, 0, len(keys)*64)
	for _, k := range keys {
		v := s.storage[k]
		h = append(h, k.Bytes()...)
		h = append(h, v.Bytes()...)
	}
	return crypto.Keccak256Hash(h)
}
