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
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

// dumpVersion guards the wire format of Dump/LoadDump buffers.
const dumpVersion = 1

type dumpSlot struct {
	Key   common.Hash
	Value common.Hash
}

type dumpAccount struct {
	Address common.Address
	Nonce   uint64
	Balance *big.Int
	Code    []byte
	Storage []dumpSlot
}

type dump struct {
	Version  uint64
	Accounts []dumpAccount
}

// Dump serializes the complete world state into a portable RLP buffer.
// Accounts and slots are emitted in sorted order so the same state always
// produces the same bytes.
func (s *StateDB) Dump() ([]byte, error) {
	addrs := make([]common.Address, 0, len(s.objects))
	for addr := range s.objects {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool {
		return addrs[i].Cmp(addrs[j]) < 0
	})
	out := dump{Version: dumpVersion}
	for _, addr := range addrs {
		obj := s.objects[addr]
		acc := dumpAccount{
			Address: addr,
			Nonce:   obj.nonce,
			Balance: obj.balance.ToBig(),
			Code:    obj.code,
		}
		keys := make([]common.Hash, 0, len(obj.storage))
		for k := range obj.storage {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			return keys[i].Cmp(keys[j]) < 0
		})
		for _, k := range keys {
			acc.Storage = append(acc.Storage, dumpSlot{Key: k, Value: obj.storage[k]})
		}
		out.Accounts = append(out.Accounts, acc)
	}
	return rlp.EncodeToBytes(&out)
}

// LoadDump merges a previously dumped state into this one. Accounts in the
// buffer overwrite their local counterparts field by field and slot by
// slot; local accounts the buffer does not mention are left untouched.
func (s *StateDB) LoadDump(blob []byte) error {
	var in dump
	if err := rlp.DecodeBytes(blob, &in); err != nil {
		return fmt.Errorf("invalid state dump: %w", err)
	}
	if in.Version != dumpVersion {
		return fmt.Errorf("unsupported state dump version %d", in.Version)
	}
	for _, acc := range in.Accounts {
		balance, overflow := uint256.FromBig(acc.Balance)
		if overflow {
			return fmt.Errorf("balance of %s exceeds 256 bits", acc.Address)
		}
		s.SetBalance(acc.Address, balance)
		s.SetNonce(acc.Address, acc.Nonce)
		if len(acc.Code) > 0 {
			s.SetCode(acc.Address, acc.Code)
		}
		for _, slot := range acc.Storage {
			s.SetState(acc.Address, slot.Key, slot.Value)
		}
	}
	s.Finalise()
	return nil
}
