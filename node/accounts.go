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

package node

import (
	"crypto/ecdsa"
	"fmt"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// accountRegistry holds the development keys plus the impersonation state.
// Impersonated senders may submit transactions without valid signatures.
type accountRegistry struct {
	mu       sync.RWMutex
	keys     map[common.Address]*ecdsa.PrivateKey
	order    []common.Address
	imps     mapset.Set[common.Address]
	autoImps bool
}

// deriveKeys produces count deterministic private keys from a seed. The
// same seed always yields the same accounts, so scripts can hardcode them.
func deriveKeys(seed string, count int) ([]*ecdsa.PrivateKey, error) {
	keys := make([]*ecdsa.PrivateKey, 0, count)
	for i := 0; i < count; i++ {
		material := crypto.Keccak256([]byte(fmt.Sprintf("%s/%d", seed, i)))
		// Rejected scalars (zero or past the curve order) are rehashed.
		for {
			key, err := crypto.ToECDSA(material)
			if err == nil {
				keys = append(keys, key)
				break
			}
			material = crypto.Keccak256(material)
		}
	}
	return keys, nil
}

func newAccountRegistry(seed string, count int) (*accountRegistry, error) {
	keys, err := deriveKeys(seed, count)
	if err != nil {
		return nil, err
	}
	r := &accountRegistry{
		keys: make(map[common.Address]*ecdsa.PrivateKey, len(keys)),
		imps: mapset.NewSet[common.Address](),
	}
	for _, key := range keys {
		addr := crypto.PubkeyToAddress(key.PublicKey)
		r.keys[addr] = key
		r.order = append(r.order, addr)
	}
	return r, nil
}

// Accounts lists the development accounts in derivation order.
func (r *accountRegistry) Accounts() []common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]common.Address, len(r.order))
	copy(out, r.order)
	return out
}

// Key returns the private key of a development account.
func (r *accountRegistry) Key(addr common.Address) (*ecdsa.PrivateKey, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, ok := r.keys[addr]
	return key, ok
}

// SignTx signs a transaction with the key of a development account.
func (r *accountRegistry) SignTx(addr common.Address, tx *types.Transaction, signer types.Signer) (*types.Transaction, error) {
	key, ok := r.Key(addr)
	if !ok {
		return nil, fmt.Errorf("account %s is not unlocked", addr)
	}
	return types.SignTx(tx, signer, key)
}

// Impersonate marks an address as an allowed unsigned sender.
func (r *accountRegistry) Impersonate(addr common.Address) {
	r.imps.Add(addr)
}

// StopImpersonating removes an address from the impersonation set.
func (r *accountRegistry) StopImpersonating(addr common.Address) {
	r.imps.Remove(addr)
}

// SetAutoImpersonate toggles treating every address as impersonated.
func (r *accountRegistry) SetAutoImpersonate(enabled bool) {
	r.mu.Lock()
	r.autoImps = enabled
	r.mu.Unlock()
}

// Impersonated reports whether addr may send without a valid signature.
func (r *accountRegistry) Impersonated(addr common.Address) bool {
	r.mu.RLock()
	auto := r.autoImps
	r.mu.RUnlock()
	return auto || r.imps.Contains(addr)
}
