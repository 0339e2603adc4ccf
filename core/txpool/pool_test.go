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
	"crypto/ecdsa"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/gavel-eth/gavel/core"
	"github.com/gavel-eth/gavel/core/state"
)

var testChainID = big.NewInt(1337)

type testChain struct {
	statedb  *state.StateDB
	gasLimit uint64
}

func (c *testChain) CurrentHeader() *types.Header {
	return &types.Header{Number: big.NewInt(0), GasLimit: c.gasLimit}
}

func (c *testChain) State() *state.StateDB { return c.statedb }

func setupPool(t *testing.T) (*Pool, *testChain) {
	t.Helper()
	chain := &testChain{statedb: state.New(nil), gasLimit: 30_000_000}
	pool := New(DefaultConfig, testChainID, chain)
	return pool, chain
}

func newAccount(t *testing.T, chain *testChain, ether uint64) (*ecdsa.PrivateKey, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	addr := crypto.PubkeyToAddress(key.PublicKey)
	bal := new(uint256.Int).Mul(uint256.NewInt(ether), uint256.NewInt(1e18))
	chain.statedb.SetBalance(addr, bal)
	chain.statedb.Finalise()
	return key, addr
}

func signedTransfer(t *testing.T, key *ecdsa.PrivateKey, nonce uint64, gasPrice int64) *types.Transaction {
	t.Helper()
	to := common.HexToAddress("0xdead")
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(1000),
		Gas:      21000,
		GasPrice: big.NewInt(gasPrice),
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(testChainID), key)
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func TestAddValid(t *testing.T) {
	pool, chain := setupPool(t)
	key, _ := newAccount(t, chain, 100)

	tx := signedTransfer(t, key, 0, 1_000_000_000)
	hash, err := pool.Add(tx)
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if hash != tx.Hash() {
		t.Errorf("returned hash mismatch: %s != %s", hash, tx.Hash())
	}
	if !pool.Has(hash) {
		t.Error("admitted transaction not retrievable")
	}
	if _, err := pool.Add(tx); !errors.Is(err, ErrAlreadyKnown) {
		t.Errorf("duplicate admission: got %v, want ErrAlreadyKnown", err)
	}
}

func TestAddRejections(t *testing.T) {
	pool, chain := setupPool(t)
	key, addr := newAccount(t, chain, 100)
	poorKey, _ := newAccount(t, chain, 0)

	// Stale nonce.
	chain.statedb.SetNonce(addr, 5)
	chain.statedb.Finalise()
	if _, err := pool.Add(signedTransfer(t, key, 4, 1_000_000_000)); !errors.Is(err, core.ErrNonceTooLow) {
		t.Errorf("stale nonce: got %v, want ErrNonceTooLow", err)
	}
	// Future nonces are queued, not rejected.
	if _, err := pool.Add(signedTransfer(t, key, 9, 1_000_000_000)); err != nil {
		t.Errorf("future nonce rejected: %v", err)
	}
	// Insufficient funds.
	if _, err := pool.Add(signedTransfer(t, poorKey, 0, 1_000_000_000)); !errors.Is(err, core.ErrInsufficientFunds) {
		t.Errorf("unfunded sender: got %v, want ErrInsufficientFunds", err)
	}
	// Gas above block limit.
	oversized := types.NewTx(&types.LegacyTx{Nonce: 5, Gas: chain.gasLimit + 1, GasPrice: big.NewInt(1), Value: big.NewInt(0)})
	signed, _ := types.SignTx(oversized, types.LatestSignerForChainID(testChainID), key)
	if _, err := pool.Add(signed); !errors.Is(err, ErrGasLimit) {
		t.Errorf("oversized gas: got %v, want ErrGasLimit", err)
	}
	// Garbage signature.
	unsigned := types.NewTx(&types.LegacyTx{Nonce: 5, Gas: 21000, GasPrice: big.NewInt(1)})
	if _, err := pool.Add(unsigned); !errors.Is(err, ErrInvalidSender) {
		t.Errorf("unsigned: got %v, want ErrInvalidSender", err)
	}
}

func TestReplacement(t *testing.T) {
	pool, chain := setupPool(t)
	key, _ := newAccount(t, chain, 100)

	original := signedTransfer(t, key, 0, 1_000_000_000)
	if _, err := pool.Add(original); err != nil {
		t.Fatal(err)
	}
	// Below the 10% bump threshold.
	cheap := signedTransfer(t, key, 0, 1_050_000_000)
	if _, err := pool.Add(cheap); !errors.Is(err, ErrReplaceUnderpriced) {
		t.Fatalf("underpriced replacement: got %v, want ErrReplaceUnderpriced", err)
	}
	if !pool.Has(original.Hash()) {
		t.Fatal("original evicted by rejected replacement")
	}
	// At the threshold.
	bumped := signedTransfer(t, key, 0, 1_100_000_000)
	if _, err := pool.Add(bumped); err != nil {
		t.Fatalf("valid replacement rejected: %v", err)
	}
	if pool.Has(original.Hash()) {
		t.Error("replaced transaction still present")
	}
	if pool.Len() != 1 {
		t.Errorf("pool size after replacement: got %d, want 1", pool.Len())
	}
}

func TestPendingOrdering(t *testing.T) {
	pool, chain := setupPool(t)
	keyA, addrA := newAccount(t, chain, 100)
	keyB, addrB := newAccount(t, chain, 100)

	// A pays more, but its nonces must still come out in order.
	for n := uint64(0); n < 3; n++ {
		if _, err := pool.Add(signedTransfer(t, keyA, n, 2_000_000_000)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := pool.Add(signedTransfer(t, keyB, 0, 3_000_000_000)); err != nil {
		t.Fatal(err)
	}

	set := pool.Pending(nil)
	var order []common.Address
	var nonces []uint64
	for !set.Empty() {
		tx, from := set.Peek()
		order = append(order, from)
		nonces = append(nonces, tx.Nonce())
		set.Shift()
	}
	if len(order) != 4 {
		t.Fatalf("pending count: got %d, want 4", len(order))
	}
	if order[0] != addrB {
		t.Errorf("highest price not first: got %s, want %s", order[0], addrB)
	}
	// A's transactions keep ascending nonce order.
	seen := uint64(0)
	for i, from := range order {
		if from != addrA {
			continue
		}
		if nonces[i] != seen {
			t.Fatalf("sender nonce order violated: got %d, want %d", nonces[i], seen)
		}
		seen++
	}
}

func TestPendingSkipsGaps(t *testing.T) {
	pool, chain := setupPool(t)
	key, _ := newAccount(t, chain, 100)

	if _, err := pool.Add(signedTransfer(t, key, 0, 1_000_000_000)); err != nil {
		t.Fatal(err)
	}
	// Nonce 1 missing; 2 must not be offered.
	if _, err := pool.Add(signedTransfer(t, key, 2, 1_000_000_000)); err != nil {
		t.Fatal(err)
	}
	set := pool.Pending(nil)
	count := 0
	for !set.Empty() {
		count++
		set.Shift()
	}
	if count != 1 {
		t.Errorf("ready transactions: got %d, want 1 (gap must end the run)", count)
	}
}

func TestIncludedDemotesStale(t *testing.T) {
	pool, chain := setupPool(t)
	key, addr := newAccount(t, chain, 100)

	tx0 := signedTransfer(t, key, 0, 1_000_000_000)
	tx1 := signedTransfer(t, key, 1, 1_000_000_000)
	for _, tx := range []*types.Transaction{tx0, tx1} {
		if _, err := pool.Add(tx); err != nil {
			t.Fatal(err)
		}
	}
	// Mining advanced the account past both transactions.
	chain.statedb.SetNonce(addr, 2)
	chain.statedb.Finalise()
	pool.Included([]*types.Transaction{tx0})

	if pool.Has(tx0.Hash()) {
		t.Error("included transaction still pooled")
	}
	if pool.Has(tx1.Hash()) {
		t.Error("stale transaction not demoted")
	}
	if pool.Len() != 0 {
		t.Errorf("pool not empty: %d", pool.Len())
	}
}

func TestImpersonatedAdmission(t *testing.T) {
	pool, chain := setupPool(t)
	whale := common.HexToAddress("0xb0b7")
	chain.statedb.SetBalance(whale, uint256.MustFromDecimal("1000000000000000000000"))
	chain.statedb.Finalise()

	to := common.HexToAddress("0xdead")
	tx := types.NewTx(&types.LegacyTx{Nonce: 0, To: &to, Value: big.NewInt(1), Gas: 21000, GasPrice: big.NewInt(1)})
	hash, err := pool.AddWithSender(tx, whale)
	if err != nil {
		t.Fatalf("impersonated add failed: %v", err)
	}
	if !pool.Impersonated(hash) {
		t.Error("impersonation flag lost")
	}
	if from, ok := pool.Sender(hash); !ok || from != whale {
		t.Errorf("sender: got %s, want %s", from, whale)
	}
}

func TestSaveRestore(t *testing.T) {
	pool, chain := setupPool(t)
	key, _ := newAccount(t, chain, 100)
	for n := uint64(0); n < 3; n++ {
		if _, err := pool.Add(signedTransfer(t, key, n, 1_000_000_000)); err != nil {
			t.Fatal(err)
		}
	}
	saved := pool.Save()
	pool.Clear()
	if pool.Len() != 0 {
		t.Fatal("clear left transactions behind")
	}
	pool.Restore(saved)
	if pool.Len() != 3 {
		t.Fatalf("restore: got %d transactions, want 3", pool.Len())
	}
}
