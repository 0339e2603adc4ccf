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
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/gavel-eth/gavel/core"
	"github.com/gavel-eth/gavel/fork"
)

// Config assembles a node. The zero value of any field falls back to the
// corresponding DefaultConfig value.
type Config struct {
	ChainID  *big.Int
	GasLimit uint64
	BaseFee  *big.Int
	Coinbase common.Address

	// Accounts is the number of pre-funded development accounts derived
	// from Seed.
	Accounts       int
	Seed           string
	AccountBalance *big.Int // wei per development account

	// GenesisTime pins the genesis timestamp; zero means wall clock.
	GenesisTime uint64

	// Automine seals a block for every admitted transaction batch.
	// Interval switches to timer-driven sealing instead. Neither set
	// leaves the node in manual mode.
	Automine bool
	Interval time.Duration

	// FeePolicy overrides the default constant base fee.
	FeePolicy core.FeePolicy

	// Fork, when set, runs the node as a fork of a live network.
	Fork *fork.Config
}

// DefaultConfig mirrors the conventional development chain setup: chain id
// 1337, ten accounts with ten thousand ether each and automine on.
var DefaultConfig = Config{
	ChainID:        big.NewInt(1337),
	GasLimit:       30_000_000,
	BaseFee:        big.NewInt(1_000_000_000),
	Accounts:       10,
	Seed:           "gavel development seed",
	AccountBalance: new(big.Int).Mul(big.NewInt(10_000), big.NewInt(1e18)),
	Automine:       true,
}

func (c Config) sanitized() Config {
	if c.ChainID == nil {
		c.ChainID = DefaultConfig.ChainID
	}
	if c.GasLimit == 0 {
		c.GasLimit = DefaultConfig.GasLimit
	}
	if c.BaseFee == nil {
		c.BaseFee = DefaultConfig.BaseFee
	}
	if c.Accounts == 0 {
		c.Accounts = DefaultConfig.Accounts
	}
	if c.Seed == "" {
		c.Seed = DefaultConfig.Seed
	}
	if c.AccountBalance == nil {
		c.AccountBalance = DefaultConfig.AccountBalance
	}
	if c.GenesisTime == 0 {
		c.GenesisTime = uint64(time.Now().Unix())
	}
	if c.FeePolicy == nil {
		c.FeePolicy = core.ConstantFee{Price: c.BaseFee}
	}
	return c
}
