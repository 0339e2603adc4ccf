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

// gavel is a local Ethereum development node: instant or interval block
// production, pre-funded accounts, state snapshots and time travel, with
// optional forking off a live network.
package main

import (
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/gavel-eth/gavel/fork"
	"github.com/gavel-eth/gavel/node"
)

var (
	chainIDFlag = &cli.Int64Flag{
		Name:  "chain-id",
		Usage: "Chain identifier of the development chain",
		Value: node.DefaultConfig.ChainID.Int64(),
	}
	accountsFlag = &cli.IntFlag{
		Name:  "accounts",
		Usage: "Number of pre-funded development accounts",
		Value: node.DefaultConfig.Accounts,
	}
	balanceFlag = &cli.Uint64Flag{
		Name:  "balance",
		Usage: "Ether balance of each development account",
		Value: 10_000,
	}
	gasLimitFlag = &cli.Uint64Flag{
		Name:  "gas-limit",
		Usage: "Block gas limit",
		Value: node.DefaultConfig.GasLimit,
	}
	baseFeeFlag = &cli.Uint64Flag{
		Name:  "base-fee",
		Usage: "Base fee of every block, in wei",
		Value: node.DefaultConfig.BaseFee.Uint64(),
	}
	blockTimeFlag = &cli.DurationFlag{
		Name:  "block-time",
		Usage: "Seal a block on a fixed interval instead of per transaction",
	}
	noMiningFlag = &cli.BoolFlag{
		Name:  "no-mining",
		Usage: "Disable automatic sealing; blocks are produced on demand only",
	}
	forkURLFlag = &cli.StringFlag{
		Name:  "fork-url",
		Usage: "Upstream RPC endpoint to fork state from",
	}
	forkBlockFlag = &cli.Uint64Flag{
		Name:  "fork-block",
		Usage: "Block height to fork at (default: upstream head)",
	}
	verbosityFlag = &cli.IntFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity: 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=detail",
		Value: 3,
	}
)

func main() {
	app := &cli.App{
		Name:   "gavel",
		Usage:  "local Ethereum development node",
		Action: run,
		Flags: []cli.Flag{
			chainIDFlag,
			accountsFlag,
			balanceFlag,
			gasLimitFlag,
			baseFeeFlag,
			blockTimeFlag,
			noMiningFlag,
			forkURLFlag,
			forkBlockFlag,
			verbosityFlag,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	handler := log.NewTerminalHandlerWithLevel(os.Stderr, log.FromLegacyLevel(ctx.Int(verbosityFlag.Name)), true)
	log.SetDefault(log.NewLogger(handler))

	cfg := node.Config{
		ChainID:        big.NewInt(ctx.Int64(chainIDFlag.Name)),
		GasLimit:       ctx.Uint64(gasLimitFlag.Name),
		BaseFee:        new(big.Int).SetUint64(ctx.Uint64(baseFeeFlag.Name)),
		Accounts:       ctx.Int(accountsFlag.Name),
		AccountBalance: new(big.Int).Mul(new(big.Int).SetUint64(ctx.Uint64(balanceFlag.Name)), big.NewInt(1e18)),
		Automine:       !ctx.Bool(noMiningFlag.Name),
		Interval:       ctx.Duration(blockTimeFlag.Name),
	}
	if cfg.Interval > 0 {
		cfg.Automine = false
	}
	if url := ctx.String(forkURLFlag.Name); url != "" {
		cfg.Fork = &fork.Config{
			URL:         url,
			BlockNumber: ctx.Uint64(forkBlockFlag.Name),
			Timeout:     30 * time.Second,
		}
	}

	n, err := node.New(cfg)
	if err != nil {
		return err
	}
	defer n.Close()

	fmt.Println("Available accounts")
	fmt.Println("==================")
	for i, addr := range n.Accounts() {
		fmt.Printf("(%d) %s (%d ETH)\n", i, addr.Hex(), ctx.Uint64(balanceFlag.Name))
	}
	fmt.Println()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("Shutting down")
	return nil
}
