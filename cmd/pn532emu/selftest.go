// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"periph.io/x/conn/v3/i2c/i2creg"

	pn532emu "github.com/ZaparooProject/pn532emu"
	"github.com/ZaparooProject/pn532emu/card"
	"github.com/ZaparooProject/pn532emu/transport/i2c"
)

const selftestBlock = 4

var selftestPattern = []byte("pn532emu selftst")

// runSelftest opens the registered bus like any periph host program would and
// walks a card through detection, authentication, read and write.
func runSelftest(ctx context.Context, emu *emulator, cfg *config) error {
	return selftest(ctx, emu, cfg, os.Stdout)
}

func selftest(ctx context.Context, emu *emulator, cfg *config, out io.Writer) error {
	bus, err := i2creg.Open(cfg.busName)
	if err != nil {
		return fmt.Errorf("failed to open bus %s: %w", cfg.busName, err)
	}
	defer func() { _ = bus.Close() }()

	opts := []i2c.ClientOption{
		i2c.WithAddress(cfg.addr),
		i2c.WithTimeout(cfg.delay + 100*time.Millisecond),
	}
	if irq, ok := emu.line.(i2c.Level); ok {
		opts = append(opts, i2c.WithIRQ(irq))
	}
	client := i2c.NewClient(bus, opts...)

	fw, err := client.FirmwareVersion(ctx)
	if err != nil {
		return fmt.Errorf("firmware version: %w", err)
	}
	_, _ = fmt.Fprintf(out, "Firmware: %s\n", fw)

	if err := client.SAMConfiguration(ctx); err != nil {
		return fmt.Errorf("SAM configuration: %w", err)
	}

	switch _, err := client.ListPassiveTarget(ctx); {
	case err == nil:
		return errors.New("target reported with an empty field")
	case !errors.Is(err, i2c.ErrNoTarget):
		return fmt.Errorf("list passive target: %w", err)
	}

	emu.toggles.Store(pn532emu.Controls{Card1: true})
	defer emu.toggles.Store(pn532emu.Controls{})

	uid, err := client.ListPassiveTarget(ctx)
	if err != nil {
		return fmt.Errorf("list passive target: %w", err)
	}
	_, _ = fmt.Fprintf(out, "Card: UID=%X\n", uid)

	if err := client.Authenticate(ctx, selftestBlock, card.KeyA, card.DefaultKey, uid); err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	if err := client.WriteBlock(ctx, selftestBlock, selftestPattern); err != nil {
		return fmt.Errorf("write block %d: %w", selftestBlock, err)
	}
	data, err := client.ReadBlock(ctx, selftestBlock)
	if err != nil {
		return fmt.Errorf("read block %d: %w", selftestBlock, err)
	}
	if !bytes.Equal(data, selftestPattern) {
		return fmt.Errorf("block %d reads back % X, wrote % X", selftestBlock, data, selftestPattern)
	}
	_, _ = fmt.Fprintf(out, "Block %d: %q\n", selftestBlock, data)
	_, _ = fmt.Fprintln(out, "Selftest passed")
	return nil
}
