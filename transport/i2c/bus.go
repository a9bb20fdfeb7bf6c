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

// Package i2c exposes the emulator as a periph.io I2C bus and provides a
// host-side driver that speaks the PN532 frame protocol over any i2c.Bus.
package i2c

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"

	pn532emu "github.com/ZaparooProject/pn532emu"
	"github.com/ZaparooProject/pn532emu/internal/syncutil"
)

const (
	// MaxSpeed is the fastest clock the bus accepts (Fast-mode Plus).
	MaxSpeed = physic.MegaHertz

	defaultSpeed = 400 * physic.KiloHertz
)

// Bus is the emulator's I2C face. Each Tx is one write transaction followed
// by one read transaction addressed to the chip.
type Bus struct {
	dev    *pn532emu.Device
	name   string
	speed  physic.Frequency
	mu     syncutil.Mutex
	addr   uint16
	closed bool
}

// NewBus creates a bus named name with the chip answering on addr.
func NewBus(dev *pn532emu.Device, name string, addr uint16) *Bus {
	return &Bus{
		dev:   dev,
		name:  name,
		addr:  addr,
		speed: defaultSpeed,
	}
}

// Tx implements i2c.Bus. Every byte of w is fed to the chip, then r is
// filled with one chip read per byte.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return pn532emu.NewBusClosedError("Tx", b.name)
	}
	if addr != b.addr {
		return pn532emu.NewTransportError("Tx", b.name,
			fmt.Errorf("%w: 0x%02X", pn532emu.ErrAddressNotAcknowledged, addr), pn532emu.ErrorTypePermanent)
	}

	if len(w) > 0 {
		if _, err := b.dev.Write(w); err != nil {
			return fmt.Errorf("i2c write: %w", err)
		}
	}
	if len(r) > 0 {
		if _, err := b.dev.Read(r); err != nil {
			return fmt.Errorf("i2c read: %w", err)
		}
	}
	return nil
}

// SetSpeed implements i2c.Bus.
func (b *Bus) SetSpeed(f physic.Frequency) error {
	if f <= 0 || f > MaxSpeed {
		return fmt.Errorf("%w: bus speed %s outside (0, %s]", pn532emu.ErrInvalidConfig, f, MaxSpeed)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.speed = f
	return nil
}

// Speed returns the clock set by SetSpeed.
func (b *Bus) Speed() physic.Frequency {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.speed
}

// Close detaches the bus from the chip. The Device itself stays open.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *Bus) String() string {
	return b.name
}

// Register publishes the bus through i2creg under its name so host code can
// i2creg.Open it. Closing an opened handle does not close the Bus.
func (b *Bus) Register() error {
	err := i2creg.Register(b.name, nil, -1, func() (i2c.BusCloser, error) {
		return handle{Bus: b}, nil
	})
	if err != nil {
		return fmt.Errorf("register i2c bus %s: %w", b.name, err)
	}
	return nil
}

// Unregister removes the bus from i2creg.
func (b *Bus) Unregister() error {
	if err := i2creg.Unregister(b.name); err != nil {
		return fmt.Errorf("unregister i2c bus %s: %w", b.name, err)
	}
	return nil
}

// handle is what i2creg.Open returns.
type handle struct {
	*Bus
}

func (handle) Close() error {
	return nil
}

var (
	_ i2c.BusCloser = (*Bus)(nil)
	_ i2c.BusCloser = handle{}
)
