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

package pn532emu

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/ZaparooProject/pn532emu/internal/syncutil"
)

// Device is a Chip safe for concurrent use. Bus faces (I2C, UART), the control
// API and the response timer all go through its lock. No method blocks on the
// bus.
type Device struct {
	chip   *Chip
	timer  *time.Timer
	gen    uint64
	mu     syncutil.Mutex
	closed bool
}

// deviceTimer arms the Device's timer. Arm is only ever called from inside a
// Chip method, so the Device lock is already held.
type deviceTimer struct {
	d *Device
}

func (t deviceTimer) Arm(delay time.Duration) {
	t.d.armLocked(delay)
}

// NewDevice creates a Device. Any WithTimer option is replaced by the
// Device's own timer.
func NewDevice(opts ...Option) (*Device, error) {
	d := &Device{}
	opts = append(opts[:len(opts):len(opts)], WithTimer(deviceTimer{d: d}))
	chip, err := NewChip(opts...)
	if err != nil {
		return nil, err
	}
	d.chip = chip
	return d, nil
}

func (d *Device) armLocked(delay time.Duration) {
	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(delay, func() {
		d.fire(gen)
	})
}

// fire delivers a timer expiry unless a newer frame re-armed the timer.
func (d *Device) fire(gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || gen != d.gen {
		return
	}
	d.chip.TimerElapsed()
}

// WriteByte implements io.ByteWriter.
func (d *Device) WriteByte(b byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrBusClosed
	}
	return d.chip.WriteByte(b)
}

// ReadByte implements io.ByteReader.
func (d *Device) ReadByte() (byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, ErrBusClosed
	}
	return d.chip.ReadByte()
}

// Write feeds every byte of p, as one bus write transaction.
func (d *Device) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, ErrBusClosed
	}
	for _, b := range p {
		// Chip.WriteByte never fails.
		_ = d.chip.WriteByte(b)
	}
	return len(p), nil
}

// Read fills p with one bus read per byte, as one bus read transaction. Once
// the exchange is finished the remaining bytes are the idle byte 0x01.
func (d *Device) Read(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, ErrBusClosed
	}
	for i := range p {
		p[i], _ = d.chip.ReadByte()
	}
	return len(p), nil
}

// Pending reports whether ACK or response bytes are waiting to be read.
func (d *Device) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.closed && d.chip.Pending()
}

// Drain reads every pending ACK and response byte, as a byte-stream host
// such as UART would receive them.
func (d *Device) Drain() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	var out []byte
	for d.chip.Pending() {
		b, _ := d.chip.ReadByte()
		out = append(out, b)
	}
	return out
}

// IRQ returns the level of the IRQ line.
func (d *Device) IRQ() gpio.Level {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.chip.IRQ()
}

// Snapshot returns the current session state.
func (d *Device) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.chip.Snapshot()
}

// Trace returns the recorded wire trace, oldest first.
func (d *Device) Trace() []TraceEntry {
	return d.chip.Trace().Entries()
}

// CardInfo describes one virtual card for inspection.
type CardInfo struct {
	UID      string `json:"uid"`
	Presence string `json:"presence"`
	Slot     int    `json:"slot"`
	Active   bool   `json:"active"`
}

// Card describes the card in slot. It bypasses authentication and is not
// visible on the bus.
func (d *Device) Card(slot int) (CardInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	crd, err := d.chip.Store().Card(slot)
	if err != nil {
		return CardInfo{}, fmt.Errorf("%w: %w", ErrUnknownSlot, err)
	}
	return CardInfo{
		Slot:     slot,
		UID:      crd.UIDString(),
		Presence: crd.Presence.String(),
		Active:   d.chip.Store().Active() == slot,
	}, nil
}

// PeekBlock returns one block of a card without authentication.
func (d *Device) PeekBlock(slot, block int) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	crd, err := d.chip.Store().Card(slot)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnknownSlot, err)
	}
	data, err := crd.Block(block)
	if err != nil {
		return nil, fmt.Errorf("peek block: %w", err)
	}
	return data, nil
}

// DumpCard returns a hex dump of a card's whole memory image.
func (d *Device) DumpCard(slot int) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	crd, err := d.chip.Store().Card(slot)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnknownSlot, err)
	}
	return crd.Dump(), nil
}

// Close stops the timer. Later bus operations fail with ErrBusClosed.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if d.timer != nil {
		d.timer.Stop()
	}
	return nil
}
