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
	"context"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/ZaparooProject/pn532emu/internal/syncutil"
)

// SignalLine is the part of gpio.PinOut the chip drives. The line idles high
// and is pulled low when a response is ready.
type SignalLine interface {
	Out(l gpio.Level) error
}

// VirtualLine is an in-memory IRQ line. Hosts poll it with Read like a real
// input pin.
type VirtualLine struct {
	changed chan struct{}
	name    string
	edges   int
	mu      syncutil.Mutex
	level   gpio.Level
}

// NewVirtualLine returns a line that starts high.
func NewVirtualLine(name string) *VirtualLine {
	return &VirtualLine{
		name:    name,
		level:   gpio.High,
		changed: make(chan struct{}),
	}
}

func (v *VirtualLine) String() string {
	return v.name
}

// Out drives the line.
func (v *VirtualLine) Out(l gpio.Level) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.level == l {
		return nil
	}
	v.level = l
	v.edges++
	close(v.changed)
	v.changed = make(chan struct{})
	return nil
}

// Read returns the current level.
func (v *VirtualLine) Read() gpio.Level {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.level
}

// Edges returns how many times the level has changed.
func (v *VirtualLine) Edges() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.edges
}

// WaitFor blocks until the line is at level l or ctx is done.
func (v *VirtualLine) WaitFor(ctx context.Context, l gpio.Level) error {
	for {
		v.mu.Lock()
		level, changed := v.level, v.changed
		v.mu.Unlock()
		if level == l {
			return nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return fmt.Errorf("wait for %s %s: %w", v.name, l, ctx.Err())
		}
	}
}

// WaitForEdge blocks until the level changes or timeout elapses, like
// gpio.PinIn. A negative timeout waits forever.
func (v *VirtualLine) WaitForEdge(timeout time.Duration) bool {
	v.mu.Lock()
	changed := v.changed
	v.mu.Unlock()

	if timeout < 0 {
		<-changed
		return true
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-changed:
		return true
	case <-t.C:
		return false
	}
}
