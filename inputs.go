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
	"sync/atomic"
)

// Control input names as used by the HTTP and Redis control surfaces.
const (
	ControlCard1 = "card1"
	ControlCard2 = "card2"
	ControlReset = "reset"
)

// ControlNames lists every control input.
var ControlNames = []string{ControlCard1, ControlCard2, ControlReset}

// Controls is a sample of the three toggles.
type Controls struct {
	Card1 bool `json:"card1"`
	Card2 bool `json:"card2"`
	Reset bool `json:"reset"`
}

// ControlInputs is sampled by the chip before every bus read.
type ControlInputs interface {
	Controls() Controls
}

// Toggles is a ControlInputs backed by atomics, safe to flip from any
// goroutine.
type Toggles struct {
	card1 atomic.Bool
	card2 atomic.Bool
	reset atomic.Bool
}

// Controls returns the current toggle states.
func (t *Toggles) Controls() Controls {
	return Controls{
		Card1: t.card1.Load(),
		Card2: t.card2.Load(),
		Reset: t.reset.Load(),
	}
}

// Set changes one toggle by name and reports whether its value changed.
func (t *Toggles) Set(name string, on bool) (bool, error) {
	var b *atomic.Bool
	switch name {
	case ControlCard1:
		b = &t.card1
	case ControlCard2:
		b = &t.card2
	case ControlReset:
		b = &t.reset
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownControl, name)
	}
	return b.Swap(on) != on, nil
}

// Store replaces all three toggles at once.
func (t *Toggles) Store(c Controls) {
	t.card1.Store(c.Card1)
	t.card2.Store(c.Card2)
	t.reset.Store(c.Reset)
}
