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

import "github.com/ZaparooProject/pn532emu/card"

// Observer receives session events. Methods are called with the session lock
// held and must not block or call back into the Device.
type Observer interface {
	FrameAccepted(cmd byte, length int)
	FrameRejected(err error)
	ResponseQueued(cmd byte, reply Reply)
	ResponseSuppressed(cmd byte)
	Authenticated(slot, sector int, kind card.KeyKind, ok bool)
	CardSelected(slot int)
	FieldReset()
}

// NopObserver ignores every event. Embed it to implement only some methods.
type NopObserver struct{}

func (NopObserver) FrameAccepted(byte, int)                    {}
func (NopObserver) FrameRejected(error)                        {}
func (NopObserver) ResponseQueued(byte, Reply)                 {}
func (NopObserver) ResponseSuppressed(byte)                    {}
func (NopObserver) Authenticated(int, int, card.KeyKind, bool) {}
func (NopObserver) CardSelected(int)                           {}
func (NopObserver) FieldReset()                                {}

// multiObserver fans events out in registration order.
type multiObserver []Observer

func newObserver(obs []Observer) Observer {
	switch len(obs) {
	case 0:
		return NopObserver{}
	case 1:
		return obs[0]
	default:
		return multiObserver(append([]Observer(nil), obs...))
	}
}

func (m multiObserver) FrameAccepted(cmd byte, length int) {
	for _, o := range m {
		o.FrameAccepted(cmd, length)
	}
}

func (m multiObserver) FrameRejected(err error) {
	for _, o := range m {
		o.FrameRejected(err)
	}
}

func (m multiObserver) ResponseQueued(cmd byte, reply Reply) {
	for _, o := range m {
		o.ResponseQueued(cmd, reply)
	}
}

func (m multiObserver) ResponseSuppressed(cmd byte) {
	for _, o := range m {
		o.ResponseSuppressed(cmd)
	}
}

func (m multiObserver) Authenticated(slot, sector int, kind card.KeyKind, ok bool) {
	for _, o := range m {
		o.Authenticated(slot, sector, kind, ok)
	}
}

func (m multiObserver) CardSelected(slot int) {
	for _, o := range m {
		o.CardSelected(slot)
	}
}

func (m multiObserver) FieldReset() {
	for _, o := range m {
		o.FieldReset()
	}
}
