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

package card

import "bytes"

// KeyKind selects which trailer key an authentication is checked against.
// The values are the MIFARE authentication sub-commands.
type KeyKind byte

const (
	KeyA KeyKind = 0x60
	KeyB KeyKind = 0x61
)

func (k KeyKind) String() string {
	switch k {
	case KeyA:
		return "A"
	case KeyB:
		return "B"
	default:
		return "unknown"
	}
}

// AuthContext remembers the most recent authentication attempt. It is updated
// on every attempt, successful or not.
type AuthContext struct {
	LastKind   KeyKind `json:"last_kind"`
	LastBlock  int     `json:"last_block"`
	LastSector int     `json:"last_sector"`
	Succeeded  bool    `json:"succeeded"`
}

// NewAuthContext returns a context with no attempt recorded. LastSector
// starts at -1, so nothing is unlocked before the first authentication. The
// reference firmware zero-initialises it instead, which leaves sector 0
// readable on a fresh chip.
func NewAuthContext() AuthContext {
	return AuthContext{LastSector: -1, LastBlock: -1}
}

// Record stores an attempt.
func (a *AuthContext) Record(kind KeyKind, block int, ok bool) {
	a.LastKind = kind
	a.LastBlock = block
	a.LastSector = SectorOf(block)
	a.Succeeded = ok
}

// Allows reports whether a read or write of sector may proceed. Without
// strict, a failed attempt on the sector still unlocks it, as the reference
// firmware does.
func (a AuthContext) Allows(sector int, strict bool) bool {
	if a.LastSector != sector {
		return false
	}
	return !strict || a.Succeeded
}

// Authenticate compares key with key A (trailer bytes 0..5) or key B (bytes
// 10..15) of sector on the card in slot. It never mutates the store.
func Authenticate(store *Store, slot, sector int, key []byte, kind KeyKind) bool {
	if slot < 0 || slot >= Slots {
		return false
	}
	if sector < 0 || sector >= SectorCount {
		return false
	}
	if len(key) != KeyLength {
		return false
	}

	trailer := store.cards[slot].Trailer(sector)
	stored := trailer[:KeyLength]
	if kind != KeyA {
		stored = trailer[BlockSize-KeyLength:]
	}
	return bytes.Equal(key, stored)
}
