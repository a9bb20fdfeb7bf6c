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

// Package card models the virtual MIFARE Classic 1K cards the emulator
// presents in its RF field.
package card

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// MIFARE Classic 1K geometry.
const (
	BlockSize       = 16
	BlocksPerSector = 4
	SectorCount     = 16
	BlockCount      = SectorCount * BlocksPerSector
	MemorySize      = BlockCount * BlockSize
	KeyLength       = 6
	UIDLength       = 4
)

// Slots is the number of cards the store can hold.
const Slots = 2

// NoCard is the active slot when nothing is selected.
const NoCard = -1

var (
	ErrBlockRange = errors.New("card: block out of range")
	ErrSlotRange  = errors.New("card: slot out of range")
	ErrUIDLength  = errors.New("card: UID must be 4 bytes")
	ErrDataLength = errors.New("card: block data must be 16 bytes")
)

// DefaultUIDs are the UIDs of slot 0 and slot 1.
var DefaultUIDs = [Slots][]byte{
	{0xDE, 0xAD, 0xBE, 0xEF},
	{0xCA, 0xFE, 0xBA, 0xBE},
}

// DefaultKey is the transport key both key slots of every trailer start with.
var DefaultKey = []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

var defaultTrailer = [BlockSize]byte{
	0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, // Key A
	0xFF, 0x07, 0x80, 0x69, // Access bits
	0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, // Key B
}

// Presence tells whether a card is in the field.
type Presence int

const (
	Absent Presence = iota
	Present
)

func (p Presence) String() string {
	if p == Present {
		return "present"
	}
	return "absent"
}

// VirtualCard is one MIFARE Classic 1K card image.
type VirtualCard struct {
	UID      []byte
	Slot     int
	Presence Presence
	Memory   [MemorySize]byte
}

// NewVirtualCard creates an absent card with the factory memory image: the UID
// in block 0 and the default keys and access bits in every sector trailer.
func NewVirtualCard(slot int, uid []byte) (*VirtualCard, error) {
	if slot < 0 || slot >= Slots {
		return nil, fmt.Errorf("%w: %d", ErrSlotRange, slot)
	}
	if len(uid) != UIDLength {
		return nil, fmt.Errorf("%w: got %d", ErrUIDLength, len(uid))
	}

	c := &VirtualCard{
		Slot: slot,
		UID:  append([]byte(nil), uid...),
	}
	copy(c.Memory[:UIDLength], uid)
	for sector := range SectorCount {
		off := TrailerBlock(sector) * BlockSize
		copy(c.Memory[off:off+BlockSize], defaultTrailer[:])
	}
	return c, nil
}

// SectorOf returns the sector a block belongs to.
func SectorOf(block int) int {
	return block / BlocksPerSector
}

// TrailerBlock returns the block number of a sector's trailer.
func TrailerBlock(sector int) int {
	return sector*BlocksPerSector + BlocksPerSector - 1
}

// IsTrailer reports whether block is a sector trailer.
func IsTrailer(block int) bool {
	return block%BlocksPerSector == BlocksPerSector-1
}

// IsPresent reports whether the card is in the field.
func (c *VirtualCard) IsPresent() bool {
	return c.Presence == Present
}

// UIDString returns the UID as upper-case hex.
func (c *VirtualCard) UIDString() string {
	return fmt.Sprintf("%X", c.UID)
}

// Block returns a copy of one 16-byte block.
func (c *VirtualCard) Block(block int) ([]byte, error) {
	if block < 0 || block >= BlockCount {
		return nil, fmt.Errorf("%w: %d", ErrBlockRange, block)
	}
	off := block * BlockSize
	data := make([]byte, BlockSize)
	copy(data, c.Memory[off:off+BlockSize])
	return data, nil
}

// SetBlock overwrites one block. Trailers are not protected: the card follows
// whatever access the session granted.
func (c *VirtualCard) SetBlock(block int, data []byte) error {
	if block < 0 || block >= BlockCount {
		return fmt.Errorf("%w: %d", ErrBlockRange, block)
	}
	if len(data) != BlockSize {
		return fmt.Errorf("%w: got %d", ErrDataLength, len(data))
	}
	off := block * BlockSize
	copy(c.Memory[off:off+BlockSize], data)
	return nil
}

// Trailer returns the 16 trailer bytes of a sector without copying.
func (c *VirtualCard) Trailer(sector int) []byte {
	off := TrailerBlock(sector) * BlockSize
	return c.Memory[off : off+BlockSize]
}

// Dump renders the memory image as a hex dump, one block per line group.
func (c *VirtualCard) Dump() string {
	return hex.Dump(c.Memory[:])
}
