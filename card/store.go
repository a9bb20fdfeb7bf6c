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

import "fmt"

// Store holds the two card slots and the current selection. At most one
// card is present at a time, and the active slot is only ever a present card.
type Store struct {
	cards  [Slots]*VirtualCard
	active int
}

// NewStore creates a store with both cards absent and the default UIDs.
func NewStore() *Store {
	s := &Store{active: NoCard}
	for slot := range Slots {
		// Default UIDs are always valid.
		c, _ := NewVirtualCard(slot, DefaultUIDs[slot])
		s.cards[slot] = c
	}
	return s
}

// SetUID replaces a slot with a fresh factory image carrying uid. Any data
// written to the previous card is lost and the slot is left absent.
func (s *Store) SetUID(slot int, uid []byte) error {
	c, err := NewVirtualCard(slot, uid)
	if err != nil {
		return err
	}
	if s.active == slot {
		s.active = NoCard
	}
	s.cards[slot] = c
	return nil
}

// Card returns the card in a slot.
func (s *Store) Card(slot int) (*VirtualCard, error) {
	if slot < 0 || slot >= Slots {
		return nil, fmt.Errorf("%w: %d", ErrSlotRange, slot)
	}
	return s.cards[slot], nil
}

// Active returns the selected slot or NoCard.
func (s *Store) Active() int {
	return s.active
}

// ActiveCard returns the selected card if it is present, otherwise nil.
func (s *Store) ActiveCard() *VirtualCard {
	if s.active == NoCard {
		return nil
	}
	c := s.cards[s.active]
	if !c.IsPresent() {
		return nil
	}
	return c
}

// IsPresent reports whether the card in slot is in the field.
func (s *Store) IsPresent(slot int) bool {
	if slot < 0 || slot >= Slots {
		return false
	}
	return s.cards[slot].IsPresent()
}

// Select places the card in slot into the field and removes every other card.
func (s *Store) Select(slot int) error {
	if slot < 0 || slot >= Slots {
		return fmt.Errorf("%w: %d", ErrSlotRange, slot)
	}
	for i, c := range s.cards {
		if i == slot {
			c.Presence = Present
		} else {
			c.Presence = Absent
		}
	}
	s.active = slot
	return nil
}

// Clear removes every card from the field.
func (s *Store) Clear() {
	for _, c := range s.cards {
		c.Presence = Absent
	}
	s.active = NoCard
}
