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

// MIFARE Classic commands carried by InDataExchange
const (
	mifareCmdAuthA = byte(card.KeyA)
	mifareCmdAuthB = byte(card.KeyB)
	mifareCmdRead  = 0x30
	mifareCmdWrite = 0xA0
)

// InDataExchange parameter offsets, after the command byte
const (
	dxTarget  = 0 // Tg, ignored
	dxCommand = 1
	dxBlock   = 2
	dxPayload = 3 // key for auth, block data for write
)

func statusReply(status byte) Reply {
	return frameReply(cmdInDataExchange+1, status)
}

// handleInDataExchange runs a MIFARE command against the selected card.
// Every failure is a well-formed frame with status 0x01.
func (c *Chip) handleInDataExchange(params []byte) Reply {
	slot := c.activeSlot()
	if slot == card.NoCard {
		c.log.Debug().Msg("no card in field for data exchange")
		return statusReply(StatusError)
	}
	if len(params) <= dxBlock {
		c.log.Debug().Int("len", len(params)).Msg("data exchange too short")
		return statusReply(StatusError)
	}

	block := int(params[dxBlock])
	sub := params[dxCommand]
	if sub == mifareCmdAuthA || sub == mifareCmdAuthB {
		return c.mifareAuthenticate(slot, card.KeyKind(sub), block, params[dxPayload:])
	}
	if block >= card.BlockCount {
		c.log.Debug().Int("block", block).Msg("block out of range")
		return statusReply(StatusError)
	}

	switch sub {
	case mifareCmdRead:
		return c.mifareRead(slot, block)
	case mifareCmdWrite:
		return c.mifareWrite(slot, block, params[dxPayload:])
	default:
		c.log.Debug().Msgf("unsupported MIFARE command: 0x%02X", sub)
		return statusReply(StatusError)
	}
}

// mifareAuthenticate records the attempt whatever the outcome, then checks
// the key against the sector trailer. Out-of-range blocks and truncated keys
// are recorded as failed attempts and relock the previous sector.
func (c *Chip) mifareAuthenticate(slot int, kind card.KeyKind, block int, key []byte) Reply {
	sector := card.SectorOf(block)
	ok := false
	if len(key) >= card.KeyLength {
		ok = card.Authenticate(c.store, slot, sector, key[:card.KeyLength], kind)
	} else {
		c.log.Debug().Int("len", len(key)).Msg("authentication key truncated")
	}
	c.auth.Record(kind, block, ok)
	c.observer.Authenticated(slot, sector, kind, ok)

	if !ok {
		c.log.Debug().Int("sector", sector).Stringer("key", kind).Msg("authentication failed")
		return statusReply(StatusError)
	}
	c.log.Debug().Int("sector", sector).Stringer("key", kind).Msg("authentication successful")
	return statusReply(StatusOK)
}

func (c *Chip) mifareRead(slot, block int) Reply {
	sector := card.SectorOf(block)
	if !c.auth.Allows(sector, c.strict) {
		c.log.Debug().Int("sector", sector).Msg("authentication required")
		return statusReply(StatusError)
	}

	crd, _ := c.store.Card(slot)
	data, err := crd.Block(block)
	if err != nil {
		return statusReply(StatusError)
	}

	payload := make([]byte, 0, 2+card.BlockSize)
	payload = append(payload, cmdInDataExchange+1, StatusOK)
	payload = append(payload, data...)
	c.log.Debug().Int("block", block).Int("sector", sector).Msg("read block")
	return Reply{Kind: ReplyFrame, Payload: payload}
}

func (c *Chip) mifareWrite(slot, block int, data []byte) Reply {
	if len(data) < card.BlockSize {
		c.log.Debug().Int("len", len(data)).Msg("write data truncated")
		return statusReply(StatusError)
	}

	sector := card.SectorOf(block)
	if !c.auth.Allows(sector, c.strict) {
		c.log.Debug().Int("sector", sector).Msg("authentication required")
		return statusReply(StatusError)
	}

	crd, _ := c.store.Card(slot)
	if err := crd.SetBlock(block, data[:card.BlockSize]); err != nil {
		return statusReply(StatusError)
	}
	c.log.Debug().Int("block", block).Int("sector", sector).Msg("wrote block")
	return statusReply(StatusOK)
}
