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

// PN532 command codes handled by the chip
const (
	cmdGetFirmwareVersion  = 0x02
	cmdSAMConfiguration    = 0x14
	cmdInDataExchange      = 0x40
	cmdInListPassiveTarget = 0x4A
)

// Status bytes carried in InDataExchange responses
const (
	StatusOK    byte = 0x00
	StatusError byte = 0x01
)

// ISO/IEC 14443 Type A target data for a MIFARE Classic 1K
const (
	brTyTypeA     = 0x00 // 106 kbps Type A
	atqaMSB       = 0x00
	atqaLSB       = 0x04
	sakClassic1K  = 0x08
	targetNumber  = 0x01
	targetsFound  = 0x01
	noTargetFound = 0x00
)

// ReplyKind says whether a command produces a response frame.
type ReplyKind int

const (
	// ReplyNone means the command is not supported: no response frame is
	// sent and reads return the idle byte until the next frame.
	ReplyNone ReplyKind = iota
	// ReplyFrame means Payload is streamed as a normal information frame.
	ReplyFrame
)

// Reply is the outcome of processing one command.
type Reply struct {
	Payload []byte
	Kind    ReplyKind
}

func frameReply(payload ...byte) Reply {
	return Reply{Kind: ReplyFrame, Payload: payload}
}

// Status returns the status byte of an InDataExchange reply.
func (r Reply) Status() (byte, bool) {
	if r.Kind != ReplyFrame || len(r.Payload) < 2 || r.Payload[0] != cmdInDataExchange+1 {
		return 0, false
	}
	return r.Payload[1], true
}

// CommandName returns a readable name for a command code.
func CommandName(cmd byte) string {
	switch cmd {
	case cmdGetFirmwareVersion:
		return "GetFirmwareVersion"
	case cmdSAMConfiguration:
		return "SAMConfiguration"
	case cmdInDataExchange:
		return "InDataExchange"
	case cmdInListPassiveTarget:
		return "InListPassiveTarget"
	default:
		return "Unknown"
	}
}

// process dispatches one accepted command. data[0] is the command code.
func (c *Chip) process(data []byte) Reply {
	params := data[1:]
	switch data[0] {
	case cmdGetFirmwareVersion:
		return c.handleGetFirmwareVersion()
	case cmdSAMConfiguration:
		return c.handleSAMConfiguration()
	case cmdInListPassiveTarget:
		return c.handleInListPassiveTarget(params)
	case cmdInDataExchange:
		return c.handleInDataExchange(params)
	default:
		return Reply{Kind: ReplyNone}
	}
}

// handleGetFirmwareVersion answers with IC, Ver, Rev, Support.
func (c *Chip) handleGetFirmwareVersion() Reply {
	fw := c.firmware
	return frameReply(cmdGetFirmwareVersion+1, fw.IC, fw.Version, fw.Revision, fw.Support)
}

// handleSAMConfiguration accepts any mode and reports success.
func (*Chip) handleSAMConfiguration() Reply {
	return frameReply(cmdSAMConfiguration+1, StatusOK)
}

// handleInListPassiveTarget reports the selected card if one is present and
// the host asked for 106 kbps Type A. MaxTg is ignored: at most one card is
// ever in the field.
func (c *Chip) handleInListPassiveTarget(params []byte) Reply {
	active := c.store.ActiveCard()
	if active == nil {
		c.log.Debug().Msg("no card found in field")
		return frameReply(cmdInListPassiveTarget+1, noTargetFound)
	}
	if len(params) < 2 || params[1] != brTyTypeA {
		c.log.Debug().Msg("unsupported card type requested")
		return frameReply(cmdInListPassiveTarget+1, noTargetFound)
	}

	payload := make([]byte, 0, 7+len(active.UID))
	payload = append(payload,
		cmdInListPassiveTarget+1, targetsFound, targetNumber,
		atqaMSB, atqaLSB, byte(len(active.UID)))
	payload = append(payload, active.UID...)
	payload = append(payload, sakClassic1K)

	c.log.Debug().Str("uid", active.UIDString()).Int("slot", active.Slot).Msg("card found")
	return Reply{Kind: ReplyFrame, Payload: payload}
}

// activeSlot returns the selected present slot or card.NoCard.
func (c *Chip) activeSlot() int {
	if c.store.ActiveCard() == nil {
		return card.NoCard
	}
	return c.store.Active()
}
