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

// Package pn532emu emulates a PN532 NFC reader at the wire level, with two
// virtual MIFARE Classic 1K cards in its field.
//
// A Chip consumes the bytes a host writes on the bus and produces the bytes
// the host reads back: an ACK, then the response frame, then the idle byte
// 0x01. It is single-threaded; Device wraps it for concurrent hosts and
// drives the response timer.
package pn532emu

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/gpio"

	"github.com/ZaparooProject/pn532emu/card"
	"github.com/ZaparooProject/pn532emu/internal/frame"
)

// Chip is the device session: frame ingest, command processing and the
// response byte stream. WriteByte, ReadByte and TimerElapsed must not be
// called concurrently.
type Chip struct {
	timer    Timer
	line     SignalLine
	controls ControlInputs
	observer Observer
	store    *card.Store
	trace    *TraceBuffer
	log      zerolog.Logger
	pending  frame.Frame
	stream   streamer
	ingest   frame.Ingester
	auth     card.AuthContext
	delay    time.Duration
	firmware FirmwareVersion
	irq      gpio.Level
	command  byte

	awaitingAck      bool
	awaitingResponse bool
	strict           bool
}

// NewChip creates a chip with both cards absent and IRQ high.
func NewChip(opts ...Option) (*Chip, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.delay < 0 || o.delay > maxResponseDelay {
		return nil, fmt.Errorf("%w: response delay %v", ErrInvalidConfig, o.delay)
	}

	store := card.NewStore()
	for slot, uid := range o.cardUIDs {
		if err := store.SetUID(slot, uid); err != nil {
			return nil, fmt.Errorf("%w: card %d: %w", ErrInvalidConfig, slot+1, err)
		}
	}

	log := Logger()
	if o.logger != nil {
		log = *o.logger
	}

	c := &Chip{
		timer:    o.timer,
		line:     o.line,
		controls: o.controls,
		observer: newObserver(o.observers),
		store:    store,
		trace:    NewTraceBuffer("pn532emu", o.traceSize),
		log:      log,
		auth:     card.NewAuthContext(),
		delay:    o.delay,
		firmware: o.firmware,
		strict:   o.strict,
		irq:      gpio.Low,
	}
	c.setIRQ(gpio.High)
	return c, nil
}

// WriteByte feeds one byte written by the host. The bus always acknowledges
// it: framing errors are handled inside the session and never surface here.
func (c *Chip) WriteByte(b byte) error {
	res, err := c.ingest.Feed(b)
	switch res {
	case frame.Accepted:
		c.accept(c.ingest.Frame())
	case frame.Rejected:
		c.log.Debug().Err(err).Msg("frame rejected")
		c.observer.FrameRejected(err)
	case frame.Continue:
	}
	return nil
}

// ReadByte returns the next byte the host reads. Control inputs are
// reconciled first.
func (c *Chip) ReadByte() (byte, error) {
	c.reconcile()

	if c.awaitingAck {
		b, last := c.stream.next()
		if last {
			c.awaitingAck = false
			c.respond()
		}
		return b, nil
	}

	if c.awaitingResponse {
		b, last := c.stream.next()
		if last {
			c.awaitingResponse = false
			c.stream.reset()
		}
		return b, nil
	}

	return frame.Ready, nil
}

// TimerElapsed signals the end of the processing delay: IRQ goes low.
func (c *Chip) TimerElapsed() {
	c.setIRQ(gpio.Low)
}

// Pending reports whether the host still has ACK or response bytes to read.
func (c *Chip) Pending() bool {
	return c.awaitingAck || c.awaitingResponse
}

// accept starts a new exchange. An unread response from a previous exchange
// is dropped.
func (c *Chip) accept(f frame.Frame) {
	if c.awaitingResponse {
		c.log.Debug().Int("unread", c.stream.remaining()).Msg("previous response discarded")
	}
	c.pending = f
	c.command = f.Command
	c.awaitingResponse = false
	c.awaitingAck = true
	c.stream.load(frame.AckFrame)

	c.setIRQ(gpio.High)
	if c.timer != nil {
		c.timer.Arm(c.delay)
	}

	c.trace.RecordRX(f.Data, CommandName(f.Command))
	c.observer.FrameAccepted(f.Command, len(f.Data))
	c.log.Debug().
		Str("command", CommandName(f.Command)).
		Hex("data", f.Data).
		Msgf("processing command: 0x%02X", f.Command)
}

// respond runs the pending command once its ACK has been read.
func (c *Chip) respond() {
	reply := c.process(c.pending.Data)
	if reply.Kind == ReplyNone {
		c.stream.reset()
		c.log.Debug().Msgf("unsupported command: 0x%02X", c.command)
		c.observer.ResponseSuppressed(c.command)
		return
	}

	encoded := frame.BuildResponse(reply.Payload)
	c.stream.load(encoded)
	c.awaitingResponse = true
	c.trace.RecordTX(reply.Payload, CommandName(c.command))
	c.observer.ResponseQueued(c.command, reply)
}

// reconcile applies the control inputs: reset clears the field, then an
// asserted card toggle places its card if it is not already present.
func (c *Chip) reconcile() {
	if c.controls == nil {
		return
	}
	in := c.controls.Controls()

	if in.Reset {
		occupied := c.store.Active() != card.NoCard || c.store.IsPresent(0) || c.store.IsPresent(1)
		c.store.Clear()
		if occupied {
			c.log.Info().Msg("card field reset, all cards removed")
			c.observer.FieldReset()
		}
	}
	before := c.store.Active()
	if in.Card1 && !c.store.IsPresent(0) {
		c.selectCard(0)
	}
	if in.Card2 && !c.store.IsPresent(1) {
		c.selectCard(1)
	}

	// With both toggles held the field flips through card 1 on every poll;
	// only a change of the card left in the field is reported.
	after := c.store.Active()
	if after == before || after == card.NoCard {
		return
	}
	crd, _ := c.store.Card(after)
	c.log.Info().Int("card", after+1).Str("uid", crd.UIDString()).Msg("card placed in field")
	c.observer.CardSelected(after)
}

func (c *Chip) selectCard(slot int) {
	if err := c.store.Select(slot); err != nil {
		c.log.Error().Err(err).Int("slot", slot).Msg("select card")
		return
	}
	c.log.Debug().Int("card", slot+1).Msg("card selected")
}

func (c *Chip) setIRQ(l gpio.Level) {
	if c.irq == l {
		return
	}
	c.irq = l
	if c.line == nil {
		return
	}
	if err := c.line.Out(l); err != nil {
		c.log.Warn().Err(err).Stringer("level", l).Msg("failed to drive IRQ")
	}
}

// IRQ returns the level the chip is driving on its IRQ line.
func (c *Chip) IRQ() gpio.Level {
	return c.irq
}

// Auth returns the authentication context.
func (c *Chip) Auth() card.AuthContext {
	return c.auth
}

// Store returns the card store. Callers must not mutate it while the chip is
// in use.
func (c *Chip) Store() *card.Store {
	return c.store
}

// Trace returns the wire trace of accepted frames and queued responses.
func (c *Chip) Trace() *TraceBuffer {
	return c.trace
}

// Snapshot is a read-only view of the session.
type Snapshot struct {
	Auth             card.AuthContext          `json:"auth"`
	IngestState      string                    `json:"ingest_state"`
	IRQ              string                    `json:"irq"`
	Presence         [card.Slots]card.Presence `json:"-"`
	Present          [card.Slots]bool          `json:"present"`
	ActiveCard       int                       `json:"active_card"`
	Command          byte                      `json:"command"`
	AwaitingAck      bool                      `json:"awaiting_ack"`
	AwaitingResponse bool                      `json:"awaiting_response"`
	Strict           bool                      `json:"strict_authentication"`
}

// Snapshot returns the current session state.
func (c *Chip) Snapshot() Snapshot {
	s := Snapshot{
		Auth:             c.auth,
		IngestState:      c.ingest.State().String(),
		IRQ:              c.irq.String(),
		ActiveCard:       c.store.Active(),
		Command:          c.command,
		AwaitingAck:      c.awaitingAck,
		AwaitingResponse: c.awaitingResponse,
		Strict:           c.strict,
	}
	for slot := range card.Slots {
		crd, _ := c.store.Card(slot)
		s.Presence[slot] = crd.Presence
		s.Present[slot] = crd.IsPresent()
	}
	return s
}
