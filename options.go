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
	"time"

	"github.com/rs/zerolog"
)

// Timer arms the one-shot processing delay. When it expires the owner must
// call Chip.TimerElapsed.
type Timer interface {
	Arm(d time.Duration)
}

// Option configures a Chip.
type Option func(*options)

type options struct {
	timer     Timer
	line      SignalLine
	controls  ControlInputs
	logger    *zerolog.Logger
	cardUIDs  map[int][]byte
	observers []Observer
	firmware  FirmwareVersion
	delay     time.Duration
	traceSize int
	strict    bool
}

func defaultOptions() options {
	return options{
		firmware:  DefaultFirmwareVersion,
		delay:     DefaultResponseDelay,
		traceSize: DefaultTraceSize,
		cardUIDs:  make(map[int][]byte),
	}
}

// WithTimer sets the one-shot timer. Without one the chip never lowers IRQ
// on its own; the host must call TimerElapsed.
func WithTimer(t Timer) Option {
	return func(o *options) {
		o.timer = t
	}
}

// WithSignalLine sets the IRQ output. Any periph gpio.PinOut satisfies it.
func WithSignalLine(line SignalLine) Option {
	return func(o *options) {
		o.line = line
	}
}

// WithControls sets the source of the card1/card2/reset inputs.
func WithControls(c ControlInputs) Option {
	return func(o *options) {
		o.controls = c
	}
}

// WithLogger sets the logger used instead of the package logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &l
	}
}

// WithObserver adds an observer. May be given more than once.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

// WithResponseDelay sets the simulated processing time before IRQ drops.
func WithResponseDelay(d time.Duration) Option {
	return func(o *options) {
		o.delay = d
	}
}

// WithFirmwareVersion sets the GetFirmwareVersion answer.
func WithFirmwareVersion(fw FirmwareVersion) Option {
	return func(o *options) {
		o.firmware = fw
	}
}

// WithStrictAuthentication requires the last authentication to have
// succeeded before a read or write of its sector. By default any attempt,
// even a failed one, unlocks the sector.
func WithStrictAuthentication() Option {
	return func(o *options) {
		o.strict = true
	}
}

// WithCardUID replaces the UID of a slot. The UID must be 4 bytes.
func WithCardUID(slot int, uid []byte) Option {
	return func(o *options) {
		o.cardUIDs[slot] = append([]byte(nil), uid...)
	}
}

// WithTraceSize sets how many frames the wire trace keeps.
func WithTraceSize(n int) Option {
	return func(o *options) {
		o.traceSize = n
	}
}
