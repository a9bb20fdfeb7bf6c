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
	"time"

	"github.com/ZaparooProject/pn532emu/card"
)

// DefaultAddress is the 7-bit I2C address the chip answers on.
const DefaultAddress uint16 = 0x24

// DefaultResponseDelay is how long after a frame is accepted the IRQ line
// drops to signal a response is ready.
const DefaultResponseDelay = time.Millisecond

// maxResponseDelay bounds the simulated processing time.
const maxResponseDelay = 10 * time.Second

// FirmwareVersion is the GetFirmwareVersion payload after the response code.
type FirmwareVersion struct {
	IC       byte
	Version  byte
	Revision byte
	Support  byte
}

// DefaultFirmwareVersion identifies the chip as a PN532 v1.6.
var DefaultFirmwareVersion = FirmwareVersion{IC: 0x32, Version: 0x01, Revision: 0x06, Support: 0x07}

func (f FirmwareVersion) String() string {
	return fmt.Sprintf("IC 0x%02X v%d.%d support 0x%02X", f.IC, f.Version, f.Revision, f.Support)
}

// Config describes an emulated chip. The zero value is not valid; start from
// DefaultConfig.
type Config struct {
	CardUIDs             [card.Slots][]byte `json:"card_uids"`
	Firmware             FirmwareVersion    `json:"firmware"`
	ResponseDelay        time.Duration      `json:"response_delay"`
	TraceSize            int                `json:"trace_size"`
	Address              uint16             `json:"address"`
	StrictAuthentication bool               `json:"strict_authentication"`
}

// DefaultConfig returns the configuration of the reference chip.
func DefaultConfig() Config {
	return Config{
		CardUIDs: [card.Slots][]byte{
			append([]byte(nil), card.DefaultUIDs[0]...),
			append([]byte(nil), card.DefaultUIDs[1]...),
		},
		Firmware:      DefaultFirmwareVersion,
		ResponseDelay: DefaultResponseDelay,
		TraceSize:     DefaultTraceSize,
		Address:       DefaultAddress,
	}
}

// Validate checks the configuration for values the chip cannot honour.
func (c Config) Validate() error {
	if c.ResponseDelay < 0 || c.ResponseDelay > maxResponseDelay {
		return fmt.Errorf("%w: response delay %v outside [0, %v]", ErrInvalidConfig, c.ResponseDelay, maxResponseDelay)
	}
	// 0x00-0x07 and 0x78-0x7F are reserved 7-bit addresses.
	if c.Address < 0x08 || c.Address > 0x77 {
		return fmt.Errorf("%w: I2C address 0x%02X is reserved or not 7-bit", ErrInvalidConfig, c.Address)
	}
	for slot, uid := range c.CardUIDs {
		if len(uid) != card.UIDLength {
			return fmt.Errorf("%w: card %d UID must be %d bytes, got %d",
				ErrInvalidConfig, slot+1, card.UIDLength, len(uid))
		}
	}
	if c.TraceSize < 0 {
		return fmt.Errorf("%w: negative trace size", ErrInvalidConfig)
	}
	return nil
}

// Options converts the configuration into chip options.
func (c Config) Options() []Option {
	opts := []Option{
		WithResponseDelay(c.ResponseDelay),
		WithFirmwareVersion(c.Firmware),
		WithTraceSize(c.TraceSize),
	}
	for slot, uid := range c.CardUIDs {
		opts = append(opts, WithCardUID(slot, uid))
	}
	if c.StrictAuthentication {
		opts = append(opts, WithStrictAuthentication())
	}
	return opts
}
