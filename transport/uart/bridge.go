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

// Package uart serves the emulator over a byte stream: a real serial port, a
// pseudo terminal or any io.ReadWriteCloser.
package uart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"go.bug.st/serial"

	pn532emu "github.com/ZaparooProject/pn532emu"
)

const (
	// BaudRate is the PN532's default HSU speed.
	BaudRate = 115200

	readTimeout = 50 * time.Millisecond
	readBufSize = 64
)

// Bridge pumps host bytes into a Device and streams the ACK and response
// back. A byte-stream host has no separate read transaction, so everything
// pending is written as soon as a frame is accepted.
type Bridge struct {
	dev  *pn532emu.Device
	port io.ReadWriteCloser
	log  zerolog.Logger
	name string
}

// NewBridge creates a bridge between port and dev.
func NewBridge(dev *pn532emu.Device, port io.ReadWriteCloser, name string) *Bridge {
	return &Bridge{
		dev:  dev,
		port: port,
		name: name,
		log:  pn532emu.Logger().With().Str("transport", "uart").Str("port", name).Logger(),
	}
}

// Serve runs until ctx is done or the port fails. The port is closed on
// return. A cancelled context is not an error.
func (b *Bridge) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		_ = b.port.Close()
	})
	defer func() {
		if stop() {
			_ = b.port.Close()
		}
	}()

	b.log.Info().Msg("serving")
	buf := make([]byte, readBufSize)
	for {
		n, err := b.port.Read(buf)
		if n > 0 {
			if werr := b.feed(buf[:n]); werr != nil {
				return b.exit(ctx, werr)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || pn532emu.IsFatal(err) || ctx.Err() != nil {
				return b.exit(ctx, err)
			}
			var portErr *serial.PortError
			if errors.As(err, &portErr) && portErr.Code() == serial.PortClosed {
				return b.exit(ctx, err)
			}
			b.log.Warn().Err(err).Msg("read failed")
		}
	}
}

func (b *Bridge) feed(p []byte) error {
	if _, err := b.dev.Write(p); err != nil {
		return fmt.Errorf("uart feed: %w", err)
	}
	out := b.dev.Drain()
	if len(out) == 0 {
		return nil
	}
	if _, err := b.port.Write(out); err != nil {
		return pn532emu.NewTransportError("write", b.name, err, pn532emu.ErrorTypePermanent)
	}
	b.log.Debug().Int("bytes", len(out)).Msg("sent to host")
	return nil
}

func (b *Bridge) exit(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		b.log.Info().Msg("stopped")
		return nil
	}
	b.log.Error().Err(err).Msg("port failed")
	return fmt.Errorf("uart %s: %w", b.name, err)
}

// Open opens a serial port at 115200 8N1.
func Open(path string) (serial.Port, error) {
	port, err := serial.Open(path, &serial.Mode{
		BaudRate: BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open UART port %s: %w", path, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set UART read timeout: %w", err)
	}
	return port, nil
}
