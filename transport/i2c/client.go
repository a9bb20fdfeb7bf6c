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

package i2c

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"

	pn532emu "github.com/ZaparooProject/pn532emu"
	"github.com/ZaparooProject/pn532emu/card"
	"github.com/ZaparooProject/pn532emu/internal/frame"
)

const (
	cmdGetFirmwareVersion  = 0x02
	cmdSAMConfiguration    = 0x14
	cmdInDataExchange      = 0x40
	cmdInListPassiveTarget = 0x4A

	mifareRead  = 0x30
	mifareWrite = 0xA0

	defaultTimeout = 100 * time.Millisecond
	pollInterval   = 200 * time.Microsecond
	traceSize      = 16
)

var (
	// ErrNoTarget is returned by ListPassiveTarget when no card is in the field.
	ErrNoTarget = errors.New("no target found")
	// ErrStatus is returned when an InDataExchange reports a non-zero status.
	ErrStatus = errors.New("command failed")
)

// Level is an input pin, such as the chip's IRQ line.
type Level interface {
	Read() gpio.Level
}

// Client drives a PN532 over I2C from the host side: it writes command
// frames, reads the ACK and then the response frame.
type Client struct {
	dev     *i2c.Dev
	irq     Level
	retry   *pn532emu.RetryConfig
	trace   *pn532emu.TraceBuffer
	name    string
	timeout time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAddress sets the 7-bit address the client talks to.
func WithAddress(addr uint16) ClientOption {
	return func(c *Client) {
		c.dev.Addr = addr
	}
}

// WithIRQ makes the client wait for the IRQ line to go low before reading
// the response frame.
func WithIRQ(irq Level) ClientOption {
	return func(c *Client) {
		c.irq = irq
	}
}

// WithTimeout sets how long to wait for the ACK and for the response.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRetry sets the retry policy. nil disables retries.
func WithRetry(cfg *pn532emu.RetryConfig) ClientOption {
	return func(c *Client) {
		c.retry = cfg
	}
}

// NewClient creates a client on bus.
func NewClient(bus i2c.Bus, opts ...ClientOption) *Client {
	c := &Client{
		dev:     &i2c.Dev{Addr: pn532emu.DefaultAddress, Bus: bus},
		name:    bus.String(),
		timeout: defaultTimeout,
		retry:   pn532emu.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendCommand sends cmd with args and returns the response payload, starting
// with the response code cmd+1. Retryable failures resend the whole command.
//
//nolint:wrapcheck // WrapError intentionally wraps errors with trace data
func (c *Client) SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(args) > frame.MaxCommandLength-1 {
		return nil, fmt.Errorf("%w: %d parameter bytes", pn532emu.ErrInvalidConfig, len(args))
	}

	c.trace = pn532emu.NewTraceBuffer(c.name, traceSize)
	defer func() { c.trace = nil }()

	var resp []byte
	err := pn532emu.RetryWithConfig(ctx, c.retryConfig(), func() error {
		var attemptErr error
		resp, attemptErr = c.exchange(ctx, cmd, args)
		return attemptErr
	})
	if err != nil {
		return nil, c.trace.WrapError(err)
	}
	return resp, nil
}

func (c *Client) retryConfig() *pn532emu.RetryConfig {
	if c.retry == nil {
		return &pn532emu.RetryConfig{}
	}
	return c.retry
}

func (c *Client) exchange(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	if err := c.sendFrame(cmd, args); err != nil {
		return nil, err
	}
	if err := c.waitAck(ctx); err != nil {
		return nil, err
	}
	if err := c.waitIRQ(ctx); err != nil {
		return nil, err
	}
	payload, err := c.receiveFrame(ctx)
	if err != nil {
		return nil, err
	}
	if payload[0] != cmd+1 {
		return nil, pn532emu.NewFrameCorruptedError("receiveFrame", c.name,
			fmt.Errorf("response code 0x%02X for command 0x%02X", payload[0], cmd))
	}
	return payload, nil
}

func (c *Client) sendFrame(cmd byte, args []byte) error {
	frm := frame.BuildCommand(cmd, args)
	c.trace.RecordTX(frm, fmt.Sprintf("Cmd 0x%02X", cmd))
	if err := c.dev.Tx(frm, nil); err != nil {
		return fmt.Errorf("failed to send I2C frame: %w", err)
	}
	return nil
}

// waitAck reads six bytes at a time until they are the ACK frame. An idle
// chip answers 0x01 to every read.
func (c *Client) waitAck(ctx context.Context) error {
	deadline := time.Now().Add(c.timeout)
	buf := make([]byte, len(frame.AckFrame))

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.dev.Tx(nil, buf); err != nil {
			return fmt.Errorf("I2C ACK read failed: %w", err)
		}
		if frame.IsAck(buf) {
			c.trace.RecordRX(buf, "ACK")
			return nil
		}
		if !idle(buf) {
			c.trace.RecordRX(buf, "Bad ACK")
			return pn532emu.NewFrameCorruptedError("waitAck", c.name, fmt.Errorf("unexpected bytes % X", buf))
		}
		if err := sleepCtx(ctx, pollInterval); err != nil {
			return err
		}
	}

	c.trace.RecordRX(nil, "ACK timeout")
	return pn532emu.NewNoACKError("waitAck", c.name)
}

// waitIRQ waits for the chip to signal the response is ready. Without an IRQ
// line the response is read right away.
func (c *Client) waitIRQ(ctx context.Context) error {
	if c.irq == nil {
		return nil
	}
	deadline := time.Now().Add(c.timeout)
	for c.irq.Read() != gpio.Low {
		if time.Now().After(deadline) {
			return pn532emu.NewTimeoutError("waitIRQ", c.name)
		}
		if err := sleepCtx(ctx, pollInterval); err != nil {
			return err
		}
	}
	return nil
}

// receiveFrame reads the response header, then the rest of the frame sized
// from LEN, and returns the payload.
func (c *Client) receiveFrame(ctx context.Context) ([]byte, error) {
	deadline := time.Now().Add(c.timeout)
	header := make([]byte, frame.HeaderLength)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := c.dev.Tx(nil, header); err != nil {
			return nil, fmt.Errorf("I2C frame read failed: %w", err)
		}
		if !idle(header) {
			break
		}
		if time.Now().After(deadline) {
			c.trace.RecordRX(nil, "Response timeout")
			return nil, pn532emu.NewTransportError("receiveFrame", c.name,
				pn532emu.ErrNoResponse, pn532emu.ErrorTypeTimeout)
		}
		if err := sleepCtx(ctx, pollInterval); err != nil {
			return nil, err
		}
	}

	total, err := frame.ResponseLength(header)
	if err != nil {
		c.trace.RecordRX(header, "Bad header")
		return nil, pn532emu.NewFrameCorruptedError("receiveFrame", c.name, err)
	}
	buf := make([]byte, total)
	copy(buf, header)
	if err := c.dev.Tx(nil, buf[frame.HeaderLength:]); err != nil {
		return nil, fmt.Errorf("I2C frame read failed: %w", err)
	}
	c.trace.RecordRX(buf, "Response")

	payload, err := frame.ParseResponse(buf)
	if err != nil {
		if errors.Is(err, frame.ErrChecksum) {
			err = fmt.Errorf("%w: %w", pn532emu.ErrChecksumMismatch, err)
		}
		return nil, pn532emu.NewFrameCorruptedError("receiveFrame", c.name, err)
	}
	if len(payload) == 0 {
		return nil, pn532emu.NewFrameCorruptedError("receiveFrame", c.name, frame.ErrShortFrame)
	}
	return payload, nil
}

// FirmwareVersion runs GetFirmwareVersion.
func (c *Client) FirmwareVersion(ctx context.Context) (pn532emu.FirmwareVersion, error) {
	resp, err := c.SendCommand(ctx, cmdGetFirmwareVersion, nil)
	if err != nil {
		return pn532emu.FirmwareVersion{}, err
	}
	if len(resp) < 5 {
		return pn532emu.FirmwareVersion{}, fmt.Errorf("%w: firmware response too short", pn532emu.ErrFrameCorrupted)
	}
	return pn532emu.FirmwareVersion{IC: resp[1], Version: resp[2], Revision: resp[3], Support: resp[4]}, nil
}

// SAMConfiguration selects normal mode.
func (c *Client) SAMConfiguration(ctx context.Context) error {
	_, err := c.SendCommand(ctx, cmdSAMConfiguration, []byte{0x01, 0x14, 0x01})
	return err
}

// ListPassiveTarget asks for one 106 kbps Type A target and returns its UID.
func (c *Client) ListPassiveTarget(ctx context.Context) ([]byte, error) {
	resp, err := c.SendCommand(ctx, cmdInListPassiveTarget, []byte{0x01, 0x00})
	if err != nil {
		return nil, err
	}
	if len(resp) < 2 || resp[1] == 0 {
		return nil, ErrNoTarget
	}
	// 4B NbTg Tg ATQA(2) UIDLen UID SAK
	if len(resp) < 6 || len(resp) < 6+int(resp[5]) {
		return nil, fmt.Errorf("%w: target data truncated", pn532emu.ErrFrameCorrupted)
	}
	return append([]byte(nil), resp[6:6+int(resp[5])]...), nil
}

// Authenticate runs a MIFARE Classic authentication against block.
func (c *Client) Authenticate(ctx context.Context, block byte, kind card.KeyKind, key, uid []byte) error {
	args := make([]byte, 0, 3+len(key)+len(uid))
	args = append(args, 0x01, byte(kind), block)
	args = append(args, key...)
	args = append(args, uid...)
	_, err := c.dataExchange(ctx, args)
	return err
}

// ReadBlock reads one 16-byte block.
func (c *Client) ReadBlock(ctx context.Context, block byte) ([]byte, error) {
	resp, err := c.dataExchange(ctx, []byte{0x01, mifareRead, block})
	if err != nil {
		return nil, err
	}
	if len(resp) < 2+card.BlockSize {
		return nil, fmt.Errorf("%w: block data truncated", pn532emu.ErrFrameCorrupted)
	}
	return resp[2 : 2+card.BlockSize], nil
}

// WriteBlock writes one 16-byte block.
func (c *Client) WriteBlock(ctx context.Context, block byte, data []byte) error {
	if len(data) != card.BlockSize {
		return fmt.Errorf("%w: got %d bytes", card.ErrDataLength, len(data))
	}
	args := make([]byte, 0, 3+card.BlockSize)
	args = append(args, 0x01, mifareWrite, block)
	args = append(args, data...)
	_, err := c.dataExchange(ctx, args)
	return err
}

func (c *Client) dataExchange(ctx context.Context, args []byte) ([]byte, error) {
	resp, err := c.SendCommand(ctx, cmdInDataExchange, args)
	if err != nil {
		return nil, err
	}
	if len(resp) < 2 {
		return nil, fmt.Errorf("%w: missing status", pn532emu.ErrFrameCorrupted)
	}
	if resp[1] != pn532emu.StatusOK {
		return nil, fmt.Errorf("%w: status 0x%02X", ErrStatus, resp[1])
	}
	return resp, nil
}

func idle(buf []byte) bool {
	return len(bytes.Trim(buf, string([]byte{frame.Ready}))) == 0
}

// sleepCtx performs a context-aware sleep. Returns ctx.Err() if context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
