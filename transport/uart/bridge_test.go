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

package uart

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pn532emu "github.com/ZaparooProject/pn532emu"
	"github.com/ZaparooProject/pn532emu/internal/frame"
	"github.com/ZaparooProject/pn532emu/internal/jitter"
)

func newDevice(t *testing.T, toggles *pn532emu.Toggles) *pn532emu.Device {
	t.Helper()
	dev, err := pn532emu.NewDevice(
		pn532emu.WithLogger(zerolog.Nop()),
		pn532emu.WithControls(toggles),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dev.Close() })
	return dev
}

func startBridge(t *testing.T, dev *pn532emu.Device, port io.ReadWriteCloser) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewBridge(dev, port, "pipe").Serve(ctx)
	}()
	t.Cleanup(cancel)
	return cancel, done
}

func readFrame(t *testing.T, r io.Reader) []byte {
	t.Helper()
	header := make([]byte, frame.HeaderLength)
	_, err := io.ReadFull(r, header)
	require.NoError(t, err)
	total, err := frame.ResponseLength(header)
	require.NoError(t, err)
	buf := make([]byte, total)
	copy(buf, header)
	_, err = io.ReadFull(r, buf[frame.HeaderLength:])
	require.NoError(t, err)
	return buf
}

func TestBridge_Exchange(t *testing.T) {
	t.Parallel()
	toggles := &pn532emu.Toggles{}
	dev := newDevice(t, toggles)
	host, emu := net.Pipe()
	defer host.Close()
	startBridge(t, dev, emu)

	// HSU wake-up preamble followed by the command, as a UART host sends it.
	wake := []byte{0x55, 0x00, 0x00, 0x00}
	_, err := host.Write(append(wake, frame.BuildCommand(0x02, nil)...))
	require.NoError(t, err)

	ack := make([]byte, len(frame.AckFrame))
	_, err = io.ReadFull(host, ack)
	require.NoError(t, err)
	assert.Equal(t, frame.AckFrame, ack)

	payload, err := frame.ParseResponse(readFrame(t, host))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x03, 0x32, 0x01, 0x06, 0x07}, payload)

	toggles.Store(pn532emu.Controls{Card2: true})
	_, err = host.Write(frame.BuildCommand(0x4A, []byte{0x01, 0x00}))
	require.NoError(t, err)
	_, err = io.ReadFull(host, ack)
	require.NoError(t, err)
	payload, err = frame.ParseResponse(readFrame(t, host))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xCA, 0xFE, 0xBA, 0xBE}, payload[6:10])
}

func TestBridge_SplitWrites(t *testing.T) {
	t.Parallel()
	dev := newDevice(t, &pn532emu.Toggles{})
	host, emu := net.Pipe()
	defer host.Close()
	startBridge(t, dev, emu)

	for _, b := range frame.BuildCommand(0x14, []byte{0x01}) {
		_, err := host.Write([]byte{b})
		require.NoError(t, err)
	}

	out := make([]byte, 6+10)
	_, err := io.ReadFull(host, out)
	require.NoError(t, err)
	assert.Equal(t, frame.AckFrame, out[:6])
	payload, err := frame.ParseResponse(out[6:])
	require.NoError(t, err)
	assert.Equal(t, []byte{0x15, 0x00}, payload)
}

func TestBridge_JitteryHost(t *testing.T) {
	t.Parallel()
	toggles := &pn532emu.Toggles{}
	toggles.Store(pn532emu.Controls{Card1: true})
	dev := newDevice(t, toggles)
	pipe, emu := net.Pipe()
	defer pipe.Close()
	startBridge(t, dev, emu)

	host := jitter.New(pipe, jitter.Config{
		MinFragment: 1,
		MaxLatency:  200 * time.Microsecond,
		Seed:        0x532,
	})
	for range 5 {
		_, err := host.Write(frame.BuildCommand(0x4A, []byte{0x01, 0x00}))
		require.NoError(t, err)

		ack := make([]byte, len(frame.AckFrame))
		_, err = io.ReadFull(host, ack)
		require.NoError(t, err)
		assert.Equal(t, frame.AckFrame, ack)

		payload, err := frame.ParseResponse(readFrame(t, host))
		require.NoError(t, err)
		assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, payload[6:10])
	}
}

func TestBridge_UnsupportedCommandOnlyAcks(t *testing.T) {
	t.Parallel()
	dev := newDevice(t, &pn532emu.Toggles{})
	host, emu := net.Pipe()
	defer host.Close()
	startBridge(t, dev, emu)

	_, err := host.Write(frame.BuildCommand(0x60, nil))
	require.NoError(t, err)
	ack := make([]byte, 6)
	_, err = io.ReadFull(host, ack)
	require.NoError(t, err)
	assert.True(t, frame.IsAck(ack))

	require.NoError(t, host.SetReadDeadline(time.Now().Add(20*time.Millisecond)))
	_, err = host.Read(make([]byte, 1))
	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
}

func TestBridge_CancelStops(t *testing.T) {
	t.Parallel()
	dev := newDevice(t, &pn532emu.Toggles{})
	host, emu := net.Pipe()
	defer host.Close()
	cancel, done := startBridge(t, dev, emu)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("bridge did not stop")
	}

	_, err := host.Write([]byte{0x00})
	require.Error(t, err, "port is closed")
}

func TestBridge_HostHangup(t *testing.T) {
	t.Parallel()
	dev := newDevice(t, &pn532emu.Toggles{})
	host, emu := net.Pipe()
	_, done := startBridge(t, dev, emu)

	require.NoError(t, host.Close())
	select {
	case err := <-done:
		require.ErrorIs(t, err, io.EOF)
	case <-time.After(time.Second):
		t.Fatal("bridge did not stop")
	}
}

func TestBridge_DeviceClosed(t *testing.T) {
	t.Parallel()
	dev := newDevice(t, &pn532emu.Toggles{})
	host, emu := net.Pipe()
	defer host.Close()
	_, done := startBridge(t, dev, emu)

	require.NoError(t, dev.Close())
	_, err := host.Write([]byte{0x00})
	require.NoError(t, err)

	select {
	case err := <-done:
		require.ErrorIs(t, err, pn532emu.ErrBusClosed)
	case <-time.After(time.Second):
		t.Fatal("bridge did not stop")
	}
}
