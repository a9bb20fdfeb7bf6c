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

package main

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pn532emu "github.com/ZaparooProject/pn532emu"
)

func testConfig(t *testing.T) *config {
	t.Helper()
	return &config{
		busName: "selftest-" + t.Name(),
		addr:    pn532emu.DefaultAddress,
		delay:   time.Millisecond,
	}
}

func newTestEmulator(t *testing.T, cfg *config) *emulator {
	t.Helper()
	emu, err := newEmulator(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = emu.Close() })
	return emu
}

func TestParseConfig(t *testing.T) {
	flagAddr = "0x28"
	flagBus = "custom"
	flagDelay = 3 * time.Millisecond
	t.Cleanup(func() {
		flagAddr = "0x24"
		flagBus = "pn532emu"
		flagDelay = pn532emu.DefaultResponseDelay
	})

	cfg, err := parseConfig()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x28), cfg.addr)
	assert.Equal(t, "custom", cfg.busName)
	assert.Equal(t, 3*time.Millisecond, cfg.delay)

	flagAddr = "nope"
	_, err = parseConfig()
	require.Error(t, err)
}

func TestChipConfig_Invalid(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.addr = 0x02
	_, err := cfg.chipConfig()
	require.ErrorIs(t, err, pn532emu.ErrInvalidConfig)

	cfg = testConfig(t)
	cfg.delay = -time.Second
	_, err = newEmulator(cfg, nil)
	require.ErrorIs(t, err, pn532emu.ErrInvalidConfig)
}

func TestSelftest(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	emu := newTestEmulator(t, cfg)
	require.NoError(t, emu.bus.Register())
	t.Cleanup(func() { _ = emu.bus.Unregister() })

	var out bytes.Buffer
	require.NoError(t, selftest(context.Background(), emu, cfg, &out))
	assert.Contains(t, out.String(), "Firmware: IC 0x32 v1.6")
	assert.Contains(t, out.String(), "UID=DEADBEEF")
	assert.Contains(t, out.String(), "Selftest passed")

	block, err := emu.dev.PeekBlock(0, selftestBlock)
	require.NoError(t, err)
	assert.Equal(t, selftestPattern, block)
	assert.Equal(t, pn532emu.Controls{}, emu.toggles.Controls())
}

func TestSelftest_WrongAddress(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	emu := newTestEmulator(t, cfg)
	require.NoError(t, emu.bus.Register())
	t.Cleanup(func() { _ = emu.bus.Unregister() })

	cfg.addr = 0x30
	err := selftest(context.Background(), emu, cfg, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "firmware version")
}

func TestSelftest_BusNotRegistered(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	emu := newTestEmulator(t, cfg)
	require.Error(t, selftest(context.Background(), emu, cfg, io.Discard))
}

func TestRouter_MetricsAndStatus(t *testing.T) {
	t.Parallel()
	emu := newTestEmulator(t, testConfig(t))
	_, err := emu.dev.ReadByte()
	require.NoError(t, err)

	server := httptest.NewServer(emu.router())
	defer server.Close()

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "pn532emu_active_slot -1")
	assert.Contains(t, string(body), "go_goroutines")

	resp, err = http.Get(server.URL + "/status")
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), emu.instance)
}

func TestServeHTTP_StopsOnCancel(t *testing.T) {
	t.Parallel()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serveHTTP(ctx, addr, http.NotFoundHandler()) }()

	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServe_ReturnsOnCancel(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	emu := newTestEmulator(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, emu, cfg) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return")
	}
}

func TestNewRedisClient(t *testing.T) {
	t.Parallel()
	client, err := newRedisClient("")
	require.NoError(t, err)
	assert.Nil(t, client)

	_, err = newRedisClient("http://not-redis")
	require.Error(t, err)

	client, err = newRedisClient("redis://localhost:6379/2")
	require.NoError(t, err)
	assert.Equal(t, 2, client.Options().DB)
	require.NoError(t, client.Close())
}

func TestNewEmulator_WithRedis(t *testing.T) {
	t.Parallel()
	client, err := newRedisClient("redis://localhost:6379/0")
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	emu, err := newEmulator(testConfig(t), client)
	require.NoError(t, err)
	defer func() { _ = emu.Close() }()
	require.NotNil(t, emu.redis)
	assert.Equal(t, "pn532emu:controls", emu.redis.ControlsKey())
}
