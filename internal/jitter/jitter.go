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

// Package jitter wraps a serial link so that bytes arrive the way a USB-UART
// adapter delivers them: in random fragments, with random gaps.
package jitter

import (
	"io"
	"math/rand/v2"
	"time"
)

// Config controls the fragmentation. A zero Seed picks a random one.
type Config struct {
	MaxLatency  time.Duration
	MinFragment int
	Seed        uint64
	// BoundaryEvery forces a split every n bytes, like USB bulk packets.
	BoundaryEvery int
}

// DefaultConfig fragments down to single bytes with no delay.
func DefaultConfig() Config {
	return Config{MinFragment: 1}
}

// Link splits every Write into fragments and returns buffered reads in
// fragments. It is not safe for concurrent writers or concurrent readers.
type Link struct {
	backend io.ReadWriter
	rng     *rand.Rand
	pending []byte
	cfg     Config
	sent    int
	recv    int
}

// New wraps backend.
func New(backend io.ReadWriter, cfg Config) *Link {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	if cfg.MinFragment < 1 {
		cfg.MinFragment = 1
	}
	return &Link{
		backend: backend,
		cfg:     cfg,
		rng:     rand.New(rand.NewPCG(seed, seed^0xDEADBEEF)), //nolint:gosec // test traffic, not crypto
	}
}

// Write sends p as several backend writes.
func (l *Link) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		l.pause()
		n := l.fragment(len(p)-written, l.sent)
		m, err := l.backend.Write(p[written : written+n])
		written += m
		l.sent += m
		if err != nil {
			return written, err //nolint:wrapcheck // pass-through
		}
	}
	return written, nil
}

// Read returns at most one fragment of what the backend delivered.
func (l *Link) Read(p []byte) (int, error) {
	l.pause()
	if len(l.pending) == 0 {
		buf := make([]byte, 1024)
		n, err := l.backend.Read(buf)
		if n == 0 {
			return 0, err //nolint:wrapcheck // pass-through
		}
		l.pending = append(l.pending, buf[:n]...)
	}
	n := l.fragment(min(len(p), len(l.pending)), l.recv)
	copy(p, l.pending[:n])
	l.pending = l.pending[n:]
	l.recv += n
	return n, nil
}

// fragment picks how many of avail bytes go out next. pos is the running
// byte count used for boundary splits.
func (l *Link) fragment(avail, pos int) int {
	n := avail
	if every := l.cfg.BoundaryEvery; every > 0 {
		n = min(n, every-pos%every)
	}
	if n > l.cfg.MinFragment {
		n = l.cfg.MinFragment + l.rng.IntN(n-l.cfg.MinFragment+1)
	}
	return n
}

func (l *Link) pause() {
	if l.cfg.MaxLatency <= 0 {
		return
	}
	if d := time.Duration(l.rng.Int64N(int64(l.cfg.MaxLatency) + 1)); d > 0 {
		time.Sleep(d)
	}
}
