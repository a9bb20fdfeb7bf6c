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

// streamer hands out an encoded frame one byte per bus read. The position is
// reset whenever a new frame is loaded, so a phase never inherits a previous
// phase's counter.
type streamer struct {
	buf []byte
	pos int
}

func (s *streamer) load(b []byte) {
	s.buf = b
	s.pos = 0
}

func (s *streamer) reset() {
	s.buf = nil
	s.pos = 0
}

// next returns the next byte and whether it was the last one.
func (s *streamer) next() (b byte, last bool) {
	if s.pos >= len(s.buf) {
		return 0, true
	}
	b = s.buf[s.pos]
	s.pos++
	return b, s.pos == len(s.buf)
}

func (s *streamer) remaining() int {
	return len(s.buf) - s.pos
}
