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

package frame

import "errors"

// Rejection reasons reported by Ingester.Feed. They are values, not failures
// of the caller: a rejected frame is silently dropped by the chip.
var (
	ErrStartCode      = errors.New("frame: bad start code")
	ErrLengthChecksum = errors.New("frame: length checksum mismatch")
	ErrDirection      = errors.New("frame: unexpected TFI")
	ErrDataChecksum   = errors.New("frame: data checksum mismatch")
	ErrPostamble      = errors.New("frame: bad postamble")
	ErrNoCommand      = errors.New("frame: no command byte")
)

// State is a position in the inbound frame grammar.
type State int

// Ingest states, in wire order.
const (
	StatePreamble State = iota
	StateStartCode1
	StateStartCode2
	StateLength
	StateLengthChecksum
	StateDirection
	StateCommand
	StateData
	StatePostamble
)

var stateNames = [...]string{
	StatePreamble:       "preamble",
	StateStartCode1:     "start-code-1",
	StateStartCode2:     "start-code-2",
	StateLength:         "length",
	StateLengthChecksum: "length-checksum",
	StateDirection:      "direction",
	StateCommand:        "command",
	StateData:           "data",
	StatePostamble:      "postamble",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Result is the outcome of feeding one byte.
type Result int

const (
	// Continue means the byte was consumed and more are expected.
	Continue Result = iota
	// Accepted means a complete, valid frame is available via Frame.
	Accepted
	// Rejected means the frame in progress was discarded.
	Rejected
)

func (r Result) String() string {
	switch r {
	case Continue:
		return "continue"
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Frame is an accepted host command. Data holds the command byte followed by
// its parameters, so Data[0] == Command and len(Data) == LEN-1.
type Frame struct {
	Data    []byte
	Command byte
}

// Params returns the bytes after the command code.
func (f Frame) Params() []byte {
	if len(f.Data) == 0 {
		return nil
	}
	return f.Data[1:]
}

type transition func(in *Ingester, b byte) (Result, error)

// Ingester assembles host command frames one bus byte at a time.
// The zero value is ready to use and starts hunting for a preamble.
type Ingester struct {
	buf      [MaxCommandLength + 1]byte
	frame    Frame
	n        int
	expect   int
	state    State
	length   byte
	checksum byte
}

var transitions = [...]transition{
	StatePreamble:       (*Ingester).onPreamble,
	StateStartCode1:     (*Ingester).onStartCode1,
	StateStartCode2:     (*Ingester).onStartCode2,
	StateLength:         (*Ingester).onLength,
	StateLengthChecksum: (*Ingester).onLengthChecksum,
	StateDirection:      (*Ingester).onDirection,
	StateCommand:        (*Ingester).onCommand,
	StateData:           (*Ingester).onData,
	StatePostamble:      (*Ingester).onPostamble,
}

// Feed consumes one byte written by the host. The returned error is non-nil
// only together with Rejected and names the reason.
func (in *Ingester) Feed(b byte) (Result, error) {
	return transitions[in.state](in, b)
}

// State reports the current ingest state.
func (in *Ingester) State() State {
	return in.state
}

// Frame returns the most recently accepted frame. The Data slice is owned by
// the caller and stays valid after further Feed calls.
func (in *Ingester) Frame() Frame {
	return in.frame
}

// Reset drops any partial frame and returns to preamble hunting.
func (in *Ingester) Reset() {
	in.state = StatePreamble
	in.n = 0
	in.expect = 0
	in.length = 0
	in.checksum = 0
}

func (in *Ingester) reject(err error) (Result, error) {
	in.Reset()
	return Rejected, err
}

func (in *Ingester) advance(next State) (Result, error) {
	in.state = next
	return Continue, nil
}

// onPreamble hunts: anything but the preamble byte is skipped.
func (in *Ingester) onPreamble(b byte) (Result, error) {
	if b != Preamble {
		return Continue, nil
	}
	return in.advance(StateStartCode1)
}

func (in *Ingester) onStartCode1(b byte) (Result, error) {
	if b != StartCode1 {
		return in.reject(ErrStartCode)
	}
	return in.advance(StateStartCode2)
}

func (in *Ingester) onStartCode2(b byte) (Result, error) {
	if b != StartCode2 {
		return in.reject(ErrStartCode)
	}
	return in.advance(StateLength)
}

func (in *Ingester) onLength(b byte) (Result, error) {
	in.length = b
	return in.advance(StateLengthChecksum)
}

func (in *Ingester) onLengthChecksum(b byte) (Result, error) {
	if in.length+b != 0 {
		return in.reject(ErrLengthChecksum)
	}
	in.checksum = 0
	in.n = 0
	// LEN counts TFI and command too.
	in.expect = max(int(in.length)-2, 0)
	return in.advance(StateDirection)
}

func (in *Ingester) onDirection(b byte) (Result, error) {
	if b != HostToPn532 {
		return in.reject(ErrDirection)
	}
	in.checksum += b
	return in.advance(StateCommand)
}

func (in *Ingester) onCommand(b byte) (Result, error) {
	in.buf[0] = b
	in.n = 1
	in.checksum += b
	return in.advance(StateData)
}

// onData collects parameters; the byte after the last one is the DCS.
func (in *Ingester) onData(b byte) (Result, error) {
	if in.n-1 < in.expect {
		in.buf[in.n] = b
		in.n++
		in.checksum += b
		return Continue, nil
	}
	if in.checksum+b != 0 {
		return in.reject(ErrDataChecksum)
	}
	return in.advance(StatePostamble)
}

// onPostamble always ends the frame, whatever the byte.
func (in *Ingester) onPostamble(b byte) (Result, error) {
	if b != Postamble {
		return in.reject(ErrPostamble)
	}
	if in.length < 2 {
		return in.reject(ErrNoCommand)
	}
	data := make([]byte, in.n)
	copy(data, in.buf[:in.n])
	in.frame = Frame{Command: data[0], Data: data}
	in.Reset()
	return Accepted, nil
}
