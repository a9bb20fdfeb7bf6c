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

import (
	"testing"
)

// Run with: go test -fuzz=FuzzIngester -fuzztime=30s ./internal/frame/

// FuzzIngester feeds arbitrary bytes through the ingest state machine. Every
// accepted frame must carry a command byte and fit the command buffer.
func FuzzIngester(f *testing.F) {
	f.Add(BuildCommand(0x02, nil))
	f.Add(BuildCommand(0x4A, []byte{0x01, 0x00}))
	f.Add(AckFrame)
	f.Add([]byte{0x00, 0x00, 0xFF, 0xFF, 0x01, 0xD4})
	f.Add([]byte{0x00, 0x00, 0xFF, 0x01, 0xFF, 0xD4, 0x02, 0x2A, 0x00})
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		var in Ingester
		for _, b := range data {
			res, err := in.Feed(b)
			switch res {
			case Accepted:
				fr := in.Frame()
				if len(fr.Data) == 0 || len(fr.Data) > MaxCommandLength {
					t.Fatalf("accepted frame with %d data bytes", len(fr.Data))
				}
				if fr.Data[0] != fr.Command {
					t.Fatalf("command 0x%02X does not lead data 0x%02X", fr.Command, fr.Data[0])
				}
			case Rejected:
				if err == nil {
					t.Fatal("rejected without an error")
				}
				if in.State() != StatePreamble {
					t.Fatalf("rejected but left in %s", in.State())
				}
			case Continue:
				if err != nil {
					t.Fatalf("continue with error: %v", err)
				}
			}
		}
	})
}

// FuzzParseResponse checks the host-side decoder never panics and that any
// payload it returns re-encodes to a frame it accepts again.
func FuzzParseResponse(f *testing.F) {
	f.Add(BuildResponse([]byte{0x03, 0x32, 0x01, 0x06, 0x07}))
	f.Add(BuildResponse([]byte{0x4B, 0x00}))
	f.Add(AckFrame)
	f.Add([]byte{0x00, 0x00, 0xFF, 0xFF, 0x01, 0xD5, 0x00, 0x00})
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, buf []byte) {
		payload, err := ParseResponse(buf)
		if err != nil {
			return
		}
		again, err := ParseResponse(BuildResponse(payload))
		if err != nil {
			t.Fatalf("re-encoded payload rejected: %v", err)
		}
		if string(again) != string(payload) {
			t.Fatalf("payload changed: %X -> %X", payload, again)
		}
	})
}

// FuzzValidateFrameChecksum tests the checksum validation with arbitrary
// bounds, ensuring out-of-range slices are reported invalid instead of panicking.
func FuzzValidateFrameChecksum(f *testing.F) {
	f.Add([]byte{0xD5, 0x03, 0x28}, 0, 3)
	f.Add([]byte{0x01, 0xFF}, 0, 2)
	f.Add([]byte{}, 0, 0)
	f.Add([]byte{0x00}, -1, 1)
	f.Add([]byte{0x00, 0x01}, 1, 0)

	f.Fuzz(func(_ *testing.T, buf []byte, start, end int) {
		_ = ValidateFrameChecksum(buf, start, end)
	})
}
