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

// Frame direction constants (TFI byte)
const (
	HostToPn532 = 0xD4 // Commands from host to PN532
	Pn532ToHost = 0xD5 // Responses from PN532 to host
)

// Frame markers and control bytes
const (
	Preamble   = 0x00 // Frame preamble byte
	StartCode1 = 0x00 // Start code byte 1
	StartCode2 = 0xFF // Start code byte 2
	Postamble  = 0x00 // Frame postamble byte

	// Ready is what the chip returns on a bus read when nothing is queued.
	Ready = 0x01
)

// Frame size limits
const (
	// MaxCommandLength is the largest command buffer a normal frame can carry:
	// LEN is one byte and includes the TFI.
	MaxCommandLength = 0xFF - 1
	// HeaderLength covers preamble, start code, LEN and LCS.
	HeaderLength = 5
	// MinFrameLength is preamble + start code + len + lcs + tfi + dcs + postamble.
	MinFrameLength = 8
)

// AckFrame is written to the host after a command frame has been accepted.
var AckFrame = []byte{0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00}
