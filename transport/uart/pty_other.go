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

//go:build !linux

package uart

import "errors"

// ErrPTYUnsupported is returned by OpenPTY outside Linux.
var ErrPTYUnsupported = errors.New("pseudo terminals are only supported on linux")

// PTY is a pseudo terminal pair. Only available on Linux.
type PTY struct {
	Path string
}

// OpenPTY is not supported on this platform.
func OpenPTY() (*PTY, error) {
	return nil, ErrPTYUnsupported
}

func (*PTY) Read([]byte) (int, error) {
	return 0, ErrPTYUnsupported
}

func (*PTY) Write([]byte) (int, error) {
	return 0, ErrPTYUnsupported
}

// Close does nothing.
func (*PTY) Close() error {
	return nil
}
