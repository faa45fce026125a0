// Copyright (c) 2025 Stefano Scafiti
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package carve implements the multi-pass forensic carving engine: a
// streaming signature scanner, a header/footer pairing solver, a structural
// validator, a bifragment gap carving recovery path, and a durable
// extraction writer, plus a single-pass streaming alternative.
package carve

import "fmt"

// Format identifies a recoverable file type. The set is closed: extending it
// requires a new Signature pair and a new Validator branch.
type Format int

const (
	JPEG Format = iota
	PNG
)

func (f Format) String() string {
	switch f {
	case JPEG:
		return "jpeg"
	case PNG:
		return "png"
	default:
		return "unknown"
	}
}

// Ext returns the output file extension for f.
func (f Format) Ext() string {
	switch f {
	case JPEG:
		return "jpg"
	case PNG:
		return "png"
	default:
		return "bin"
	}
}

// ParseFormat parses the CLI-facing spelling of a format name.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "jpeg", "jpg":
		return JPEG, nil
	case "png":
		return PNG, nil
	default:
		return 0, fmt.Errorf("carve: unknown format %q", s)
	}
}

// DefaultMaxFileSize returns the default upper bound on header-to-footer
// distance accepted for a Pair of the given format.
func DefaultMaxFileSize(f Format) uint64 {
	switch f {
	case JPEG:
		return 256 << 20
	case PNG:
		return 512 << 20
	default:
		return 256 << 20
	}
}

// Mode selects between the multi-pass engine and the single-pass fast path.
type Mode int

const (
	ModeMultiPass Mode = iota
	ModeFast
)

// State is a step of the multi-pass engine's state machine. Transitions are
// strictly forward; no state is re-entered within a run.
type State int

const (
	StateIdle State = iota
	StateScanning
	StateIndexed
	StateMatching
	StateValidating
	StateExtracting
	StateOrphanRecovery
	StateDone
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateScanning:
		return "Scanning"
	case StateIndexed:
		return "Indexed"
	case StateMatching:
		return "Matching"
	case StateValidating:
		return "Validating"
	case StateExtracting:
		return "Extracting"
	case StateOrphanRecovery:
		return "OrphanRecovery"
	case StateDone:
		return "Done"
	case StateAborted:
		return "Aborted"
	default:
		return "Unknown"
	}
}
