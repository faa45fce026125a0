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

// Package device implements the Block Reader: a resilient, read-only,
// sequential and random-access reader over a raw source device or disk
// image. It never issues a write syscall against the source path.
package device

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/ostafen/diglet/internal/fs"
	"github.com/ostafen/diglet/internal/mmap"
)

// DefaultBadSectorSkipUnit is the largest failing read request that
// ReadNext zero-fills and logs rather than aborting the pass.
const DefaultBadSectorSkipUnit = 1 << 20 // 1 MiB

// DefaultLogicalBlockSize is used when the device's own block size cannot
// be determined (regular disk-image files, non-Linux platforms).
const DefaultLogicalBlockSize = 512

var (
	ErrNotFound         = errors.New("device: not found")
	ErrPermissionDenied = errors.New("device: permission denied")
	ErrNotABlockDevice  = errors.New("device: not a block device")
)

// DeviceUnreadableError reports a failed read request wider than the
// configured BadSectorSkipUnit (see Reader.ReadNext). It is fatal to the
// current pass.
type DeviceUnreadableError struct {
	Offset uint64
}

func (e *DeviceUnreadableError) Error() string {
	return fmt.Sprintf("device: unreadable region at offset %d", e.Offset)
}

// Reader is the Block Reader of §4.1: aligned, resilient sequential reads
// over the source device, plus random-access re-reads for the Validator
// and the Extraction Writer.
type Reader struct {
	f    fs.File
	path string

	logicalBlockSize int
	size             uint64
	isDevice         bool

	pos               uint64 // logical position for ReadNext/Skip
	badSectorSkipUnit uint64

	cache  *mmap.MmapFile // opportunistic random-access cache, regular files only
	logger *slog.Logger
}

// Options configures Open.
type Options struct {
	DirectIO          bool
	BadSectorSkipUnit uint64
	Logger            *slog.Logger
}

// Open opens path read-only. It never requests write access: the source
// device file descriptor is always O_RDONLY (testable property #1).
func Open(path string, opts Options) (*Reader, error) {
	f, err := fs.Open(path)
	if err != nil {
		switch {
		case os.IsNotExist(err):
			return nil, ErrNotFound
		case os.IsPermission(err):
			return nil, ErrPermissionDenied
		default:
			return nil, fmt.Errorf("device: open %q: %w", path, err)
		}
	}

	finfo, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("device: stat %q: %w", path, err)
	}

	isDevice := finfo.Mode()&os.ModeDevice != 0
	isRegular := finfo.Mode().IsRegular()

	if opts.DirectIO && !isDevice && !isRegular {
		f.Close()
		return nil, ErrNotABlockDevice
	}

	blockSize := DefaultLogicalBlockSize
	size := uint64(finfo.Size())
	if isDevice {
		if bs, sz, err := queryDeviceGeometry(f); err == nil {
			blockSize = bs
			size = sz
		}
	}

	badUnit := opts.BadSectorSkipUnit
	if badUnit == 0 {
		badUnit = DefaultBadSectorSkipUnit
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	r := &Reader{
		f:                 f,
		path:              path,
		logicalBlockSize:  blockSize,
		size:              size,
		isDevice:          isDevice,
		badSectorSkipUnit: badUnit,
		logger:            logger,
	}

	if isRegular && size > 0 {
		if m, err := mmap.NewMmapFile(path); err == nil {
			r.cache = m
		}
	}
	return r, nil
}

// Path returns the path the reader was opened on.
func (r *Reader) Path() string { return r.path }

// Size returns the total size of the device/image, in bytes.
func (r *Reader) Size() uint64 { return r.size }

// BlockSize returns the logical block size in bytes.
func (r *Reader) BlockSize() int { return r.logicalBlockSize }

// Position returns the current logical read position.
func (r *Reader) Position() uint64 { return r.pos }

// Close releases the underlying handle and any random-access cache.
func (r *Reader) Close() error {
	var err error
	if r.cache != nil {
		err = r.cache.Close()
	}
	if cerr := r.f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// ReadNext fills buf with up to len(buf) bytes starting at the current
// logical position, returns the number of bytes read, and advances the
// position by that amount. It returns (0, nil) at end of device.
//
// When the read fails and the request (buf, clipped to the device end) is
// at most BadSectorSkipUnit bytes, the whole request is zero-filled and a
// warning is logged; when the request is larger, *DeviceUnreadableError is
// returned and the current pass aborts. A failed request is not re-read in
// smaller pieces, so the size compared is that of the request, not that of
// the unreadable region inside it.
func (r *Reader) ReadNext(buf []byte) (int, error) {
	if r.pos >= r.size {
		return 0, nil
	}

	want := buf
	if r.pos+uint64(len(buf)) > r.size {
		want = buf[:r.size-r.pos]
	}

	n, err := r.f.ReadAt(want, int64(r.pos))
	if err != nil && err != io.EOF {
		if uint64(len(want)) <= r.badSectorSkipUnit {
			r.logger.Warn("zero-filling unreadable region", "offset", r.pos, "len", len(want), "err", err)
			for i := range want {
				want[i] = 0
			}
			n = len(want)
		} else {
			return 0, &DeviceUnreadableError{Offset: r.pos}
		}
	}

	r.pos += uint64(n)
	return n, nil
}

// Skip advances the logical position by n bytes without reading.
func (r *Reader) Skip(n uint64) {
	r.pos += n
}

// Reset repositions the logical cursor used by ReadNext/Skip, without
// performing any I/O. Used when a pass needs to restart a sub-range.
func (r *Reader) Reset(pos uint64) {
	r.pos = pos
}

// ReadRange performs a random-access re-read of [start, start+len(buf))
// used by the Validator and the Extraction Writer. It prefers the mmap
// cache (regular disk-image files only) and falls back to ReadAt.
func (r *Reader) ReadRange(start uint64, buf []byte) (int, error) {
	if r.cache != nil && start+uint64(len(buf)) <= uint64(len(r.cache.Data)) {
		n := copy(buf, r.cache.Data[start:start+uint64(len(buf))])
		return n, nil
	}

	n, err := r.f.ReadAt(buf, int64(start))
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("device: read_range at %d: %w", start, err)
	}
	return n, nil
}

// ReaderAt exposes the device for components (Validator, Writer) that
// just need io.ReaderAt semantics over the whole device.
func (r *Reader) ReaderAt() io.ReaderAt {
	return readerAtFunc(func(p []byte, off int64) (int, error) {
		n, err := r.ReadRange(uint64(off), p)
		if err == nil && n < len(p) {
			err = io.EOF
		}
		return n, err
	})
}

type readerAtFunc func(p []byte, off int64) (int, error)

func (f readerAtFunc) ReadAt(p []byte, off int64) (int, error) { return f(p, off) }

func queryDeviceGeometry(f fs.File) (blockSize int, size uint64, err error) {
	if runtime.GOOS != "linux" {
		return DefaultLogicalBlockSize, 0, fmt.Errorf("device geometry ioctls unsupported on %s", runtime.GOOS)
	}

	type fdHolder interface{ Fd() uintptr }
	fh, ok := f.(fdHolder)
	if !ok {
		return DefaultLogicalBlockSize, 0, fmt.Errorf("device: handle has no file descriptor")
	}
	return queryLinuxGeometry(fh.Fd())
}
