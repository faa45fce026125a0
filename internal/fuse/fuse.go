//go:build linux
// +build linux

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
package fuse

import (
	"context"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"

	"github.com/ostafen/diglet/internal/carve"
)

// FileEntry names one mounted recovered file and the ranges on the source
// device that back it: one range for a direct header/footer pair, two for
// a bifragment gap carving splice.
type FileEntry struct {
	Name string
	File carve.RecoveredFile
}

// fragmentReaderAt presents a RecoveredFile's one or two source ranges as a
// single contiguous logical file, without copying bytes off the source.
type fragmentReaderAt struct {
	src io.ReaderAt
	rf  carve.RecoveredFile
}

func (f fragmentReaderAt) ReadAt(p []byte, off int64) (int, error) {
	firstLen := int64(f.rf.First.Length)

	total := 0
	if off < firstLen {
		n := len(p)
		if int64(n) > firstLen-off {
			n = int(firstLen - off)
		}
		rn, err := f.src.ReadAt(p[:n], int64(f.rf.First.Offset)+off)
		total += rn
		if err != nil && err != io.EOF {
			return total, err
		}
		if rn < n || f.rf.Second == nil {
			return total, nil
		}
		off = firstLen
		p = p[rn:]
	} else {
		off -= firstLen
	}

	if f.rf.Second == nil || len(p) == 0 {
		return total, nil
	}

	secondLen := int64(f.rf.Second.Length)
	if off >= secondLen {
		return total, io.EOF
	}
	n := len(p)
	if int64(n) > secondLen-off {
		n = int(secondLen - off)
	}
	rn, err := f.src.ReadAt(p[:n], int64(f.rf.Second.Offset)+off)
	total += rn
	return total, err
}

type RecoverFS struct {
	r io.ReaderAt

	mtx     sync.RWMutex
	entries map[string]FileEntry

	mountpoint string
}

func (fs *RecoverFS) Root() (fs.Node, error) {
	return &Dir{
		fs: fs,
	}, nil
}

// Dir implements both fs.Node and fs.HandleReadDirAller
type Dir struct {
	fs *RecoverFS
}

func (*Dir) Attr(ctx context.Context, a *fuse.Attr) error {
	a.Mode = os.ModeDir | 0555
	return nil
}

func (d *Dir) Lookup(ctx context.Context, name string) (fs.Node, error) {
	if e, ok := d.fs.entries[name]; ok {
		return File{
			r:    fragmentReaderAt{src: d.fs.r, rf: e.File},
			size: e.File.Length(),
		}, nil
	}
	return nil, fuse.ENOENT
}

func (d Dir) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	d.fs.mtx.RLock()
	defer d.fs.mtx.RUnlock()

	i := 0
	dirEntries := make([]fuse.Dirent, len(d.fs.entries))
	for _, e := range d.fs.entries {
		dirEntries[i] = fuse.Dirent{
			Inode: uint64(i),
			Name:  e.Name,
			Type:  fuse.DT_File,
		}
		i++
	}
	sort.Slice(dirEntries, func(i, j int) bool {
		return dirEntries[i].Name < dirEntries[j].Name
	})
	for i := range dirEntries {
		dirEntries[i].Inode = uint64(i)
	}
	return dirEntries, nil
}

// File implements both fs.Node and fs.HandleReader
type File struct {
	r    io.ReaderAt
	size uint64
}

func (f File) Attr(ctx context.Context, a *fuse.Attr) error {
	a.Mode = 0444
	a.Size = f.size
	a.Mtime = time.Now()
	return nil
}

func (f File) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	size := int(req.Size)
	offset := req.Offset

	if offset >= int64(f.size) {
		// Trying to read past EOF
		resp.Data = []byte{}
		return nil
	}

	// Clamp size if reading near EOF
	if offset+int64(size) > int64(f.size) {
		size = int(int64(f.size) - offset)
	}

	buf := make([]byte, size)

	n, err := f.r.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return err
	}

	resp.Data = buf[:n]
	return nil
}
