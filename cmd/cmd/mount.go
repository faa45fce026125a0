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
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ostafen/diglet/internal/carve"
	"github.com/ostafen/diglet/internal/fs"
	"github.com/ostafen/diglet/internal/fuse"
	"github.com/ostafen/diglet/pkg/manifest"
	"github.com/spf13/cobra"
)

func DefineMountCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mount <image_path> <manifest_file>",
		Short: "Mount recovered files from a manifest over a disk image",
		Long: `The 'mount' command reads a manifest.jsonl produced by 'recover' and exposes
every recovered file as a read-only FUSE tree over the original image, splicing
bifragment gap carving recoveries back together on read without copying any
bytes off the source device.`,
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE:         RunMount,
	}

	cmd.Flags().StringP("mountpoint", "m", "", "Absolute path to the directory where the filesystem will be mounted. If not specified, a default will be generated.")
	return cmd
}

func RunMount(cmd *cobra.Command, args []string) error {
	f, err := fs.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	manifestFile, err := os.Open(args[1])
	if err != nil {
		return err
	}
	defer manifestFile.Close()

	mountpoint, _ := cmd.Flags().GetString("mountpoint")
	if mountpoint == "" {
		mountpoint = getMountpoint(manifestFile.Name())
	}

	entries, err := manifest.ReadAll(manifestFile)
	if err != nil {
		return err
	}

	finfos, err := manifestEntriesToFileEntries(entries)
	if err != nil {
		return err
	}
	return fuse.Mount(mountpoint, f, finfos)
}

// getMountpoint generates a mountpoint name from a manifest file name by
// stripping the extension. If the extension is empty, "_mnt" is added.
func getMountpoint(manifestFileName string) string {
	baseName := filepath.Base(manifestFileName)
	ext := filepath.Ext(baseName)
	baseName = strings.TrimSuffix(baseName, ext)
	mountpoint := baseName
	if ext == "" {
		mountpoint += "_mnt"
	}
	return mountpoint
}

// manifestEntriesToFileEntries reconstructs the RecoveredFile source ranges
// a manifest.jsonl line describes, so the FUSE layer can read directly from
// the original image instead of the copies the Extraction Writer made.
func manifestEntriesToFileEntries(entries []manifest.Entry) ([]fuse.FileEntry, error) {
	finfos := make([]fuse.FileEntry, len(entries))
	for i, e := range entries {
		f, err := carve.ParseFormat(e.Format)
		if err != nil {
			return nil, fmt.Errorf("invalid manifest entry %d: %w", i, err)
		}

		firstLength := e.Length - e.SecondLength
		rf := carve.RecoveredFile{
			Sequence:   e.Sequence,
			Format:     f,
			First:      carve.Range{Offset: e.SourceOffset, Length: firstLength},
			Unsafe:     e.Unsafe,
		}
		if e.Fragments == 2 {
			rf.Second = &carve.Range{Offset: e.SecondOffset, Length: e.SecondLength}
		}

		finfos[i] = fuse.FileEntry{
			Name: filepath.Base(e.Path),
			File: rf,
		}
	}
	return finfos, nil
}
