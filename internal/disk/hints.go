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
package disk

import (
	"encoding/binary"
	"io"
)

// Extent is a byte range on the source device.
type Extent struct {
	Offset uint64
	Length uint64
}

// Hints are optional scan-order priorities supplied by a filesystem-
// metadata collaborator (ext4/Btrfs/NTFS superblock readers, MBR/FAT
// boot-sector parsing). The carving core functions correctly with no
// hints at all; when present, the Signature Scanner may walk
// UsedExtents before FreeExtents to surface likely files earlier.
type Hints struct {
	UsedExtents []Extent
	FreeExtents []Extent
}

// DiscoverHints inspects the first sector of r for an MBR, then FAT boot
// sectors of any FAT partitions found, and reports the partitions as
// used extents. If no partition table is recognized, the whole device is
// reported as a single used extent (i.e. no prioritization is possible).
func DiscoverHints(r io.ReaderAt, size uint64) (Hints, error) {
	partitions, err := discoverPartitions(r, size)
	if err != nil {
		return Hints{}, err
	}

	hints := Hints{UsedExtents: make([]Extent, len(partitions))}
	for i, p := range partitions {
		hints.UsedExtents[i] = Extent{Offset: p.Offset, Length: p.Size}
	}
	return hints, nil
}

func discoverPartitions(r io.ReaderAt, size uint64) ([]Partition, error) {
	var firstSector [512]byte
	if _, err := r.ReadAt(firstSector[:], 0); err != nil && err != io.EOF {
		return nil, err
	}

	mbr, err := ParseMBR(firstSector[:])
	if err == nil {
		if parts, err := partitionsFromMBR(r, mbr); err == nil && len(parts) > 0 {
			return parts, nil
		}
	}

	return []Partition{fullDiskPartition(size)}, nil
}

func fullDiskPartition(size uint64) Partition {
	return Partition{Num: 0, Offset: 0, Size: size, BlockSize: DefaultBlocksize}
}

func partitionsFromMBR(r io.ReaderAt, mbr *MBR) ([]Partition, error) {
	// Protective MBR for GPT disks: one partition spanning the GPT region.
	if p := mbr.PartitionEntries[0]; p.PartitionType == PartitionTypeGPT {
		offset := int64(p.ReadStartLBA()) * DefaultBlocksize
		size := uint64(binary.LittleEndian.Uint32(p.TotalSectors[:])) * uint64(DefaultBlocksize)
		return []Partition{{Num: 0, Offset: uint64(offset), BlockSize: DefaultBlocksize, Size: size}}, nil
	}

	partitions := make([]Partition, 0, len(mbr.PartitionEntries))
	for n, p := range mbr.PartitionEntries {
		switch p.PartitionType {
		case PartitionTypeFAT12,
			PartitionTypeFAT16LessThan32MB,
			PartitionTypeFAT16GreaterThan32MB,
			PartitionTypeFAT16LBA,
			PartitionTypeFAT32LBA,
			PartitionTypeFAT32CHS:

			offset := int64(p.ReadStartLBA()) * DefaultBlocksize

			var buf [512]byte
			if _, err := r.ReadAt(buf[:], offset); err != nil {
				continue
			}

			fatSector, err := ReadFatBootSectorFrom(buf[:])
			if err != nil {
				continue
			}
			partitions = append(partitions, Partition{
				Num:       n,
				Offset:    uint64(offset),
				BlockSize: uint32(fatSector.SectorSize),
				Size:      uint64(binary.LittleEndian.Uint32(p.TotalSectors[:])) * uint64(fatSector.SectorSize),
			})
		}
	}
	return partitions, nil
}
