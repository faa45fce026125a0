//go:build linux

package device

import "golang.org/x/sys/unix"

// queryLinuxGeometry reads the logical block size (BLKSSZGET) and the
// total device size (BLKGETSIZE64) of a Linux block device via ioctl,
// replacing the teacher's raw syscall.Syscall calls with the typed
// golang.org/x/sys/unix wrappers.
func queryLinuxGeometry(fd uintptr) (blockSize int, size uint64, err error) {
	bs, err := unix.IoctlGetInt(int(fd), unix.BLKSSZGET)
	if err != nil {
		return DefaultLogicalBlockSize, 0, err
	}

	sz, err := unix.IoctlGetUint64(int(fd), unix.BLKGETSIZE64)
	if err != nil {
		return bs, 0, err
	}
	return bs, sz, nil
}
