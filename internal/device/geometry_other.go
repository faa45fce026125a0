//go:build !linux

package device

import "fmt"

func queryLinuxGeometry(fd uintptr) (blockSize int, size uint64, err error) {
	return DefaultLogicalBlockSize, 0, fmt.Errorf("device geometry ioctls unsupported on this platform")
}
