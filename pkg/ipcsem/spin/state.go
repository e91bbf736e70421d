package spin

import (
	"fmt"
	"math"
	"sync/atomic"
	"unsafe"

	"github.com/neekrasov/ipcsem/pkg/ipcsem"
	"golang.org/x/sys/cpu"
)

const (
	minSlotSize = 64
	// permitsAlign is the alignment 64-bit atomics need on every GOARCH.
	permitsAlign = 8
)

// slotSize is one cache line, so neighbouring slots never share a line.
const slotSize = max(int(unsafe.Sizeof(cpu.CacheLinePad{})), minSlotSize)

// state - layout of one semaphore inside shared memory.
type state struct {
	permits atomic.Int64
	_       [slotSize - 8]byte
}

// RequiredSize - bytes a buffer must have to hold one semaphore.
func RequiredSize() int {
	return int(unsafe.Sizeof(state{}))
}

// RegionSize - bytes needed for n semaphores packed with Slot. It is 0 when
// n is not positive or the region would not fit in an int.
func RegionSize(n int) int {
	if n <= 0 || n > math.MaxInt/RequiredSize() {
		return 0
	}

	return n * RequiredSize()
}

// Slot - returns the i-th semaphore slot of a region sized with RegionSize.
// The region base should be cache-line aligned (mmap'd memory is) for the
// padding to keep slots on separate lines.
func Slot(region []byte, i int) ([]byte, error) {
	size := RequiredSize()
	if i < 0 {
		return nil, fmt.Errorf("%w: negative slot index %d", ipcsem.ErrInvalidBuffer, i)
	}

	// compared by division, i*size may not fit in an int
	if i >= len(region)/size {
		return nil, fmt.Errorf("%w: slot %d is outside a region of %d slots",
			ipcsem.ErrInvalidBuffer, i, len(region)/size)
	}

	start := i * size

	return region[start : start+size : start+size], nil
}

func bindState(buf []byte) (*state, error) {
	if len(buf) < RequiredSize() {
		return nil, fmt.Errorf("%w: size %d is less than required %d",
			ipcsem.ErrInvalidBuffer, len(buf), RequiredSize())
	}

	ptr := unsafe.Pointer(unsafe.SliceData(buf))
	if uintptr(ptr)%permitsAlign != 0 {
		return nil, fmt.Errorf("%w: address %#x is not %d-byte aligned",
			ipcsem.ErrInvalidBuffer, uintptr(ptr), permitsAlign)
	}

	return (*state)(ptr), nil
}
