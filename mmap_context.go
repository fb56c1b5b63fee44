package framepool

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// MmapContext allocates frames off the Go heap via anonymous memory mappings.
// Frames are unmapped on deallocation, so the memory is returned to the
// operating system and the GC never has to scan it.
//
// Frames from an MmapContext must not be resliced from the front, since the
// original mapping is recovered from the frame's capacity.
// An MmapContext is safe for concurrent use by multiple goroutines.
type MmapContext struct {
	logger    *slog.Logger
	frameSize int
	mapped    atomic.Int64
}

// NewMmapContext creates an mmap backed context with a minimum frame size of frameSize bytes.
func NewMmapContext(frameSize int, logger *slog.Logger) *MmapContext {
	if frameSize <= 0 {
		panic(fmt.Sprintf("invalid minimum frame size: %d", frameSize))
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MmapContext{logger: logger, frameSize: frameSize}
}

func (c *MmapContext) MinFrameSize() int {
	return c.frameSize
}

func (c *MmapContext) AllocateFrame(size int) ([]byte, error) {
	if size < c.frameSize {
		return nil, fmt.Errorf("frame size %d is below the minimum frame size %d", size, c.frameSize)
	}
	data, err := unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE,
	)
	if err != nil {
		return nil, fmt.Errorf("cannot allocate %d bytes via mmap: %w", size, err)
	}
	c.mapped.Add(int64(size))
	return data, nil
}

// DeallocateFrame unmaps the frame. Unmap failures are logged, not returned.
func (c *MmapContext) DeallocateFrame(frame []byte) {
	if cap(frame) == 0 {
		return
	}
	size := cap(frame)
	if err := unix.Munmap(frame[:size]); err != nil {
		c.logger.Error("failed to unmap frame", "size", size, "error", err)
		return
	}
	c.mapped.Add(-int64(size))
}

// Mapped returns the number of bytes currently mapped by the context.
func (c *MmapContext) Mapped() int64 {
	return c.mapped.Load()
}
