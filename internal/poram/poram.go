// Package poram implements the RAM-commitment allocator: at node startup it
// eagerly allocates and page-touches the declared RAM budget so the OS
// commits physical pages, then retains the allocation for the process
// lifetime. The coordinator's PoRAM challenge (internal/challenge) is
// computed independently of this memory — pre-committing pages here only
// removes cold-page faults from the node's critical path, it does not feed
// challenge bytes directly (see internal/challenge's package doc).
//
// The allocation is split into 1 GiB blocks, mirroring the reference
// implementation's bytearray-per-GiB chunking, rather than one giant
// make([]byte, ...) call — this keeps any single allocation within what the
// Go runtime's allocator handles comfortably and lets failure be reported
// per block (how many GiB actually committed before the one that failed).
//
// No goexperiment.arenas build tag is used here: the reservation's memory
// is meant to stay resident and externally observable for the process
// lifetime, not be bulk-freed, so the ordinary GC heap (kept alive by the
// Reservation's own reference) is the right tool.
//
// © 2025 worker authors. MIT License.
package poram

import (
	"fmt"

	"github.com/vecmesh/worker/internal/unsafehelpers"
)

const (
	blockSize = 1 << 30 // 1 GiB
	pageSize  = 1 << 12 // 4 KiB
)

// ErrInsufficientMemory is returned when a block fails to allocate. A node
// that cannot back its claimed RAM budget must not start — see
// Reservation's doc comment.
type ErrInsufficientMemory struct {
	RequestedGB int
	CommittedGB int
	Cause       error
}

func (e *ErrInsufficientMemory) Error() string {
	return fmt.Sprintf("poram: requested %d GiB, committed %d GiB before failure: %v",
		e.RequestedGB, e.CommittedGB, e.Cause)
}

func (e *ErrInsufficientMemory) Unwrap() error { return e.Cause }

// Reservation holds the committed RAM blocks for the lifetime of the
// process. It must be constructed once at node startup and never released
// before shutdown.
type Reservation struct {
	blocks [][]byte
	gb     int
}

// New allocates and page-touches gb GiB of RAM split into 1 GiB blocks. If
// a block allocation panics, construction fails with
// *ErrInsufficientMemory and no partial Reservation is returned — the
// caller must treat this as fatal and not start the node (spec §4.2, §7).
// An out-of-memory condition reported by the Go runtime itself is a fatal
// error, not a panic: it is not recovered here and ends the process.
func New(gb int) (res *Reservation, err error) {
	if gb <= 0 {
		return nil, fmt.Errorf("poram: max_ram_gb must be > 0, got %d", gb)
	}

	blocks := make([][]byte, 0, gb)
	defer func() {
		if r := recover(); r != nil {
			err = &ErrInsufficientMemory{
				RequestedGB: gb,
				CommittedGB: len(blocks),
				Cause:       fmt.Errorf("allocation panic: %v", r),
			}
		}
	}()

	for i := 0; i < gb; i++ {
		block := make([]byte, blockSize)
		touchPages(block)
		blocks = append(blocks, block)
	}

	return &Reservation{blocks: blocks, gb: gb}, nil
}

// touchPages writes one byte to every 4 KiB page of block, forcing the OS
// to commit physical memory behind it. Huge-page APIs are deliberately
// avoided — they could let the kernel oversubscribe the claim instead of
// backing it with real pages.
func touchPages(block []byte) {
	for offset := uintptr(0); offset < uintptr(len(block)); offset += pageSize {
		aligned := unsafehelpers.AlignUp(offset, pageSize)
		if aligned >= uintptr(len(block)) {
			break
		}
		block[aligned] = byte(aligned)
	}
}

// TotalGB returns the committed capacity in GiB.
func (r *Reservation) TotalGB() int { return r.gb }

// TotalBytes returns the committed capacity in bytes.
func (r *Reservation) TotalBytes() int64 { return int64(r.gb) * blockSize }
