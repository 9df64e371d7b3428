// Package unsafehelpers centralises all unavoidable usage of the `unsafe`
// standard-library package so that the rest of the worker stays clean and
// easier to audit. Every helper is documented with clear pre-/post-
// conditions.
//
// DISCLAIMER: these helpers deliberately break the Go memory-safety model
// for the sake of zero-allocation conversions. Use ONLY inside this
// repository; they are not part of the public API and may change without
// notice. Misuse will lead to subtle data races or memory corruption.
//
// All functions are go:linkname-free, cgo-free and pure Go.
//
// © 2025 worker authors. MIT License.

package unsafehelpers

import "unsafe"

/* -------------------------------------------------------------------------
   1. Zero-copy string/[]byte conversions
   ------------------------------------------------------------------------- */

// BytesToString converts a mutable byte slice to an immutable string without
// allocating. The caller must guarantee that b will never be modified for
// the lifetime of the resulting string; otherwise the program exhibits
// undefined behaviour.
func BytesToString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}

// StringToBytes re-interprets string data as a byte slice using
// unsafe.Pointer. The slice MUST remain read-only; writing to it will
// mutate immutable string storage.
func StringToBytes(s string) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

/* -------------------------------------------------------------------------
   2. Float32 <-> byte-slice conversions
   ------------------------------------------------------------------------- */

// Float32SliceToBytes returns a little-endian byte view of vec without
// copying. The returned slice aliases vec's backing array; the caller must
// not mutate or drop vec while the byte view is in use.
//
// Used by the vector codec to hand raw float32 data to the block compressor
// without a per-element encoding loop.
func Float32SliceToBytes(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&vec[0])), len(vec)*4)
}

// BytesToFloat32Slice reinterprets a byte slice as a []float32 without
// copying. len(b) must be a multiple of 4. The returned slice aliases b, so
// the caller must copy out before b is reused or mutated.
func BytesToFloat32Slice(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), len(b)/4)
}

/* -------------------------------------------------------------------------
   3. Pointer -> slice and alignment helpers
   ------------------------------------------------------------------------- */

// ByteSliceFrom returns a []byte view of raw memory starting at ptr with the
// given length. Caller must ensure the memory block is at least length
// bytes. Nothing in this module calls it; internal/poram uses AlignUp.
func ByteSliceFrom(ptr unsafe.Pointer, length uintptr) []byte {
	return unsafe.Slice((*byte)(ptr), length)
}

// AlignUp rounds x up to the nearest multiple of align (which must be a
// power of two).
func AlignUp(x, align uintptr) uintptr {
	return (x + align - 1) &^ (align - 1)
}

// IsPowerOfTwo returns true if x is a power of two (exactly one bit set).
func IsPowerOfTwo(x uintptr) bool {
	return x != 0 && (x&(x-1)) == 0
}
