package gpucore

import (
	"fmt"

	"github.com/hupe1980/gpucore/device"
)

// AllocType tags an allocation with the subsystem it serves. The tag has no
// effect on placement; it exists for accounting and for diagnosing which
// subsystem exhausted memory.
type AllocType int

const (
	// AllocTypeOther is the catch-all for untagged allocations.
	AllocTypeOther AllocType = iota
	// AllocTypeFlatData is brute-force index vector storage.
	AllocTypeFlatData
	// AllocTypeIVFLists is inverted-file posting list storage.
	AllocTypeIVFLists
	// AllocTypeQuantizer is quantizer codebook storage.
	AllocTypeQuantizer
	// AllocTypeQuantizerPrecomputedCodes is precomputed quantizer code storage.
	AllocTypeQuantizerPrecomputedCodes
	// AllocTypeTemporaryMemoryBuffer is per-call scratch served from the
	// pooled temporary arena.
	AllocTypeTemporaryMemoryBuffer
	// AllocTypeTemporaryMemoryOverflow marks a temporary request that did not
	// fit in the arena and fell back to a direct device allocation. It is set
	// only by the resource manager, never by callers.
	AllocTypeTemporaryMemoryOverflow
)

func (t AllocType) String() string {
	switch t {
	case AllocTypeOther:
		return "Other"
	case AllocTypeFlatData:
		return "FlatData"
	case AllocTypeIVFLists:
		return "IVFLists"
	case AllocTypeQuantizer:
		return "Quantizer"
	case AllocTypeQuantizerPrecomputedCodes:
		return "QuantizerPrecomputedCodes"
	case AllocTypeTemporaryMemoryBuffer:
		return "TemporaryMemoryBuffer"
	case AllocTypeTemporaryMemoryOverflow:
		return "TemporaryMemoryOverflow"
	default:
		return "Unknown"
	}
}

// MemorySpace classifies an allocation's lifetime and coherency.
type MemorySpace int

const (
	// MemorySpaceTemporary is arena-backed scratch, reused across calls on
	// the same stream.
	MemorySpaceTemporary MemorySpace = iota
	// MemorySpaceDevice is persistent device memory, held until explicitly
	// freed.
	MemorySpaceDevice
	// MemorySpaceUnified is host+device coherent memory.
	MemorySpaceUnified
)

func (s MemorySpace) String() string {
	switch s {
	case MemorySpaceTemporary:
		return "Temporary"
	case MemorySpaceDevice:
		return "Device"
	case MemorySpaceUnified:
		return "Unified"
	default:
		return "Unknown"
	}
}

// AllocInfo describes what an allocation is for and where it should live.
// It is a plain value; it carries no ownership.
//
// Stream is the stream the allocation's producer and consumer are ordered
// on. It may be nil only for MemorySpaceDevice allocations that are not tied
// to a single stream.
type AllocInfo struct {
	Type   AllocType
	Device int
	Space  MemorySpace
	Stream *device.Stream
}

// String renders the descriptor for diagnostics. The rendering is stable and
// complete enough to identify a failed allocation without extra context.
func (i AllocInfo) String() string {
	return fmt.Sprintf("type %s dev %d space %s stream %s", i.Type, i.Device, i.Space, i.Stream)
}

// AllocRequest is a full allocation request: placement plus size in bytes.
type AllocRequest struct {
	AllocInfo

	// Size is the requested size in bytes. Must be > 0.
	Size int64
}

func (r AllocRequest) String() string {
	return fmt.Sprintf("%s size %d bytes", r.AllocInfo, r.Size)
}

// MakeDevAlloc describes a persistent device allocation on the current
// device. The device is snapshotted at call time, so the descriptor stays
// correct even if the current device changes before it is used.
func MakeDevAlloc(t AllocType, st *device.Stream) AllocInfo {
	return AllocInfo{Type: t, Device: device.Current(), Space: MemorySpaceDevice, Stream: st}
}

// MakeTempAlloc describes an arena-backed temporary allocation on the
// current device.
func MakeTempAlloc(t AllocType, st *device.Stream) AllocInfo {
	return AllocInfo{Type: t, Device: device.Current(), Space: MemorySpaceTemporary, Stream: st}
}

// MakeSpaceAlloc describes an allocation in a caller-chosen space on the
// current device.
func MakeSpaceAlloc(t AllocType, sp MemorySpace, st *device.Stream) AllocInfo {
	return AllocInfo{Type: t, Device: device.Current(), Space: sp, Stream: st}
}
