// Package gpucore is the device execution substrate for a large-scale
// vector similarity search engine: stream-aware device memory management and
// the parallel top-k selection primitive every search kernel funnels its
// scores through.
//
// # Resource Management
//
// A Resources instance owns one logical pool per device: a temporary-memory
// arena reused across calls, per-device compute and copy streams, and
// linear-algebra handles. Callers describe what they need with an
// AllocRequest and get back a scoped MemoryReservation:
//
//	res := gpucore.NewStandardResources()
//	defer res.Close()
//
//	stream, _ := gpucore.DefaultStreamCurrentDevice(res)
//
//	req := gpucore.AllocRequest{
//	    AllocInfo: gpucore.MakeTempAlloc(gpucore.AllocTypeTemporaryMemoryBuffer, stream),
//	    Size:      1 << 20,
//	}
//	scratch, err := res.AllocMemoryHandle(req)
//	if err != nil { ... }
//	defer scratch.Close()
//
// The reservation returns its memory to the pool exactly once, on Release or
// the deferred Close, whichever comes first. Temporary allocations are
// served from the arena and reused across calls; requests that do not fit
// fall back to direct device allocations tagged TemporaryMemoryOverflow.
//
// Independent indexes on the same device share one Resources instance
// through a Provider rather than constructing their own:
//
//	provider := gpucore.NewProviderFromInstance(res)
//	// hand provider to each index; they all draw from the same pool
//
// # Top-K Selection
//
// The topk subpackage reduces per-query score rows to their k extreme values
// and original positions on the stream that produced them. See the topk
// package documentation.
//
// # Scope
//
// Index algorithms (flat, IVF, PQ), the distance kernels that produce score
// arrays, and host-side orchestration live outside this module and call in
// through Resources and topk.
package gpucore
