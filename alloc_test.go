package gpucore

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gpucore/device"
)

func TestAllocTypeString(t *testing.T) {
	tests := []struct {
		typ  AllocType
		want string
	}{
		{AllocTypeOther, "Other"},
		{AllocTypeFlatData, "FlatData"},
		{AllocTypeIVFLists, "IVFLists"},
		{AllocTypeQuantizer, "Quantizer"},
		{AllocTypeQuantizerPrecomputedCodes, "QuantizerPrecomputedCodes"},
		{AllocTypeTemporaryMemoryBuffer, "TemporaryMemoryBuffer"},
		{AllocTypeTemporaryMemoryOverflow, "TemporaryMemoryOverflow"},
		{AllocType(99), "Unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.typ.String())
	}
}

func TestMemorySpaceString(t *testing.T) {
	assert.Equal(t, "Temporary", MemorySpaceTemporary.String())
	assert.Equal(t, "Device", MemorySpaceDevice.String())
	assert.Equal(t, "Unified", MemorySpaceUnified.String())
	assert.Equal(t, "Unknown", MemorySpace(99).String())
}

func TestAllocInfoRendering(t *testing.T) {
	st, err := device.NewStream(0, "q")
	require.NoError(t, err)
	defer st.Close()

	info := AllocInfo{
		Type:   AllocTypeFlatData,
		Device: 0,
		Space:  MemorySpaceDevice,
		Stream: st,
	}

	s := info.String()
	assert.Contains(t, s, "type FlatData")
	assert.Contains(t, s, "dev 0")
	assert.Contains(t, s, "space Device")
	assert.Contains(t, s, "stream q")

	req := AllocRequest{AllocInfo: info, Size: 4096}
	assert.Equal(t, fmt.Sprintf("%s size 4096 bytes", s), req.String())
}

func TestAllocInfoNilStreamRendering(t *testing.T) {
	info := AllocInfo{Type: AllocTypeOther, Space: MemorySpaceDevice}
	assert.Contains(t, info.String(), "stream <nil>")
}

func TestConstructorsSnapshotCurrentDevice(t *testing.T) {
	t.Cleanup(func() { device.Configure() })
	device.Configure(device.Properties{Name: "a"}, device.Properties{Name: "b"})

	require.NoError(t, device.SetCurrent(1))
	info := MakeTempAlloc(AllocTypeTemporaryMemoryBuffer, nil)

	// A later device switch must not move the descriptor.
	require.NoError(t, device.SetCurrent(0))

	assert.Equal(t, 1, info.Device)
	assert.Equal(t, MemorySpaceTemporary, info.Space)

	dev := MakeDevAlloc(AllocTypeFlatData, nil)
	assert.Equal(t, 0, dev.Device)
	assert.Equal(t, MemorySpaceDevice, dev.Space)

	uni := MakeSpaceAlloc(AllocTypeQuantizer, MemorySpaceUnified, nil)
	assert.Equal(t, MemorySpaceUnified, uni.Space)
	assert.Equal(t, AllocTypeQuantizer, uni.Type)
}
