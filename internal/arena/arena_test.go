package arena

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayoutOffsets(t *testing.T) {
	var l layout
	assert.Equal(t, uintptr(48), unsafe.Sizeof(l.header))
	assert.Equal(t, uintptr(0), unsafe.Offsetof(l.magic))
	assert.Equal(t, uintptr(8), unsafe.Offsetof(l.running))
	assert.Equal(t, uintptr(16), unsafe.Offsetof(l.temperature))
	assert.Equal(t, uintptr(24), unsafe.Offsetof(l.heartbeat))
	assert.Equal(t, uintptr(48), unsafe.Offsetof(l.framebuffer))

	var tc TenantContext
	assert.Equal(t, uintptr(24), unsafe.Offsetof(tc.head))
	assert.Equal(t, uintptr(48), unsafe.Offsetof(tc.ring))
	assert.Equal(t, uintptr(48+RingSize*24), unsafe.Offsetof(tc.staging))
	assert.Equal(t, uintptr(48+RingSize*24+DMAPixels*4), unsafe.Sizeof(tc))

	want := 48 + Width*Height*4 + MaxTenants*int(unsafe.Sizeof(tc))
	assert.Equal(t, want, Size, "no implicit padding between sections")
}

func TestNewMemoryInitialises(t *testing.T) {
	a := NewMemory(40)

	assert.True(t, a.Running())
	assert.Equal(t, float32(40), a.Temperature())
	assert.Equal(t, uint64(0), a.Heartbeat())
	assert.Equal(t, uint32(0), a.WatchdogResets())
	for i := range MaxTenants {
		assert.False(t, a.Tenant(i).Active())
		assert.Equal(t, 0, a.Tenant(i).Depth())
	}
	assert.NoError(t, a.Teardown())
}

func TestCreateAttachShareState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vgpu_ram.bin")

	fw, err := Create(path, 40)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(Size), info.Size())

	drv, err := Attach(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = drv.Close() })

	fw.Beat()
	fw.AddTemperature(2.5)
	fw.Framebuffer()[Width+1] = 0xFF00FF00
	drv.Tenant(1).SetActive(true)

	assert.Equal(t, uint64(1), drv.Heartbeat())
	assert.Equal(t, float32(42.5), drv.Temperature())
	assert.Equal(t, uint32(0xFF00FF00), drv.Framebuffer()[Width+1])
	assert.True(t, fw.Tenant(1).Active())

	require.NoError(t, fw.Teardown())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "teardown must unlink the region")
}

func TestAttachMissingRegion(t *testing.T) {
	_, err := Attach(filepath.Join(t.TempDir(), "missing.bin"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "start the firmware first")
}

func TestAttachWrongSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, 128), 0o600))

	_, err := Attach(path)
	assert.ErrorIs(t, err, ErrLayoutMismatch)
}

func TestAttachWrongMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zero.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, Size), 0o600))

	_, err := Attach(path)
	assert.ErrorIs(t, err, ErrLayoutMismatch)
}

func TestTemperatureConcurrentUpdates(t *testing.T) {
	a := NewMemory(0)

	const writers = 4
	const rounds = 1000

	var wg sync.WaitGroup
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range rounds {
				a.AddTemperature(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, float32(writers*rounds), a.Temperature())

	a.StoreTemperature(40)
	assert.Equal(t, float32(40), a.Temperature())
}

func TestSnapshotReportsOwner(t *testing.T) {
	a := NewMemory(40)
	id := [16]byte{0x6b, 0xa7, 0xb8, 0x10, 0x9d, 0xad, 0x11, 0xd1, 0x80, 0xb4, 0x00, 0xc0, 0x4f, 0xd4, 0x30, 0xc8}
	a.Tenant(0).SetOwner(1234, id)
	a.Tenant(0).SetActive(true)
	a.Tenant(0).SetTail(3)

	s := a.Snapshot()
	require.Len(t, s.Tenants, MaxTenants)
	assert.True(t, s.Tenants[0].Active)
	assert.Equal(t, uint32(1234), s.Tenants[0].PID)
	assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", s.Tenants[0].OwnerID)
	assert.Equal(t, 3, s.Tenants[0].Depth)
	assert.False(t, s.Tenants[1].Active)
}

func TestFramebufferDigestTracksContent(t *testing.T) {
	a := NewMemory(40)
	b := NewMemory(40)
	assert.Equal(t, a.FramebufferDigest(), b.FramebufferDigest())

	a.Framebuffer()[0] = 1
	assert.NotEqual(t, a.FramebufferDigest(), b.FramebufferDigest())
	assert.Len(t, a.FramebufferDigest(), 64)
}

func TestClaimActive(t *testing.T) {
	a := NewMemory(40)
	slot := a.Tenant(0)

	assert.True(t, slot.ClaimActive())
	assert.False(t, slot.ClaimActive())
	slot.SetActive(false)
	assert.True(t, slot.ClaimActive())
}
