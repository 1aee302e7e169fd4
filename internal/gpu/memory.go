package gpu

import (
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
)

type memoryBuffer struct {
	desc gputypes.BufferDescriptor
	data []byte
}

type memoryTexture struct {
	desc gputypes.TextureDescriptor
	data []byte
}

// MemoryDevice keeps every resource in host memory and completes submissions
// immediately. It backs headless runs and tests.
type MemoryDevice struct {
	mu           sync.Mutex
	next         uint64
	buffers      map[BufferID]*memoryBuffer
	textures     map[TextureID]*memoryTexture
	pools        map[CommandPoolID]map[CommandBufferID]CommandBufferLevel
	semaphores   map[SemaphoreID]struct{}
	fences       map[FenceID]bool
	framebuffers map[FramebufferID]FramebufferInfo
	submits      int
	waitIdles    int
	lost         bool
}

func NewMemoryDevice() *MemoryDevice {
	return &MemoryDevice{
		buffers:      make(map[BufferID]*memoryBuffer),
		textures:     make(map[TextureID]*memoryTexture),
		pools:        make(map[CommandPoolID]map[CommandBufferID]CommandBufferLevel),
		semaphores:   make(map[SemaphoreID]struct{}),
		fences:       make(map[FenceID]bool),
		framebuffers: make(map[FramebufferID]FramebufferInfo),
	}
}

func (d *MemoryDevice) id() uint64 {
	d.next++
	return d.next
}

// Lose makes every later call fail with ErrDeviceLost.
func (d *MemoryDevice) Lose() {
	d.mu.Lock()
	d.lost = true
	d.mu.Unlock()
}

func (d *MemoryDevice) CreateBuffer(desc gputypes.BufferDescriptor) (BufferID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lost {
		return 0, ErrDeviceLost
	}
	if desc.Size == 0 || desc.Usage == gputypes.BufferUsageNone || desc.Usage.ContainsUnknownBits() {
		return 0, fmt.Errorf("create buffer %q: invalid descriptor (size %d, usage %#x)", desc.Label, desc.Size, uint64(desc.Usage))
	}
	id := BufferID(d.id())
	d.buffers[id] = &memoryBuffer{desc: desc, data: make([]byte, desc.Size)}
	return id, nil
}

func (d *MemoryDevice) WriteBuffer(id BufferID, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lost {
		return ErrDeviceLost
	}
	b, ok := d.buffers[id]
	if !ok {
		return fmt.Errorf("write buffer %d: %w", id, ErrUnknownResource)
	}
	if offset+uint64(len(data)) > uint64(len(b.data)) {
		return fmt.Errorf("write buffer %q: %w: %d bytes at %d into %d", b.desc.Label, ErrOutOfBounds, len(data), offset, len(b.data))
	}
	copy(b.data[offset:], data)
	return nil
}

func (d *MemoryDevice) DestroyBuffer(id BufferID) {
	d.mu.Lock()
	delete(d.buffers, id)
	d.mu.Unlock()
}

// BufferData returns a copy of a buffer's contents.
func (d *MemoryDevice) BufferData(id BufferID) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[id]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), b.data...), true
}

func (d *MemoryDevice) CreateTexture(desc gputypes.TextureDescriptor) (TextureID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lost {
		return 0, ErrDeviceLost
	}
	size := desc.Size
	if size.Width == 0 || size.Height == 0 || size.DepthOrArrayLayers == 0 {
		return 0, fmt.Errorf("create texture %q: empty extent %dx%dx%d", desc.Label, size.Width, size.Height, size.DepthOrArrayLayers)
	}
	bpp, ok := bytesPerPixel(desc.Format)
	if !ok {
		return 0, fmt.Errorf("create texture %q: unsupported format %s", desc.Label, desc.Format)
	}
	id := TextureID(d.id())
	n := uint64(size.Width) * uint64(size.Height) * uint64(size.DepthOrArrayLayers) * uint64(bpp)
	d.textures[id] = &memoryTexture{desc: desc, data: make([]byte, n)}
	return id, nil
}

func bytesPerPixel(f gputypes.TextureFormat) (int, bool) {
	switch f {
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatRGBA8UnormSrgb,
		gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatBGRA8UnormSrgb,
		gputypes.TextureFormatDepth32Float:
		return 4, true
	case gputypes.TextureFormatR8Unorm:
		return 1, true
	}
	return 0, false
}

func (d *MemoryDevice) WriteTexture(id TextureID, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lost {
		return ErrDeviceLost
	}
	t, ok := d.textures[id]
	if !ok {
		return fmt.Errorf("write texture %d: %w", id, ErrUnknownResource)
	}
	if len(data) != len(t.data) {
		return fmt.Errorf("write texture %q: %w: %d bytes for a %d byte texture", t.desc.Label, ErrOutOfBounds, len(data), len(t.data))
	}
	copy(t.data, data)
	return nil
}

func (d *MemoryDevice) DestroyTexture(id TextureID) {
	d.mu.Lock()
	delete(d.textures, id)
	d.mu.Unlock()
}

// TextureData returns a copy of a texture's contents.
func (d *MemoryDevice) TextureData(id TextureID) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.textures[id]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), t.data...), true
}

func (d *MemoryDevice) CreateCommandPool() (CommandPoolID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lost {
		return 0, ErrDeviceLost
	}
	id := CommandPoolID(d.id())
	d.pools[id] = make(map[CommandBufferID]CommandBufferLevel)
	return id, nil
}

func (d *MemoryDevice) AllocateCommandBuffers(pool CommandPoolID, level CommandBufferLevel, count int) ([]CommandBufferID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lost {
		return nil, ErrDeviceLost
	}
	p, ok := d.pools[pool]
	if !ok {
		return nil, fmt.Errorf("allocate command buffers: pool %d: %w", pool, ErrUnknownResource)
	}
	out := make([]CommandBufferID, count)
	for i := range out {
		out[i] = CommandBufferID(d.id())
		p[out[i]] = level
	}
	return out, nil
}

func (d *MemoryDevice) FreeCommandBuffers(pool CommandPoolID, buffers []CommandBufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.pools[pool]
	for _, b := range buffers {
		delete(p, b)
	}
}

func (d *MemoryDevice) DestroyCommandPool(pool CommandPoolID) {
	d.mu.Lock()
	delete(d.pools, pool)
	d.mu.Unlock()
}

func (d *MemoryDevice) CreateSemaphore() (SemaphoreID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lost {
		return 0, ErrDeviceLost
	}
	id := SemaphoreID(d.id())
	d.semaphores[id] = struct{}{}
	return id, nil
}

func (d *MemoryDevice) DestroySemaphore(id SemaphoreID) {
	d.mu.Lock()
	delete(d.semaphores, id)
	d.mu.Unlock()
}

func (d *MemoryDevice) CreateFence(signaled bool) (FenceID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lost {
		return 0, ErrDeviceLost
	}
	id := FenceID(d.id())
	d.fences[id] = signaled
	return id, nil
}

// WaitForFence returns at once: nothing runs asynchronously on a
// MemoryDevice, so an unsignaled fence would never be signaled.
func (d *MemoryDevice) WaitForFence(id FenceID, timeout time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lost {
		return ErrDeviceLost
	}
	signaled, ok := d.fences[id]
	if !ok {
		return fmt.Errorf("wait for fence %d: %w", id, ErrUnknownResource)
	}
	if !signaled {
		return fmt.Errorf("wait for fence %d after %s: %w", id, timeout, ErrFenceTimeout)
	}
	return nil
}

func (d *MemoryDevice) ResetFence(id FenceID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lost {
		return ErrDeviceLost
	}
	if _, ok := d.fences[id]; !ok {
		return fmt.Errorf("reset fence %d: %w", id, ErrUnknownResource)
	}
	d.fences[id] = false
	return nil
}

func (d *MemoryDevice) DestroyFence(id FenceID) {
	d.mu.Lock()
	delete(d.fences, id)
	d.mu.Unlock()
}

func (d *MemoryDevice) CreateFramebuffer(info FramebufferInfo) (FramebufferID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lost {
		return 0, ErrDeviceLost
	}
	for _, a := range info.Attachments {
		if _, ok := d.textures[a]; !ok {
			return 0, fmt.Errorf("create framebuffer %q: attachment %d: %w", info.Label, a, ErrUnknownResource)
		}
	}
	id := FramebufferID(d.id())
	d.framebuffers[id] = info
	return id, nil
}

func (d *MemoryDevice) DestroyFramebuffer(id FramebufferID) {
	d.mu.Lock()
	delete(d.framebuffers, id)
	d.mu.Unlock()
}

func (d *MemoryDevice) Submit(info SubmitInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lost {
		return ErrDeviceLost
	}
	if info.SignalFence != 0 {
		if _, ok := d.fences[info.SignalFence]; !ok {
			return fmt.Errorf("submit: fence %d: %w", info.SignalFence, ErrUnknownResource)
		}
		d.fences[info.SignalFence] = true
	}
	d.submits++
	return nil
}

func (d *MemoryDevice) WaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lost {
		return ErrDeviceLost
	}
	d.waitIdles++
	return nil
}

// MemoryStats counts the live resources of a MemoryDevice.
type MemoryStats struct {
	Buffers      int
	Textures     int
	CommandPools int
	Semaphores   int
	Fences       int
	Framebuffers int
	Submits      int
	WaitIdles    int
}

func (d *MemoryDevice) Stats() MemoryStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return MemoryStats{
		Buffers:      len(d.buffers),
		Textures:     len(d.textures),
		CommandPools: len(d.pools),
		Semaphores:   len(d.semaphores),
		Fences:       len(d.fences),
		Framebuffers: len(d.framebuffers),
		Submits:      d.submits,
		WaitIdles:    d.waitIdles,
	}
}
