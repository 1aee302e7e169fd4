package gpu

import (
	"fmt"
	"math"
	"time"
)

// DefaultFramesInFlight lets the CPU record one frame while the GPU still
// executes the previous one. One frame in flight gives the lowest latency.
const DefaultFramesInFlight = 2

const waitForever = time.Duration(math.MaxInt64)

// RendererID names a renderer's stable slots in every frame in flight.
type RendererID struct {
	index          int
	secondaryStart int
	secondaryEnd   int
}

func (id RendererID) Index() int { return id.index }

// FrameInFlightCreateInfo accumulates what the registered renderers need.
type FrameInFlightCreateInfo struct {
	RendererCount               int
	SecondaryCommandBufferCount int
}

func (info *FrameInFlightCreateInfo) registerRenderer(secondary int) RendererID {
	id := RendererID{
		index:          info.RendererCount,
		secondaryStart: info.SecondaryCommandBufferCount,
		secondaryEnd:   info.SecondaryCommandBufferCount + secondary,
	}
	info.RendererCount++
	info.SecondaryCommandBufferCount += secondary
	return id
}

// RendererRegisterer hands out RendererIDs. When frames are rebuilt, for
// example after a swapchain change, renderers register again with their
// existing id, which must ask for the same number of secondary buffers.
type RendererRegisterer struct {
	Info     *FrameInFlightCreateInfo
	Existing *RendererID
}

func (r *RendererRegisterer) Register(secondaryCommandBuffers int) (RendererID, error) {
	if secondaryCommandBuffers < 0 {
		return RendererID{}, fmt.Errorf("register renderer: negative secondary command buffer count %d", secondaryCommandBuffers)
	}
	if r.Existing != nil {
		id := *r.Existing
		if n := id.secondaryEnd - id.secondaryStart; n != secondaryCommandBuffers {
			return RendererID{}, fmt.Errorf("register renderer %d: had %d secondary command buffers, now asks for %d", id.index, n, secondaryCommandBuffers)
		}
		return id, nil
	}
	return r.Info.registerRenderer(secondaryCommandBuffers), nil
}

// FrameInFlight is one independently recorded frame.
type FrameInFlight struct {
	Index                   int
	CommandPool             CommandPoolID
	PrimaryCommandBuffers   []CommandBufferID
	SecondaryCommandBuffers []CommandBufferID
	ImageAvailable          SemaphoreID
	FinishedFence           FenceID
	framebuffers            map[int]FramebufferID
}

func (f *FrameInFlight) PrimaryCommandBuffer(id RendererID) CommandBufferID {
	return f.PrimaryCommandBuffers[id.index]
}

func (f *FrameInFlight) SecondaryCommandBuffersOf(id RendererID) []CommandBufferID {
	return f.SecondaryCommandBuffers[id.secondaryStart:id.secondaryEnd]
}

// AllocFramebuffer returns the renderer's framebuffer of this frame,
// creating it on first use.
func (f *FrameInFlight) AllocFramebuffer(id RendererID, d Device, info FramebufferInfo) (FramebufferID, error) {
	if fb, ok := f.framebuffers[id.index]; ok {
		return fb, nil
	}
	if info.Label == "" {
		info.Label = fmt.Sprintf("frame_in_flight_%d_renderer_%d_framebuffer", f.Index, id.index)
	}
	fb, err := d.CreateFramebuffer(info)
	if err != nil {
		return 0, fmt.Errorf("alloc framebuffer: %w", err)
	}
	f.framebuffers[id.index] = fb
	return fb, nil
}

// Submit submits the primary command buffers of every renderer and signals
// the frame's fence when they finish.
func (f *FrameInFlight) Submit(d Device) error {
	return d.Submit(SubmitInfo{
		CommandBuffers: f.PrimaryCommandBuffers,
		Wait:           []SemaphoreID{f.ImageAvailable},
		SignalFence:    f.FinishedFence,
	})
}

type FramesInFlight struct {
	Entries []*FrameInFlight
	current int
}

func NewFramesInFlight(d Device, count int, info FrameInFlightCreateInfo) (*FramesInFlight, error) {
	if count <= 0 {
		return nil, fmt.Errorf("alloc frames in flight: count must be positive, got %d", count)
	}
	f := &FramesInFlight{Entries: make([]*FrameInFlight, 0, count)}
	for i := range count {
		entry, err := newFrameInFlight(d, i, info)
		if err != nil {
			f.Free(d)
			return nil, fmt.Errorf("alloc frame in flight %d: %w", i, err)
		}
		f.Entries = append(f.Entries, entry)
	}
	return f, nil
}

func newFrameInFlight(d Device, index int, info FrameInFlightCreateInfo) (*FrameInFlight, error) {
	pool, err := d.CreateCommandPool()
	if err != nil {
		return nil, err
	}
	f := &FrameInFlight{Index: index, CommandPool: pool, framebuffers: make(map[int]FramebufferID)}
	if f.PrimaryCommandBuffers, err = d.AllocateCommandBuffers(pool, CommandBufferPrimary, info.RendererCount); err != nil {
		f.free(d)
		return nil, err
	}
	if info.SecondaryCommandBufferCount > 0 {
		if f.SecondaryCommandBuffers, err = d.AllocateCommandBuffers(pool, CommandBufferSecondary, info.SecondaryCommandBufferCount); err != nil {
			f.free(d)
			return nil, err
		}
	}
	if f.ImageAvailable, err = d.CreateSemaphore(); err != nil {
		f.free(d)
		return nil, err
	}
	// signaled, so the first acquire does not block
	if f.FinishedFence, err = d.CreateFence(true); err != nil {
		f.free(d)
		return nil, err
	}
	return f, nil
}

// AcquireNextFrame waits until the oldest frame finished executing, resets
// its fence and hands it out for recording.
func (f *FramesInFlight) AcquireNextFrame(d Device) (*FrameInFlight, error) {
	entry := f.Entries[f.current]
	f.current = (f.current + 1) % len(f.Entries)
	if err := d.WaitForFence(entry.FinishedFence, waitForever); err != nil {
		return nil, fmt.Errorf("acquire frame %d: %w", entry.Index, err)
	}
	if err := d.ResetFence(entry.FinishedFence); err != nil {
		return nil, fmt.Errorf("acquire frame %d: %w", entry.Index, err)
	}
	return entry, nil
}

// Free destroys every frame. The frames must not be used afterwards.
func (f *FramesInFlight) Free(d Device) {
	for _, entry := range f.Entries {
		entry.free(d)
	}
	f.Entries = nil
}

func (f *FrameInFlight) free(d Device) {
	for _, fb := range f.framebuffers {
		d.DestroyFramebuffer(fb)
	}
	clear(f.framebuffers)
	if f.FinishedFence != 0 {
		d.DestroyFence(f.FinishedFence)
	}
	if f.ImageAvailable != 0 {
		d.DestroySemaphore(f.ImageAvailable)
	}
	if len(f.SecondaryCommandBuffers) > 0 {
		d.FreeCommandBuffers(f.CommandPool, f.SecondaryCommandBuffers)
	}
	if len(f.PrimaryCommandBuffers) > 0 {
		d.FreeCommandBuffers(f.CommandPool, f.PrimaryCommandBuffers)
	}
	d.DestroyCommandPool(f.CommandPool)
}
