// Package gpu is the engine's view of the renderer backend: a narrow Device
// interface, GPU meshes and textures built on it, and the frames-in-flight
// bookkeeping that orders resource reuse. The backend itself lives outside
// the engine core; MemoryDevice is a headless implementation.
package gpu

import (
	"errors"
	"time"

	"github.com/gogpu/gputypes"
)

var (
	ErrDeviceLost      = errors.New("gpu: device lost")
	ErrUnknownResource = errors.New("gpu: unknown resource")
	ErrOutOfBounds     = errors.New("gpu: write out of bounds")
	ErrFenceTimeout    = errors.New("gpu: fence wait timed out")
)

type (
	BufferID        uint64
	TextureID       uint64
	FenceID         uint64
	SemaphoreID     uint64
	CommandPoolID   uint64
	CommandBufferID uint64
	FramebufferID   uint64
)

type CommandBufferLevel uint8

const (
	CommandBufferPrimary CommandBufferLevel = iota
	CommandBufferSecondary
)

// FramebufferInfo describes the attachments of a framebuffer.
type FramebufferInfo struct {
	Label       string
	Size        gputypes.Extent3D
	Attachments []TextureID
}

// SubmitInfo is one queue submission. SignalFence is signaled once the
// command buffers finished executing.
type SubmitInfo struct {
	CommandBuffers []CommandBufferID
	Wait           []SemaphoreID
	SignalFence    FenceID
}

// Device is what the engine core needs from a GPU backend. Implementations
// must be safe for concurrent use; resources are created from loader jobs.
type Device interface {
	CreateBuffer(desc gputypes.BufferDescriptor) (BufferID, error)
	WriteBuffer(id BufferID, offset uint64, data []byte) error
	DestroyBuffer(id BufferID)

	CreateTexture(desc gputypes.TextureDescriptor) (TextureID, error)
	WriteTexture(id TextureID, data []byte) error
	DestroyTexture(id TextureID)

	CreateCommandPool() (CommandPoolID, error)
	AllocateCommandBuffers(pool CommandPoolID, level CommandBufferLevel, count int) ([]CommandBufferID, error)
	FreeCommandBuffers(pool CommandPoolID, buffers []CommandBufferID)
	DestroyCommandPool(pool CommandPoolID)

	CreateSemaphore() (SemaphoreID, error)
	DestroySemaphore(id SemaphoreID)
	CreateFence(signaled bool) (FenceID, error)
	WaitForFence(id FenceID, timeout time.Duration) error
	ResetFence(id FenceID) error
	DestroyFence(id FenceID)

	CreateFramebuffer(info FramebufferInfo) (FramebufferID, error)
	DestroyFramebuffer(id FramebufferID)

	Submit(info SubmitInfo) error
	WaitIdle() error
}
