package vkg

import (
	"log"

	vk "github.com/vulkan-go/vulkan"
)

type HostBoundBuffer struct {
	HostBuffer         *Buffer
	HostMemory         *DeviceMemory
	HostMemoryOffset   uint64
	SharedDeviceMemory bool
	BufferObject       BufferObject
	// Handle identifies HostBuffer to the barrier-tracking engine (see
	// resourcehandle.go); minted once at creation and never reused.
	Handle ResourceHandle
}

type StagedBoundBuffer struct {
	HostBoundBuffer

	DeviceBuffer       *Buffer
	DeviceMemory       *DeviceMemory
	DeviceMemoryOffset uint64
	// DeviceHandle identifies DeviceBuffer to the barrier-tracking engine,
	// distinct from the embedded HostBoundBuffer.Handle which identifies
	// the staging-side HostBuffer.
	DeviceHandle ResourceHandle
}

func (d *Device) CreateHostIndexBuffer(registry *ResourceRegistry, bo BufferObject, sharingMode vk.SharingMode) (*HostBoundBuffer, error) {
	buffer, dmemory, err := d.CreateAndBindBufferAndMemory(uint64(len(bo.Bytes())), 0, vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit), sharingMode)

	if err != nil {
		return nil, err
	}

	hbb := &HostBoundBuffer{
		HostBuffer:       buffer,
		HostMemory:       dmemory,
		HostMemoryOffset: 0,
		BufferObject:     bo,
		Handle:           registry.NewBufferHandle(),
	}

	return hbb, nil
}

func (d *Device) CreateHostVertexBuffer(registry *ResourceRegistry, bo BufferObject, sharingMode vk.SharingMode) (*HostBoundBuffer, error) {
	buffer, dmemory, err := d.CreateAndBindBufferAndMemory(uint64(len(bo.Bytes())), 0, vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit), sharingMode)

	if err != nil {
		return nil, err
	}

	hbb := &HostBoundBuffer{
		HostBuffer:       buffer,
		HostMemory:       dmemory,
		HostMemoryOffset: 0,
		BufferObject:     bo,
		Handle:           registry.NewBufferHandle(),
	}

	return hbb, nil
}

func (d *Device) CreateAndBindBufferAndMemory(size uint64, offset uint64, usage vk.BufferUsageFlags, mprops vk.MemoryPropertyFlags, sharing vk.SharingMode) (*Buffer, *DeviceMemory, error) {

	buffer, err := d.CreateBufferWithOptions(size, usage, sharing)
	if err != nil {
		return nil, nil, err
	}
	memory, err := d.AllocateForBuffer(buffer, mprops)
	if err != nil {
		buffer.Destroy()
		return nil, nil, err
	}
	buffer.Bind(memory, offset)
	return buffer, memory, nil
}

func (d *Device) CreateStagedBoundBuffer(registry *ResourceRegistry, bo BufferObject) (*StagedBoundBuffer, error) {
	s := &StagedBoundBuffer{}

	s.BufferObject = bo

	size := uint64(len(bo.Bytes()))

	buffer, memory, err := d.CreateAndBindBufferAndMemory(size, 0,
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit),
		vk.SharingModeExclusive)

	if err != nil {
		return nil, err
	}

	s.HostBuffer = buffer
	s.HostMemory = memory
	s.HostMemoryOffset = 0
	s.Handle = registry.NewBufferHandle()

	var usage vk.BufferUsageFlags

	usage = usage | vk.BufferUsageFlags(vk.BufferUsageTransferDstBit)

	if _, ok := s.BufferObject.(VertexSource); ok {
		usage |= vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit)
	}
	if _, ok := s.BufferObject.(IndexSource); ok {
		usage |= vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit)
	}

	buffer, memory, err = d.CreateAndBindBufferAndMemory(size, 0,
		usage,
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit),
		vk.SharingModeExclusive)

	if err != nil {
		s.Destroy()
		return nil, err
	}

	s.DeviceBuffer = buffer
	s.DeviceMemory = memory
	s.DeviceMemoryOffset = 0
	s.DeviceHandle = registry.NewBufferHandle()

	return s, nil
}

func (s *StagedBoundBuffer) Destroy() {
	s.HostBoundBuffer.Destroy()
	if s.DeviceMemory != nil {
		s.DeviceMemory.Destroy()
	}
	if s.DeviceBuffer != nil {
		s.DeviceBuffer.Destroy()
	}
}

// UploadStagedBuffer records the host-to-device copy for s through cb's
// tracked CopyBuffer, so the transfer-stage barrier is generated by the
// same engine every other command-buffer operation goes through.
func (cb *SyncCommandBuffer) UploadStagedBuffer(s *StagedBoundBuffer) {
	cb.CopyBuffer(s.Handle, s.HostBuffer.VKBuffer, s.DeviceHandle, s.DeviceBuffer.VKBuffer, []vk.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: vk.DeviceSize(s.HostBuffer.Size)},
	})
}

// BindVertexBufferStaged binds s's device-local buffer as a vertex
// buffer through cb's tracked BindVertexBuffer.
func (cb *SyncCommandBuffer) BindVertexBufferStaged(binding uint32, s *StagedBoundBuffer, offset vk.DeviceSize) {
	cb.BindVertexBuffer(binding, s.DeviceHandle, s.DeviceBuffer.VKBuffer, offset)
}

// BindIndexBufferStaged binds s's device-local buffer as an index
// buffer through cb's tracked BindIndexBuffer.
func (cb *SyncCommandBuffer) BindIndexBufferStaged(s *StagedBoundBuffer, offset vk.DeviceSize, indexType vk.IndexType) {
	cb.BindIndexBuffer(s.DeviceHandle, s.DeviceBuffer.VKBuffer, offset, indexType)
}

func (d *Device) CreateHostBoundBuffer(registry *ResourceRegistry, bo BufferObject) (*HostBoundBuffer, error) {
	h := &HostBoundBuffer{BufferObject: bo}

	size := uint64(len(bo.Bytes()))

	var usage vk.BufferUsageFlags

	if _, ok := h.BufferObject.(VertexSource); ok {
		usage |= vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit)
		log.Printf("BoundBuffer: VertexSource")
	}
	if _, ok := h.BufferObject.(IndexSource); ok {
		usage |= vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit)
		log.Printf("BoundBuffer: IndexSource")
	}
	if _, ok := h.BufferObject.(UBO); ok {
		usage |= vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit)
		log.Printf("BoundBuffer: UBO")
	}

	buffer, memory, err := d.CreateAndBindBufferAndMemory(size, 0,
		usage,
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit),
		vk.SharingModeExclusive)

	if err != nil {
		return nil, err
	}

	h.HostBuffer = buffer
	h.HostMemory = memory
	h.Handle = registry.NewBufferHandle()

	return h, nil
}

func (h *HostBoundBuffer) Map() error {
	data := h.BufferObject.Bytes()

	pm, err := h.HostMemory.MapWithSize(len(data))
	if err != nil {
		return err
	}

	const m = 0x7fffffff
	outData := (*[m]byte)(pm)[:len(data)]

	copy(outData, data)

	h.HostMemory.Unmap()

	return nil
}

func (s *HostBoundBuffer) Destroy() {
	if s.HostMemory != nil {
		s.HostMemory.Destroy()
	}
	if s.HostBuffer != nil {
		s.HostBuffer.Destroy()
	}
}
