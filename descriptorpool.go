package vkg

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// Default descriptor-pool sizing, grounded on etna's
// g_default_pool_size / NUM_DESCRIPORS / NUM_TEXTURES / ...
// (DescriptorSet.cpp).
const (
	defaultMaxDescriptorSets  = 2048
	defaultNumUniformBuffers  = 2048
	defaultNumStorageBuffers  = 512
	defaultNumSamplers        = 128
	defaultNumStorageImages   = 512
	defaultNumCombinedSampler = 2048
)

func defaultDescriptorPoolSizes() []vk.DescriptorPoolSize {
	return []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: defaultNumUniformBuffers},
		{Type: vk.DescriptorTypeStorageBuffer, DescriptorCount: defaultNumStorageBuffers},
		{Type: vk.DescriptorTypeSampler, DescriptorCount: defaultNumSamplers},
		{Type: vk.DescriptorTypeSampledImage, DescriptorCount: defaultNumStorageImages},
		{Type: vk.DescriptorTypeStorageImage, DescriptorCount: defaultNumStorageImages},
		{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: defaultNumCombinedSampler},
	}
}

// DynamicDescriptorPool is a ring of N per-frame backing
// vk.DescriptorPools. Advancing the ring (Flip) resets the pool the
// ring is about to reuse, which destroys every descriptor set that was
// ever allocated from it; DescriptorSet.Generation lets callers tell,
// in O(1), whether a set they are still holding has been invalidated
// this way. Grounded on etna::DynamicDescriptorPool
// (DescriptorSet.hpp/.cpp).
type DynamicDescriptorPool struct {
	device     *Device
	layouts    *DescriptorSetLayoutCache
	numFrames  uint32
	frameIndex uint32
	flipsCount uint64
	pools      []vk.DescriptorPool
}

// NewDynamicDescriptorPool creates framesInFlight backing pools sized
// per defaultDescriptorPoolSizes.
func NewDynamicDescriptorPool(device *Device, layouts *DescriptorSetLayoutCache, framesInFlight uint32) (*DynamicDescriptorPool, error) {
	sizes := defaultDescriptorPoolSizes()
	info := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       defaultMaxDescriptorSets,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}

	pools := make([]vk.DescriptorPool, framesInFlight)
	for i := range pools {
		var pool vk.DescriptorPool
		if err := vk.Error(vk.CreateDescriptorPool(device.VKDevice, &info, nil, &pool)); err != nil {
			return nil, fmt.Errorf("creating descriptor pool frame %d: %w", i, err)
		}
		pools[i] = pool
	}

	return &DynamicDescriptorPool{
		device:    device,
		layouts:   layouts,
		numFrames: framesInFlight,
		pools:     pools,
	}, nil
}

// Flip advances the ring to the next frame, resetting it and thereby
// invalidating every descriptor set allocated from it. Grounded on
// etna::DynamicDescriptorPool::flip (DescriptorSet.cpp).
func (p *DynamicDescriptorPool) Flip() {
	p.frameIndex = (p.frameIndex + 1) % p.numFrames
	p.flipsCount++
	vk.ResetDescriptorPool(p.device.VKDevice, p.pools[p.frameIndex], 0)
}

// DestroyAllocatedSets flips the ring numFrames times, guaranteeing
// every pool (and therefore every set ever allocated) has been reset.
// Grounded on etna::DynamicDescriptorPool::destroyAllocatedSets
// (DescriptorSet.cpp).
func (p *DynamicDescriptorPool) DestroyAllocatedSets() {
	for i := uint32(0); i < p.numFrames; i++ {
		p.Flip()
	}
}

// IsSetValid reports whether ds still lives in a pool frame that hasn't
// been reset since it was allocated. Grounded on
// etna::DynamicDescriptorPool::isSetValid (DescriptorSet.hpp).
func (p *DynamicDescriptorPool) IsSetValid(ds *DescriptorSet) bool {
	return ds.VKDescriptorSet != vk.NullHandle && ds.Generation+uint64(p.numFrames) > p.flipsCount
}

// AllocateSet allocates a descriptor set against layoutID from the
// current frame's backing pool. Grounded on
// etna::DynamicDescriptorPool::allocateSet (DescriptorSet.cpp).
func (p *DynamicDescriptorPool) AllocateSet(layoutID DescriptorLayoutID, bindings []Binding) (*DescriptorSet, error) {
	vkLayout := p.layouts.VkLayout(layoutID)
	setLayouts := []vk.DescriptorSetLayout{vkLayout}

	info := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     p.pools[p.frameIndex],
		DescriptorSetCount: 1,
		PSetLayouts:        setLayouts,
	}

	var vkSet vk.DescriptorSet
	if err := vk.Error(vk.AllocateDescriptorSets(p.device.VKDevice, &info, &vkSet)); err != nil {
		return nil, fmt.Errorf("allocating descriptor set: %w", err)
	}

	return &DescriptorSet{
		Generation:      p.flipsCount,
		LayoutID:        layoutID,
		VKDescriptorSet: vkSet,
		Bindings:        bindings,
	}, nil
}

// Destroy destroys every backing pool.
func (p *DynamicDescriptorPool) Destroy() {
	for _, pool := range p.pools {
		vk.DestroyDescriptorPool(p.device.VKDevice, pool, nil)
	}
}
