package vkg

import vk "github.com/vulkan-go/vulkan"

// ImageBindingResource is the image-backed payload of one descriptor
// binding: the resource handle and native image it belongs to (for
// state-request translation), the subresource range this binding reads
// or writes, and the native vk.DescriptorImageInfo written into the
// descriptor set.
type ImageBindingResource struct {
	Handle         ResourceHandle
	NativeImage    vk.Image
	Aspect         vk.ImageAspectFlags
	MipLevels      uint32
	ArrayLayers    uint32
	Range          vk.ImageSubresourceRange
	DescriptorInfo vk.DescriptorImageInfo
}

// BufferBindingResource is the buffer-backed payload of one descriptor
// binding.
type BufferBindingResource struct {
	Handle         ResourceHandle
	DescriptorInfo vk.DescriptorBufferInfo
}

// Binding is one slot of a DescriptorSet: exactly one of Image or
// Buffer is set, mirroring etna::Binding's
// std::variant<ImageBinding, BufferBinding> (DescriptorSet.hpp) as an
// explicit Go sum type.
type Binding struct {
	Binding   uint32
	ArrayElem uint32
	Image     *ImageBindingResource
	Buffer    *BufferBindingResource
}

// DescriptorSet is a set of bindings allocated from one frame of a
// DynamicDescriptorPool. Its Generation is compared against the pool's
// flip counter to decide whether the backing native descriptor set is
// still valid (see descriptorpool.go). Grounded on etna::DescriptorSet
// (DescriptorSet.hpp).
type DescriptorSet struct {
	Generation      uint64
	LayoutID        DescriptorLayoutID
	VKDescriptorSet vk.DescriptorSet
	Bindings        []Binding
}

// RequestStates translates every binding of ds into tracker requests:
// the shader stages visible to a binding and the access its descriptor
// type implies are looked up from layout, and images additionally carry
// the layout the binding's DescriptorImageInfo names. Grounded on
// etna::DescriptorSet::requestStates (DescriptorSet.cpp).
func (ds *DescriptorSet) RequestStates(layout *DescriptorSetLayout, tracker *PerCommandBufferTracker) {
	for _, b := range ds.Bindings {
		info := layout.Info[b.Binding]
		stages := shaderStageToPipelineStage(info.StageFlags)
		access := descriptorTypeToAccessFlag(info.DescriptorType)

		if b.Image != nil {
			img := b.Image
			tracker.RequestImageRangeState(
				img.Handle, img.NativeImage, img.Aspect, img.MipLevels, img.ArrayLayers,
				img.Range.BaseMipLevel, img.Range.LevelCount, img.Range.BaseArrayLayer, img.Range.LayerCount,
				ImageSubresourceState{
					ActiveStages:   stages,
					ActiveAccesses: access,
					Layout:         ImageLayout(img.DescriptorInfo.ImageLayout),
				},
			)
		} else if b.Buffer != nil {
			tracker.RequestBufferState(b.Buffer.Handle, BufferState{
				ActiveStages:   stages,
				ActiveAccesses: access,
			})
		}
	}
}

// validateWrite checks that ds supplies exactly the bindings its layout
// declares, and that each binding's resource kind (image vs. buffer)
// matches what the layout expects. Grounded on
// etna::validate_descriptor_write (DescriptorSet.cpp).
func validateWrite(layout *DescriptorSetLayout, ds *DescriptorSet) {
	var unbound [MaxDescriptorBindings]uint32
	for i := 0; i < MaxDescriptorBindings; i++ {
		if layout.Used[i] {
			unbound[i] = layout.Info[i].DescriptorCount
		}
	}

	for _, b := range ds.Bindings {
		if !layout.Used[b.Binding] {
			panicf("descriptor write error: descriptor set doesn't have a %d slot", b.Binding)
		}
		info := layout.Info[b.Binding]
		wantImage := isImageDescriptor(info.DescriptorType)
		gotImage := b.Image != nil
		if wantImage != gotImage {
			want, got := "buffer", "buffer"
			if wantImage {
				want = "image"
			}
			if gotImage {
				got = "image"
			}
			panicf("descriptor write error: slot %d wants a %s but got a %s", b.Binding, want, got)
		}
		unbound[b.Binding]--
	}

	for i := 0; i < MaxDescriptorBindings; i++ {
		if unbound[i] != 0 {
			panicf("descriptor write error: slot %d has %d unbound resources", i, unbound[i])
		}
	}
}

// WriteSet validates ds against its layout and issues the native
// vkUpdateDescriptorSets call. Grounded on etna::write_set
// (DescriptorSet.cpp).
func WriteSet(device *Device, layoutCache *DescriptorSetLayoutCache, ds *DescriptorSet) {
	layout := layoutCache.Get(ds.LayoutID)
	validateWrite(layout, ds)

	writes := make([]vk.WriteDescriptorSet, 0, len(ds.Bindings))
	for _, b := range ds.Bindings {
		info := layout.Info[b.Binding]
		write := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          ds.VKDescriptorSet,
			DstBinding:      b.Binding,
			DstArrayElement: b.ArrayElem,
			DescriptorCount: 1,
			DescriptorType:  info.DescriptorType,
		}
		if b.Image != nil {
			write.PImageInfo = []vk.DescriptorImageInfo{b.Image.DescriptorInfo}
		} else if b.Buffer != nil {
			write.PBufferInfo = []vk.DescriptorBufferInfo{b.Buffer.DescriptorInfo}
		}
		writes = append(writes, write)
	}

	vk.UpdateDescriptorSets(device.VKDevice, uint32(len(writes)), writes, 0, nil)
}
