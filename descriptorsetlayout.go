package vkg

import (
	"fmt"
	"sort"

	vk "github.com/vulkan-go/vulkan"
)

// DescriptorLayoutID identifies a descriptor-set layout cached by
// DescriptorSetLayoutCache. Grounded on etna::DescriptorLayoutId
// (GlobalContext.hpp) — an opaque id is what the rest of the system
// stores, never the raw vk.DescriptorSetLayout.
type DescriptorLayoutID uint32

// DescriptorSetLayout wraps a created vk.DescriptorSetLayout together
// with the binding-table metadata needed to validate writes against it
// and to translate descriptor writes into tracker requests (see
// descriptorset.go). Keeps the existing AddBinding/CreateDescriptorSetLayout
// builder shape.
type DescriptorSetLayout struct {
	Device                        *Device
	VKDescriptorSetLayout         vk.DescriptorSetLayout
	VKDescriptorSetLayoutBindings []vk.DescriptorSetLayoutBinding
	Info                          [MaxDescriptorBindings]DescriptorBindingInfo
	Used                          [MaxDescriptorBindings]bool
}

func (d *Device) NewDescriptorSetLayout() *DescriptorSetLayout {
	return &DescriptorSetLayout{Device: d}
}

// AddBinding adds a binding to the descriptor set.
func (d *DescriptorSetLayout) AddBinding(binding vk.DescriptorSetLayoutBinding) {
	if binding.Binding >= MaxDescriptorBindings {
		panicf("descriptor binding %d exceeds MaxDescriptorBindings (%d)", binding.Binding, MaxDescriptorBindings)
	}
	d.VKDescriptorSetLayoutBindings = append(d.VKDescriptorSetLayoutBindings, binding)
	d.Used[binding.Binding] = true
	d.Info[binding.Binding] = DescriptorBindingInfo{
		DescriptorType:  binding.DescriptorType,
		DescriptorCount: binding.DescriptorCount,
		StageFlags:      binding.StageFlags,
	}
}

// Destroy destroys this descriptor set layout.
func (d *DescriptorSetLayout) Destroy() {
	vk.DestroyDescriptorSetLayout(d.Device.VKDevice, d.VKDescriptorSetLayout, nil)
}

// CreateDescriptorSetLayout creates this descriptor set layout.
func (d *Device) CreateDescriptorSetLayout(layout *DescriptorSetLayout) (*DescriptorSetLayout, error) {
	var descriptorSetLayoutCreateInfo = &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(layout.VKDescriptorSetLayoutBindings)),
		PBindings:    layout.VKDescriptorSetLayoutBindings,
	}

	var descriptorSetLayout vk.DescriptorSetLayout
	err := vk.Error(vk.CreateDescriptorSetLayout(d.VKDevice, descriptorSetLayoutCreateInfo, nil, &descriptorSetLayout))
	if err != nil {
		return nil, err
	}

	layout.Device = d
	layout.VKDescriptorSetLayout = descriptorSetLayout

	return layout, nil
}

// DescriptorSetLayoutCache is a content-addressed cache of descriptor
// set layouts: two AddBinding sequences with the same bindings get the
// same DescriptorLayoutID and share one underlying vk.DescriptorSetLayout.
// Grounded on etna::DescriptorSetLayoutCache (GlobalContext.hpp) and its
// use in Etna.cpp's reload_shaders (which clears the cache on shader
// reload and lets it repopulate lazily).
type DescriptorSetLayoutCache struct {
	device  *Device
	byKey   map[string]DescriptorLayoutID
	layouts []*DescriptorSetLayout
}

// NewDescriptorSetLayoutCache creates an empty cache bound to device.
func NewDescriptorSetLayoutCache(device *Device) *DescriptorSetLayoutCache {
	return &DescriptorSetLayoutCache{device: device, byKey: make(map[string]DescriptorLayoutID)}
}

func bindingKey(bindings []vk.DescriptorSetLayoutBinding) string {
	sorted := append([]vk.DescriptorSetLayoutBinding(nil), bindings...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Binding < sorted[j].Binding })
	key := ""
	for _, b := range sorted {
		key += fmt.Sprintf("%d:%d:%d:%d|", b.Binding, b.DescriptorType, b.DescriptorCount, b.StageFlags)
	}
	return key
}

// GetOrCreate returns the DescriptorLayoutID for bindings, creating and
// caching a new vk.DescriptorSetLayout only the first time this exact
// binding set is seen.
func (c *DescriptorSetLayoutCache) GetOrCreate(bindings []vk.DescriptorSetLayoutBinding) (DescriptorLayoutID, error) {
	key := bindingKey(bindings)
	if id, ok := c.byKey[key]; ok {
		return id, nil
	}

	layout := c.device.NewDescriptorSetLayout()
	for _, b := range bindings {
		layout.AddBinding(b)
	}
	layout, err := c.device.CreateDescriptorSetLayout(layout)
	if err != nil {
		return 0, err
	}

	id := DescriptorLayoutID(len(c.layouts))
	c.layouts = append(c.layouts, layout)
	c.byKey[key] = id
	return id, nil
}

// Get returns the cached layout for id. Panics if id is unknown — a
// caller holding a DescriptorLayoutID always got it from GetOrCreate.
func (c *DescriptorSetLayoutCache) Get(id DescriptorLayoutID) *DescriptorSetLayout {
	if int(id) >= len(c.layouts) {
		panicf("unknown descriptor layout id %d", id)
	}
	return c.layouts[id]
}

func (c *DescriptorSetLayoutCache) VkLayout(id DescriptorLayoutID) vk.DescriptorSetLayout {
	return c.Get(id).VKDescriptorSetLayout
}

// Clear destroys every cached layout and empties the cache. Called when
// shaders are reloaded, matching etna::reload_shaders clearing its
// descriptor-layout cache before recreating pipelines (Etna.cpp).
func (c *DescriptorSetLayoutCache) Clear() {
	for _, l := range c.layouts {
		l.Destroy()
	}
	c.layouts = nil
	c.byKey = make(map[string]DescriptorLayoutID)
}
