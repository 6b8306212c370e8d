package vkg

import (
	"fmt"

	"github.com/vulkan-go/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"
)

// GraphicsApp is a utility object which implements the core requirements
// to get to a functioning Vulkan app: instance/device/surface/swapchain
// bring-up. It stops short of recording or submitting any frames — once
// Init (and, for windowed apps, SetWindow) has run, call NewSubmitContext
// to obtain a SimpleSubmitContext that owns the actual per-frame
// record/submit/present loop against the tracked command-buffer API.
//
// See https://vulkan-tutorial.com/ for a good walkthrough of what this code does.
type GraphicsApp struct {
	Instance *Instance
	App      *App

	Window    *glfw.Window
	VKSurface vk.Surface

	Device         *Device
	PhysicalDevice *PhysicalDevice

	ResourceManager *ResourceManager

	GraphicsQueue *Queue
	PresentQueue  *Queue

	GraphicsCommandPool *CommandPool

	DefaultNumSwapchainImages int

	screenExtent vk.Extent2D

	Swapchain           *Swapchain
	SwapchainImages     []*Image
	SwapchainImageViews []*ImageView
	DepthImage          *ImageResource
	DepthImageView      *ImageView

	resized bool
}

// NewGraphicsApp creates a new graphics app with the given name and version
func NewGraphicsApp(name string, version Version) (*GraphicsApp, error) {
	app := &App{Name: name, Version: version}
	p := &GraphicsApp{
		App: app,
	}
	return p, nil
}

// PhysicalDevices returns a list of physical devices
func (p *GraphicsApp) PhysicalDevices() ([]*PhysicalDevice, error) {
	if p.Instance == nil {
		return nil, fmt.Errorf("platform hasn't been initialized yet")
	}
	return p.Instance.PhysicalDevices()
}

// EnableLayer enables a specific layer of the code
func (p *GraphicsApp) EnableLayer(layer string) bool {
	supportedLayers, err := p.SupportedLayers()
	if err != nil {
		return false
	}

	for _, slayer := range supportedLayers {
		if layer == slayer {
			p.App.EnableLayer(layer)
			return true
		}

	}
	return false
}

// EnableExtension enables a specific extension
func (p *GraphicsApp) EnableExtension(extension string) bool {
	supportedExtensions, err := p.SupportedExtensions()
	if err != nil {
		return false
	}

	for _, sextension := range supportedExtensions {
		if extension == sextension {
			p.App.EnableExtension(extension)
			return true
		}

	}
	return false
}

// SupportedExtensions returns alist of supported extensions
func (p *GraphicsApp) SupportedExtensions() ([]string, error) {
	return SupportedExtensions()
}

// SupportedLayers returns a list of supported layers
func (p *GraphicsApp) SupportedLayers() ([]string, error) {
	return SupportedLayers()
}

// EnableDebugging enables a list of commonly used debugging layers
func (p *GraphicsApp) EnableDebugging() bool {
	if p.Instance != nil {
		return false
	}
	p.App.EnableDebugging()
	return true
}

// NumFramebuffers returns the number of swapchain images / frames in
// flight this app was set up with.
func (p *GraphicsApp) NumFramebuffers() int {
	return p.DefaultNumSwapchainImages
}

// Init initializes the graphics app: creates the instance, surface (if a
// window was set), physical/logical device, queues, and resource manager.
func (p *GraphicsApp) Init() error {
	var initSwapchain bool

	if p.Window != nil {
		initSwapchain = true
	}

	var err error

	p.Instance, err = p.App.CreateInstance()
	if err != nil {
		return err
	}

	if p.Window != nil && p.VKSurface == vk.NullSurface {
		surface, err := p.Window.CreateWindowSurface(p.Instance.VKInstance, nil)
		if err != nil {
			return err
		}
		p.VKSurface = vk.SurfaceFromPointer(surface)
	}

	physicalDevices, err := p.Instance.PhysicalDevices()
	if err != nil {
		return fmt.Errorf("error getting devices: %w", err)
	}

	if physicalDevices == nil && err == nil {
		return fmt.Errorf("no devices found")
	}

	//FIXME this should probably be smarter than this
	pdevice := physicalDevices[0]

	queues, err := pdevice.QueueFamilies()
	if err != nil {
		return fmt.Errorf("unable to load device queue families: %w", err)
	}

	gqueues := queues.FilterGraphicsAndPresent(p.VKSurface)

	if len(gqueues) == 0 {
		return fmt.Errorf("no graphics capable queues found on device: %v", pdevice)
	}

	enabledExtensions := []string{}
	if initSwapchain {
		enabledExtensions = []string{"VK_KHR_swapchain"}
	}

	ldevice, err := pdevice.CreateLogicalDeviceWithOptions(gqueues, &CreateDeviceOptions{
		EnabledExtensions: enabledExtensions,
	})

	if err != nil {
		return fmt.Errorf("unable to create device: %w", err)
	}

	p.Device = ldevice
	p.PhysicalDevice = pdevice

	if len(gqueues) == 1 {
		// Single graphics and present queue
		queue := ldevice.GetQueue(gqueues[0])

		p.GraphicsQueue = queue
		p.PresentQueue = queue
	} else {
		//Seperate graphics and present queue
		pq := gqueues.FilterPresent(p.VKSurface)
		gq := gqueues.FilterGraphics()

		p.GraphicsQueue = ldevice.GetQueue(gq[0])
		p.PresentQueue = ldevice.GetQueue(pq[0])
	}

	p.DefaultNumSwapchainImages, err = p.Device.DefaultNumSwapchainImages(p.VKSurface)
	if err != nil {
		return err
	}

	p.GraphicsCommandPool, err = p.Device.CreateCommandPool(p.GraphicsQueue.QueueFamily)
	if err != nil {
		return err
	}

	p.ResourceManager = p.Device.CreateResourceManager()

	return nil

}

// SetWindow sets the GLFW window for the graphics app
func (p *GraphicsApp) SetWindow(window *glfw.Window) error {

	if p.Instance != nil {
		return fmt.Errorf("window must be set prior to initalizatin")
	}

	p.Window = window

	extensions := p.Window.GetRequiredInstanceExtensions()

	for _, ext := range extensions {
		if !p.EnableExtension(ext) {
			return fmt.Errorf("extension '%s' required to enable glfw is not supported by vulkan", ext)
		}
	}

	p.refreshScreenExtent()

	return nil

}

// PrepareSwapchain creates the swapchain, its image views, and a depth
// image sized to match, and must be called after Init. Call it again
// after Resize to rebuild against the new screen extent.
func (p *GraphicsApp) PrepareSwapchain() error {
	if err := p.createSwapchainAndImages(); err != nil {
		return err
	}
	if err := p.createDepthImage(); err != nil {
		return err
	}
	p.resized = false
	return nil
}

// NewSubmitContext builds a SimpleSubmitContext bound to this app's
// device, queues, and swapchain — the bridge between GraphicsApp's
// bring-up and the tracked per-frame record/submit/present loop.
// tracker and descriptorPool are threaded
// through explicitly, matching the "no global context" rearchitecture
// (see DESIGN.md); framesInFlight is typically len(p.SwapchainImageViews).
func (p *GraphicsApp) NewSubmitContext(tracker *QueueTracker, descriptorPool *DynamicDescriptorPool, framesInFlight uint32) (*SimpleSubmitContext, error) {
	ctx, err := NewSimpleSubmitContext(p.Device, p.GraphicsQueue, p.PresentQueue, p.Swapchain, tracker, descriptorPool, framesInFlight)
	if err != nil {
		return nil, err
	}
	ctx.VKSurface = p.VKSurface
	ctx.PhysicalDevice = p.PhysicalDevice
	return ctx, nil
}

// RecreateSwapchain tears down and rebuilds the swapchain, its image
// views, and the depth image against the current screen extent, for use
// after Resize. The caller is responsible for calling
// SimpleSubmitContext.RecreateSwapchain afterward to pick up the new
// swapchain handle.
func (p *GraphicsApp) RecreateSwapchain() error {
	p.PresentQueue.WaitIdle()
	p.GraphicsQueue.WaitIdle()
	p.Device.WaitIdle()

	p.destroyDepthImage()
	p.destroySwapchainAndImages()

	p.refreshScreenExtent()

	return p.PrepareSwapchain()
}

// Resize is used to signal that we need to resize
func (p *GraphicsApp) Resize() {
	p.refreshScreenExtent()
	p.resized = true
}

// Resized reports whether Resize was called since the last
// RecreateSwapchain/PrepareSwapchain.
func (p *GraphicsApp) Resized() bool {
	return p.resized
}

func (p *GraphicsApp) refreshScreenExtent() {
	if p.Window != nil {
		extent := vk.Extent2D{}
		width, height := p.Window.GetFramebufferSize()
		extent.Width = uint32(width)
		extent.Height = uint32(height)
		p.screenExtent = extent
	}

}

// GetScreenExtent gets the current screen extents
func (p *GraphicsApp) GetScreenExtent() vk.Extent2D {
	return p.screenExtent
}

// Destroy tears down the graphics application
func (p *GraphicsApp) Destroy() {

	vk.DeviceWaitIdle(p.Device.VKDevice)

	p.ResourceManager.Destroy()

	p.destroyDepthImage()

	p.destroySwapchainAndImages()

	p.GraphicsCommandPool.Destroy()

	vk.DestroySurface(p.Instance.VKInstance, p.VKSurface, nil)

	p.Device.Destroy()

	p.Instance.Destroy()

}

func (p *GraphicsApp) createSwapchainAndImages() error {

	extent := p.GetScreenExtent()

	options := &CreateSwapchainOptions{
		ActualSize:                extent,
		DesiredNumSwapchainImages: p.DefaultNumSwapchainImages,
	}

	swapchain, err := p.Device.CreateSwapchain(p.VKSurface, p.GraphicsQueue, p.PresentQueue, options)
	if err != nil {
		return err
	}
	p.Swapchain = swapchain

	images, err := swapchain.GetImages()
	if err != nil {
		return err
	}
	p.SwapchainImages = images

	p.SwapchainImageViews = make([]*ImageView, len(images))
	for i, image := range images {
		view, err := image.CreateImageView()
		if err != nil {
			return err
		}
		p.SwapchainImageViews[i] = view
	}
	return nil
}

func (p *GraphicsApp) destroySwapchainAndImages() {

	for _, views := range p.SwapchainImageViews {
		views.Destroy()
	}
	p.SwapchainImageViews = nil

	p.Swapchain.Destroy()

}

func (p *GraphicsApp) createDepthImage() error {
	var err error

	p.DepthImage, err = p.ResourceManager.NewImageResourceWithOptions(p.Swapchain.Extent, vk.FormatD32Sfloat, vk.ImageTilingOptimal, vk.ImageUsageDepthStencilAttachmentBit, vk.SharingModeExclusive, vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		return err
	}

	p.DepthImageView, err = p.DepthImage.CreateImageViewWithAspectMask(vk.ImageAspectFlags(vk.ImageAspectDepthBit))
	if err != nil {
		return err
	}

	return nil
}

func (p *GraphicsApp) destroyDepthImage() error {
	if p.DepthImage != nil {
		p.DepthImage.Destroy()
	}
	if p.DepthImageView != nil {
		p.DepthImageView.Destroy()
	}
	return nil
}
