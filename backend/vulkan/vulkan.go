// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package vulkan is the hardware gfx.Backend. Every draw shares one
// pipeline layout: a push constant block with the transform, the color
// and the sampled texture rectangle, plus a single combined image
// sampler. Meshes use the default mesh program unless their material
// brings SPIR-V code, sprites use a quad generated in the vertex shader.
package vulkan

import (
	"errors"
	"fmt"
	"image"
	"unsafe"

	vk "github.com/devblok/vulkan"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/frameforge/core"
	"github.com/devblok/frameforge/device"
	"github.com/devblok/frameforge/gfx"
	"github.com/devblok/frameforge/model"
	"github.com/devblok/frameforge/resource"
)

// maxTextures bounds the descriptor sets, one per texture
const maxTextures uint32 = 1024

// Errors returned by the backend
var (
	ErrUnknownHandle = errors.New("vulkan: unknown handle")
	ErrNoSurface     = errors.New("vulkan: window cannot create a surface")
	ErrNoQueue       = errors.New("vulkan: no queue family with graphics and present support")
)

// SurfaceWindow is a window able to create a Vulkan surface for an
// instance. The returned pointer points to the VkSurfaceKHR.
type SurfaceWindow interface {
	gfx.Window
	CreateSurface(instance any) (unsafe.Pointer, error)
}

// Options configure a Backend
type Options struct {
	Instance *device.Instance

	// Shaders holds the default SPIR-V programs
	Shaders resource.Source

	// SwapchainSize is the wanted number of swapchain images
	SwapchainSize uint32

	// Extensions are device extensions enabled besides the swapchain
	Extensions []string

	Logger log.FieldLogger
}

// New creates a backend on an existing instance. The device is
// created by CreateDevice.
func New(opts Options) *Backend {
	if opts.SwapchainSize == 0 {
		opts.SwapchainSize = 3
	}
	return &Backend{
		opts:    opts,
		log:     core.LoggerOrDefault(opts.Logger),
		shaders: opts.Shaders,
		objects: make(map[gfx.Handle]any),
	}
}

// Backend renders with Vulkan
type Backend struct {
	opts    Options
	log     log.FieldLogger
	shaders resource.Source

	physicalDevice vk.PhysicalDevice
	device         vk.Device
	surface        vk.Surface
	queue          vk.Queue
	queueIndex     uint32
	allocator      *allocator

	width, height   uint32
	imageFormat     vk.Format
	imageColorspace vk.ColorSpace

	swapchain           vk.Swapchain
	swapchainImages     []vk.Image
	swapchainImageViews []vk.ImageView
	framebuffers        []vk.Framebuffer
	depthImage          vk.Image
	depthImageView      vk.ImageView
	depthMemory         memory
	outdated            bool

	renderPass     vk.RenderPass
	viewport       vk.Viewport
	scissor        vk.Rect2D
	commandPool    vk.CommandPool
	commandBuffers []vk.CommandBuffer

	descriptorSetLayout vk.DescriptorSetLayout
	descriptorPool      vk.DescriptorPool
	pipelineLayout      vk.PipelineLayout
	pipelineCache       vk.PipelineCache
	sampler             vk.Sampler
	meshPipeline        *pipeline
	spritePipeline      *pipeline
	linePipeline        *pipeline
	white               *texture

	imageAvailable vk.Semaphore
	renderFinished vk.Semaphore
	imageFence     vk.Fence
	imageIndex     uint32
	inFrame        bool
	bound          vk.Pipeline

	objects map[gfx.Handle]any
	last    gfx.Handle
	pending []releaser

	// packed line vertices, reused every frame
	lineScratch []byte
}

var _ gfx.Backend = (*Backend)(nil)

type releaser interface {
	release()
}

// material is a pipeline owned by a material or the shared default
type material struct {
	pipeline *pipeline
	owned    bool
}

func (m *material) release() {
	if m.owned {
		m.pipeline.release()
	}
}

// CreateDevice creates the logical device presenting into window.
// The window must be a SurfaceWindow unless the instance already
// has a surface.
func (b *Backend) CreateDevice(window gfx.Window, cfg gfx.DeviceConfiguration) (gfx.DeviceInfo, error) {
	if b.opts.Instance == nil {
		return gfx.DeviceInfo{}, errors.New("vulkan: no instance")
	}
	if b.shaders == nil {
		return gfx.DeviceInfo{}, errors.New("vulkan: no shader source")
	}

	if b.opts.Instance.Surface() == vk.NullSurface {
		sw, ok := window.(SurfaceWindow)
		if !ok {
			return gfx.DeviceInfo{}, ErrNoSurface
		}
		pSurface, err := sw.CreateSurface(b.opts.Instance.Handle())
		if err != nil {
			return gfx.DeviceInfo{}, fmt.Errorf("vulkan: create surface: %w", err)
		}
		b.opts.Instance.SetSurface(pSurface)
	}
	b.surface = b.opts.Instance.Surface()

	b.width, b.height = cfg.Width, cfg.Height
	if (b.width == 0 || b.height == 0) && window != nil {
		w, h := window.Size()
		b.width, b.height = uint32(w), uint32(h)
	}

	required := []string{vk.KhrSwapchainExtensionName}
	for _, ext := range b.opts.Extensions {
		if !contains(required, ext) {
			required = append(required, ext)
		}
	}
	pd, info, err := b.opts.Instance.SelectDevice(required)
	if err != nil {
		return gfx.DeviceInfo{}, err
	}
	b.physicalDevice = pd

	if err := b.selectQueueFamily(); err != nil {
		return gfx.DeviceInfo{}, err
	}
	if err := b.createLogicalDevice(required); err != nil {
		return gfx.DeviceInfo{}, err
	}
	if err := b.selectSurfaceFormat(); err != nil {
		return gfx.DeviceInfo{}, err
	}
	b.allocator = newAllocator(b.device, b.physicalDevice)

	for _, step := range []func() error{
		b.createRenderPass,
		b.createDescriptorSetLayout,
		b.createPipelineLayout,
		b.createPipelineCache,
		b.createCommandPool,
		b.createSampler,
		b.createDescriptorPool,
		b.loadDefaultPipelines,
		b.createSynchronization,
	} {
		if err := step(); err != nil {
			return gfx.DeviceInfo{}, err
		}
	}

	if b.white, err = b.whiteTexture(); err != nil {
		return gfx.DeviceInfo{}, err
	}

	if err := b.buildSwapchain(nil); err != nil {
		if !errors.Is(err, errZeroExtent) {
			return gfx.DeviceInfo{}, err
		}
		b.outdated = true
	}

	b.log.WithFields(log.Fields{
		"device":     info.Name,
		"width":      b.width,
		"height":     b.height,
		"images":     len(b.swapchainImages),
		"fullscreen": cfg.Fullscreen,
	}).Info("vulkan device created")

	return gfx.DeviceInfo{
		Name:                     info.Name,
		HardwareVertexProcessing: true,
	}, nil
}

// selectQueueFamily finds one family with graphics and present support
func (b *Backend) selectQueueFamily() error {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(b.physicalDevice, &count, nil)
	if count == 0 {
		return errors.New("vk.GetPhysicalDeviceQueueFamilyProperties(): no queue families on GPU")
	}
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(b.physicalDevice, &count, families)

	for i := uint32(0); i < count; i++ {
		families[i].Deref()
		if families[i].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) == 0 {
			continue
		}
		var present vk.Bool32
		vk.GetPhysicalDeviceSurfaceSupport(b.physicalDevice, i, b.surface, &present)
		if present.B() {
			b.queueIndex = i
			return nil
		}
	}
	return ErrNoQueue
}

func (b *Backend) createLogicalDevice(extensions []string) error {
	queueInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: b.queueIndex,
		QueueCount:       1,
		PQueuePriorities: []float32{1},
	}}

	dci := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: core.SafeStrings(extensions),
	}
	if err := vk.Error(vk.CreateDevice(b.physicalDevice, &dci, nil, &b.device)); err != nil {
		return errors.New("vk.CreateDevice(): " + err.Error())
	}
	vk.GetDeviceQueue(b.device, b.queueIndex, 0, &b.queue)
	return nil
}

func (b *Backend) selectSurfaceFormat() error {
	var count uint32
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceFormats(b.physicalDevice, b.surface, &count, nil)); err != nil {
		return errors.New("vk.GetPhysicalDeviceSurfaceFormats(): " + err.Error())
	}
	if count == 0 {
		return errors.New("vk.GetPhysicalDeviceSurfaceFormats(): surface has no formats")
	}
	surfaceFormats := make([]vk.SurfaceFormat, count)
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceFormats(b.physicalDevice, b.surface, &count, surfaceFormats)); err != nil {
		return errors.New("vk.GetPhysicalDeviceSurfaceFormats(): " + err.Error())
	}

	formats := make([]vk.Format, len(surfaceFormats))
	for i := range surfaceFormats {
		surfaceFormats[i].Deref()
		formats[i] = surfaceFormats[i].Format
	}
	chosen := surfaceFormats[chooseSurfaceFormat(formats)]
	b.imageFormat = chosen.Format
	b.imageColorspace = chosen.ColorSpace
	// a single undefined entry means anything goes
	if len(formats) == 1 && formats[0] == vk.FormatUndefined {
		b.imageFormat = vk.FormatB8g8r8a8Unorm
	}
	return nil
}

func (b *Backend) createCommandPool() error {
	cpci := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: b.queueIndex,
	}
	if err := vk.Error(vk.CreateCommandPool(b.device, &cpci, nil, &b.commandPool)); err != nil {
		return errors.New("vk.CreateCommandPool(): " + err.Error())
	}
	return nil
}

func (b *Backend) createSynchronization() error {
	sci := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	// signaled, the first frame has nothing to wait for
	fci := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
		Flags: vk.FenceCreateFlags(vk.FenceCreateSignaledBit),
	}

	if err := vk.Error(vk.CreateSemaphore(b.device, &sci, nil, &b.imageAvailable)); err != nil {
		return errors.New("vk.CreateSemaphore(): " + err.Error())
	}
	if err := vk.Error(vk.CreateSemaphore(b.device, &sci, nil, &b.renderFinished)); err != nil {
		return errors.New("vk.CreateSemaphore(): " + err.Error())
	}
	if err := vk.Error(vk.CreateFence(b.device, &fci, nil, &b.imageFence)); err != nil {
		return errors.New("vk.CreateFence(): " + err.Error())
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (b *Backend) add(obj any) gfx.Handle {
	b.last++
	b.objects[b.last] = obj
	return b.last
}

// CreateVertexBuffer uploads the vertex data of info into a host
// visible buffer
func (b *Backend) CreateVertexBuffer(_ gfx.Usage, info *model.DrawInfo) (gfx.BufferHandle, error) {
	buf, err := b.allocator.newBuffer(info.VertexData, vk.BufferUsageVertexBufferBit)
	if err != nil {
		return 0, err
	}
	buf.count = info.VertexCount
	return gfx.BufferHandle(b.add(buf)), nil
}

// CreateIndexBuffer uploads the 32bit indices of info
func (b *Backend) CreateIndexBuffer(_ gfx.Usage, info *model.DrawInfo) (gfx.BufferHandle, error) {
	buf, err := b.allocator.newBuffer(info.IndexData, vk.BufferUsageIndexBufferBit)
	if err != nil {
		return 0, err
	}
	buf.count = info.IndexCount
	return gfx.BufferHandle(b.add(buf)), nil
}

// CreateLineBuffer allocates a host visible vertex buffer for
// maxLines lines. SubmitLines rewrites it, which is safe because
// Clear waits for the previous frame.
func (b *Backend) CreateLineBuffer(maxLines int) (gfx.BufferHandle, error) {
	buf, err := b.allocator.newBuffer(make([]byte, 2*maxLines*model.VertexSize), vk.BufferUsageVertexBufferBit)
	if err != nil {
		return 0, err
	}
	buf.count = uint32(2 * maxLines)
	return gfx.BufferHandle(b.add(buf)), nil
}

// CreateMaterial builds a pipeline from the material's SPIR-V code.
// Materials without code share the default mesh pipeline.
func (b *Backend) CreateMaterial(info *model.MaterialInfo) (gfx.MaterialHandle, error) {
	if len(info.VertexShaderCode) == 0 || len(info.FragmentShaderCode) == 0 {
		return gfx.MaterialHandle(b.add(&material{pipeline: b.meshPipeline})), nil
	}
	p, err := b.newPipeline(meshPipeline, info.VertexShaderCode, info.FragmentShaderCode)
	if err != nil {
		return 0, fmt.Errorf("material %s: %w", info.Name, err)
	}
	b.log.WithField("material", info.Name).Debug("material pipeline created")
	return gfx.MaterialHandle(b.add(&material{pipeline: p, owned: true})), nil
}

// CreateTexture uploads img into device local memory
func (b *Backend) CreateTexture(img image.Image) (gfx.TextureHandle, error) {
	t, err := b.uploadTexture(img)
	if err != nil {
		return 0, err
	}
	return gfx.TextureHandle(b.add(t)), nil
}

// Release forgets h. The object is destroyed once the frame that
// may still use it completed.
func (b *Backend) Release(h gfx.Handle) {
	obj, ok := b.objects[h]
	if !ok {
		b.log.WithField("handle", h).Warn(ErrUnknownHandle)
		return
	}
	delete(b.objects, h)
	if r, ok := obj.(releaser); ok {
		b.pending = append(b.pending, r)
	}
}

func (b *Backend) freePending() {
	for _, r := range b.pending {
		r.release()
	}
	b.pending = b.pending[:0]
}

func (b *Backend) buffer(h gfx.BufferHandle) *buffer {
	buf, _ := b.objects[gfx.Handle(h)].(*buffer)
	return buf
}

func (b *Backend) texture(h gfx.TextureHandle) *texture {
	if t, ok := b.objects[gfx.Handle(h)].(*texture); ok {
		return t
	}
	return b.white
}

func (b *Backend) material(h gfx.MaterialHandle) *pipeline {
	if m, ok := b.objects[gfx.Handle(h)].(*material); ok {
		return m.pipeline
	}
	return b.meshPipeline
}

// Destroy waits for the device and destroys everything it owns
func (b *Backend) Destroy() {
	if b.device == nil {
		return
	}
	vk.DeviceWaitIdle(b.device)

	b.freePending()
	for h, obj := range b.objects {
		if r, ok := obj.(releaser); ok {
			r.release()
		}
		delete(b.objects, h)
	}
	if b.white != nil {
		b.white.release()
	}
	for _, p := range []*pipeline{b.meshPipeline, b.spritePipeline, b.linePipeline} {
		if p != nil {
			p.release()
		}
	}

	b.destroySwapchainResources()
	if b.swapchain != nil {
		vk.DestroySwapchain(b.device, b.swapchain, nil)
	}

	vk.DestroySemaphore(b.device, b.imageAvailable, nil)
	vk.DestroySemaphore(b.device, b.renderFinished, nil)
	vk.DestroyFence(b.device, b.imageFence, nil)
	vk.DestroySampler(b.device, b.sampler, nil)
	vk.DestroyDescriptorPool(b.device, b.descriptorPool, nil)
	vk.DestroyCommandPool(b.device, b.commandPool, nil)
	vk.DestroyPipelineCache(b.device, b.pipelineCache, nil)
	vk.DestroyPipelineLayout(b.device, b.pipelineLayout, nil)
	vk.DestroyDescriptorSetLayout(b.device, b.descriptorSetLayout, nil)
	vk.DestroyRenderPass(b.device, b.renderPass, nil)
	vk.DestroyDevice(b.device, nil)
	b.device = nil

	b.log.Debug("vulkan device destroyed")
}
