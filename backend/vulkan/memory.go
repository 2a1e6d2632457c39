// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vulkan

import (
	"errors"
	"fmt"
	"unsafe"

	vk "github.com/devblok/vulkan"
)

// errMemoryType is returned when no memory type fits a request
var errMemoryType = errors.New("suitable memory type not found")

// memory is one device allocation
type memory struct {
	device vk.Device
	memory vk.DeviceMemory
	len    uint64
}

// write maps the allocation and copies data into it
func (m *memory) write(data []byte) error {
	if uint64(len(data)) > m.len {
		return fmt.Errorf("write of %d bytes into %d bytes of memory", len(data), m.len)
	}
	if len(data) == 0 {
		return nil
	}
	var mapped unsafe.Pointer
	if err := vk.Error(vk.MapMemory(m.device, m.memory, 0, vk.DeviceSize(m.len), 0, &mapped)); err != nil {
		return fmt.Errorf("vk.MapMemory(): %s", err.Error())
	}
	copy(unsafe.Slice((*byte)(mapped), len(data)), data)
	vk.UnmapMemory(m.device, m.memory)
	return nil
}

func (m *memory) release() {
	if m.memory == nil {
		return
	}
	vk.FreeMemory(m.device, m.memory, nil)
	m.memory = nil
}

func newAllocator(device vk.Device, phyDevice vk.PhysicalDevice) *allocator {
	var memProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(phyDevice, &memProperties)
	memProperties.Deref()
	for idx := uint32(0); idx < memProperties.MemoryTypeCount; idx++ {
		memProperties.MemoryTypes[idx].Deref()
	}

	types := make([]vk.MemoryPropertyFlags, memProperties.MemoryTypeCount)
	for idx := range types {
		types[idx] = memProperties.MemoryTypes[idx].PropertyFlags
	}
	return &allocator{device: device, types: types}
}

// allocator hands out device memory of the right type
type allocator struct {
	device vk.Device
	types  []vk.MemoryPropertyFlags
}

func (a *allocator) malloc(req vk.MemoryRequirements, prop vk.MemoryPropertyFlagBits) (memory, error) {
	memTypeIdx, err := findMemoryType(a.types, req.MemoryTypeBits, vk.MemoryPropertyFlags(prop))
	if err != nil {
		return memory{}, err
	}

	mai := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: memTypeIdx,
	}

	var mem vk.DeviceMemory
	if err := vk.Error(vk.AllocateMemory(a.device, &mai, nil, &mem)); err != nil {
		return memory{}, fmt.Errorf("vk.AllocateMemory(): %s", err.Error())
	}
	return memory{
		device: a.device,
		memory: mem,
		len:    uint64(req.Size),
	}, nil
}

// findMemoryType returns the first type allowed by filter that has
// every property of prop
func findMemoryType(types []vk.MemoryPropertyFlags, filter uint32, prop vk.MemoryPropertyFlags) (uint32, error) {
	for idx, flags := range types {
		if filter&(1<<uint(idx)) != 0 && flags&prop == prop {
			return uint32(idx), nil
		}
	}
	return 0, errMemoryType
}

// buffer is a host visible buffer with its memory
type buffer struct {
	device vk.Device
	buffer vk.Buffer
	memory memory
	count  uint32
}

func (a *allocator) newBuffer(data []byte, usage vk.BufferUsageFlagBits) (*buffer, error) {
	size := len(data)
	if size == 0 {
		return nil, errors.New("empty buffer")
	}
	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}
	var buf vk.Buffer
	if err := vk.Error(vk.CreateBuffer(a.device, &createInfo, nil, &buf)); err != nil {
		return nil, fmt.Errorf("vk.CreateBuffer(): %s", err.Error())
	}

	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(a.device, buf, &req)
	req.Deref()

	mem, err := a.malloc(req, vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
	if err != nil {
		vk.DestroyBuffer(a.device, buf, nil)
		return nil, err
	}

	b := &buffer{device: a.device, buffer: buf, memory: mem}
	if err := vk.Error(vk.BindBufferMemory(a.device, buf, mem.memory, 0)); err != nil {
		b.release()
		return nil, fmt.Errorf("vk.BindBufferMemory(): %s", err.Error())
	}
	if err := mem.write(data); err != nil {
		b.release()
		return nil, err
	}
	return b, nil
}

func (b *buffer) release() {
	vk.DestroyBuffer(b.device, b.buffer, nil)
	b.memory.release()
}
