// Package device wraps the Vulkan instance: creating it, enumerating the
// physical devices and choosing the one a renderer runs on.
package device

import (
	"errors"
	"sort"
)

// ErrNoSuitableDevice is returned when no physical device carries
// the extensions a renderer needs
var ErrNoSuitableDevice = errors.New("no suitable physical device")

// PhysicalDeviceInfo describes available physical properties of a rendering device
type PhysicalDeviceInfo struct {
	ID            int      `json:"id"`
	VendorID      int      `json:"vendorId"`
	DriverVersion int      `json:"driverVersion"`
	Name          string   `json:"name"`
	Discrete      bool     `json:"discrete"`
	Invalid       bool     `json:"invalid,omitempty"`
	Extensions    []string `json:"extensions"`
	Layers        []string `json:"layers"`
	Memory        uint64   `json:"memory"`
}

// HasExtension reports whether the device offers the named extension
func (p PhysicalDeviceInfo) HasExtension(name string) bool {
	for _, ext := range p.Extensions {
		if ext == name {
			return true
		}
	}
	return false
}

// Configuration is used to create an Instance
type Configuration struct {
	// DebugMode loads the validation layers
	DebugMode  bool
	Extensions []string
	Layers     []string
}

// Debug layer and extension enabled by DebugMode
const (
	ValidationLayer      = "VK_LAYER_KHRONOS_validation"
	DebugReportExtension = "VK_EXT_debug_report"
)

// withDebug appends the validation layer and debug extension once
func (c Configuration) withDebug() Configuration {
	if !c.DebugMode {
		return c
	}
	add := func(list []string, item string) []string {
		for _, s := range list {
			if s == item {
				return list
			}
		}
		return append(list, item)
	}
	c.Layers = add(append([]string(nil), c.Layers...), ValidationLayer)
	c.Extensions = add(append([]string(nil), c.Extensions...), DebugReportExtension)
	return c
}

// Select picks the device a renderer should use among infos. Invalid
// devices and devices lacking one of required are skipped, discrete
// devices win over integrated ones, then the one with more memory.
// Returns the index into infos.
func Select(infos []PhysicalDeviceInfo, required []string) (int, error) {
	candidates := make([]int, 0, len(infos))
Devices:
	for idx, info := range infos {
		if info.Invalid {
			continue
		}
		for _, ext := range required {
			if !info.HasExtension(ext) {
				continue Devices
			}
		}
		candidates = append(candidates, idx)
	}
	if len(candidates) == 0 {
		return -1, ErrNoSuitableDevice
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := infos[candidates[i]], infos[candidates[j]]
		if a.Discrete != b.Discrete {
			return a.Discrete
		}
		return a.Memory > b.Memory
	})
	return candidates[0], nil
}
