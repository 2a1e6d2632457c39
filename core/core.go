// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package core holds the engine-wide configuration, naming and time services
// that every other package builds upon.
package core

// Destroyable is implemented by everything that owns
// resources which the garbage collector cannot release.
type Destroyable interface {
	// Destroy releases owned resources, the object
	// must not be used afterwards
	Destroy()
}

// EngineName is reported to drivers and window titles
const EngineName = "Frameforge"
