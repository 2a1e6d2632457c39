//go:build debug

package registry

const drawDebugLines = true
