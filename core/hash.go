package core

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// HashedName is a name reduced to a 32bit FNV-1a hash, so comparisons
// are a single integer compare. The source string is kept alongside
// for logging and collision checks.
type HashedName struct {
	hash  uint32
	label string
}

// NewHashedName hashes the given name. Backslashes count as forward
// slashes, as names are mostly paths. Case is significant, like it is
// for every resource source.
func NewHashedName(name string) HashedName {
	h := fnv.New32a()
	h.Write([]byte(normalizeName(name)))
	return HashedName{
		hash:  h.Sum32(),
		label: name,
	}
}

func normalizeName(name string) string {
	return strings.ReplaceAll(name, "\\", "/")
}

// Hash returns the hash value
func (h HashedName) Hash() uint32 {
	return h.hash
}

// Label returns the name the hash was computed from
func (h HashedName) Label() string {
	return h.label
}

// Equal compares only the hashes
func (h HashedName) Equal(o HashedName) bool {
	return h.hash == o.hash
}

// SameSource reports whether both names were created from the
// same normalized string, it is used to detect hash collisions
func (h HashedName) SameSource(o HashedName) bool {
	return normalizeName(h.label) == normalizeName(o.label)
}

// IsZero reports whether the name was never set
func (h HashedName) IsZero() bool {
	return h.hash == 0 && h.label == ""
}

func (h HashedName) String() string {
	return fmt.Sprintf("%s#%08x", h.label, h.hash)
}
