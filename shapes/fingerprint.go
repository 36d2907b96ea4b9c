package shapes

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sync"
)

// registry interns alternatives so equal member sets share one pointer and
// identity comparison keeps working for loop shapes.
type registry struct {
	mu    sync.RWMutex
	cache map[string]*Alternative // fingerprint hex → interned alternative
}

var alternatives = &registry{cache: make(map[string]*Alternative, 64)}

// fingerprint hashes the variant tag and the sorted member IDs.
func fingerprint(complete bool, members []*TypeShape) string {
	h := sha256.New()
	if complete {
		h.Write([]byte("complete"))
	} else {
		h.Write([]byte("initial"))
	}
	binary.Write(h, binary.LittleEndian, uint64(len(members)))
	for _, m := range members {
		binary.Write(h, binary.LittleEndian, uint64(m.id))
	}
	sum := h.Sum(nil)
	return fmt.Sprintf("%x", sum[:16])
}

// intern expects members normalized and with at least one entry.
func intern(complete bool, members []*TypeShape) *Alternative {
	key := fingerprint(complete, members)

	alternatives.mu.RLock()
	if a, ok := alternatives.cache[key]; ok {
		alternatives.mu.RUnlock()
		return a
	}
	alternatives.mu.RUnlock()

	alternatives.mu.Lock()
	defer alternatives.mu.Unlock()
	if a, ok := alternatives.cache[key]; ok {
		return a
	}
	a := &Alternative{complete: complete, members: members, key: key}
	alternatives.cache[key] = a
	return a
}

// Fingerprint returns a stable key for any shape.
func Fingerprint(s Shape) string {
	switch v := s.(type) {
	case *TypeShape:
		return v.name
	case *Alternative:
		return v.key
	}
	return "<nil>"
}
