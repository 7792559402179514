package value

import "sync"

// HashTable is a mutable equal?-keyed dictionary. Keys are compared via
// Equal (spec §4.1) rather than Go map identity, so it indexes on a string
// fingerprint of the key's `write` representation plus an explicit
// fallback bucket scan for keys whose String() collides but are not
// Equal? (e.g. a char and a symbol with the same name, or two unnamed
// procedures, print the same; the bucket scan keeps lookup correct there
// at the cost of O(bucket) instead of O(1)).
type HashTable struct {
	mu      sync.RWMutex
	buckets map[string][]htEntry
	size    int
}

type htEntry struct {
	Key, Val Value
}

func NewHashTable() *HashTable {
	return &HashTable{buckets: make(map[string][]htEntry)}
}

func (h *HashTable) TypeName() string { return "hash-table" }
func (h *HashTable) String() string   { return "#[hash-table]" }

// Get looks up key by equal?.
func (h *HashTable) Get(key Value) (Value, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	fp := key.String()
	for _, e := range h.buckets[fp] {
		if Equal(e.Key, key) {
			return e.Val, true
		}
	}
	return nil, false
}

// Set inserts or overwrites the binding for key.
func (h *HashTable) Set(key, val Value) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fp := key.String()
	bucket := h.buckets[fp]
	for i, e := range bucket {
		if Equal(e.Key, key) {
			bucket[i].Val = val
			return
		}
	}
	h.buckets[fp] = append(bucket, htEntry{Key: key, Val: val})
	h.size++
}

// Delete removes the binding for key, if any.
func (h *HashTable) Delete(key Value) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fp := key.String()
	bucket := h.buckets[fp]
	for i, e := range bucket {
		if Equal(e.Key, key) {
			h.buckets[fp] = append(bucket[:i], bucket[i+1:]...)
			h.size--
			return
		}
	}
}

// Size returns the number of bindings.
func (h *HashTable) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.size
}

// Each calls fn for every binding. fn must not mutate the table.
func (h *HashTable) Each(fn func(key, val Value)) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, bucket := range h.buckets {
		for _, e := range bucket {
			fn(e.Key, e.Val)
		}
	}
}
