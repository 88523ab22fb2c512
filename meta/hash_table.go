package meta

import "context"

// HashEntry is one key/value pair. Entries are chained per bucket through
// next and kept in insertion order through the order links.
type HashEntry struct {
	Key   Value
	Value Value
	Hash  uint64

	next      *HashEntry
	prevOrder *HashEntry
	nextOrder *HashEntry
}

// HashLookupResult describes where a key lives, or would live, in a table.
// On a miss Entry is nil and Previous is the tail of the bucket's chain, so
// an insert can append without hashing the key again.
type HashLookupResult struct {
	Hash     uint64
	Index    int
	Previous *HashEntry
	Entry    *HashEntry
}

// HashTable is a chained hash table with insertion-ordered iteration. It is
// not safe for concurrent use.
type HashTable struct {
	policy     KeyPolicy
	buckets    []*HashEntry
	size       int
	first      *HashEntry
	last       *HashEntry
	byIdentity bool
	version    uint64
}

// NewHashTable creates an empty table with at least initialBuckets buckets,
// rounded up to a power of two.
func NewHashTable(policy KeyPolicy, initialBuckets int) *HashTable {
	n := 1
	for n < initialBuckets {
		n <<= 1
	}
	return &HashTable{policy: policy, buckets: make([]*HashEntry, n)}
}

// NewHash creates a table using the runtime's key policy.
func (rt *Runtime) NewHash() *HashTable {
	return NewHashTable(rt.keyPolicy, rt.config.InitialHashBuckets)
}

func bucketIndex(hash uint64, buckets int) int {
	return int(hash & uint64(buckets-1))
}

// CompareByIdentity switches the table to reference-identity key
// comparison. Identity tables never call the policy's KeysEqual.
func (h *HashTable) CompareByIdentity() {
	h.byIdentity = true
}

func (h *HashTable) IsCompareByIdentity() bool { return h.byIdentity }

func (h *HashTable) Len() int { return h.size }

// Buckets returns the current number of buckets.
func (h *HashTable) Buckets() int { return len(h.buckets) }

// Lookup finds key. It hashes the key, walks the bucket's chain and
// compares by identity or through KeysEqual depending on the table mode.
// A missing key is not an error; errors only come from the policy.
func (h *HashTable) Lookup(ctx context.Context, key Value) (HashLookupResult, error) {
	hashed, err := h.policy.HashKey(ctx, key)
	if err != nil {
		return HashLookupResult{}, err
	}

	index := bucketIndex(hashed, len(h.buckets))
	entry := h.buckets[index]
	var previous *HashEntry
	probes := 0

	for entry != nil {
		probes++
		if h.byIdentity {
			if key.Identical(entry.Key) {
				hashProbeLength.Observe(float64(probes))
				return HashLookupResult{Hash: hashed, Index: index, Previous: previous, Entry: entry}, nil
			}
		} else {
			equal, err := h.policy.KeysEqual(ctx, key, entry.Key)
			if err != nil {
				return HashLookupResult{}, err
			}
			if equal {
				hashProbeLength.Observe(float64(probes))
				return HashLookupResult{Hash: hashed, Index: index, Previous: previous, Entry: entry}, nil
			}
		}
		previous = entry
		entry = entry.next
	}

	hashProbeLength.Observe(float64(probes))
	return HashLookupResult{Hash: hashed, Index: index, Previous: previous}, nil
}

// Get returns the value stored under key.
func (h *HashTable) Get(ctx context.Context, key Value) (Value, bool, error) {
	result, err := h.Lookup(ctx, key)
	if err != nil || result.Entry == nil {
		return NewNil(), false, err
	}
	return result.Entry.Value, true, nil
}

// Set stores val under key, replacing the value of an existing entry.
func (h *HashTable) Set(ctx context.Context, key Value, val Value) error {
	version := h.version
	result, err := h.Lookup(ctx, key)
	if err != nil {
		return err
	}
	if result.Entry != nil {
		result.Entry.Value = val
		return nil
	}

	entry := &HashEntry{Key: key, Value: val, Hash: result.Hash}
	if h.version != version {
		// KeysEqual changed the table under us; result is stale.
		h.appendToBucket(entry)
	} else if result.Previous == nil {
		h.buckets[result.Index] = entry
	} else {
		result.Previous.next = entry
	}

	entry.prevOrder = h.last
	if h.last == nil {
		h.first = entry
	} else {
		h.last.nextOrder = entry
	}
	h.last = entry
	h.size++
	h.version++

	if h.size > len(h.buckets)*3/4 {
		h.resize(len(h.buckets) * 2)
	}
	return nil
}

// Delete removes key and returns the value it held.
func (h *HashTable) Delete(ctx context.Context, key Value) (Value, bool, error) {
	version := h.version
	result, err := h.Lookup(ctx, key)
	if err != nil || result.Entry == nil {
		return NewNil(), false, err
	}
	entry := result.Entry

	if h.version != version {
		if !h.unlinkFromBucket(entry) {
			return NewNil(), false, nil
		}
	} else if result.Previous == nil {
		h.buckets[result.Index] = entry.next
	} else {
		result.Previous.next = entry.next
	}

	if entry.prevOrder == nil {
		h.first = entry.nextOrder
	} else {
		entry.prevOrder.nextOrder = entry.nextOrder
	}
	if entry.nextOrder == nil {
		h.last = entry.prevOrder
	} else {
		entry.nextOrder.prevOrder = entry.prevOrder
	}
	entry.next, entry.prevOrder, entry.nextOrder = nil, nil, nil
	h.size--
	h.version++
	return entry.Value, true, nil
}

// Clear removes every entry, keeping the bucket count.
func (h *HashTable) Clear() {
	clear(h.buckets)
	h.first, h.last = nil, nil
	h.size = 0
	h.version++
}

// Each visits entries in insertion order until fn returns false.
func (h *HashTable) Each(fn func(*HashEntry) bool) {
	for entry := h.first; entry != nil; {
		next := entry.nextOrder
		if !fn(entry) {
			return
		}
		entry = next
	}
}

func (h *HashTable) Keys() []Value {
	keys := make([]Value, 0, h.size)
	h.Each(func(entry *HashEntry) bool {
		keys = append(keys, entry.Key)
		return true
	})
	return keys
}

func (h *HashTable) Values() []Value {
	values := make([]Value, 0, h.size)
	h.Each(func(entry *HashEntry) bool {
		values = append(values, entry.Value)
		return true
	})
	return values
}

func (h *HashTable) appendToBucket(entry *HashEntry) {
	index := bucketIndex(entry.Hash, len(h.buckets))
	tail := h.buckets[index]
	if tail == nil {
		h.buckets[index] = entry
		return
	}
	for tail.next != nil {
		tail = tail.next
	}
	tail.next = entry
}

func (h *HashTable) unlinkFromBucket(entry *HashEntry) bool {
	index := bucketIndex(entry.Hash, len(h.buckets))
	var previous *HashEntry
	for current := h.buckets[index]; current != nil; current = current.next {
		if current == entry {
			if previous == nil {
				h.buckets[index] = entry.next
			} else {
				previous.next = entry.next
			}
			return true
		}
		previous = current
	}
	return false
}

// resize rebuilds the chains from cached hash codes; no user code runs.
func (h *HashTable) resize(buckets int) {
	h.buckets = make([]*HashEntry, buckets)
	for entry := h.first; entry != nil; entry = entry.nextOrder {
		entry.next = nil
		h.appendToBucket(entry)
	}
	h.version++
}
