package vm

import "sync"

// Inline caching for method dispatch.
//
// Call sites progress Empty -> Monomorphic -> Polymorphic -> Megamorphic
// as they see more receiver classes, the same discipline chazu-maggie's
// original fixed-size PIC used. The difference here is that entries are
// keyed by cid rather than by *Class pointer: a reload replaces the
// *Class a cid maps to without touching the cid itself, so a cache keyed
// by cid would otherwise keep dispatching to methods that belonged to a
// class no longer reachable from the class table. Reload always resets
// every ICData wholesale on commit (see reload's invalidate.go) rather
// than relying on that fact alone, but keying by cid keeps a cache
// internally consistent even before it's swept.

// CacheState represents the current state of an inline cache.
type CacheState uint8

const (
	CacheEmpty       CacheState = iota // No cached lookup yet
	CacheMonomorphic                   // Single (cid, method) cached
	CachePolymorphic                   // 2-6 entries in PIC
	CacheMegamorphic                   // Too many types, use full lookup
)

// MaxPICEntries is the maximum number of entries before a cache goes
// megamorphic.
const MaxPICEntries = 6

// ICEntry holds a single cached method lookup result.
type ICEntry struct {
	ClassID int32  // receiver's cid
	Target  Method // resolved method
}

// ICData is the cache state for a single call site within a Function. It
// is a field of Function, keeping one call site's cache alive across a
// reload of the Function's owner class until invalidate.go decides
// otherwise.
type ICData struct {
	Selector string // the selector this call site dispatches
	State    CacheState
	Entries  []ICEntry // resizable; grows up to MaxPICEntries then flips to megamorphic

	Hits   uint64
	Misses uint64
}

// NewICData creates an empty inline cache for the given selector.
func NewICData(selector string) *ICData {
	return &ICData{Selector: selector, State: CacheEmpty}
}

// Lookup checks the cache for a method matching cid. Returns the cached
// method on hit, nil on miss.
func (ic *ICData) Lookup(cid int32) Method {
	switch ic.State {
	case CacheMonomorphic:
		if len(ic.Entries) > 0 && ic.Entries[0].ClassID == cid {
			ic.Hits++
			return ic.Entries[0].Target
		}
	case CachePolymorphic:
		for _, e := range ic.Entries {
			if e.ClassID == cid {
				ic.Hits++
				return e.Target
			}
		}
	case CacheMegamorphic, CacheEmpty:
		// Always miss.
	}
	ic.Misses++
	return nil
}

// Update records a new (cid, method) pair, potentially upgrading the
// cache's state.
func (ic *ICData) Update(cid int32, method Method) {
	if method == nil {
		return
	}
	switch ic.State {
	case CacheEmpty:
		ic.State = CacheMonomorphic
		ic.Entries = []ICEntry{{ClassID: cid, Target: method}}

	case CacheMonomorphic:
		if ic.Entries[0].ClassID == cid {
			return
		}
		ic.State = CachePolymorphic
		ic.Entries = append(ic.Entries, ICEntry{ClassID: cid, Target: method})

	case CachePolymorphic:
		for _, e := range ic.Entries {
			if e.ClassID == cid {
				return
			}
		}
		if len(ic.Entries) < MaxPICEntries {
			ic.Entries = append(ic.Entries, ICEntry{ClassID: cid, Target: method})
		} else {
			ic.State = CacheMegamorphic
			ic.Entries = nil
		}

	case CacheMegamorphic:
		// Stay megamorphic.
	}
}

// HitRate returns the cache hit rate as a percentage (0-100).
func (ic *ICData) HitRate() float64 {
	total := ic.Hits + ic.Misses
	if total == 0 {
		return 0
	}
	return float64(ic.Hits) * 100 / float64(total)
}

// Reset clears the cache back to its empty state. reload.InvalidateCode
// calls it on every ICData of a function owned by a clean library; a
// dirty library's functions have their ICData dropped instead.
func (ic *ICData) Reset() {
	ic.State = CacheEmpty
	ic.Entries = nil
	ic.Hits = 0
	ic.Misses = 0
}

// ---------------------------------------------------------------------------
// MegamorphicCache: isolate-wide fallback lookup
// ---------------------------------------------------------------------------

// megaKey identifies a (receiver class, selector) dispatch pair.
type megaKey struct {
	cid      int32
	selector string
}

// MegamorphicCache is the isolate-wide fallback used once a call site's
// own ICData has gone megamorphic. It generalizes chazu-maggie's
// per-method InlineCacheTable (keyed by bytecode PC within one method)
// into a single isolate-scoped table, because reload invalidates
// megamorphic entries in bulk on commit rather than method by method.
type MegamorphicCache struct {
	mu      sync.RWMutex
	entries map[megaKey]Method
}

// NewMegamorphicCache creates an empty megamorphic cache.
func NewMegamorphicCache() *MegamorphicCache {
	return &MegamorphicCache{entries: make(map[megaKey]Method)}
}

// Lookup returns the cached method for (cid, selector), or nil.
func (m *MegamorphicCache) Lookup(cid int32, selector string) Method {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entries[megaKey{cid, selector}]
}

// Update records the resolved method for (cid, selector).
func (m *MegamorphicCache) Update(cid int32, selector string, target Method) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[megaKey{cid, selector}] = target
}

// Reset clears every entry. Reload calls this unconditionally on commit:
// megamorphic entries carry no record of which class or library they came
// from, so the only safe move is to drop all of them.
func (m *MegamorphicCache) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[megaKey]Method)
}

// Len returns the number of cached entries.
func (m *MegamorphicCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// ---------------------------------------------------------------------------
// Aggregate statistics
// ---------------------------------------------------------------------------

// ICStats holds aggregate inline cache statistics.
type ICStats struct {
	TotalCallSites  int
	Monomorphic     int
	Polymorphic     int
	Megamorphic     int
	Empty           int
	TotalHits       uint64
	TotalMisses     uint64
	HitRate         float64
	MonomorphicRate float64
}

// CollectICStats gathers inline cache statistics across every Function
// reachable from ct's live classes.
func CollectICStats(ct *ClassTable) ICStats {
	var stats ICStats

	for _, class := range ct.All() {
		for _, fn := range class.Functions {
			for _, ic := range fn.ICSites {
				switch ic.State {
				case CacheMonomorphic:
					stats.Monomorphic++
				case CachePolymorphic:
					stats.Polymorphic++
				case CacheMegamorphic:
					stats.Megamorphic++
				case CacheEmpty:
					stats.Empty++
				}
				stats.TotalHits += ic.Hits
				stats.TotalMisses += ic.Misses
				stats.TotalCallSites++
			}
		}
	}

	total := stats.TotalHits + stats.TotalMisses
	if total > 0 {
		stats.HitRate = float64(stats.TotalHits) * 100 / float64(total)
	}
	nonEmpty := stats.TotalCallSites - stats.Empty
	if nonEmpty > 0 {
		stats.MonomorphicRate = float64(stats.Monomorphic) * 100 / float64(nonEmpty)
	}
	return stats
}
