package vm

// Library is a named collection of classes and top-level entries, keyed
// by URL the way chazu-maggie keys its own compilation units.
//
// A reload always targets one Library plus, transitively, everything it
// imports that also comes from a reloadable source. Libraries the loader
// marks IsClean (compiled-in platform/core libraries, never reloaded)
// partition the isolate into the clean/dirty split that invalidate.go
// uses to decide which functions lose their compiled code (dirty) and
// which keep it and only have their caches reset (clean).
type Library struct {
	URL   string
	Index int

	// IsClean marks a library as outside the reloadable set: its classes
	// and functions are never targets of a reload; a reload keeps their
	// compiled code and only resets their inline caches.
	IsClean bool

	// Dictionary holds the library's top-level named entries: classes
	// registered under their bare name, and top-level variables/globals
	// as Values.
	Dictionary map[string]Value

	Imports []string // URLs of libraries this one imports
	Exports []string // URLs of libraries this one re-exports

	Debuggable bool
}

// NewLibrary creates an empty Library.
func NewLibrary(url string, index int) *Library {
	return &Library{
		URL:        url,
		Index:      index,
		Dictionary: make(map[string]Value),
		Debuggable: true,
	}
}

// Lookup finds a top-level entry by name.
func (lib *Library) Lookup(name string) (Value, bool) {
	v, ok := lib.Dictionary[name]
	return v, ok
}

// Define sets a top-level entry.
func (lib *Library) Define(name string, v Value) {
	lib.Dictionary[name] = v
}

// Libraries is an ordered collection of Library records, indexed by
// Library.Index. It exists so reload's Checkpoint can save and restore
// the whole list atomically and so the clean/dirty partition can be
// walked in a stable order.
type Libraries struct {
	byURL   map[string]*Library
	ordered []*Library
}

// NewLibraries creates an empty Libraries collection.
func NewLibraries() *Libraries {
	return &Libraries{byURL: make(map[string]*Library)}
}

// Add registers lib, assigning it the next Index if it doesn't have one.
func (ls *Libraries) Add(lib *Library) {
	if lib.Index == 0 && len(ls.ordered) > 0 {
		lib.Index = len(ls.ordered)
	}
	ls.byURL[lib.URL] = lib
	ls.ordered = append(ls.ordered, lib)
}

// ByURL finds a library by URL.
func (ls *Libraries) ByURL(url string) *Library {
	return ls.byURL[url]
}

// Replace swaps the entry named url for replacement in both byURL and
// ordered, carrying replacement's Index forward from the slot it
// occupies. Used by reload's library commit step so a matched
// before/after library pair leaves exactly one entry behind instead of
// accumulating a stale duplicate every generation.
func (ls *Libraries) Replace(url string, replacement *Library) {
	for i, lib := range ls.ordered {
		if lib.URL == url {
			replacement.Index = lib.Index
			ls.ordered[i] = replacement
			break
		}
	}
	ls.byURL[url] = replacement
}

// All returns every library in registration order.
func (ls *Libraries) All() []*Library {
	result := make([]*Library, len(ls.ordered))
	copy(result, ls.ordered)
	return result
}

// Clean returns every library with IsClean set.
func (ls *Libraries) Clean() []*Library {
	var result []*Library
	for _, lib := range ls.ordered {
		if lib.IsClean {
			result = append(result, lib)
		}
	}
	return result
}

// Dirty returns every library without IsClean set: the reloadable set.
func (ls *Libraries) Dirty() []*Library {
	var result []*Library
	for _, lib := range ls.ordered {
		if !lib.IsClean {
			result = append(result, lib)
		}
	}
	return result
}

// Snapshot returns a shallow copy of the ordered list, suitable for
// reload's Checkpoint to stash away and Rollback to restore.
func (ls *Libraries) Snapshot() []*Library {
	return ls.All()
}

// Restore replaces the collection's contents from a prior Snapshot.
func (ls *Libraries) Restore(libs []*Library) {
	ls.ordered = append([]*Library(nil), libs...)
	ls.byURL = make(map[string]*Library, len(libs))
	for _, lib := range libs {
		ls.byURL[lib.URL] = lib
	}
}
