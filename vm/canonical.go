package vm

import (
	"strconv"
	"strings"
	"sync"
)

// TypeArguments is a canonicalized list of class ids bound at one generic
// instantiation site (e.g. the <Foo> in List<Foo>). Code compares type
// arguments by pointer identity, never structurally, so two call sites
// instantiating the same generic with the same arguments must share one
// TypeArguments value.
//
// A reload that renumbers cids (via class-table compaction) can make two
// previously-distinct TypeArguments collide, or leave one referencing a
// cid that no longer resolves to the class it meant. Rehashing the
// canonical table (reload's canonical.go) is what keeps the table
// consistent after such a renumbering: it rewrites each entry's ClassIDs
// through the compaction's renumbering and then rebuilds the dedup index.
// A cid the class-table swap left in place (a replacement adopting its
// predecessor's cid) needs no rewrite.
type TypeArguments struct {
	ClassIDs []int32
}

func (t *TypeArguments) key() string {
	var b strings.Builder
	for i, cid := range t.ClassIDs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(int(cid)))
	}
	return b.String()
}

// CanonicalTypeTable interns TypeArguments values by structural equality.
type CanonicalTypeTable struct {
	mu    sync.Mutex
	byKey map[string]*TypeArguments
}

// NewCanonicalTypeTable creates an empty table.
func NewCanonicalTypeTable() *CanonicalTypeTable {
	return &CanonicalTypeTable{byKey: make(map[string]*TypeArguments)}
}

// Canonicalize returns the single TypeArguments value for cids, creating
// one if this is the first time this combination has been seen.
func (c *CanonicalTypeTable) Canonicalize(cids []int32) *TypeArguments {
	t := &TypeArguments{ClassIDs: append([]int32(nil), cids...)}
	key := t.key()

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.byKey[key]; ok {
		return existing
	}
	c.byKey[key] = t
	return t
}

// All returns every canonicalized TypeArguments currently registered.
func (c *CanonicalTypeTable) All() []*TypeArguments {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]*TypeArguments, 0, len(c.byKey))
	for _, t := range c.byKey {
		result = append(result, t)
	}
	return result
}

// Rebuild replaces the table's contents with entries, re-deriving the key
// index from each entry's current ClassIDs. Reload's canonical-type-
// argument rehash calls this after remapping the ClassIDs of every
// affected TypeArguments (compaction-driven cid renumbering, or a become
// of a class-as-value onto a replacement with a different cid), so that
// entries which have become structurally identical collapse onto a
// single instance and duplicates are dropped in favor of one survivor.
func (c *CanonicalTypeTable) Rebuild(entries []*TypeArguments) map[*TypeArguments]*TypeArguments {
	c.mu.Lock()
	defer c.mu.Unlock()

	canonical := make(map[*TypeArguments]*TypeArguments, len(entries))
	byKey := make(map[string]*TypeArguments, len(entries))
	for _, t := range entries {
		key := t.key()
		if survivor, ok := byKey[key]; ok {
			canonical[t] = survivor
			continue
		}
		byKey[key] = t
		canonical[t] = t
	}
	c.byKey = byKey
	return canonical
}
