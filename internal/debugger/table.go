package debugger

import (
	"encoding/binary"
	"errors"

	"github.com/rs/zerolog"
	"github.com/zeebo/xxh3"
)

// DefaultBucketCount is the default number of hash buckets. Module load and
// unload are low-frequency events; a small fixed table is plenty.
const DefaultBucketCount = 101

// ErrTableFull is returned by Insert when the table has reached its configured
// capacity ceiling.
var ErrTableFull = errors.New("debugger: module table full")

// DebuggerModuleTable is an open hash index over shadow records, keyed by
// engine-module identity. A module shared across several isolation domains
// produces several entries under the same key; exact identification always
// requires checking both the module and the domain.
//
// The table does no locking of its own. Every operation requires the caller to
// hold the DataLock passed to the constructor; violations panic via AssertHeld
// while the lock is Active.
type DebuggerModuleTable struct {
	lock   *DataLock
	logger zerolog.Logger

	buckets    [][]*DebuggerModule
	count      int
	maxEntries int
}

// NewDebuggerModuleTable creates an empty table guarded by lock. bucketCount
// and maxEntries of 0 select DefaultBucketCount and an unlimited table.
func NewDebuggerModuleTable(lock *DataLock, logger zerolog.Logger, bucketCount, maxEntries int) *DebuggerModuleTable {
	if bucketCount <= 0 {
		bucketCount = DefaultBucketCount
	}
	return &DebuggerModuleTable{
		lock:       lock,
		logger:     logger.With().Str("component", "module-table").Logger(),
		buckets:    make([][]*DebuggerModule, bucketCount),
		maxEntries: maxEntries,
	}
}

// bucketFor hashes the raw module identity into a bucket index.
func (t *DebuggerModuleTable) bucketFor(module ModuleID) int {
	var key [8]byte
	binary.LittleEndian.PutUint64(key[:], uint64(module))
	return int(xxh3.Hash(key[:]) % uint64(len(t.buckets)))
}

// Insert adds a shadow record to the index.
//
// Insert performs no uniqueness check: the caller must not insert a
// (module, domain) pair that is already live, or domain-qualified lookups
// silently lose their determinism. The engine front end upholds this contract.
func (t *DebuggerModuleTable) Insert(dm *DebuggerModule) error {
	t.lock.AssertHeld()
	if dm == nil {
		panic("debugger: Insert with nil module")
	}
	if t.maxEntries > 0 && t.count >= t.maxEntries {
		return ErrTableFull
	}

	b := t.bucketFor(dm.EngineModule())
	t.buckets[b] = append(t.buckets[b], dm)
	t.count++

	t.logger.Trace().
		Uint64("module", uint64(dm.EngineModule())).
		Uint64("domain", uint64(dm.Domain())).
		Int("count", t.count).
		Msg("module inserted")
	return nil
}

// LookupExact returns the first record in the key's bucket matching module,
// ignoring the domain, or nil if none. When the module is shared across
// domains this returns an arbitrary one of its records; call sites that can
// see domain-sharing must use LookupByModuleAndDomain instead.
func (t *DebuggerModuleTable) LookupExact(module ModuleID) *DebuggerModule {
	t.lock.AssertHeld()
	for _, dm := range t.buckets[t.bucketFor(module)] {
		if dm.EngineModule() == module {
			return dm
		}
	}
	return nil
}

// LookupByModuleAndDomain returns the unique record matching both identities,
// or nil. This is the authoritative lookup whenever domain-sharing is
// possible. A miss is a normal outcome, never an error.
func (t *DebuggerModuleTable) LookupByModuleAndDomain(module ModuleID, domain DomainID) *DebuggerModule {
	t.lock.AssertHeld()
	for _, dm := range t.buckets[t.bucketFor(module)] {
		if dm.EngineModule() == module && dm.Domain() == domain {
			return dm
		}
	}
	return nil
}

// RemoveOne removes the unique record matching both identities and reports
// whether one was found. A miss is a silent no-op: the engine may report an
// unload for a module the table never tracked (e.g. it loaded pre-attach).
func (t *DebuggerModuleTable) RemoveOne(module ModuleID, domain DomainID) bool {
	t.lock.AssertHeld()
	b := t.bucketFor(module)
	for i, dm := range t.buckets[b] {
		if dm.EngineModule() == module && dm.Domain() == domain {
			t.buckets[b] = append(t.buckets[b][:i], t.buckets[b][i+1:]...)
			t.count--
			t.logger.Trace().
				Uint64("module", uint64(module)).
				Uint64("domain", uint64(domain)).
				Int("count", t.count).
				Msg("module removed")
			return true
		}
	}
	t.logger.Trace().
		Uint64("module", uint64(module)).
		Uint64("domain", uint64(domain)).
		Msg("remove for untracked module")
	return false
}

// RemoveAllForDomain evicts every record owned by domain and returns how many
// were removed. This runs when a domain is torn down and compensates for
// unload notifications the engine is known to miss for shared modules, so no
// record owned by the domain survives regardless of which unload events fired.
//
// Two passes: collect the matching module keys first, then delegate each to
// RemoveOne so bulk eviction stays on the same path as a single-module unload.
func (t *DebuggerModuleTable) RemoveAllForDomain(domain DomainID) int {
	t.lock.AssertHeld()

	var victims []ModuleID
	for _, bucket := range t.buckets {
		for _, dm := range bucket {
			if dm.Domain() == domain {
				victims = append(victims, dm.EngineModule())
			}
		}
	}
	for _, module := range victims {
		t.RemoveOne(module, domain)
	}

	if len(victims) > 0 {
		t.logger.Trace().
			Uint64("domain", uint64(domain)).
			Int("removed", len(victims)).
			Msg("domain evicted")
	}
	return len(victims)
}

// Clear destroys every entry. The table stays usable afterward; in practice it
// is called once at session teardown and the table is dropped immediately
// after.
func (t *DebuggerModuleTable) Clear() {
	t.lock.AssertHeld()
	for i := range t.buckets {
		t.buckets[i] = nil
	}
	t.count = 0
	t.logger.Trace().Msg("module table cleared")
}

// Count returns the number of live entries.
func (t *DebuggerModuleTable) Count() int {
	t.lock.AssertHeld()
	return t.count
}

// ForEach calls fn for every entry in bucket order until fn returns false.
// The table must not be mutated from within fn.
func (t *DebuggerModuleTable) ForEach(fn func(*DebuggerModule) bool) {
	t.lock.AssertHeld()
	for _, bucket := range t.buckets {
		for _, dm := range bucket {
			if !fn(dm) {
				return
			}
		}
	}
}

// Iterate returns a cursor over all entries in bucket order. The cursor is
// valid only while the data lock is held and has no snapshot isolation;
// removing entries mid-iteration other than via RemoveAllForDomain's two-pass
// protocol invalidates it.
func (t *DebuggerModuleTable) Iterate() *Cursor {
	return &Cursor{table: t}
}

// Cursor walks the table in bucket order. Zero position is before the first
// entry.
type Cursor struct {
	table  *DebuggerModuleTable
	bucket int
	index  int
}

// Next returns the next entry, or (nil, false) at the end.
func (c *Cursor) Next() (*DebuggerModule, bool) {
	c.table.lock.AssertHeld()
	for c.bucket < len(c.table.buckets) {
		bucket := c.table.buckets[c.bucket]
		if c.index < len(bucket) {
			dm := bucket[c.index]
			c.index++
			return dm, true
		}
		c.bucket++
		c.index = 0
	}
	return nil, false
}

// Reset rewinds the cursor to before the first entry.
func (c *Cursor) Reset() {
	c.bucket = 0
	c.index = 0
}
