package debugger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reefdbg/reef/internal/testutil"
)

func newTestTable(t *testing.T, maxEntries int) (*DebuggerModuleTable, *DataLock) {
	lock := NewDataLock()
	table := NewDebuggerModuleTable(lock, testutil.NewTestLogger(t), 0, maxEntries)
	return table, lock
}

func mustInsert(t *testing.T, table *DebuggerModuleTable, module ModuleID, domain DomainID) *DebuggerModule {
	t.Helper()
	dm := NewDebuggerModule(module, domain)
	require.NoError(t, table.Insert(dm))
	return dm
}

func TestTable_InsertAndLookup(t *testing.T) {
	table, lock := newTestTable(t, 0)
	lock.Lock()
	defer lock.Unlock()

	dm1 := mustInsert(t, table, 0x1000, 0x1)
	dm2 := mustInsert(t, table, 0x2000, 0x1)

	assert.Equal(t, 2, table.Count())

	t.Run("domain-qualified lookup returns the inserted record", func(t *testing.T) {
		assert.Same(t, dm1, table.LookupByModuleAndDomain(0x1000, 0x1))
		assert.Same(t, dm2, table.LookupByModuleAndDomain(0x2000, 0x1))
	})

	t.Run("exact lookup ignores the domain", func(t *testing.T) {
		assert.Same(t, dm1, table.LookupExact(0x1000))
	})

	t.Run("miss is nil, not an error", func(t *testing.T) {
		assert.Nil(t, table.LookupExact(0x9999))
		assert.Nil(t, table.LookupByModuleAndDomain(0x1000, 0x2))
	})

	t.Run("lookup misses after removal", func(t *testing.T) {
		assert.True(t, table.RemoveOne(0x1000, 0x1))
		assert.Nil(t, table.LookupByModuleAndDomain(0x1000, 0x1))
		assert.Equal(t, 1, table.Count())
	})
}

func TestTable_SharedModuleAcrossDomains(t *testing.T) {
	table, lock := newTestTable(t, 0)
	lock.Lock()
	defer lock.Unlock()

	// The same module loaded into two domains produces two entries under one
	// hash key.
	inD1 := mustInsert(t, table, 0x1000, 0x1)
	inD2 := mustInsert(t, table, 0x1000, 0x2)

	assert.Equal(t, 2, table.Count())
	assert.Same(t, inD1, table.LookupByModuleAndDomain(0x1000, 0x1))
	assert.Same(t, inD2, table.LookupByModuleAndDomain(0x1000, 0x2))

	// Exact lookup returns one of the two; which one is unspecified.
	got := table.LookupExact(0x1000)
	require.NotNil(t, got)
	assert.Contains(t, []*DebuggerModule{inD1, inD2}, got)
}

func TestTable_RemoveOneUntracked(t *testing.T) {
	table, lock := newTestTable(t, 0)
	lock.Lock()
	defer lock.Unlock()

	mustInsert(t, table, 0x1000, 0x1)

	// Unloads can arrive for modules that loaded pre-attach; a miss is a
	// silent no-op.
	assert.False(t, table.RemoveOne(0x5000, 0x1))
	assert.False(t, table.RemoveOne(0x1000, 0x9))
	assert.Equal(t, 1, table.Count())
}

func TestTable_RemoveAllForDomain(t *testing.T) {
	table, lock := newTestTable(t, 0)
	lock.Lock()
	defer lock.Unlock()

	const doomed = DomainID(0xd)
	for i := 0; i < 5; i++ {
		mustInsert(t, table, ModuleID(0x1000+i), doomed)
	}
	survivors := []*DebuggerModule{
		mustInsert(t, table, 0x2000, 0xa),
		mustInsert(t, table, 0x2001, 0xb),
		mustInsert(t, table, 0x2002, 0xb),
	}

	removed := table.RemoveAllForDomain(doomed)
	assert.Equal(t, 5, removed)
	assert.Equal(t, len(survivors), table.Count())

	table.ForEach(func(dm *DebuggerModule) bool {
		assert.NotEqual(t, doomed, dm.Domain())
		return true
	})
	for _, dm := range survivors {
		assert.Same(t, dm, table.LookupByModuleAndDomain(dm.EngineModule(), dm.Domain()))
	}

	t.Run("idempotent", func(t *testing.T) {
		assert.Equal(t, 0, table.RemoveAllForDomain(doomed))
		assert.Equal(t, len(survivors), table.Count())
	})
}

func TestTable_RemoveAllForDomain_SharedModules(t *testing.T) {
	table, lock := newTestTable(t, 0)
	lock.Lock()
	defer lock.Unlock()

	// Insert (m1, d1), (m2, d1), (m1, d2); evicting d1 must leave exactly
	// (m1, d2).
	mustInsert(t, table, 0x1000, 0x1)
	mustInsert(t, table, 0x2000, 0x1)
	kept := mustInsert(t, table, 0x1000, 0x2)

	assert.Equal(t, 2, table.RemoveAllForDomain(0x1))

	assert.Equal(t, 1, table.Count())
	assert.Nil(t, table.LookupByModuleAndDomain(0x1000, 0x1))
	assert.Nil(t, table.LookupByModuleAndDomain(0x2000, 0x1))
	assert.Same(t, kept, table.LookupByModuleAndDomain(0x1000, 0x2))
}

func TestTable_Clear(t *testing.T) {
	table, lock := newTestTable(t, 0)
	lock.Lock()
	defer lock.Unlock()

	mustInsert(t, table, 0x1000, 0x1)
	mustInsert(t, table, 0x2000, 0x2)

	table.Clear()

	assert.Equal(t, 0, table.Count())
	cursor := table.Iterate()
	_, ok := cursor.Next()
	assert.False(t, ok)

	// Clear does not poison the table.
	mustInsert(t, table, 0x3000, 0x3)
	assert.Equal(t, 1, table.Count())
}

func TestTable_CapacityCeiling(t *testing.T) {
	table, lock := newTestTable(t, 2)
	lock.Lock()
	defer lock.Unlock()

	mustInsert(t, table, 0x1000, 0x1)
	mustInsert(t, table, 0x2000, 0x1)

	err := table.Insert(NewDebuggerModule(0x3000, 0x1))
	require.ErrorIs(t, err, ErrTableFull)
	assert.Equal(t, 2, table.Count())

	// Removal frees capacity again.
	table.RemoveOne(0x1000, 0x1)
	require.NoError(t, table.Insert(NewDebuggerModule(0x3000, 0x1)))
}

func TestTable_Cursor(t *testing.T) {
	table, lock := newTestTable(t, 0)
	lock.Lock()
	defer lock.Unlock()

	want := map[ModuleID]bool{}
	for i := 0; i < 10; i++ {
		module := ModuleID(0x1000 + i*0x100)
		mustInsert(t, table, module, 0x1)
		want[module] = true
	}

	seen := map[ModuleID]bool{}
	cursor := table.Iterate()
	for dm, ok := cursor.Next(); ok; dm, ok = cursor.Next() {
		assert.False(t, seen[dm.EngineModule()], "entry visited twice")
		seen[dm.EngineModule()] = true
	}
	assert.Equal(t, want, seen)

	t.Run("reset rewinds", func(t *testing.T) {
		cursor.Reset()
		count := 0
		for _, ok := cursor.Next(); ok; _, ok = cursor.Next() {
			count++
		}
		assert.Equal(t, len(want), count)
	})
}

func TestTable_ForEachEarlyStop(t *testing.T) {
	table, lock := newTestTable(t, 0)
	lock.Lock()
	defer lock.Unlock()

	for i := 0; i < 5; i++ {
		mustInsert(t, table, ModuleID(0x1000+i), 0x1)
	}

	visited := 0
	table.ForEach(func(*DebuggerModule) bool {
		visited++
		return visited < 3
	})
	assert.Equal(t, 3, visited)
}

func TestTable_LockDiscipline(t *testing.T) {
	t.Run("operation without lock panics", func(t *testing.T) {
		table, _ := newTestTable(t, 0)
		assert.Panics(t, func() {
			_ = table.Insert(NewDebuggerModule(0x1000, 0x1))
		})
		assert.Panics(t, func() {
			table.LookupExact(0x1000)
		})
	})

	t.Run("nil insert panics", func(t *testing.T) {
		table, lock := newTestTable(t, 0)
		lock.Lock()
		defer lock.Unlock()
		assert.Panics(t, func() {
			_ = table.Insert(nil)
		})
	})

	t.Run("shutdown bypasses the assertion", func(t *testing.T) {
		table, lock := newTestTable(t, 0)
		lock.Lock()
		mustInsert(t, table, 0x1000, 0x1)
		lock.Unlock()

		lock.BeginShutdown()
		assert.NotPanics(t, func() {
			table.Clear()
		})
		assert.Equal(t, 0, table.Count())
	})
}
