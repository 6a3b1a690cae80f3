// Package debugger implements the module-tracking core of the reef debug
// engine: shadow records for engine modules, the hash table that indexes them,
// and the data lock that guards the table.
package debugger

import "sync/atomic"

// ModuleID is the stable in-process identity of an engine module. The
// registry treats it as an opaque token; it never dereferences or interprets
// the value.
type ModuleID uint64

// DomainID is the stable identity of an isolation domain (the execution-engine
// construct a module is loaded into).
type DomainID uint64

// DebuggerModule is the debugger-side shadow record for one
// (engine module, isolation domain) pair. Identity fields are immutable after
// construction; the JIT-flags bit is owned by the engine component governing
// JIT behavior and may be flipped without the data lock since it does not
// touch table structure.
type DebuggerModule struct {
	module ModuleID
	domain DomainID

	jitFlagsMutable atomic.Bool
}

// NewDebuggerModule creates a shadow record for module loaded into domain.
func NewDebuggerModule(module ModuleID, domain DomainID) *DebuggerModule {
	return &DebuggerModule{
		module: module,
		domain: domain,
	}
}

// EngineModule returns the engine module identity. This is the hash key.
func (m *DebuggerModule) EngineModule() ModuleID {
	return m.module
}

// Domain returns the owning isolation domain.
func (m *DebuggerModule) Domain() DomainID {
	return m.domain
}

// JitFlagsMutable reports whether JIT compilation flags may still be changed
// for this module.
func (m *DebuggerModule) JitFlagsMutable() bool {
	return m.jitFlagsMutable.Load()
}

// SetJitFlagsMutable unconditionally overwrites the JIT-flags-mutable bit.
// Safe to call without holding the data lock.
func (m *DebuggerModule) SetJitFlagsMutable(mutable bool) {
	m.jitFlagsMutable.Store(mutable)
}
