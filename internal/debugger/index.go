package debugger

// ModuleIndex is the read surface shared by the live, mutable module table and
// the frozen image a post-mortem inspector walks. The read-only implementation
// carries no mutating methods at all, so an inspector cannot attempt mutation
// by construction.
type ModuleIndex interface {
	// LookupExact returns a record matching module, ignoring the domain.
	// Arbitrary when the module is shared across domains.
	LookupExact(module ModuleID) *DebuggerModule

	// LookupByModuleAndDomain returns the unique record matching both
	// identities, or nil.
	LookupByModuleAndDomain(module ModuleID, domain DomainID) *DebuggerModule

	// ForEach visits every record until fn returns false.
	ForEach(fn func(*DebuggerModule) bool)
}

var _ ModuleIndex = (*DebuggerModuleTable)(nil)
