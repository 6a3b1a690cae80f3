package debugger

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/reefdbg/reef/internal/config"
)

// Engine is the notification edge of the debug engine: it receives
// module-load, module-unload and domain-unload events from the host runtime
// and keeps the module table consistent with them. It owns the data lock and
// the table; callers never lock around Engine methods.
type Engine struct {
	logger    zerolog.Logger
	lock      *DataLock
	table     *DebuggerModuleTable
	sessionID string
}

// NewEngine creates an engine with a fresh table and data lock for one debug
// session.
func NewEngine(cfg config.EngineConfig, logger zerolog.Logger) *Engine {
	sessionID := uuid.NewString()
	logger = logger.With().Str("session_id", sessionID).Logger()
	lock := NewDataLock()
	return &Engine{
		logger:    logger,
		lock:      lock,
		table:     NewDebuggerModuleTable(lock, logger, cfg.TableBuckets, cfg.MaxTrackedModules),
		sessionID: sessionID,
	}
}

// SessionID returns the identifier of this debug session.
func (e *Engine) SessionID() string {
	return e.sessionID
}

// OnModuleLoad records that module was loaded into domain and returns the new
// shadow record. Loading the same pair twice is a host-engine protocol
// violation and is rejected here, upholding the table's no-double-insert
// contract.
func (e *Engine) OnModuleLoad(module ModuleID, domain DomainID) (*DebuggerModule, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	if existing := e.table.LookupByModuleAndDomain(module, domain); existing != nil {
		return nil, fmt.Errorf("module %#x already tracked in domain %#x", uint64(module), uint64(domain))
	}

	dm := NewDebuggerModule(module, domain)
	if err := e.table.Insert(dm); err != nil {
		return nil, fmt.Errorf("track module %#x in domain %#x: %w", uint64(module), uint64(domain), err)
	}

	e.logger.Debug().
		Uint64("module", uint64(module)).
		Uint64("domain", uint64(domain)).
		Msg("Module load tracked")
	return dm, nil
}

// OnModuleUnload records that module was unloaded from domain. An unload for
// a module the engine never tracked is expected (it may have loaded before
// attach) and is not an error.
func (e *Engine) OnModuleUnload(module ModuleID, domain DomainID) {
	e.lock.Lock()
	defer e.lock.Unlock()

	if e.table.RemoveOne(module, domain) {
		e.logger.Debug().
			Uint64("module", uint64(module)).
			Uint64("domain", uint64(domain)).
			Msg("Module unload tracked")
	}
}

// OnDomainUnload evicts every record owned by domain and returns how many
// were removed. This runs on domain teardown; it catches shadow records whose
// individual unload notifications the host engine missed.
func (e *Engine) OnDomainUnload(domain DomainID) int {
	e.lock.Lock()
	defer e.lock.Unlock()

	removed := e.table.RemoveAllForDomain(domain)
	e.logger.Info().
		Uint64("domain", uint64(domain)).
		Int("removed", removed).
		Msg("Domain unload tracked")
	return removed
}

// LookupModule returns the shadow record for module, ignoring the domain.
// Only meaningful when the module is known not to be shared across domains.
func (e *Engine) LookupModule(module ModuleID) *DebuggerModule {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.table.LookupExact(module)
}

// LookupModuleInDomain returns the shadow record for the exact
// (module, domain) pair, or nil.
func (e *Engine) LookupModuleInDomain(module ModuleID, domain DomainID) *DebuggerModule {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.table.LookupByModuleAndDomain(module, domain)
}

// SetModuleJitFlagsMutable flips the JIT-flags-mutable bit on the record for
// (module, domain) and reports whether the record exists. The flag write
// itself happens outside the lock; only the lookup needs it.
func (e *Engine) SetModuleJitFlagsMutable(module ModuleID, domain DomainID, mutable bool) bool {
	e.lock.Lock()
	dm := e.table.LookupByModuleAndDomain(module, domain)
	e.lock.Unlock()

	if dm == nil {
		return false
	}
	dm.SetJitFlagsMutable(mutable)
	return true
}

// ModuleCount returns the number of tracked modules.
func (e *Engine) ModuleCount() int {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.table.Count()
}

// WithLockedTable runs fn with the data lock held, giving it the table for a
// multi-step read such as freezing a snapshot. fn must not retain the table
// past its return.
func (e *Engine) WithLockedTable(fn func(*DebuggerModuleTable) error) error {
	e.lock.Lock()
	defer e.lock.Unlock()
	return fn(e.table)
}

// Teardown ends the session: it moves the lock into its shutdown lifecycle,
// destroys every shadow record, and marks the lock destroyed. No lock is
// acquired; by the time Teardown runs, no other thread may observe the table.
func (e *Engine) Teardown() {
	e.lock.BeginShutdown()
	e.table.Clear()
	e.lock.Destroy()
	e.logger.Info().Msg("Debug session torn down")
}
