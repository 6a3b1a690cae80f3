package snapshot

import (
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/reefdbg/reef/internal/debugger"
)

// ImageModuleTable is the read-only view of a frozen module table. It
// implements debugger.ModuleIndex and nothing more: there is no insert,
// remove, or clear on the type, mirroring that an inspector observes a frozen
// process image and can never mutate it.
type ImageModuleTable struct {
	sessionID  string
	capturedAt time.Time
	modules    []*debugger.DebuggerModule
}

var _ debugger.ModuleIndex = (*ImageModuleTable)(nil)

// Open decodes a frozen image from r.
func Open(r io.Reader) (*ImageModuleTable, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("snapshot: read image: %w", err)
	}

	var img image
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("snapshot: unmarshal image: %w", err)
	}
	if img.Version != FormatVersion {
		return nil, fmt.Errorf("snapshot: unsupported image format version %d (want %d)", img.Version, FormatVersion)
	}

	t := &ImageModuleTable{
		sessionID:  img.SessionID,
		capturedAt: time.Unix(0, img.CapturedAt),
		modules:    make([]*debugger.DebuggerModule, 0, len(img.Records)),
	}
	for _, rec := range img.Records {
		dm := debugger.NewDebuggerModule(debugger.ModuleID(rec.Module), debugger.DomainID(rec.Domain))
		dm.SetJitFlagsMutable(rec.JitFlagsMutable)
		t.modules = append(t.modules, dm)
	}
	return t, nil
}

// SessionID returns the debug session the image was captured from.
func (t *ImageModuleTable) SessionID() string {
	return t.sessionID
}

// CapturedAt returns when the image was frozen.
func (t *ImageModuleTable) CapturedAt() time.Time {
	return t.capturedAt
}

// Count returns the number of records in the image.
func (t *ImageModuleTable) Count() int {
	return len(t.modules)
}

// LookupExact returns the first record in image order matching module,
// ignoring the domain, or nil. Arbitrary when the module was shared across
// domains.
func (t *ImageModuleTable) LookupExact(module debugger.ModuleID) *debugger.DebuggerModule {
	for _, dm := range t.modules {
		if dm.EngineModule() == module {
			return dm
		}
	}
	return nil
}

// LookupByModuleAndDomain returns the unique record matching both identities,
// or nil.
func (t *ImageModuleTable) LookupByModuleAndDomain(module debugger.ModuleID, domain debugger.DomainID) *debugger.DebuggerModule {
	for _, dm := range t.modules {
		if dm.EngineModule() == module && dm.Domain() == domain {
			return dm
		}
	}
	return nil
}

// ForEach visits every record in image order until fn returns false.
func (t *ImageModuleTable) ForEach(fn func(*debugger.DebuggerModule) bool) {
	for _, dm := range t.modules {
		if !fn(dm) {
			return
		}
	}
}
