// Package snapshot freezes a module table into a deterministic image and
// serves the read-only lookup surface over such an image, for inspectors
// running outside the debugged process.
package snapshot

import (
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/reefdbg/reef/internal/debugger"
)

// FormatVersion is the frozen-image format version.
const FormatVersion = 1

// cbor encoding uses canonical mode so the same table state always produces
// the same bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("snapshot: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

type record struct {
	Module          uint64 `cbor:"1,keyasint"`
	Domain          uint64 `cbor:"2,keyasint"`
	JitFlagsMutable bool   `cbor:"3,keyasint"`
}

type image struct {
	Version    int      `cbor:"1,keyasint"`
	SessionID  string   `cbor:"2,keyasint"`
	CapturedAt int64    `cbor:"3,keyasint"` // unix nanoseconds
	Records    []record `cbor:"4,keyasint"`
}

// Write serializes the table into w. The caller must hold the table's data
// lock for the duration.
func Write(w io.Writer, sessionID string, table *debugger.DebuggerModuleTable) error {
	img := image{
		Version:    FormatVersion,
		SessionID:  sessionID,
		CapturedAt: time.Now().UnixNano(),
	}
	table.ForEach(func(dm *debugger.DebuggerModule) bool {
		img.Records = append(img.Records, record{
			Module:          uint64(dm.EngineModule()),
			Domain:          uint64(dm.Domain()),
			JitFlagsMutable: dm.JitFlagsMutable(),
		})
		return true
	})

	data, err := cborEncMode.Marshal(&img)
	if err != nil {
		return fmt.Errorf("snapshot: marshal image: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("snapshot: write image: %w", err)
	}
	return nil
}

// Capture freezes the engine's current table into w, taking the data lock
// itself.
func Capture(w io.Writer, e *debugger.Engine) error {
	return e.WithLockedTable(func(t *debugger.DebuggerModuleTable) error {
		return Write(w, e.SessionID(), t)
	})
}
