package record

import "time"

// Hooks observes construction outcomes and field writes, attached per type
// with WithHooks. Implementations must be safe for concurrent use; a nil
// Hooks is a no-op.
type Hooks interface {
	// RecordConstructed fires after a successful construction.
	RecordConstructed(typ string, frozen bool, elapsed time.Duration)

	// ConstructionFailed fires when construction aborts. The field is
	// empty for failures not scoped to one field.
	ConstructionFailed(typ, field string, err error)

	// FieldWritten fires after a successful mutable field write.
	FieldWritten(typ, field string)
}
