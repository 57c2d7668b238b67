package audit

// FieldChange is one field whose value differs between two snapshots.
type FieldChange struct {
	Field string
	Old   string
	New   string
}

// Snapshot is an immutable stringified view of the fields of an entity that
// are meaningful to history. Diffing snapshots instead of live domain objects
// keeps the audit logic decoupled from mutable state.
type Snapshot map[string]string

// TrackedTicketFields is the explicit list of ticket fields recorded in
// history, in emission order. Fields outside this list never produce entries.
var TrackedTicketFields = []string{"name", "description", "priority", "state"}

// Diff compares two snapshots over the given field list and returns one
// FieldChange per field whose values differ. Values are compared by equality;
// a field absent from both snapshots never counts as changed. The result
// preserves the order of fields.
func Diff(before, after Snapshot, fields []string) []FieldChange {
	var changes []FieldChange
	for _, f := range fields {
		oldVal, newVal := before[f], after[f]
		if oldVal == newVal {
			continue
		}
		changes = append(changes, FieldChange{Field: f, Old: oldVal, New: newVal})
	}
	return changes
}
