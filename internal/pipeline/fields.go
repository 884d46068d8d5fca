package pipeline

import (
	"groupwatch/internal"
	"groupwatch/internal/source"
)

// RowFields is the normalized view of one RawRow: for every logical field,
// the first non-absent value among the columns mapped to it.
type RowFields struct {
	values map[source.Field]Field
	// profileLinks keeps every generic link column, since each may point at
	// a different platform.
	profileLinks []string
}

// ExtractFields normalizes the mapped columns of a row.
func ExtractFields(row internal.RawRow, cols source.Resolved) RowFields {
	rf := RowFields{values: map[source.Field]Field{}}
	for _, f := range source.Fields() {
		for _, col := range cols.Columns(f) {
			raw, ok := row.Get(col)
			v := Normalize(raw, ok)
			if v.IsAbsent() {
				continue
			}
			if f == source.FieldProfileLink {
				rf.profileLinks = append(rf.profileLinks, v.Or(""))
				continue
			}
			if _, seen := rf.values[f]; !seen {
				rf.values[f] = v
			}
		}
	}
	return rf
}

// Get returns the field, absent when no mapped column carried a value.
func (rf RowFields) Get(f source.Field) Field {
	if f == source.FieldProfileLink {
		if len(rf.profileLinks) == 0 {
			return Absent()
		}
		return Present(rf.profileLinks[0])
	}
	return rf.values[f]
}

func (rf RowFields) ProfileLinks() []string { return rf.profileLinks }

// Signal reports whether anything usable survived normalization.
func (rf RowFields) Signal() bool {
	return len(rf.values) > 0 || len(rf.profileLinks) > 0
}
