package pipeline

import (
	"strings"

	"groupwatch/internal/util"
)

// sentinels are placeholder tokens the sheets use for "no value".
var sentinels = map[string]struct{}{
	"":     {},
	"nil":  {},
	"nill": {},
	"null": {},
	"na":   {},
	"n/a":  {},
	"-":    {},
}

// Field is a cleaned cell value or an explicit absence. The zero value is
// absent.
type Field struct {
	value   string
	present bool
}

func Absent() Field { return Field{} }

func Present(v string) Field { return Field{value: v, present: true} }

func (f Field) IsAbsent() bool { return !f.present }

func (f Field) Value() (string, bool) { return f.value, f.present }

// Or returns the value, or fallback when absent.
func (f Field) Or(fallback string) string {
	if !f.present {
		return fallback
	}
	return f.value
}

// Ptr returns nil for an absent field.
func (f Field) Ptr() *string {
	if !f.present {
		return nil
	}
	return util.StringPtr(f.value)
}

// Normalize cleans a raw cell. ok=false means the column is missing from
// the row, which is treated the same as a blank cell.
func Normalize(raw string, ok bool) Field {
	if !ok {
		return Absent()
	}
	clean := util.CleanText(raw)
	if _, isSentinel := sentinels[strings.ToLower(clean)]; isSentinel {
		return Absent()
	}
	return Present(clean)
}

// NormalizeCount parses a member count, degrading to 0.
func NormalizeCount(f Field) int {
	v, ok := f.Value()
	if !ok {
		return 0
	}
	return util.ParseCount(v)
}
