package domain

import (
	"fmt"
	"time"
)

// SchemaError reports the first invalid field found while decoding a batch.
// A single violation invalidates the whole batch.
type SchemaError struct {
	Field string `json:"field"`
	Msg   string `json:"message"`
}

func (e *SchemaError) Error() string { return fmt.Sprintf("%s: %s", e.Field, e.Msg) }

func schemaErrorf(field, format string, args ...any) *SchemaError {
	return &SchemaError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

func readingField(i int, name string) string {
	return fmt.Sprintf("data[%d].%s", i, name)
}

// checkTimestamp enforces RFC 3339 so that stored timestamps stay
// unambiguous and lexically sortable.
func checkTimestamp(field, t string) *SchemaError {
	if t == "" {
		return schemaErrorf(field, "required")
	}
	if _, err := time.Parse(time.RFC3339, t); err != nil {
		return schemaErrorf(field, "must be an RFC 3339 timestamp")
	}
	return nil
}

func (v Vital) validate(i int) *SchemaError {
	if err := checkTimestamp(readingField(i, "t"), v.Time); err != nil {
		return err
	}
	if v.Val < 0 {
		return schemaErrorf(readingField(i, "val"), "must be >= 0")
	}
	return nil
}

func (g Gps) validate(i int) *SchemaError {
	if err := checkTimestamp(readingField(i, "t"), g.Time); err != nil {
		return err
	}
	if g.Acc != nil && *g.Acc < 0 {
		return schemaErrorf(readingField(i, "acc"), "must be >= 0")
	}
	return nil
}

func (e Event) validate(i int) *SchemaError {
	if err := checkTimestamp(readingField(i, "t"), e.Time); err != nil {
		return err
	}
	if e.Label == "" {
		return schemaErrorf(readingField(i, "label"), "required")
	}
	return nil
}
