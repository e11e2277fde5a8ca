package bitwise

import "fmt"

// SchemaError reports an invalid schema. It is raised at compile time and is
// never retried: a schema is static per radio model.
type SchemaError struct {
	Line int    // source line, 0 when unknown
	Name string // field or type involved, if any
	Msg  string
}

func (e *SchemaError) Error() string {
	switch {
	case e.Line > 0 && e.Name != "":
		return fmt.Sprintf("bitwise: line %d: %s: %s", e.Line, e.Name, e.Msg)
	case e.Line > 0:
		return fmt.Sprintf("bitwise: line %d: %s", e.Line, e.Msg)
	case e.Name != "":
		return fmt.Sprintf("bitwise: %s: %s", e.Name, e.Msg)
	default:
		return "bitwise: " + e.Msg
	}
}

func schemaErrorf(line int, name, format string, args ...any) *SchemaError {
	return &SchemaError{Line: line, Name: name, Msg: fmt.Sprintf(format, args...)}
}
