package errors

import (
	"fmt"

	"escore/pkg/source"
)

// Position represents a specific location in the source code.
// Line and column are 1-based; a zero Position means "unknown".
type Position struct {
	Line   int                // 1-based line number
	Column int                // 1-based column number
	Source *source.SourceFile // Reference to the source file
}

// IsValid reports whether the position carries a line number.
func (p Position) IsValid() bool {
	return p.Line > 0
}

func (p Position) String() string {
	if !p.IsValid() {
		return ""
	}
	if p.Source != nil {
		return fmt.Sprintf("%s:%d:%d", p.Source.DisplayPath(), p.Line, p.Column)
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}
