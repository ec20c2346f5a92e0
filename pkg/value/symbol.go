package value

// Symbol is a unique, immutable primitive. Identity is pointer identity;
// two symbols with the same description are still distinct.
type Symbol struct {
	Description string
	// HasDescription distinguishes Symbol() from Symbol("").
	HasDescription bool
}

// NewSymbol creates a fresh symbol with the given description.
func NewSymbol(description string) *Symbol {
	return &Symbol{Description: description, HasDescription: true}
}

func (s *Symbol) String() string {
	return "Symbol(" + s.Description + ")"
}

// Well-known symbols. They are shared by every realm of a process; the
// global symbol registry never hands them out.
var (
	SymbolAsyncIterator = NewSymbol("Symbol.asyncIterator")
	SymbolHasInstance   = NewSymbol("Symbol.hasInstance")
	SymbolIterator      = NewSymbol("Symbol.iterator")
	SymbolToPrimitive   = NewSymbol("Symbol.toPrimitive")
	SymbolToStringTag   = NewSymbol("Symbol.toStringTag")
	SymbolUnscopables   = NewSymbol("Symbol.unscopables")
)

// WellKnownSymbols lists the well-known symbols by their property name on
// the Symbol constructor.
var WellKnownSymbols = map[string]*Symbol{
	"asyncIterator": SymbolAsyncIterator,
	"hasInstance":   SymbolHasInstance,
	"iterator":      SymbolIterator,
	"toPrimitive":   SymbolToPrimitive,
	"toStringTag":   SymbolToStringTag,
	"unscopables":   SymbolUnscopables,
}
