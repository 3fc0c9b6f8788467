// Package dialect holds the engine-agnostic knobs the compiler consults when it
// has to choose between alternative renderings of the same construct.
package dialect

import (
	"fmt"
	"sort"
	"strings"
)

// PlaceholderStyle selects how bound parameters appear in the SQL text.
type PlaceholderStyle int

const (
	PlaceholderNamed    PlaceholderStyle = iota // @p0, :p0 (prefix + "p" + index)
	PlaceholderQuestion                         // ?
	PlaceholderDollar                           // $1
	PlaceholderColon                            // :1
)

// QuoteStyle selects identifier quoting.
type QuoteStyle int

const (
	QuoteDouble   QuoteStyle = iota // "name"
	QuoteBracket                    // [name]
	QuoteBacktick                   // `name`
	QuoteNone                       // name
)

// PagingStyle selects how Top and Offset/Fetch are rendered.
type PagingStyle int

const (
	PagingLimitOffset PagingStyle = iota // LIMIT n OFFSET m
	PagingOffsetFetch                    // OFFSET m ROWS FETCH NEXT n ROWS ONLY
	PagingTop                            // TOP(n) for Top, OFFSET/FETCH for Offset
)

// ConcatStyle selects how the CONCAT function is rendered.
type ConcatStyle int

const (
	ConcatFunction ConcatStyle = iota // CONCAT(a, b)
	ConcatPipes                       // (a || b)
	ConcatPlus                        // (a + b)
)

// Options is the configuration bundle of a target SQL engine.
type Options struct {
	Name string

	// ParamPrefix is used by PlaceholderNamed ("@" or ":").
	ParamPrefix string
	Placeholder PlaceholderStyle
	// InlineParameters renders values as SQL literals instead of binding them.
	InlineParameters bool
	// BackslashEscapes marks string literals in which "\" is an escape
	// character, as in MySQL's default sql_mode. Inlined strings double it.
	BackslashEscapes bool

	Quote QuoteStyle
	// TableAliasAs writes "AS" between a table and its alias.
	TableAliasAs bool

	Paging PagingStyle
	// UnboundedLimit is the LIMIT written when only an offset is requested
	// under PagingLimitOffset ("ALL", "-1", ...). Empty omits LIMIT.
	UnboundedLimit string
	// OffsetRequiresOrder makes OFFSET/FETCH without ORDER BY emit
	// "ORDER BY (SELECT NULL)".
	OffsetRequiresOrder bool

	SupportsRightJoin bool
	SupportsFullJoin  bool

	// DummyTable is written as "FROM <DummyTable>" for a SELECT without FROM.
	DummyTable string

	Concat ConcatStyle

	// RecursiveKeyword writes WITH RECURSIVE for recursive CTEs.
	RecursiveKeyword bool
	// SupportsReturning allows RETURNING on INSERT, UPDATE and DELETE.
	SupportsReturning bool

	// OnlyRegisteredFunctions rejects functions missing from the registry.
	OnlyRegisteredFunctions bool

	// FunctionNames maps logical function names (upper case) to the name the
	// engine uses, e.g. LENGTH -> LEN.
	FunctionNames map[string]string
	// OperatorTokens maps operator names (ADD, EQUAL, ...) to a token override.
	OperatorTokens map[string]string
}

// FunctionName returns the translated name for a logical function name.
func (o *Options) FunctionName(name string) string {
	if n, ok := o.FunctionNames[strings.ToUpper(name)]; ok {
		return n
	}
	return name
}

// OperatorToken returns the override for an operator name, if any.
func (o *Options) OperatorToken(name string) (string, bool) {
	tok, ok := o.OperatorTokens[name]
	return tok, ok
}

// Clone returns a deep copy so callers can tweak a preset safely.
func (o Options) Clone() Options {
	o.FunctionNames = cloneMap(o.FunctionNames)
	o.OperatorTokens = cloneMap(o.OperatorTokens)
	return o
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

var presets = map[string]func() Options{
	"postgres":  Postgres,
	"sqlserver": SQLServer,
	"mysql":     MySQL,
	"sqlite":    SQLite,
	"oracle":    Oracle,
}

// Lookup returns the preset registered under name.
func Lookup(name string) (Options, error) {
	fn, ok := presets[strings.ToLower(name)]
	if !ok {
		return Options{}, fmt.Errorf("unknown dialect %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	return fn(), nil
}

// Names lists the preset names in sorted order.
func Names() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
