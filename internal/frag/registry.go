package frag

import (
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/atlekbai/sqlcraft/internal/dialect"
	"github.com/atlekbai/sqlcraft/internal/sqlerr"
)

// Call is a function application handed to a compile strategy. Name is
// already translated for the target dialect.
type Call struct {
	Name   string
	Before Fragment
	Args   []Fragment
	Parens Parens
}

// FuncStrategy fully controls how a function call is rendered.
type FuncStrategy func(w *Writer, call Call) error

// OperatorStrategy fully controls how an operator application is rendered.
type OperatorStrategy func(w *Writer, operands []Fragment, p Parens) error

// FuncDef describes a registered function. MaxArgs < 0 means unbounded.
type FuncDef struct {
	Name        string
	Translation string
	MinArgs     int
	MaxArgs     int
	Strategy    FuncStrategy
}

// OperatorDef overrides the token or the rendering of an operator.
type OperatorDef struct {
	Kind     OpKind
	Token    string
	Strategy OperatorStrategy
}

// FuncOption configures a registration.
type FuncOption func(*FuncDef)

// WithTranslation renames the function in the emitted SQL.
func WithTranslation(name string) FuncOption {
	return func(d *FuncDef) { d.Translation = name }
}

// WithStrategy installs a custom renderer.
func WithStrategy(fn FuncStrategy) FuncOption {
	return func(d *FuncDef) { d.Strategy = fn }
}

// WithArity bounds the argument count; hi < 0 is unbounded.
func WithArity(lo, hi int) FuncOption {
	return func(d *FuncDef) { d.MinArgs, d.MaxArgs = lo, hi }
}

// Registry maps logical function names and operator kinds to compile
// strategies. Each engine owns its own Registry; registrations are
// expected before compilation starts, lookups during it are read-only.
type Registry struct {
	mu             sync.RWMutex
	funcs          map[string]*FuncDef
	ops            map[OpKind]*OperatorDef
	onlyRegistered bool
}

// NewRegistry returns a registry preloaded with the built-in functions.
func NewRegistry() *Registry {
	r := &Registry{
		funcs: make(map[string]*FuncDef),
		ops:   make(map[OpKind]*OperatorDef),
	}
	registerBuiltins(r)
	return r
}

var defaultRegistry = NewRegistry()

// Register adds or replaces a function. Options not given keep the values
// of an existing registration; a new function defaults to any arity.
func (r *Registry) Register(name string, opts ...FuncOption) {
	key := strings.ToUpper(name)
	r.mu.Lock()
	defer r.mu.Unlock()

	def := &FuncDef{Name: key, MaxArgs: -1}
	if prev, ok := r.funcs[key]; ok {
		c := *prev
		def = &c
	}
	for _, opt := range opts {
		opt(def)
	}
	r.funcs[key] = def
}

// RegisterOperator overrides the token or rendering of an operator kind.
func (r *Registry) RegisterOperator(kind OpKind, token string, strategy OperatorStrategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops[kind] = &OperatorDef{Kind: kind, Token: token, Strategy: strategy}
}

// SetOnlyRegistered makes unknown functions a configuration error.
func (r *Registry) SetOnlyRegistered(only bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onlyRegistered = only
}

// Lookup returns a copy of the definition registered under name.
func (r *Registry) Lookup(name string) (FuncDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.funcs[strings.ToUpper(name)]
	if !ok {
		return FuncDef{}, false
	}
	return *def, true
}

// Names lists the registered function names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.funcs))
}

// Clone returns an independent copy.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := &Registry{
		funcs:          make(map[string]*FuncDef, len(r.funcs)),
		ops:            make(map[OpKind]*OperatorDef, len(r.ops)),
		onlyRegistered: r.onlyRegistered,
	}
	for k, v := range r.funcs {
		d := *v
		c.funcs[k] = &d
	}
	for k, v := range r.ops {
		d := *v
		c.ops[k] = &d
	}
	return c
}

// Unregister removes a function.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.funcs, strings.ToUpper(name))
}

// UnregisterOperator removes an operator registration.
func (r *Registry) UnregisterOperator(kind OpKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ops, kind)
}

func (r *Registry) operator(kind OpKind, opts *dialect.Options) (*OperatorDef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if def, ok := r.ops[kind]; ok {
		return def, nil
	}
	if r.onlyRegistered || opts.OnlyRegisteredFunctions {
		return nil, sqlerr.Config("operator %s is not registered", kind)
	}
	return nil, nil
}

func (r *Registry) function(name string, opts *dialect.Options) (*FuncDef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if def, ok := r.funcs[strings.ToUpper(name)]; ok {
		return def, nil
	}
	if r.onlyRegistered || opts.OnlyRegisteredFunctions {
		return nil, sqlerr.Config("function %q is not registered", name)
	}
	return nil, nil
}
