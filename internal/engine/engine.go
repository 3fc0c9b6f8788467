// Package engine bundles a dialect, a function registry, a catalog and a
// capture method registry into one object. Engines are independent: a
// function registered on one is invisible to the others.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/atlekbai/sqlcraft/internal/capture"
	"github.com/atlekbai/sqlcraft/internal/dialect"
	"github.com/atlekbai/sqlcraft/internal/frag"
	"github.com/atlekbai/sqlcraft/internal/schema"
	"github.com/atlekbai/sqlcraft/internal/sqlerr"
)

// Engine compiles fragments and captured expressions for one dialect.
// Registration is expected before compilation starts; compiling is safe for
// concurrent use.
type Engine struct {
	opts    dialect.Options
	funcs   *frag.Registry
	catalog *schema.Catalog
	methods *capture.Methods
	log     *slog.Logger

	once     sync.Once
	compiler *frag.Compiler
	capturer *capture.Capturer
}

// Option configures an Engine.
type Option func(*Engine)

// WithDialect sets the target dialect. The options are copied.
func WithDialect(opts dialect.Options) Option {
	return func(e *Engine) { e.opts = opts.Clone() }
}

// WithCatalog sets the catalog used for typed aliases and member paths.
func WithCatalog(c *schema.Catalog) Option {
	return func(e *Engine) { e.catalog = c }
}

// WithRegistry starts the engine from a copy of r instead of the built-ins.
func WithRegistry(r *frag.Registry) Option {
	return func(e *Engine) { e.funcs = r.Clone() }
}

// WithMethods starts the engine from a copy of m instead of the default
// capture methods.
func WithMethods(m *capture.Methods) Option {
	return func(e *Engine) { e.methods = m.Clone() }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New returns an engine targeting Postgres unless WithDialect says otherwise.
func New(opts ...Option) *Engine {
	e := &Engine{opts: dialect.Postgres()}
	for _, opt := range opts {
		opt(e)
	}
	if e.funcs == nil {
		e.funcs = frag.NewRegistry()
	}
	if e.methods == nil {
		e.methods = capture.NewMethods()
	}
	if e.log == nil {
		e.log = slog.New(slog.DiscardHandler)
	}
	e.log = e.log.With("dialect", e.opts.Name)
	return e
}

func (e *Engine) init() {
	e.once.Do(func() {
		var cat frag.Catalog
		var res capture.Resolver
		if e.catalog != nil {
			cat, res = e.catalog, e.catalog
		}
		e.compiler = frag.NewCompiler(e.opts, e.funcs, cat)
		e.capturer = capture.New(res, e.methods)
	})
}

// Dialect returns a copy of the engine's dialect options.
func (e *Engine) Dialect() dialect.Options { return e.opts.Clone() }

// Catalog returns the engine's catalog, or nil.
func (e *Engine) Catalog() *schema.Catalog { return e.catalog }

// Registry returns the engine's function registry.
func (e *Engine) Registry() *frag.Registry { return e.funcs }

// Methods returns the engine's capture method registry.
func (e *Engine) Methods() *capture.Methods { return e.methods }

// Compile renders f.
func (e *Engine) Compile(f frag.Fragment) (*frag.Result, error) {
	e.init()
	res, err := e.compiler.Compile(f)
	if err != nil {
		e.logFailure("compile failed", err)
		return nil, err
	}
	return res, nil
}

// Capture lowers a Go expression to a fragment.
func (e *Engine) Capture(src string, decls ...capture.Decl) (frag.Fragment, error) {
	e.init()
	f, err := e.capturer.Capture(src, decls...)
	if err != nil {
		e.logFailure("capture failed", err, "expr", src)
		return nil, err
	}
	return f, nil
}

// CompileCapture captures src and compiles the result.
func (e *Engine) CompileCapture(src string, decls ...capture.Decl) (*frag.Result, error) {
	f, err := e.Capture(src, decls...)
	if err != nil {
		return nil, err
	}
	return e.Compile(f)
}

// CompileBatch compiles independent fragments concurrently. Results keep the
// order of fs; the first error cancels the remaining work.
func (e *Engine) CompileBatch(ctx context.Context, fs []frag.Fragment) ([]*frag.Result, error) {
	e.init()
	results := make([]*frag.Result, len(fs))
	g, ctx := errgroup.WithContext(ctx)
	for i, f := range fs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := e.compiler.Compile(f)
			if err != nil {
				return fmt.Errorf("fragment %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		e.logFailure("batch compile failed", err, "size", len(fs))
		return nil, err
	}
	return results, nil
}

// RegisterFunction adds or replaces a function on this engine only.
func (e *Engine) RegisterFunction(name string, opts ...frag.FuncOption) {
	e.funcs.Register(name, opts...)
	e.log.Debug("function registered", "name", name)
}

// RegisterOperator overrides an operator on this engine only.
func (e *Engine) RegisterOperator(kind frag.OpKind, token string, strategy frag.OperatorStrategy) {
	e.funcs.RegisterOperator(kind, token, strategy)
	e.log.Debug("operator registered", "kind", kind.String(), "token", token)
}

// RegisterMethod adds or replaces a capture method on this engine only.
func (e *Engine) RegisterMethod(key capture.MethodKey, fn capture.Method) {
	e.methods.Register(key, fn)
	e.log.Debug("method registered", "method", key.String())
}

func (e *Engine) logFailure(msg string, err error, attrs ...any) {
	kind := string(sqlerr.KindOf(err))
	if kind == "" {
		kind = "unknown"
	}
	e.log.Debug(msg, append(attrs, "kind", kind, "error", err)...)
}
