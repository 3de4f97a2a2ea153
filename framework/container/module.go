package container

import (
	"context"

	"github.com/zengzjie/nest-source/framework/metadata"
)

// ControllerClass is implemented by *Class and by controller definitions
// that wrap one.
type ControllerClass interface {
	Class() *Class
}

// ── Module ────────────────────────────────────────────────────────────────────

// Module groups providers, controllers, imports and exports.
//
//	var CatsModule = container.NewModule("CatsModule").
//	    Imports(CommonModule).
//	    Providers(CatsService).
//	    Controllers(CatsController).
//	    Exports(CatsService)
//
// Imports may hold *Module, *DynamicModule, PendingModule or ForwardReference
// values. Exports may hold tokens, providers or modules (re-export).
type Module struct {
	name        string
	imports     []any
	providers   []Provider
	controllers []ControllerClass
	exports     []any
	global      bool
	meta        metadata.Map
}

// NewModule declares an empty module.
func NewModule(name string) *Module { return &Module{name: name} }

func (m *Module) Imports(imports ...any) *Module {
	m.imports = append(m.imports, imports...)
	return m
}

func (m *Module) Providers(providers ...Provider) *Module {
	m.providers = append(m.providers, providers...)
	return m
}

func (m *Module) Controllers(controllers ...ControllerClass) *Module {
	m.controllers = append(m.controllers, controllers...)
	return m
}

func (m *Module) Exports(exports ...any) *Module {
	m.exports = append(m.exports, exports...)
	return m
}

// Global makes the module's exported providers visible to every module.
func (m *Module) Global() *Module {
	m.global = true
	return m
}

func (m *Module) Name() string   { return m.name }
func (m *Module) IsGlobal() bool { return m.global }
func (m *Module) String() string { return m.name }

// Metadata implements metadata.Target.
func (m *Module) Metadata() *metadata.Map { return &m.meta }

// ── Dynamic modules ───────────────────────────────────────────────────────────

// DynamicModule extends Module at bootstrap. Its lists are merged additively
// into the module's declared lists before the module is scanned.
type DynamicModule struct {
	Module      *Module
	Imports     []any
	Providers   []Provider
	Controllers []ControllerClass
	Exports     []any
	Global      bool
}

// PendingModule produces a DynamicModule asynchronously. Bootstrap awaits it
// before any provider of the importing module is registered.
//
//	func ForRoot(delay time.Duration) container.PendingModule {
//	    return func(ctx context.Context) (*container.DynamicModule, error) {
//	        select {
//	        case <-time.After(delay):
//	        case <-ctx.Done():
//	            return nil, ctx.Err()
//	        }
//	        return &container.DynamicModule{Module: ConfigModule, Providers: ...}, nil
//	    }
//	}
type PendingModule func(ctx context.Context) (*DynamicModule, error)

// ForwardReference defers reading a module variable until bootstrap, which
// allows modules declared in package variables to import each other.
type ForwardReference struct {
	fn func() *Module
}

// ForwardRef wraps fn in a ForwardReference.
func ForwardRef(fn func() *Module) ForwardReference { return ForwardReference{fn: fn} }
