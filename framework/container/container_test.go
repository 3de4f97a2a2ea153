package container_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zengzjie/nest-source/framework/container"
)

// ── fixtures ──────────────────────────────────────────────────────────────────

type DogsService struct{ id int }

type CatsService struct {
	Dogs   *DogsService
	Prefix string
}

type CommonService struct{}

type FeatureService struct{ Common *CommonService }

func NewCatsService(d *DogsService, prefix string) *CatsService {
	return &CatsService{Dogs: d, Prefix: prefix}
}

func NewFeatureService(c *CommonService) *FeatureService { return &FeatureService{Common: c} }

// countingDogs returns a DogsService class and a pointer to its construction count.
func countingDogs() (*container.Class, *int) {
	n := 0
	return container.Injectable(func() *DogsService {
		n++
		return &DogsService{id: n}
	}), &n
}

func bootstrap(t *testing.T, root *container.Module) *container.Container {
	t.Helper()
	c := container.New(nil)
	require.NoError(t, c.Bootstrap(context.Background(), root))
	return c
}

// ── Singletons ────────────────────────────────────────────────────────────────

func TestBootstrap_SingletonPerToken(t *testing.T) {
	dogs, built := countingDogs()
	cats := container.Injectable(NewCatsService).Inject(1, "PREFIX")

	core := container.NewModule("CoreModule").Providers(dogs).Exports(dogs)
	root := container.NewModule("AppModule").
		Imports(core).
		Providers(cats, container.ValueProvider{Provide: "PREFIX", UseValue: "cat-"})

	c := bootstrap(t, root)

	first := container.MustResolve[*CatsService](c, container.TypeToken[*CatsService]())
	second := container.MustResolve[*CatsService](c, cats)
	assert.Same(t, first, second)

	d := container.MustResolve[*DogsService](c, container.TypeToken[*DogsService]())
	assert.Same(t, d, first.Dogs)
	assert.Equal(t, "cat-", first.Prefix)
	assert.Equal(t, 1, *built)
}

func TestExistingProvider_SharesInstance(t *testing.T) {
	dogs, built := countingDogs()
	root := container.NewModule("AppModule").Providers(
		dogs,
		container.ExistingProvider{Provide: "Pets", UseExisting: dogs},
	)

	c := bootstrap(t, root)

	alias, ok := c.Get("Pets")
	require.True(t, ok)
	original, _ := c.Get(dogs)
	assert.Same(t, original, alias)
	assert.Equal(t, 1, *built)
}

// ── Visibility ────────────────────────────────────────────────────────────────

func TestGlobalModule_VisibleWithoutImport(t *testing.T) {
	common := container.Injectable(func() *CommonService { return &CommonService{} })
	commonModule := container.NewModule("CommonModule").Providers(common).Exports(common).Global()
	feature := container.NewModule("FeatureModule").Providers(container.Injectable(NewFeatureService))
	root := container.NewModule("AppModule").Imports(commonModule, feature)

	c := bootstrap(t, root)

	svc := container.MustResolve[*FeatureService](c, container.TypeToken[*FeatureService]())
	assert.NotNil(t, svc.Common)
}

func TestNonGlobalModule_RequiresImport(t *testing.T) {
	common := container.Injectable(func() *CommonService { return &CommonService{} })
	commonModule := container.NewModule("CommonModule").Providers(common).Exports(common)
	feature := container.NewModule("FeatureModule").Providers(container.Injectable(NewFeatureService))
	root := container.NewModule("AppModule").Imports(commonModule, feature)

	err := container.New(nil).Bootstrap(context.Background(), root)
	require.Error(t, err)
	assert.ErrorIs(t, err, container.ErrUnknownDependency)

	var re *container.ResolutionError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "FeatureModule", re.Module)
}

func TestNonExportedProvider_StaysLocal(t *testing.T) {
	common := container.Injectable(func() *CommonService { return &CommonService{} })
	commonModule := container.NewModule("CommonModule").Providers(common)
	root := container.NewModule("AppModule").Imports(commonModule)

	c := bootstrap(t, root)

	assert.True(t, c.Visible(common, commonModule))
	assert.False(t, c.Visible(common, root))
}

func TestValueProvider_PropagatesWithoutExport(t *testing.T) {
	dogs, _ := countingDogs()
	settings := container.NewModule("SettingsModule").
		Providers(container.ValueProvider{Provide: "PREFIX", UseValue: "v-"})
	root := container.NewModule("AppModule").
		Imports(settings).
		Providers(dogs, container.Injectable(NewCatsService).Inject(1, "PREFIX"))

	c := bootstrap(t, root)

	cats := container.MustResolve[*CatsService](c, container.TypeToken[*CatsService]())
	assert.Equal(t, "v-", cats.Prefix)
}

func TestReExportedModule(t *testing.T) {
	dogs, _ := countingDogs()
	core := container.NewModule("CoreModule").Providers(dogs).Exports(dogs)
	shared := container.NewModule("SharedModule").Imports(core).Exports(core)
	root := container.NewModule("AppModule").
		Imports(shared).
		Providers(container.Injectable(NewCatsService).Inject(1, "PREFIX"),
			container.ValueProvider{Provide: "PREFIX", UseValue: ""})

	c := bootstrap(t, root)

	assert.True(t, c.Visible(dogs, root))
	assert.True(t, c.Visible(dogs, shared))
}

func TestReExportedToken(t *testing.T) {
	dogs, _ := countingDogs()
	core := container.NewModule("CoreModule").Providers(dogs).Exports(dogs)
	shared := container.NewModule("SharedModule").Imports(core).Exports(dogs)
	root := container.NewModule("AppModule").Imports(shared)

	c := bootstrap(t, root)

	assert.True(t, c.Visible(dogs, root))
}

func TestUnknownExport(t *testing.T) {
	child := container.NewModule("ChildModule").Exports("NOPE")
	root := container.NewModule("AppModule").Imports(child)

	err := container.New(nil).Bootstrap(context.Background(), root)
	assert.ErrorIs(t, err, container.ErrUnknownExport)
}

func TestForwardRef_CyclicImports(t *testing.T) {
	dogs, _ := countingDogs()
	var a *container.Module
	b := container.NewModule("B").
		Imports(container.ForwardRef(func() *container.Module { return a })).
		Providers(dogs).
		Exports(dogs)
	a = container.NewModule("A").Imports(b)
	root := container.NewModule("AppModule").Imports(a)

	c := bootstrap(t, root)
	assert.True(t, c.Visible(dogs, a))
}

// ── Factories ─────────────────────────────────────────────────────────────────

func TestFactory_GlobalAndLocalInject(t *testing.T) {
	globals := container.NewModule("GlobalsModule").
		Providers(container.ValueProvider{Provide: "A", UseValue: "a"}).
		Global()
	feature := container.NewModule("FeatureModule").
		Providers(
			container.ValueProvider{Provide: "B", UseValue: "b"},
			container.FactoryProvider{
				Provide:    "AB",
				UseFactory: func(a, b string) string { return a + b },
				Inject:     []any{"A", "B"},
			},
		).
		Exports("AB")
	root := container.NewModule("AppModule").Imports(globals, feature)

	c := bootstrap(t, root)

	v, ok := c.Get("AB")
	require.True(t, ok)
	assert.Equal(t, "ab", v)
}

func TestFactory_OptionalInject(t *testing.T) {
	root := container.NewModule("AppModule").Providers(container.FactoryProvider{
		Provide:    "GREETING",
		UseFactory: func(suffix string) string { return "hi" + suffix },
		Inject:     []any{container.Optional("SUFFIX")},
	})

	c := bootstrap(t, root)

	v, _ := c.Get("GREETING")
	assert.Equal(t, "hi", v)
}

func TestFactory_ContextAndError(t *testing.T) {
	boom := errors.New("boom")
	root := container.NewModule("AppModule").Providers(container.FactoryProvider{
		Provide: "CONN",
		UseFactory: func(ctx context.Context) (string, error) {
			return "", boom
		},
	})

	err := container.New(nil).Bootstrap(context.Background(), root)
	assert.ErrorIs(t, err, boom)
}

func TestFactory_ArityMismatch(t *testing.T) {
	root := container.NewModule("AppModule").Providers(container.FactoryProvider{
		Provide:    "X",
		UseFactory: func(a, b string) string { return a + b },
		Inject:     []any{"A"},
	})

	err := container.New(nil).Bootstrap(context.Background(), root)
	assert.ErrorIs(t, err, container.ErrInvalidProvider)
}

// ── Dynamic modules ───────────────────────────────────────────────────────────

func delayedConfig(module *container.Module, delay time.Duration) container.PendingModule {
	return func(ctx context.Context) (*container.DynamicModule, error) {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return &container.DynamicModule{
			Module:    module,
			Providers: []container.Provider{container.ValueProvider{Provide: "FOO", UseValue: "bar"}},
			Exports:   []any{"FOO"},
			Global:    true,
		}, nil
	}
}

func TestDynamicModule_MergedBeforeDependents(t *testing.T) {
	configModule := container.NewModule("ConfigModule")
	feature := container.NewModule("FeatureModule").Providers(container.FactoryProvider{
		Provide:    "FEATURE",
		UseFactory: func(foo string) string { return "feature:" + foo },
		Inject:     []any{"FOO"},
	})
	root := container.NewModule("AppModule").Imports(feature, delayedConfig(configModule, 30*time.Millisecond))

	c := bootstrap(t, root)

	v, _ := c.Get("FEATURE")
	assert.Equal(t, "feature:bar", v)
}

func TestDynamicModule_DoesNotMutateDeclaration(t *testing.T) {
	configModule := container.NewModule("ConfigModule")
	bootstrap(t, container.NewModule("AppModule").Imports(delayedConfig(configModule, time.Millisecond)))

	c := bootstrap(t, container.NewModule("OtherModule").Imports(configModule))
	_, ok := c.Get("FOO")
	assert.False(t, ok)
}

func TestDynamicModule_ErrorAbortsBootstrap(t *testing.T) {
	failing := container.PendingModule(func(ctx context.Context) (*container.DynamicModule, error) {
		return nil, errors.New("unreachable config server")
	})
	err := container.New(nil).Bootstrap(context.Background(), container.NewModule("AppModule").Imports(failing))
	assert.ErrorContains(t, err, "unreachable config server")
}

func TestDynamicModule_SettledBeforeInvalidImportError(t *testing.T) {
	var settled atomic.Bool
	pending := container.PendingModule(func(ctx context.Context) (*container.DynamicModule, error) {
		defer settled.Store(true)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return &container.DynamicModule{Module: container.NewModule("SlowModule")}, nil
		}
	})
	broken := container.ForwardRef(func() *container.Module { return nil })

	err := container.New(nil).Bootstrap(context.Background(), container.NewModule("AppModule").Imports(pending, broken))
	assert.ErrorIs(t, err, container.ErrInvalidImport)
	assert.True(t, settled.Load(), "pending import still running after Bootstrap returned")
}

// ── Configuration errors ──────────────────────────────────────────────────────

func TestImport_RejectsClasses(t *testing.T) {
	dogs, _ := countingDogs()
	err := container.New(nil).Bootstrap(context.Background(), container.NewModule("AppModule").Imports(dogs))
	assert.ErrorIs(t, err, container.ErrInvalidImport)
}

type A struct{ B *B }
type B struct{ A *A }

func TestCircularDependency(t *testing.T) {
	root := container.NewModule("AppModule").Providers(
		container.Injectable(func(b *B) *A { return &A{B: b} }),
		container.Injectable(func(a *A) *B { return &B{A: a} }),
	)

	err := container.New(nil).Bootstrap(context.Background(), root)
	assert.ErrorIs(t, err, container.ErrCircularDependency)
}

func TestInvalidToken(t *testing.T) {
	root := container.NewModule("AppModule").Providers(
		container.ValueProvider{Provide: []string{"x"}, UseValue: 1},
	)
	err := container.New(nil).Bootstrap(context.Background(), root)
	assert.ErrorIs(t, err, container.ErrInvalidToken)
}

func TestSealed(t *testing.T) {
	c := bootstrap(t, container.NewModule("AppModule"))
	c.Seal()

	assert.ErrorIs(t, c.Provide(container.ValueProvider{Provide: "X", UseValue: 1}), container.ErrSealed)
	assert.True(t, c.Sealed())
}

// ── Dependency resolution ─────────────────────────────────────────────────────

type Audit struct{ Label string }

func TestPropertyInjection_PerInstance(t *testing.T) {
	root := container.NewModule("AppModule").Providers(
		container.ValueProvider{Provide: "LABEL_A", UseValue: "a"},
		container.ValueProvider{Provide: "LABEL_B", UseValue: "b"},
		container.ClassProvider{Provide: "audit-a", UseClass: container.Struct[Audit]().Property("Label", "LABEL_A")},
		container.ClassProvider{Provide: "audit-b", UseClass: container.Struct[Audit]().Property("Label", "LABEL_B")},
	)

	c := bootstrap(t, root)

	a := container.MustResolve[*Audit](c, "audit-a")
	b := container.MustResolve[*Audit](c, "audit-b")
	assert.Equal(t, "a", a.Label)
	assert.Equal(t, "b", b.Label)
}

func TestOptionalConstructorParameter(t *testing.T) {
	dogs, _ := countingDogs()
	cats := container.Injectable(NewCatsService).Inject(1, "PREFIX").Optional(1)
	c := bootstrap(t, container.NewModule("AppModule").Providers(dogs, cats))

	got := container.MustResolve[*CatsService](c, cats)
	assert.Equal(t, "", got.Prefix)
}

type ctxKey struct{}

type Tracer struct{ Tag any }

func TestContextParameter_ReceivesBootstrapContext(t *testing.T) {
	tracer := container.Injectable(func(ctx context.Context) *Tracer { return &Tracer{Tag: ctx.Value(ctxKey{})} })
	c := container.New(nil)
	ctx := context.WithValue(context.Background(), ctxKey{}, "boot")
	require.NoError(t, c.Bootstrap(ctx, container.NewModule("AppModule").Providers(tracer)))

	assert.Equal(t, "boot", container.MustResolve[*Tracer](c, tracer).Tag)
}

func TestResolveClass_CachesUnregisteredClass(t *testing.T) {
	dogs, _ := countingDogs()
	root := container.NewModule("AppModule").Providers(dogs, container.ValueProvider{Provide: "PREFIX", UseValue: "x"})
	c := bootstrap(t, root)

	ctrl := container.Injectable(NewCatsService).Inject(1, "PREFIX")
	first, err := c.ResolveClass(context.Background(), ctrl, root)
	require.NoError(t, err)
	second, err := c.ResolveClass(context.Background(), ctrl, root)
	require.NoError(t, err)
	assert.Same(t, first, second)

	registered, err := c.ResolveClass(context.Background(), dogs, root)
	require.NoError(t, err)
	d, _ := c.Get(dogs)
	assert.Same(t, d, registered)
}

// ── Application enhancers ─────────────────────────────────────────────────────

type stubGuard struct{ name string }

func TestMultiTokens_Append(t *testing.T) {
	guard := container.Injectable(func() *stubGuard { return &stubGuard{name: "class"} })
	root := container.NewModule("AppModule").Providers(
		container.ClassProvider{Provide: container.AppGuard, UseClass: guard},
		container.ValueProvider{Provide: container.AppGuard, UseValue: &stubGuard{name: "value"}},
	)

	c := bootstrap(t, root)

	got := c.Enhancers(container.AppGuard)
	require.Len(t, got, 2)
	assert.Equal(t, "class", got[0].(*stubGuard).name)
	assert.Equal(t, "value", got[1].(*stubGuard).name)

	entries := c.EnhancerEntries(container.AppGuard)
	require.Len(t, entries, 2)
	assert.Same(t, guard, entries[0].Class)
	assert.Same(t, root, entries[0].Module)
	assert.Nil(t, entries[1].Class)
}

func TestMultiTokens_ValueProviderNotDuplicatedAlongChain(t *testing.T) {
	leaf := container.NewModule("LeafModule").
		Providers(container.ValueProvider{Provide: container.AppPipe, UseValue: "pipe"})
	mid := container.NewModule("MidModule").Imports(leaf).Exports(leaf)
	root := container.NewModule("AppModule").Imports(mid)

	c := bootstrap(t, root)

	assert.Equal(t, []any{"pipe"}, c.Enhancers(container.AppPipe))
}

// ── Injectable ────────────────────────────────────────────────────────────────

func TestInjectable_PanicsOnBadConstructor(t *testing.T) {
	assert.Panics(t, func() { container.Injectable("not a func") })
	assert.Panics(t, func() { container.Injectable(func() error { return nil }) })
	assert.Panics(t, func() { container.Injectable(func() (int, int) { return 0, 0 }) })
	assert.Panics(t, func() { container.Injectable(NewFeatureService).Inject(3, "X") })
}

func TestClass_Dependencies(t *testing.T) {
	cats := container.Injectable(NewCatsService).Inject(1, "PREFIX")
	deps := cats.Dependencies()
	require.Len(t, deps, 2)
	assert.Equal(t, container.TypeToken[*DogsService](), deps[0])
	assert.Equal(t, "PREFIX", deps[1])
}
