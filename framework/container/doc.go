// Package container is the dependency-injection engine: modules, providers
// and the registry that turns a module tree into one object graph.
//
// # Overview
//
// A Module groups providers, controllers, imports and exports. Bootstrap walks
// the import graph from a root module, records every provider declaration with
// the module that declared it, then builds each provider exactly once. After
// Seal the container is read-only and safe for concurrent request handling.
//
// # Classes
//
// A Class wraps a constructor. Its parameter types are the dependency tokens,
// its result type is the class token:
//
//	func NewCatsService(dogs *DogsService, prefix string) *CatsService { ... }
//
//	var CatsService = container.Injectable(NewCatsService).
//	    Inject(1, "PREFIX")              // string is not specific enough
//
// Properties are assigned on each constructed instance:
//
//	var Audit = container.Struct[AuditService]().
//	    Property("Logger", container.TypeToken[*zap.Logger]())
//
// # Providers
//
//	container.ValueProvider{Provide: "PREFIX", UseValue: "cat-"}
//	container.ClassProvider{Provide: "Store", UseClass: MemoryStore}
//	container.FactoryProvider{
//	    Provide:    "GREETING",
//	    UseFactory: func(prefix string, suffix string) string { return prefix + suffix },
//	    Inject:     []any{"PREFIX", container.Optional("SUFFIX")},
//	}
//	container.ExistingProvider{Provide: "Cache", UseExisting: "Store"}
//
// # Modules
//
//	var CommonModule = container.NewModule("CommonModule").
//	    Providers(CommonService, container.ValueProvider{Provide: "SUFFIX", UseValue: "!"}).
//	    Exports(CommonService).
//	    Global()
//
//	var AppModule = container.NewModule("AppModule").
//	    Imports(CommonModule, config.ForRoot()).   // ForRoot returns a PendingModule
//	    Controllers(CatsController)
//
// # Visibility
//
//   - A module sees its own providers, the exports of the modules it imports
//     and every value provider of those modules.
//   - Providers of a global module are visible everywhere.
//   - A dependency that is not visible and not optional aborts Bootstrap.
//
// # Application enhancers
//
// Providers bound to AppGuard, AppPipe, AppFilter and AppInterceptor are
// collected in declaration order and read back with Enhancers.
package container
