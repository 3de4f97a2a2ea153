// Package providers holds the framework's own providers. The application
// registers them globally before bootstrap, so any class can depend on the
// configuration, the logger, the router or the metadata reflector.
package providers

import (
	"go.uber.org/zap"

	"github.com/zengzjie/nest-source/framework/config"
	"github.com/zengzjie/nest-source/framework/container"
	"github.com/zengzjie/nest-source/framework/metadata"
	"github.com/zengzjie/nest-source/framework/routing"
)

// ── Tokens ────────────────────────────────────────────────────────────────────

var (
	ConfigToken    = container.TypeToken[*config.Config]()
	LoggerToken    = container.TypeToken[*zap.Logger]()
	RouterToken    = container.TypeToken[*routing.Router]()
	ReflectorToken = container.TypeToken[*metadata.Reflector]()
)

// HTTPAdapter names the router under a string token as well.
const HTTPAdapter = "HTTP_ADAPTER"

// ── Providers ────────────────────────────────────────────────────────────────

// Config binds the loaded configuration.
//
// Bound tokens:
//   - *config.Config
//   - *config.AppConfig (derived by factory)
func Config(cfg *config.Config) []container.Provider {
	return []container.Provider{
		container.ValueProvider{Provide: ConfigToken, UseValue: cfg},
		container.FactoryProvider{
			Provide:    container.TypeToken[*config.AppConfig](),
			UseFactory: func(c *config.Config) *config.AppConfig { return &c.App },
			Inject:     []any{ConfigToken},
		},
	}
}

// Logger binds the application logger.
func Logger(l *zap.Logger) container.Provider {
	return container.ValueProvider{Provide: LoggerToken, UseValue: l}
}

// Routing binds the HTTP router, also reachable as HTTPAdapter.
//
// Bound tokens:
//   - *routing.Router
//   - "HTTP_ADAPTER" (alias)
func Routing(r *routing.Router) []container.Provider {
	return []container.Provider{
		container.ValueProvider{Provide: RouterToken, UseValue: r},
		container.ExistingProvider{Provide: HTTPAdapter, UseExisting: RouterToken},
	}
}

// Reflector binds a metadata reflector built by the container.
func Reflector() container.Provider {
	return container.Injectable(metadata.NewReflector).Named("Reflector")
}

// Framework returns every framework provider.
func Framework(cfg *config.Config, logger *zap.Logger, router *routing.Router) []container.Provider {
	ps := Config(cfg)
	ps = append(ps, Logger(logger), Reflector())
	return append(ps, Routing(router)...)
}
