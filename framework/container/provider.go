package container

// ── Provider variants ─────────────────────────────────────────────────────────

// Provider maps a token onto a production rule. The variants are *Class,
// ClassProvider, ValueProvider, FactoryProvider and ExistingProvider.
type Provider interface {
	ProvideToken() Token
}

// ClassProvider constructs UseClass and registers it under Provide.
//
//	container.ClassProvider{Provide: container.AppGuard, UseClass: RolesGuard}
type ClassProvider struct {
	Provide  Token
	UseClass *Class
}

func (p ClassProvider) ProvideToken() Token { return p.Provide }

// ValueProvider registers UseValue as-is. Value providers are visible to every
// module of the import chain without being exported.
type ValueProvider struct {
	Provide  Token
	UseValue any
}

func (p ValueProvider) ProvideToken() Token { return p.Provide }

// FactoryProvider calls UseFactory with the providers named in Inject.
//
// UseFactory is a func returning T or (T, error). When its first parameter is
// a context.Context it receives the bootstrap context and Inject describes the
// remaining parameters. Inject entries are tokens or OptionalDep values.
//
//	container.FactoryProvider{
//	    Provide:    "CONNECTION",
//	    UseFactory: func(cfg *config.Config, prefix string) string { return prefix + cfg.App.Name },
//	    Inject:     []any{container.TypeToken[*config.Config](), "PREFIX"},
//	}
type FactoryProvider struct {
	Provide    Token
	UseFactory any
	Inject     []any
}

func (p FactoryProvider) ProvideToken() Token { return p.Provide }

// ExistingProvider makes Provide an alias of UseExisting: both tokens yield the same instance.
type ExistingProvider struct {
	Provide     Token
	UseExisting Token
}

func (p ExistingProvider) ProvideToken() Token { return p.Provide }

// OptionalDep is a FactoryProvider inject entry that resolves to nil when absent.
type OptionalDep struct {
	Token    Token
	Optional bool
}

// Optional returns an optional inject entry for token.
func Optional(token Token) OptionalDep { return OptionalDep{Token: token, Optional: true} }

func injectEntry(e any) (Token, bool) {
	if d, ok := e.(OptionalDep); ok {
		return d.Token, d.Optional
	}
	return e, false
}

func isValueProvider(p Provider) bool {
	_, ok := p.(ValueProvider)
	return ok
}

// matchesExport reports whether export names provider, by *Class identity or by token.
func matchesExport(p Provider, export any) bool {
	if ec, ok := export.(*Class); ok {
		if pc, ok := p.(*Class); ok && pc == ec {
			return true
		}
		return sameToken(p.ProvideToken(), ec.Token())
	}
	return sameToken(p.ProvideToken(), export)
}

// providerClass returns the class constructed by p, if any.
func providerClass(p Provider) *Class {
	switch v := p.(type) {
	case *Class:
		return v
	case ClassProvider:
		return v.UseClass
	}
	return nil
}
