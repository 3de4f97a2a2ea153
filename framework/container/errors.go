package container

import (
	"errors"
	"strings"
)

var (
	// ErrUnknownDependency is returned when a required token is visible neither
	// in the owning module nor globally.
	ErrUnknownDependency = errors.New("container: unresolved dependency")

	// ErrCircularDependency is returned when a token is requested while it is being built.
	ErrCircularDependency = errors.New("container: circular dependency")

	// ErrInvalidImport is returned when a module imports something that is not a module.
	ErrInvalidImport = errors.New("container: only modules may be imported")

	// ErrInvalidToken is returned for nil or non-comparable tokens.
	ErrInvalidToken = errors.New("container: invalid token")

	// ErrInvalidProvider is returned for malformed provider declarations.
	ErrInvalidProvider = errors.New("container: invalid provider")

	// ErrUnknownExport is returned when a module exports a token it neither declares nor imports.
	ErrUnknownExport = errors.New("container: cannot export unknown provider")

	// ErrSealed is returned when the container is mutated after bootstrap.
	ErrSealed = errors.New("container: sealed after bootstrap")
)

// ResolutionError describes a failed token lookup during bootstrap.
type ResolutionError struct {
	Token  Token
	Module string
	Path   []Token
	Err    error
}

func (e *ResolutionError) Error() string {
	var b strings.Builder
	b.WriteString(e.Err.Error())
	b.WriteString(": ")
	b.WriteString(TokenName(e.Token))
	if e.Module != "" {
		b.WriteString(" in module ")
		b.WriteString(e.Module)
	}
	if len(e.Path) > 0 {
		names := make([]string, len(e.Path))
		for i, t := range e.Path {
			names[i] = TokenName(t)
		}
		b.WriteString(" (")
		b.WriteString(strings.Join(names, " -> "))
		b.WriteString(")")
	}
	return b.String()
}

func (e *ResolutionError) Unwrap() error { return e.Err }
