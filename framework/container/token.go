package container

import (
	"fmt"
	"reflect"
)

// Token identifies an injectable value: a reflect.Type (class reference),
// a string, or a *Symbol. Any other comparable value works as well.
type Token = any

// Symbol is a unique token that never collides with a string token of the same name.
type Symbol struct {
	name string
}

// NewSymbol returns a fresh Symbol; two symbols with the same name are distinct.
func NewSymbol(name string) *Symbol { return &Symbol{name: name} }

func (s *Symbol) String() string { return "Symbol(" + s.name + ")" }

// TypeToken returns the class-reference token for T.
//
//	container.TypeToken[*CatsService]()
func TypeToken[T any]() Token { return reflect.TypeOf((*T)(nil)).Elem() }

// Multi-valued application tokens. Every provider bound to one of them is
// appended to the matching global enhancer list instead of replacing it.
var (
	AppGuard       = NewSymbol("APP_GUARD")
	AppPipe        = NewSymbol("APP_PIPE")
	AppFilter      = NewSymbol("APP_FILTER")
	AppInterceptor = NewSymbol("APP_INTERCEPTOR")
)

func isMulti(t Token) bool {
	switch t {
	case AppGuard, AppPipe, AppFilter, AppInterceptor:
		return true
	}
	return false
}

// normalize maps a *Class used as a token onto its type token.
func normalize(t Token) Token {
	if c, ok := t.(*Class); ok {
		return c.Token()
	}
	return t
}

func validToken(t Token) bool {
	return t != nil && reflect.TypeOf(t).Comparable()
}

func sameToken(a, b Token) bool {
	a, b = normalize(a), normalize(b)
	if !validToken(a) || !validToken(b) {
		return false
	}
	return a == b
}

// TokenName renders a token for logs and error messages.
func TokenName(t Token) string {
	switch v := t.(type) {
	case nil:
		return "<nil>"
	case string:
		return v
	case reflect.Type:
		return v.String()
	case *Class:
		return v.Name()
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprintf("%v", t)
}

// ── token sets ────────────────────────────────────────────────────────────────

type tokenSet struct {
	index map[Token]struct{}
	order []Token
}

func (s *tokenSet) add(t Token) {
	if s.index == nil {
		s.index = make(map[Token]struct{})
	}
	if _, ok := s.index[t]; ok {
		return
	}
	s.index[t] = struct{}{}
	s.order = append(s.order, t)
}

func (s *tokenSet) has(t Token) bool {
	_, ok := s.index[t]
	return ok
}

func (s *tokenSet) list() []Token {
	out := make([]Token, len(s.order))
	copy(out, s.order)
	return out
}
