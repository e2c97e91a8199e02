package address

import (
	"errors"
	"fmt"
	"strings"
)

// Scope selects how much of an Address a permission applies to, ordered
// from broadest to narrowest.
type Scope int

const (
	ScopeGlobal Scope = iota
	ScopePlatformInstance
	ScopeServer
	ScopeCategory
	ScopeChannel
	ScopeThread
)

var scopeNames = [...]string{"Global", "PlatformInstance", "Server", "Category", "Channel", "Thread"}

// ErrScopeUnavailable is returned by Widen when the source address does not
// reach the requested scope.
var ErrScopeUnavailable = errors.New("address does not reach requested scope")

var ErrUnknownScope = errors.New("unknown permission scope")

func (s Scope) String() string {
	if s < ScopeGlobal || int(s) >= len(scopeNames) {
		return fmt.Sprintf("Scope(%d)", int(s))
	}
	return scopeNames[s]
}

// Scopes lists every scope, broadest first.
func Scopes() []Scope {
	return []Scope{ScopeGlobal, ScopePlatformInstance, ScopeServer, ScopeCategory, ScopeChannel, ScopeThread}
}

// ParseScope accepts scope names case-insensitively. "Discord" and
// "Instance" are accepted for PlatformInstance.
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "global":
		return ScopeGlobal, nil
	case "platforminstance", "instance", "discord":
		return ScopePlatformInstance, nil
	case "server", "guild":
		return ScopeServer, nil
	case "category":
		return ScopeCategory, nil
	case "channel":
		return ScopeChannel, nil
	case "thread":
		return ScopeThread, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownScope, s)
}

// level is the address level a scope keeps. Thread is special-cased by
// Widen because a missing thread defaults to 0.
func (s Scope) level() Level {
	switch s {
	case ScopePlatformInstance:
		return LevelInstance
	case ScopeServer:
		return LevelServer
	case ScopeCategory:
		return LevelCategory
	case ScopeChannel:
		return LevelChannel
	case ScopeThread:
		return LevelThread
	}
	return LevelNone
}

// Widen cuts a down to scope. Global yields nil, meaning "every scope".
// Thread on a channel-level address yields Thread 0. Any other missing
// field is a caller bug and reported as ErrScopeUnavailable.
func Widen(scope Scope, a Address) (*Address, error) {
	if scope == ScopeGlobal {
		return nil, nil
	}
	want := scope.level()
	if want == LevelNone {
		return nil, fmt.Errorf("%w: %v", ErrUnknownScope, scope)
	}
	required := want
	if scope == ScopeThread {
		required = LevelChannel
	}
	if a.level < required {
		return nil, fmt.Errorf("%w: %s from %s-level address %q", ErrScopeUnavailable, scope, a.level, a)
	}
	var out Address
	if scope == ScopeThread {
		out = ForThread(a.Instance, a.Server, a.Category, a.Channel, 0)
		if a.Has(LevelThread) {
			out.Thread = a.Thread
		}
	} else {
		out = a.Truncate(want)
	}
	return &out, nil
}

// MustWiden is Widen for callers that already hold the precondition.
func MustWiden(scope Scope, a Address) *Address {
	out, err := Widen(scope, a)
	if err != nil {
		panic(err)
	}
	return out
}
