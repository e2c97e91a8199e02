// Package address models the hierarchical location of chat data.
//
// An Address names, from broadest to narrowest, the service, the platform
// instance, a server, a category, a channel, a thread and a message. A field
// is only present when every enclosing field is present; which fields are
// present is recorded by the address Level. Absent fields are always zero,
// so Address values compare with == and can be used as map keys.
//
// Addresses are written next to every ingested sentence and are later used
// to retract exactly the sentences of one message, so String and Parse must
// round-trip.
package address

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ServiceKind identifies the chat platform. It is fixed per deployment.
type ServiceKind string

const ServiceDiscord ServiceKind = "discord"

// DefaultInstance is the platform instance used when none is configured.
const DefaultInstance = "discord.com"

// Level records how deep an Address goes.
type Level int

const (
	LevelNone Level = iota
	LevelInstance
	LevelServer
	LevelCategory
	LevelChannel
	LevelThread
	LevelMessage
)

var levelNames = [...]string{"none", "instance", "server", "category", "channel", "thread", "message"}

func (l Level) String() string {
	if l < LevelNone || int(l) >= len(levelNames) {
		return "level(" + strconv.Itoa(int(l)) + ")"
	}
	return levelNames[l]
}

var ErrMalformed = errors.New("malformed address")

type Address struct {
	Service  ServiceKind
	Instance string
	Server   uint64
	Category uint64
	Channel  uint64
	// Thread is 0 when the address points at a channel outside any thread.
	Thread  uint64
	Message uint64

	level Level
}

func ForInstance(instance string) Address {
	return Address{Service: ServiceDiscord, Instance: instance, level: LevelInstance}
}

func ForServer(instance string, server uint64) Address {
	a := ForInstance(instance)
	a.Server = server
	a.level = LevelServer
	return a
}

func ForCategory(instance string, server, category uint64) Address {
	a := ForServer(instance, server)
	a.Category = category
	a.level = LevelCategory
	return a
}

func ForChannel(instance string, server, category, channel uint64) Address {
	a := ForCategory(instance, server, category)
	a.Channel = channel
	a.level = LevelChannel
	return a
}

func ForThread(instance string, server, category, channel, thread uint64) Address {
	a := ForChannel(instance, server, category, channel)
	a.Thread = thread
	a.level = LevelThread
	return a
}

func ForMessage(instance string, server, category, channel, thread, message uint64) Address {
	a := ForThread(instance, server, category, channel, thread)
	a.Message = message
	a.level = LevelMessage
	return a
}

// Level reports the narrowest field present.
func (a Address) Level() Level { return a.level }

// Has reports whether the field at level l is present.
func (a Address) Has(l Level) bool { return l > LevelNone && l <= a.level }

func (a Address) IsZero() bool { return a.level == LevelNone }

// WithMessage returns a message-level copy of a. Only Message changes; a
// channel-level address gains Thread 0 on the way down.
func (a Address) WithMessage(id uint64) Address {
	if a.level < LevelChannel {
		panic(fmt.Sprintf("address: WithMessage on %s-level address %s", a.level, a))
	}
	out := a
	out.Message = id
	out.level = LevelMessage
	return out
}

// Truncate returns the prefix of a down to level l. Fields below l are
// zeroed. Truncating below the current level is the caller's responsibility
// to check; Truncate never adds fields.
func (a Address) Truncate(l Level) Address {
	if l >= a.level {
		return a
	}
	out := Address{level: l}
	if l >= LevelInstance {
		out.Service = a.Service
		out.Instance = a.Instance
	}
	if l >= LevelServer {
		out.Server = a.Server
	}
	if l >= LevelCategory {
		out.Category = a.Category
	}
	if l >= LevelChannel {
		out.Channel = a.Channel
	}
	if l >= LevelThread {
		out.Thread = a.Thread
	}
	return out
}

// Contains reports whether other lies at or under a: every field present in
// a is present in other with the same value. For a message-level address
// this is exact equality.
func (a Address) Contains(other Address) bool {
	if a.level == LevelNone {
		return true
	}
	if other.level < a.level {
		return false
	}
	return other.Truncate(a.level) == a
}

func (a Address) String() string {
	if a.level == LevelNone {
		return ""
	}
	var b strings.Builder
	b.WriteString(string(a.Service))
	b.WriteByte(':')
	b.WriteString(a.Instance)
	for l, v := range []uint64{a.Server, a.Category, a.Channel, a.Thread, a.Message} {
		if Level(l)+LevelServer > a.level {
			break
		}
		b.WriteByte(':')
		b.WriteString(strconv.FormatUint(v, 10))
	}
	return b.String()
}

// Parse reverses String.
func Parse(s string) (Address, error) {
	if s == "" {
		return Address{}, nil
	}
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 7 {
		return Address{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	if ServiceKind(parts[0]) != ServiceDiscord || parts[1] == "" {
		return Address{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	a := ForInstance(parts[1])
	ids := make([]uint64, 0, 5)
	for _, p := range parts[2:] {
		v, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return Address{}, fmt.Errorf("%w: %q: %v", ErrMalformed, s, err)
		}
		ids = append(ids, v)
	}
	fields := []*uint64{&a.Server, &a.Category, &a.Channel, &a.Thread, &a.Message}
	for i, v := range ids {
		*fields[i] = v
	}
	a.level = LevelInstance + Level(len(ids))
	return a, nil
}

// ParseSnowflake converts a Discord snowflake id string to its numeric form.
// The empty string maps to 0.
func ParseSnowflake(id string) (uint64, error) {
	if id == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid snowflake %q: %w", id, err)
	}
	return v, nil
}
