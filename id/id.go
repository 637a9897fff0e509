// Package id defines the TypeID identifiers of routes, runs and dead letters.
//
// An ID renders as "prefix_suffix" where the suffix is a UUIDv7, so IDs of
// one kind sort by creation time.
package id

import (
	"errors"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix names the entity kind of an ID.
type Prefix string

const (
	PrefixRoute      Prefix = "route"
	PrefixRun        Prefix = "run"
	PrefixDeadLetter Prefix = "dlq"
)

// ErrEmpty is returned when parsing an empty string.
var ErrEmpty = errors.New("id: empty string")

// ID identifies a Conduit entity. The zero value is Nil and encodes as "".
//
//nolint:recvcheck // UnmarshalText needs a pointer receiver.
type ID struct {
	tid typeid.TypeID
	set bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates an ID. It panics on a prefix typeid rejects, which only
// happens for a constant misspelled in code.
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}
	return ID{tid: tid, set: true}
}

func NewRouteID() ID      { return New(PrefixRoute) }
func NewRunID() ID        { return New(PrefixRun) }
func NewDeadLetterID() ID { return New(PrefixDeadLetter) }

// Parse parses any prefixed ID such as "run_01h455vb4pex5vsknk084sn02q".
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, ErrEmpty
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}
	return ID{tid: tid, set: true}, nil
}

// ParseWithPrefix parses s and rejects IDs of another kind.
func ParseWithPrefix(s string, want Prefix) (ID, error) {
	v, err := Parse(s)
	if err != nil {
		return Nil, err
	}
	if got := v.Prefix(); got != want {
		return Nil, fmt.Errorf("id: %q is a %s ID, want %s", s, got, want)
	}
	return v, nil
}

func ParseRouteID(s string) (ID, error)      { return ParseWithPrefix(s, PrefixRoute) }
func ParseRunID(s string) (ID, error)        { return ParseWithPrefix(s, PrefixRun) }
func ParseDeadLetterID(s string) (ID, error) { return ParseWithPrefix(s, PrefixDeadLetter) }

func (i ID) String() string {
	if !i.set {
		return ""
	}
	return i.tid.String()
}

// Prefix returns the entity kind, or "" for Nil.
func (i ID) Prefix() Prefix {
	if !i.set {
		return ""
	}
	return Prefix(i.tid.Prefix())
}

func (i ID) IsNil() bool { return !i.set }

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty text decodes to
// Nil.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil
		return nil
	}
	v, err := Parse(string(data))
	if err != nil {
		return err
	}
	*i = v
	return nil
}
