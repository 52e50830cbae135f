package registry

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/l1jgo/nety/internal/codec"
	"github.com/l1jgo/nety/internal/core/event"
	"github.com/l1jgo/nety/internal/protocol"
)

var (
	ErrUnregistered = errors.New("registry: type not registered")
	ErrNotEvent     = errors.New("registry: type not registered as network event")
	ErrNotData      = errors.New("registry: type not registered as player data")
)

// Entry holds the type-erased handlers installed for one registered name.
type Entry struct {
	Name string
	typ  reflect.Type

	event       func(bus *event.Bus, data []byte) error
	serverEvent func(bus *event.Bus, from protocol.Player, data []byte) error
	entityEvent func(bus *event.Bus, entity protocol.NetworkEntity, from *protocol.Player, data []byte) error
	playerData  func(data []byte) error
}

func (e *Entry) IsEvent() bool      { return e.event != nil }
func (e *Entry) IsPlayerData() bool { return e.playerData != nil }

// PublishEvent decodes p and emits it as event.Event[T].
func (e *Entry) PublishEvent(bus *event.Bus, p protocol.Payload) error {
	if e.event == nil {
		return fmt.Errorf("%w: %s", ErrNotEvent, e.Name)
	}
	return e.event(bus, p.Data)
}

// PublishServerEvent decodes p and emits it as event.ServerEvent[T].
func (e *Entry) PublishServerEvent(bus *event.Bus, from protocol.Player, p protocol.Payload) error {
	if e.serverEvent == nil {
		return fmt.Errorf("%w: %s", ErrNotEvent, e.Name)
	}
	return e.serverEvent(bus, from, p.Data)
}

// PublishEntityEvent decodes p and emits it as event.EntityEvent[T].
func (e *Entry) PublishEntityEvent(bus *event.Bus, entity protocol.NetworkEntity, from *protocol.Player, p protocol.Payload) error {
	if e.entityEvent == nil {
		return fmt.Errorf("%w: %s", ErrNotEvent, e.Name)
	}
	return e.entityEvent(bus, entity, from, p.Data)
}

// ValidatePlayerData checks that p decodes as the registered data type.
func (e *Entry) ValidatePlayerData(p protocol.Payload) error {
	if e.playerData == nil {
		return fmt.Errorf("%w: %s", ErrNotData, e.Name)
	}
	return e.playerData(p.Data)
}

// Registry maps logical type names to handlers. Registration happens during
// setup; lookups happen on the tick goroutine, so no locking is done.
type Registry struct {
	codec   codec.Codec
	entries map[string]*Entry
	names   map[reflect.Type]string
}

func New(c codec.Codec) *Registry {
	return &Registry{
		codec:   c,
		entries: make(map[string]*Entry),
		names:   make(map[reflect.Type]string),
	}
}

func (r *Registry) Codec() codec.Codec { return r.codec }

// TypeName is the default wire name for T: its package path and name.
func TypeName[T any]() string {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// entry returns the entry for name, creating it. Binding one name to two
// types, or one type to two names, is a setup bug and panics.
func (r *Registry) entry(name string, t reflect.Type) *Entry {
	if prev, ok := r.names[t]; ok && prev != name {
		panic(fmt.Sprintf("registry: type %s already registered as %q", t, prev))
	}
	e, ok := r.entries[name]
	if ok {
		if e.typ != t {
			panic(fmt.Sprintf("registry: name %q already bound to %s", name, e.typ))
		}
		return e
	}
	e = &Entry{Name: name, typ: t}
	r.entries[name] = e
	r.names[t] = name
	return e
}

// RegisterEvent makes T usable as a network event and as an entity event.
// Registering twice is a no-op.
func RegisterEvent[T any](r *Registry) {
	RegisterEventAs[T](r, TypeName[T]())
}

// RegisterEventAs is RegisterEvent with an explicit wire name.
func RegisterEventAs[T any](r *Registry, name string) {
	e := r.entry(name, reflect.TypeOf((*T)(nil)).Elem())
	if e.event != nil {
		return
	}
	e.event = func(bus *event.Bus, data []byte) error {
		v, err := decode[T](r.codec, data)
		if err != nil {
			return err
		}
		event.Emit(bus, event.Event[T]{Data: v})
		return nil
	}
	e.serverEvent = func(bus *event.Bus, from protocol.Player, data []byte) error {
		v, err := decode[T](r.codec, data)
		if err != nil {
			return err
		}
		event.Emit(bus, event.ServerEvent[T]{From: from, Data: v})
		return nil
	}
	e.entityEvent = func(bus *event.Bus, entity protocol.NetworkEntity, from *protocol.Player, data []byte) error {
		v, err := decode[T](r.codec, data)
		if err != nil {
			return err
		}
		event.Emit(bus, event.EntityEvent[T]{Entity: entity, From: from, Data: v})
		return nil
	}
}

// RegisterPlayerData makes T attachable to players.
func RegisterPlayerData[T any](r *Registry) {
	RegisterPlayerDataAs[T](r, TypeName[T]())
}

// RegisterPlayerDataAs is RegisterPlayerData with an explicit wire name.
func RegisterPlayerDataAs[T any](r *Registry, name string) {
	e := r.entry(name, reflect.TypeOf((*T)(nil)).Elem())
	if e.playerData != nil {
		return
	}
	e.playerData = func(data []byte) error {
		_, err := decode[T](r.codec, data)
		return err
	}
}

// Lookup resolves the entry for a received payload.
func (r *Registry) Lookup(p protocol.Payload) (*Entry, bool) {
	e, ok := r.entries[p.Type]
	return e, ok
}

// EntryFor returns the entry T was registered under.
func EntryFor[T any](r *Registry) (*Entry, bool) {
	name, ok := r.names[reflect.TypeOf((*T)(nil)).Elem()]
	if !ok {
		return nil, false
	}
	return r.entries[name], true
}

// Pack encodes a registered value into a payload.
func (r *Registry) Pack(v any) (protocol.Payload, error) {
	t := reflect.TypeOf(v)
	name, ok := r.names[t]
	if !ok {
		return protocol.Payload{}, fmt.Errorf("%w: %v", ErrUnregistered, t)
	}
	data, err := r.codec.Marshal(v)
	if err != nil {
		return protocol.Payload{}, fmt.Errorf("pack %s: %w", name, err)
	}
	return protocol.Payload{Type: name, Data: data}, nil
}

// Unpack decodes p as T. The payload's name must match T's registration.
func Unpack[T any](r *Registry, p protocol.Payload) (T, error) {
	var zero T
	e, ok := EntryFor[T](r)
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrUnregistered, TypeName[T]())
	}
	if e.Name != p.Type {
		return zero, fmt.Errorf("unpack %s: payload is %s", e.Name, p.Type)
	}
	return decode[T](r.codec, p.Data)
}

func decode[T any](c codec.Codec, data []byte) (T, error) {
	var v T
	if err := c.Unmarshal(data, &v); err != nil {
		return v, err
	}
	return v, nil
}
