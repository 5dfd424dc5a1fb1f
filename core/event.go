// Package core provides the fundamental building blocks of the argil data layer.
// This file defines the global event dispatcher. Models emit an event after
// every successful operation; listeners run asynchronously and their outcome
// never affects the operation that emitted the event.
package core

import "sync"

// Event identifies the kind of completed operation being broadcast.
type Event string

const (
	EventInsert Event = "insert"
	EventUpdate Event = "update"
	EventDelete Event = "delete"
	EventFind   Event = "find"
)

// InsertPayload is emitted after a successful Create, carrying the refreshed record.
type InsertPayload struct {
	Schema *Schema
	Record Record
}

// UpdatePayload is emitted after a successful update-shaped write, including
// soft deletes and restores.
type UpdatePayload struct {
	Schema    *Schema
	Condition *Condition
	Changes   Changes
	Modified  int64
}

// DeletePayload is emitted after a successful physical delete.
type DeletePayload struct {
	Schema    *Schema
	Condition *Condition
	Deleted   int64
}

// FindPayload is emitted after a successful read.
type FindPayload struct {
	Schema  *Schema
	Where   *Where
	Records []Record
}

// Listener receives an event payload. Listeners run on their own goroutine.
type Listener func(payload any)

var (
	listenerMutex sync.RWMutex
	listeners     = map[Event][]Listener{}
)

// On registers a listener for an event across every model.
//
// Example:
//
//	core.On(core.EventInsert, func(payload any) {
//		insert := payload.(core.InsertPayload)
//		audit.Log(insert.Schema.Collection, insert.Record)
//	})
func On(event Event, listener Listener) {
	listenerMutex.Lock()
	defer listenerMutex.Unlock()
	listeners[event] = append(listeners[event], listener)
}

// ResetListeners clears every registered listener. Intended for tests.
func ResetListeners() {
	listenerMutex.Lock()
	defer listenerMutex.Unlock()
	listeners = map[Event][]Listener{}
}

// Emit broadcasts an event to every listener registered for it. Each listener
// runs on its own goroutine; Emit never blocks the caller.
func Emit(event Event, payload any) {
	listenerMutex.RLock()
	registered := listeners[event]
	listenerMutex.RUnlock()
	for _, listener := range registered {
		go listener(payload)
	}
}
