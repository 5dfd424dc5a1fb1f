// Package core provides the fundamental building blocks of the argil data layer.
// This file defines lifecycle hooks that allow custom logic to be executed
// before or after persistence operations.
package core

import "context"

// Hook identifies a fixed point in a mutation's lifecycle.
//
// Hooks run sequentially in registration order. Each hook receives the mutable
// staging record; any mutation it performs is visible to the next hook and to
// the persisted payload. A before-hook error aborts the whole operation with
// nothing written. An after-hook error is surfaced to the caller but does not
// roll back the already committed write.
type Hook string

const (
	// BeforeValidate runs before defaults, coercion, and validation.
	BeforeValidate Hook = "before:validate"
	// AfterValidate runs after the record passed validation.
	AfterValidate Hook = "after:validate"
	// BeforeCreate runs before an insert is issued.
	BeforeCreate Hook = "before:create"
	// BeforeUpdate runs before an update is issued.
	BeforeUpdate Hook = "before:update"
	// BeforeDelete runs before a delete (soft or hard) is issued.
	BeforeDelete Hook = "before:delete"
	// BeforeSave runs before any write (create or update) is issued.
	BeforeSave Hook = "before:save"

	// AfterCreate runs after a successful insert.
	AfterCreate Hook = "after:create"
	// AfterUpdate runs after a successful update.
	AfterUpdate Hook = "after:update"
	// AfterDelete runs after a successful delete.
	AfterDelete Hook = "after:delete"
	// AfterSave runs after any successful write.
	AfterSave Hook = "after:save"
)

// HookFunc is the callback signature for lifecycle hooks.
type HookFunc func(ctx context.Context, record Record) error

// RegisterHook appends a hook function to the given lifecycle slot.
func (s *Schema) RegisterHook(hook Hook, fn HookFunc) {
	s.hooks[hook] = append(s.hooks[hook], fn)
}

// runHooks executes every hook registered for the slot, in order, stopping at
// the first error.
func (s *Schema) runHooks(ctx context.Context, hook Hook, record Record) error {
	for _, fn := range s.hooks[hook] {
		if err := fn(ctx, record); err != nil {
			return err
		}
	}
	return nil
}
