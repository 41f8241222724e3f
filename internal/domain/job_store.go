package domain

import (
	"context"
)

// ChangeType is the kind of a change delivered by a subscription.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeRemoved  ChangeType = "removed"
)

// Change is a single document change. Listing is nil for removals.
type Change struct {
	Type    ChangeType
	ID      string
	Listing *JobListing
}

// UpdateKind is the kind of an atomic field operation.
type UpdateKind string

const (
	UpdateSet         UpdateKind = "set"
	UpdateArrayUnion  UpdateKind = "array-union"
	UpdateArrayRemove UpdateKind = "array-remove"
	UpdateIncrement   UpdateKind = "increment"
)

// UpdateOp is an operation on a dotted field path of a document.
type UpdateOp struct {
	Kind  UpdateKind
	Field string
	Value any
}

func Set(field string, v any) UpdateOp         { return UpdateOp{Kind: UpdateSet, Field: field, Value: v} }
func ArrayUnion(field string, v any) UpdateOp  { return UpdateOp{Kind: UpdateArrayUnion, Field: field, Value: v} }
func ArrayRemove(field string, v any) UpdateOp { return UpdateOp{Kind: UpdateArrayRemove, Field: field, Value: v} }
func Increment(field string, n int) UpdateOp   { return UpdateOp{Kind: UpdateIncrement, Field: field, Value: n} }

// JobStore is the remote document store holding job postings.
type JobStore interface {
	Query(ctx context.Context, q Query) (Page, error)
	Get(ctx context.Context, id string) (*JobListing, error)
	Create(ctx context.Context, listing *JobListing) error
	// Update applies all ops to one document atomically.
	Update(ctx context.Context, id string, ops ...UpdateOp) error
	// Subscribe delivers the current window as one batch of added changes,
	// then every later change to the collection. The returned function
	// cancels the subscription; no callback runs after it returns.
	Subscribe(ctx context.Context, w Window, onChanges func([]Change), onError func(error)) (func(), error)
}
