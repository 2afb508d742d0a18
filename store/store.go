// Package store keeps an in-memory ordered collection of records
// synchronized with a single remote JSON object through optimistic
// concurrency. Mutations land locally first so the caller can re-render
// immediately; each one then attempts a conditional write guarded by the
// version token observed at the last read.
package store

import (
	"context"
	"slices"

	json "github.com/goccy/go-json"

	"github.com/pevans/newsdesk/remote"
)

// Record is any JSON-serializable value with a stable identifier. The
// store never inspects a record beyond its identifier.
type Record interface {
	RecordID() string
}

// Mutation computes a new collection from the current one. It must be
// pure: no I/O, no retained references to its argument.
type Mutation[R Record] func([]R) []R

// Policy decides what happens to an optimistic change when its persist
// fails.
type Policy int

const (
	// RevertOnFailure restores the pre-mutation snapshot when the write
	// fails. Used for additions and deletions.
	RevertOnFailure Policy = iota
	// KeepOnFailure leaves the optimistic change applied and only
	// surfaces the error. Used for ratings and discards.
	KeepOnFailure
)

// ObjectAPI is the slice of the remote client the store depends on.
type ObjectAPI interface {
	GetObject(ctx context.Context, path string) (*remote.Object, error)
	PutObject(ctx context.Context, path string, content []byte, expectedVersion, message string) (string, error)
	HasCredential() bool
}

// Store mirrors one collection to one remote object.
type Store[R Record] struct {
	api  ObjectAPI
	path string

	records []R
	token   string // version token from the last successful read or write
	loaded  bool
	absent  bool // remote object known not to exist; persist creates it
}

// New creates a store for the remote object at path. Nothing is loaded
// until Load is called.
func New[R Record](api ObjectAPI, path string) *Store[R] {
	return &Store[R]{
		api:  api,
		path: path,
	}
}

// Path returns the remote object path backing this store.
func (s *Store[R]) Path() string {
	return s.path
}

// Records returns a copy of the current collection.
func (s *Store[R]) Records() []R {
	if s.records == nil {
		return []R{}
	}
	return slices.Clone(s.records)
}

// Token returns the last-observed version token. Empty until a load or
// persist has succeeded.
func (s *Store[R]) Token() string {
	return s.token
}

// Load fetches the remote object and replaces the in-memory collection
// with its decoded contents, recording the observed version token. An
// absent remote object is not an error: the collection starts empty and
// the first persist creates the object. Any other failure leaves the
// store unloaded.
func (s *Store[R]) Load(ctx context.Context) ([]R, error) {
	obj, err := s.api.GetObject(ctx, s.path)
	if err != nil {
		if remote.IsNotFound(err) {
			s.records = []R{}
			s.token = ""
			s.loaded = true
			s.absent = true
			return s.Records(), nil
		}
		return nil, err
	}

	var records []R
	if err := json.Unmarshal(obj.Content, &records); err != nil {
		return nil, &remote.Error{
			Kind:    remote.KindMalformed,
			Path:    s.path,
			Message: "remote object is not a JSON collection: " + err.Error(),
		}
	}

	s.records = records
	s.token = obj.Version
	s.loaded = true
	s.absent = false
	return s.Records(), nil
}

// ApplyOptimistic replaces the in-memory collection with the result of
// the mutation and returns it. This is synchronous: the caller sees the
// change before any network round-trip.
func (s *Store[R]) ApplyOptimistic(mutate Mutation[R]) []R {
	s.records = mutate(s.records)
	return s.Records()
}

// Rollback restores the collection to a prior snapshot. Callers use it
// when a persist fails and their policy is revert-on-failure.
func (s *Store[R]) Rollback(snapshot []R) {
	s.records = slices.Clone(snapshot)
}

// Persist serializes the collection and attempts a conditional write
// using the last-known version token. If no token has been observed and
// the object is not known to be absent, a read resolves one first. On
// success the stored token advances to the one the remote assigned. On
// failure the error is surfaced unchanged — the store never retries or
// merges, and the in-memory collection is left exactly as it was.
func (s *Store[R]) Persist(ctx context.Context, message string) (string, error) {
	if !s.api.HasCredential() {
		return "", remote.MissingCredential(s.path)
	}

	if s.token == "" && !s.absent {
		obj, err := s.api.GetObject(ctx, s.path)
		switch {
		case err == nil:
			s.token = obj.Version
		case remote.IsNotFound(err):
			s.absent = true
		default:
			return "", err
		}
	}

	content, err := Encode(s.records)
	if err != nil {
		return "", &remote.Error{
			Kind:    remote.KindMalformed,
			Path:    s.path,
			Message: "failed to encode collection: " + err.Error(),
		}
	}

	token, err := s.api.PutObject(ctx, s.path, content, s.token, message)
	if err != nil {
		return "", err
	}

	s.token = token
	s.absent = false
	return token, nil
}

// Apply runs one mutation end to end: reject if no credential is held
// (before the collection is touched and before any network call), apply
// optimistically, persist, and reconcile a failed persist according to
// the policy. The returned collection reflects whatever state the policy
// left in place, so it is always safe to render.
func (s *Store[R]) Apply(ctx context.Context, policy Policy, mutate Mutation[R], message string) ([]R, error) {
	if !s.api.HasCredential() {
		return s.Records(), remote.MissingCredential(s.path)
	}

	snapshot := slices.Clone(s.records)
	s.ApplyOptimistic(mutate)

	if _, err := s.Persist(ctx, message); err != nil {
		if policy == RevertOnFailure {
			s.Rollback(snapshot)
		}
		return s.Records(), err
	}

	return s.Records(), nil
}

// Encode serializes a collection to the wire format: pretty-printed JSON
// with stable field order. A nil collection encodes as an empty array so
// the remote object never holds "null".
func Encode[R Record](records []R) ([]byte, error) {
	if records == nil {
		records = []R{}
	}
	return json.MarshalIndent(records, "", "  ")
}
