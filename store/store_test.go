package store

import (
	"context"
	"fmt"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pevans/newsdesk/remote"
)

// testRecord is a minimal record shape for store tests.
type testRecord struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

func (r testRecord) RecordID() string {
	return r.ID
}

// fakeAPI is an in-memory stand-in for the content API. It enforces the
// same version-token contract: a write must present the current token or
// it fails with a conflict.
type fakeAPI struct {
	content      []byte
	version      int // 0 means the object does not exist
	credential   bool
	gets, puts   int
	lastExpected string // expectedVersion presented on the most recent put
	failPutWith  *remote.Error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{credential: true}
}

func (f *fakeAPI) token() string {
	return fmt.Sprintf("sha-%d", f.version)
}

func (f *fakeAPI) seed(t *testing.T, records []testRecord) {
	t.Helper()
	content, err := json.MarshalIndent(records, "", "  ")
	require.NoError(t, err)
	f.content = content
	f.version++
}

func (f *fakeAPI) GetObject(_ context.Context, path string) (*remote.Object, error) {
	f.gets++
	if f.version == 0 {
		return nil, &remote.Error{Kind: remote.KindNotFound, Status: 404, Path: path, Message: "Not Found"}
	}
	return &remote.Object{Content: f.content, Version: f.token()}, nil
}

func (f *fakeAPI) PutObject(_ context.Context, path string, content []byte, expectedVersion, _ string) (string, error) {
	f.puts++
	f.lastExpected = expectedVersion
	if f.failPutWith != nil {
		return "", f.failPutWith
	}
	current := ""
	if f.version > 0 {
		current = f.token()
	}
	if expectedVersion != current {
		return "", &remote.Error{Kind: remote.KindConflict, Status: 409, Path: path, Message: "version mismatch"}
	}
	f.content = content
	f.version++
	return f.token(), nil
}

func (f *fakeAPI) HasCredential() bool {
	return f.credential
}

func TestLoad_AbsentObjectSeedsEmptyCollection(t *testing.T) {
	api := newFakeAPI()
	s := New[testRecord](api, "data/test.json")

	records, err := s.Load(context.Background())

	require.NoError(t, err, "absent remote object should not be an error")
	assert.Empty(t, records)
	assert.Empty(t, s.Token())
}

func TestLoad_DecodesCollectionAndRecordsToken(t *testing.T) {
	api := newFakeAPI()
	api.seed(t, []testRecord{{ID: "1", Label: "one"}, {ID: "2", Label: "two"}})

	s := New[testRecord](api, "data/test.json")
	records, err := s.Load(context.Background())

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "one", records[0].Label)
	assert.Equal(t, "sha-1", s.Token())
}

func TestLoad_MalformedPayload(t *testing.T) {
	api := newFakeAPI()
	api.content = []byte(`{"not":"a collection"}`)
	api.version = 1

	s := New[testRecord](api, "data/test.json")
	_, err := s.Load(context.Background())

	require.Error(t, err)
	assert.Equal(t, remote.KindMalformed, remote.KindOf(err))
}

func TestLoad_SurfacesAuthError(t *testing.T) {
	s := New[testRecord](&errorAPI{kind: remote.KindUnauthorized}, "data/test.json")
	_, err := s.Load(context.Background())

	require.Error(t, err)
	assert.Equal(t, remote.KindUnauthorized, remote.KindOf(err))
	assert.Empty(t, s.Records(), "nothing should be loaded after a failure")
}

// errorAPI fails every call with the configured kind.
type errorAPI struct {
	kind remote.Kind
}

func (e *errorAPI) GetObject(context.Context, string) (*remote.Object, error) {
	return nil, &remote.Error{Kind: e.kind, Message: "boom"}
}

func (e *errorAPI) PutObject(context.Context, string, []byte, string, string) (string, error) {
	return "", &remote.Error{Kind: e.kind, Message: "boom"}
}

func (e *errorAPI) HasCredential() bool {
	return true
}

func TestApplyOptimistic_IsSynchronous(t *testing.T) {
	api := newFakeAPI()
	s := New[testRecord](api, "data/test.json")
	_, err := s.Load(context.Background())
	require.NoError(t, err)

	records := s.ApplyOptimistic(func(rs []testRecord) []testRecord {
		return append(rs, testRecord{ID: "1", Label: "added"})
	})

	// The returned collection and the stored one both reflect the change
	// immediately; no network call has happened.
	require.Len(t, records, 1)
	require.Len(t, s.Records(), 1)
	assert.Zero(t, api.puts)
}

func TestPersist_AfterLoadAdvancesToken(t *testing.T) {
	api := newFakeAPI()
	api.seed(t, []testRecord{{ID: "1"}})

	s := New[testRecord](api, "data/test.json")
	_, err := s.Load(context.Background())
	require.NoError(t, err)
	before := s.Token()

	token, err := s.Persist(context.Background(), "update")

	require.NoError(t, err)
	assert.NotEqual(t, before, token, "version token must change on every write")
	assert.Equal(t, token, s.Token())
}

func TestPersist_SequentialWritesChainTokens(t *testing.T) {
	api := newFakeAPI()
	api.seed(t, []testRecord{{ID: "1"}})

	s := New[testRecord](api, "data/test.json")
	_, err := s.Load(context.Background())
	require.NoError(t, err)

	first, err := s.Persist(context.Background(), "first")
	require.NoError(t, err)

	_, err = s.Persist(context.Background(), "second")
	require.NoError(t, err)

	// The second write must present the token the first write returned,
	// not the one observed at load time.
	assert.Equal(t, first, api.lastExpected)
}

func TestPersist_StaleTokenConflictLeavesCollectionUnchanged(t *testing.T) {
	api := newFakeAPI()
	api.seed(t, []testRecord{{ID: "1", Label: "original"}})

	s := New[testRecord](api, "data/test.json")
	_, err := s.Load(context.Background())
	require.NoError(t, err)

	// Another writer moves the remote object forward.
	api.seed(t, []testRecord{{ID: "1", Label: "other writer"}})

	s.ApplyOptimistic(func(rs []testRecord) []testRecord {
		rs[0].Label = "mine"
		return rs
	})

	_, err = s.Persist(context.Background(), "stale write")

	require.Error(t, err)
	assert.Equal(t, remote.KindConflict, remote.KindOf(err))
	// The store itself does not touch the collection; rollback is the
	// caller's decision.
	records := s.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "mine", records[0].Label)
}

func TestPersist_ResolvesTokenBeforeFirstWrite(t *testing.T) {
	api := newFakeAPI()
	api.seed(t, []testRecord{{ID: "1"}})

	// No Load: the store has never observed a token, so persist must
	// read one first rather than blindly overwrite.
	s := New[testRecord](api, "data/test.json")
	s.ApplyOptimistic(func(rs []testRecord) []testRecord {
		return append(rs, testRecord{ID: "2"})
	})

	_, err := s.Persist(context.Background(), "first write")

	require.NoError(t, err)
	assert.Equal(t, 1, api.gets, "persist should read-before-write")
	assert.Equal(t, "sha-1", api.lastExpected)
}

func TestPersist_CreatesKnownAbsentObject(t *testing.T) {
	api := newFakeAPI()
	s := New[testRecord](api, "data/test.json")

	_, err := s.Load(context.Background())
	require.NoError(t, err)
	gets := api.gets

	s.ApplyOptimistic(func(rs []testRecord) []testRecord {
		return append(rs, testRecord{ID: "1"})
	})
	_, err = s.Persist(context.Background(), "create")

	require.NoError(t, err)
	assert.Equal(t, gets, api.gets, "known-absent object needs no read-before-write")
	assert.Empty(t, api.lastExpected, "create must not present a version token")
}

func TestPersist_MissingCredentialRejectedBeforeNetwork(t *testing.T) {
	api := newFakeAPI()
	api.credential = false

	s := New[testRecord](api, "data/test.json")
	_, err := s.Persist(context.Background(), "write")

	require.Error(t, err)
	assert.Equal(t, remote.KindCredentialMissing, remote.KindOf(err))
	assert.Zero(t, api.gets)
	assert.Zero(t, api.puts)
}

func TestApply_MissingCredentialLeavesCollectionUnchanged(t *testing.T) {
	api := newFakeAPI()
	api.seed(t, []testRecord{{ID: "42", Label: "article"}})

	s := New[testRecord](api, "data/test.json")
	_, err := s.Load(context.Background())
	require.NoError(t, err)

	api.credential = false
	gets := api.gets

	records, err := s.Apply(context.Background(), KeepOnFailure, func(rs []testRecord) []testRecord {
		rs[0].Label = "rated"
		return rs
	}, "rate")

	require.Error(t, err)
	assert.Equal(t, remote.KindCredentialMissing, remote.KindOf(err))
	assert.Equal(t, gets, api.gets, "no network call after the credential check")
	assert.Zero(t, api.puts)
	require.Len(t, records, 1)
	assert.Equal(t, "article", records[0].Label, "mutation must not be applied")
}

func TestApply_RevertOnFailureRestoresSnapshot(t *testing.T) {
	api := newFakeAPI()
	api.seed(t, []testRecord{{ID: "1"}})

	s := New[testRecord](api, "data/test.json")
	_, err := s.Load(context.Background())
	require.NoError(t, err)

	api.failPutWith = &remote.Error{Kind: remote.KindTransient, Message: "boom"}

	records, err := s.Apply(context.Background(), RevertOnFailure, func(rs []testRecord) []testRecord {
		return append(rs, testRecord{ID: "2"})
	}, "add")

	require.Error(t, err)
	assert.Len(t, records, 1, "addition should be reverted")
	assert.Len(t, s.Records(), 1)
}

func TestApply_KeepOnFailureLeavesChangeApplied(t *testing.T) {
	api := newFakeAPI()
	api.seed(t, []testRecord{{ID: "1", Label: "unrated"}})

	s := New[testRecord](api, "data/test.json")
	_, err := s.Load(context.Background())
	require.NoError(t, err)

	api.failPutWith = &remote.Error{Kind: remote.KindTransient, Message: "boom"}

	records, err := s.Apply(context.Background(), KeepOnFailure, func(rs []testRecord) []testRecord {
		rs[0].Label = "rated"
		return rs
	}, "rate")

	require.Error(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "rated", records[0].Label, "rating stays applied on failure")
}

func TestApply_SuccessPersistsMutation(t *testing.T) {
	api := newFakeAPI()
	api.seed(t, nil)

	s := New[testRecord](api, "data/test.json")
	_, err := s.Load(context.Background())
	require.NoError(t, err)

	records, err := s.Apply(context.Background(), RevertOnFailure, func(rs []testRecord) []testRecord {
		return append(rs, testRecord{ID: "1", Label: "new"})
	}, "add")

	require.NoError(t, err)
	require.Len(t, records, 1)

	// The remote copy holds the full updated collection.
	var persisted []testRecord
	require.NoError(t, json.Unmarshal(api.content, &persisted))
	require.Len(t, persisted, 1)
	assert.Equal(t, "new", persisted[0].Label)
}

func TestEncode_RoundTrip(t *testing.T) {
	original := []testRecord{{ID: "1", Label: "a"}, {ID: "2", Label: "b"}}

	content, err := Encode(original)
	require.NoError(t, err)

	var decoded []testRecord
	require.NoError(t, json.Unmarshal(content, &decoded))
	assert.Equal(t, original, decoded)
}

func TestEncode_NilCollectionIsEmptyArray(t *testing.T) {
	content, err := Encode[testRecord](nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(content))
}

func TestEncode_IsDeterministic(t *testing.T) {
	records := []testRecord{{ID: "1", Label: "a"}}

	first, err := Encode(records)
	require.NoError(t, err)
	second, err := Encode(records)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
