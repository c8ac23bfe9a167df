package identity

import (
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelpush/modelpush/internal/workspace"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeMappingStore struct {
	mappings map[string]string
	saved    map[string]string
	setErr   error
}

func newFakeMappingStore() *fakeMappingStore {
	return &fakeMappingStore{
		mappings: map[string]string{},
		saved:    map[string]string{},
	}
}

func (f *fakeMappingStore) GetMapping(workspaceID, logicalID string) (string, bool) {
	id, ok := f.mappings[workspaceID+"/"+logicalID]
	return id, ok
}

func (f *fakeMappingStore) SetMapping(workspaceID, logicalID, itemID string) error {
	if f.setErr != nil {
		return f.setErr
	}

	f.saved[workspaceID+"/"+logicalID] = itemID

	return nil
}

const (
	testLogicalID = "11223344-5566-7788-99aa-bbccddeeff00"
	// testDerivedID is testLogicalID with its byte order reversed.
	testDerivedID = "00ffeedd-ccbb-aa99-8877-665544332211"
)

func TestResolve_CachedMappingConfirmedByListing(t *testing.T) {
	store := newFakeMappingStore()
	store.mappings["ws-1/"+testLogicalID] = "item-77"

	m := &Mapper{Store: store, Logger: testLogger()}

	itemID, ok := m.Resolve("ws-1", testLogicalID, []workspace.Item{
		{ID: "other-item"},
		{ID: "ITEM-77"}, // listing casing wins
	})

	require.True(t, ok)
	assert.Equal(t, "ITEM-77", itemID)
	assert.Equal(t, "ITEM-77", store.saved["ws-1/"+testLogicalID], "hit must be written back")
}

func TestResolve_StaleCachedMappingIsNotReturned(t *testing.T) {
	store := newFakeMappingStore()
	store.mappings["ws-1/"+testLogicalID] = "deleted-item"

	m := &Mapper{Store: store, Logger: testLogger()}

	itemID, ok := m.Resolve("ws-1", testLogicalID, []workspace.Item{
		{ID: "unrelated-item"},
	})

	assert.False(t, ok)
	assert.Empty(t, itemID)
	assert.Empty(t, store.saved)
}

func TestResolve_StaleCacheFallsThroughToDerivation(t *testing.T) {
	store := newFakeMappingStore()
	store.mappings["ws-1/"+testLogicalID] = "deleted-item"

	m := &Mapper{Store: store, Logger: testLogger()}

	itemID, ok := m.Resolve("ws-1", testLogicalID, []workspace.Item{
		{ID: testDerivedID},
	})

	require.True(t, ok)
	assert.Equal(t, testDerivedID, itemID)
	assert.Equal(t, testDerivedID, store.saved["ws-1/"+testLogicalID], "cache must be repaired")
}

func TestResolve_DerivedCandidateConfirmedByListing(t *testing.T) {
	store := newFakeMappingStore()

	m := &Mapper{Store: store, Logger: testLogger()}

	itemID, ok := m.Resolve("ws-1", testLogicalID, []workspace.Item{
		{ID: "00FFEEDD-CCBB-AA99-8877-665544332211"}, // case differs from derivation
	})

	require.True(t, ok)
	assert.Equal(t, "00FFEEDD-CCBB-AA99-8877-665544332211", itemID)
	assert.Equal(t, itemID, store.saved["ws-1/"+testLogicalID])
}

func TestResolve_DerivedCandidateAbsentFromListing(t *testing.T) {
	store := newFakeMappingStore()

	m := &Mapper{Store: store, Logger: testLogger()}

	itemID, ok := m.Resolve("ws-1", testLogicalID, []workspace.Item{
		{ID: "some-item"},
		{ID: "another-item"},
	})

	assert.False(t, ok)
	assert.Empty(t, itemID)
	assert.Empty(t, store.saved, "unconfirmed candidates must not be cached")
}

func TestResolve_EmptyLogicalID(t *testing.T) {
	m := &Mapper{Store: newFakeMappingStore(), Logger: testLogger()}

	_, ok := m.Resolve("ws-1", "", []workspace.Item{{ID: "item-1"}})
	assert.False(t, ok)
}

func TestResolve_NonUUIDLogicalID(t *testing.T) {
	m := &Mapper{Store: newFakeMappingStore(), Logger: testLogger()}

	_, ok := m.Resolve("ws-1", "not-a-uuid", []workspace.Item{{ID: "item-1"}})
	assert.False(t, ok)
}

func TestSeed(t *testing.T) {
	store := newFakeMappingStore()
	m := &Mapper{Store: store, Logger: testLogger()}

	m.Seed("ws-1", testLogicalID, "item-9")
	assert.Equal(t, "item-9", store.saved["ws-1/"+testLogicalID])
}

func TestSeed_IgnoresEmptyComponents(t *testing.T) {
	store := newFakeMappingStore()
	m := &Mapper{Store: store, Logger: testLogger()}

	m.Seed("ws-1", "", "item-9")
	m.Seed("ws-1", testLogicalID, "")
	assert.Empty(t, store.saved)
}

func TestSeed_PersistFailureIsSwallowed(t *testing.T) {
	store := newFakeMappingStore()
	store.setErr = errors.New("disk full")

	m := &Mapper{Store: store, Logger: testLogger()}

	m.Seed("ws-1", testLogicalID, "item-9") // must not panic

	itemID, ok := m.Resolve("ws-1", testLogicalID, []workspace.Item{{ID: testDerivedID}})
	require.True(t, ok, "resolution must survive a failing store")
	assert.Equal(t, testDerivedID, itemID)
}
