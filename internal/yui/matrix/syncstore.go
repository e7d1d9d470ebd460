package matrix

// syncstore.go persists the /sync next_batch token so a restarted bot does
// not replay room history and answer mentions it already handled.

import (
	"context"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"

	"github.com/bdobrica/yui/internal/yui/store"
)

var _ mautrix.SyncStore = (*DBSyncStore)(nil)

// DBSyncStore implements mautrix.SyncStore on the SQLite store.
type DBSyncStore struct {
	store *store.Store
}

// NewDBSyncStore returns a DBSyncStore backed by st.
func NewDBSyncStore(st *store.Store) *DBSyncStore {
	return &DBSyncStore{store: st}
}

// SaveFilterID persists the Matrix event-filter ID for the given user.
func (s *DBSyncStore) SaveFilterID(ctx context.Context, userID id.UserID, filterID string) error {
	return s.store.SaveSyncValue(ctx, userID.String(), "filter_id", filterID)
}

// LoadFilterID returns ("", nil) when no filter has been saved yet.
func (s *DBSyncStore) LoadFilterID(ctx context.Context, userID id.UserID) (string, error) {
	return s.store.LoadSyncValue(ctx, userID.String(), "filter_id")
}

// SaveNextBatch persists the opaque next_batch token.
func (s *DBSyncStore) SaveNextBatch(ctx context.Context, userID id.UserID, nextBatchToken string) error {
	return s.store.SaveSyncValue(ctx, userID.String(), "next_batch", nextBatchToken)
}

// LoadNextBatch returns ("", nil) on first run.
func (s *DBSyncStore) LoadNextBatch(ctx context.Context, userID id.UserID) (string, error) {
	return s.store.LoadSyncValue(ctx, userID.String(), "next_batch")
}
