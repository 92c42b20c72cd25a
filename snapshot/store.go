// Package snapshot persists native savedata so sessions can be restored
// later. Two backends exist: SQLiteStore for a single daemon and RedisStore
// for daemons that share state.
package snapshot

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/wippyai/tox-bridge/errors"
	"github.com/wippyai/tox-bridge/native"
)

// ErrNotFound matches errors for unknown snapshot IDs.
var ErrNotFound = &errors.Error{Kind: errors.KindNotFound}

// Snapshot is one persisted savedata blob.
type Snapshot struct {
	CreatedAt    time.Time           `json:"created_at"`
	ID           string              `json:"id"`
	Label        string              `json:"label,omitempty"`
	Savedata     []byte              `json:"savedata"`
	Session      uint32              `json:"session"`
	SavedataType native.SavedataType `json:"savedata_type"`
}

// Options returns creation options that restore this snapshot on top of base.
func (s Snapshot) Options(base native.Options) native.Options {
	base.SavedataType = s.SavedataType
	base.Savedata = s.Savedata
	return base
}

// Store persists snapshots.
type Store interface {
	Put(ctx context.Context, s Snapshot) error
	Get(ctx context.Context, id string) (Snapshot, error)
	// List returns snapshot metadata, oldest first, without savedata.
	List(ctx context.Context) ([]Snapshot, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// New builds a snapshot of savedata taken from session, with a fresh ID.
func New(session uint32, label string, savedata []byte) Snapshot {
	return Snapshot{
		ID:           uuid.NewString(),
		Label:        label,
		Session:      session,
		Savedata:     savedata,
		SavedataType: native.SavedataToxSave,
		CreatedAt:    time.Now().UTC(),
	}
}

func notFound(id string) error {
	return errors.Missing(errors.PhaseStore, "snapshot", id)
}

func validate(s Snapshot) error {
	if _, err := uuid.Parse(s.ID); err != nil {
		return errors.InvalidArgument(errors.PhaseStore, []string{"id"}, s.ID, "snapshot id must be a UUID")
	}
	if !s.SavedataType.Valid() {
		return errors.InvalidEnum(errors.PhaseStore, []string{"savedata_type"}, uint32(s.SavedataType), "SavedataType")
	}
	return nil
}

// nopStore is used when persistence is disabled.
type nopStore struct{}

// Disabled returns a Store that refuses every write and finds nothing.
func Disabled() Store { return nopStore{} }

func (nopStore) Put(context.Context, Snapshot) error {
	return errors.New(errors.PhaseStore, errors.KindClosed).Detail("snapshot persistence disabled").Build()
}
func (nopStore) Get(_ context.Context, id string) (Snapshot, error) { return Snapshot{}, notFound(id) }
func (nopStore) List(context.Context) ([]Snapshot, error)           { return nil, nil }
func (nopStore) Delete(_ context.Context, id string) error          { return notFound(id) }
func (nopStore) Close() error                                       { return nil }
