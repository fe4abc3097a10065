package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecopredict/internal/ecosystem"
	"ecopredict/internal/ml"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestLoadModel_AbsentReturnsNil(t *testing.T) {
	store := newTestStore(t)

	art, err := store.LoadModel()
	require.NoError(t, err)
	assert.Nil(t, art)
}

func TestSaveLoadModel_RoundTrip(t *testing.T) {
	store := newTestStore(t)

	want := &ml.Artifact{
		Forest: &ml.RandomForest{
			Config: ml.DefaultForestConfig(),
			Trees: []ml.Tree{
				{Nodes: []ml.Node{{Feature: -1, Proba: []float64{0.25, 0.75}}}},
			},
			Importance: []float64{0.5, 0.5},
		},
		Scaler: &ml.StandardScaler{
			Mean:  []float64{1, 2},
			Scale: []float64{3, 4},
		},
		Version:   ml.TrainedVersion,
		TrainedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.SaveModel(want))

	got, err := store.LoadModel()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.Version, got.Version)
	assert.True(t, want.TrainedAt.Equal(got.TrainedAt))
	assert.Equal(t, want.Scaler, got.Scaler)
	assert.Equal(t, want.Forest.Trees, got.Forest.Trees)
	assert.Equal(t, want.Forest.Importance, got.Forest.Importance)
}

func TestSaveModel_Overwrites(t *testing.T) {
	store := newTestStore(t)

	first := &ml.Artifact{Version: "1.0", Scaler: &ml.StandardScaler{Mean: []float64{1}, Scale: []float64{1}}}
	second := &ml.Artifact{Version: "1.0", Scaler: &ml.StandardScaler{Mean: []float64{9}, Scale: []float64{2}}}

	require.NoError(t, store.SaveModel(first))
	require.NoError(t, store.SaveModel(second))

	got, err := store.LoadModel()
	require.NoError(t, err)
	assert.Equal(t, second.Scaler, got.Scaler)
}

func TestSnapshots_AppendAndRecent(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 10; i++ {
		snap := ecosystem.Snapshot{
			Step:       i,
			Plants:     float64(50 + i),
			Herbivores: float64(10 + i),
			Carnivores: 5,
		}
		require.NoError(t, store.AppendSnapshot(snap))
	}

	recent, err := store.RecentSnapshots(4)
	require.NoError(t, err)
	require.Len(t, recent, 4)

	// Oldest first, covering the newest 4 entries.
	for i, snap := range recent {
		assert.Equal(t, 6+i, snap.Step)
	}

	count, err := store.SnapshotCount()
	require.NoError(t, err)
	assert.Equal(t, 10, count)
}

func TestRecentSnapshots_LimitLargerThanHistory(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.AppendSnapshot(ecosystem.Snapshot{Step: 1, Plants: 10}))
	require.NoError(t, store.AppendSnapshot(ecosystem.Snapshot{Step: 2, Plants: 11}))

	recent, err := store.RecentSnapshots(100)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, 1, recent[0].Step)
	assert.Equal(t, 2, recent[1].Step)
}

func TestRecentSnapshots_ZeroLimit(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.AppendSnapshot(ecosystem.Snapshot{Step: 1}))

	recent, err := store.RecentSnapshots(0)
	require.NoError(t, err)
	assert.Empty(t, recent)
}
