package repository

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/permit-deadline-api/internal/models"
)

func TestDatasetStoreCreateGetDelete(t *testing.T) {
	store := NewDatasetStore(time.Hour)
	session := store.Create(&models.Dataset{Columns: []string{models.ColumnExpirationDate}})
	require.NotEmpty(t, session.Handle)

	got, err := store.Get(session.Handle)
	require.NoError(t, err)
	assert.Same(t, session, got)
	assert.Equal(t, 1, store.Count())

	var evicted string
	store.OnEvicted(func(handle string) { evicted = handle })
	store.Delete(session.Handle)
	assert.Equal(t, session.Handle, evicted)

	_, err = store.Get(session.Handle)
	assert.ErrorIs(t, err, ErrDatasetNotFound)
}

func TestDatasetStoreCountSkipsExpiredSessions(t *testing.T) {
	store := NewDatasetStore(20 * time.Millisecond)
	session := store.Create(&models.Dataset{})
	assert.Equal(t, 1, store.Count())

	// The janitor runs once a minute at most, so the entry is still stored.
	require.Eventually(t, func() bool { return store.Count() == 0 }, time.Second, 5*time.Millisecond)
	_, err := store.Get(session.Handle)
	assert.ErrorIs(t, err, ErrDatasetNotFound)
}

func TestDatasetSessionMutateVersioning(t *testing.T) {
	store := NewDatasetStore(time.Hour)
	session := store.Create(&models.Dataset{})

	version, err := session.Mutate(func(ds *models.Dataset) error {
		ds.Records = append(ds.Records, models.Record{StaffCode: "1"})
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), version)

	version, err = session.Mutate(func(ds *models.Dataset) error { return errors.New("invalid") })
	require.Error(t, err)
	assert.Equal(t, uint64(1), version)

	snapshot, v := session.Snapshot()
	assert.Equal(t, uint64(1), v)
	snapshot.Records[0].StaffCode = "changed"
	require.NoError(t, session.Read(func(ds *models.Dataset) error {
		assert.Equal(t, "1", ds.Records[0].StaffCode)
		return nil
	}))
}

func TestDatasetSessionSerializesMutations(t *testing.T) {
	session := NewDatasetStore(time.Hour).Create(&models.Dataset{})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = session.Mutate(func(ds *models.Dataset) error {
				ds.Records = append(ds.Records, models.Record{})
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(50), session.Version())
	require.NoError(t, session.Read(func(ds *models.Dataset) error {
		assert.Len(t, ds.Records, 50)
		return nil
	}))
}
