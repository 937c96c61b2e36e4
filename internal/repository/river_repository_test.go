package repository

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelzeko/water-router/internal/entities"
)

func newTestRepo(t *testing.T) *SQLiteRiverRepository {
	t.Helper()
	repo, err := NewSQLiteRiverRepository(filepath.Join(t.TempDir(), "test-riverdata.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSaveAndQueryLatest(t *testing.T) {
	repo := newTestRepo(t)

	earlier := time.Date(2025, time.April, 18, 6, 0, 0, 0, time.UTC)
	later := earlier.Add(time.Hour)
	data := []entities.RiverData{
		{River: "TEST-DUNAV", Station: "TEST-STATION-1", WaterLevel: "100", Discharge: "300", Tendency: "rising", Timestamp: earlier},
		{River: "TEST-DUNAV", Station: "TEST-STATION-1", WaterLevel: "105", Discharge: "320", Tendency: "rising", Timestamp: later},
		{River: "TEST-DUNAV", Station: "TEST-STATION-2", WaterLevel: "120", WaterChange: "-2", Timestamp: later},
		{River: "TEST-SAVA", Station: "TEST-STATION-3", WaterLevel: "80", WaterTemp: "14.0", Timestamp: later},
	}
	require.NoError(t, repo.SaveRiverData(data))

	latest, err := repo.GetRiverDataByName("TEST-DUNAV")
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "TEST-STATION-1", latest[0].Station)
	assert.Equal(t, "105", latest[0].WaterLevel)
	assert.Equal(t, "320", latest[0].Discharge)
	assert.True(t, latest[0].Timestamp.Equal(later))
	assert.Equal(t, "-2", latest[1].WaterChange)

	rivers, err := repo.GetUniqueRivers()
	require.NoError(t, err)
	assert.Equal(t, []string{"TEST-DUNAV", "TEST-SAVA"}, rivers)

	last, err := repo.GetLastUpdateTime()
	require.NoError(t, err)
	assert.True(t, last.Equal(later), "got %s", last)
}

func TestSaveUpserts(t *testing.T) {
	repo := newTestRepo(t)
	ts := time.Date(2025, time.April, 18, 8, 0, 0, 0, time.FixedZone("CEST", 2*3600))

	require.NoError(t, repo.SaveRiverData([]entities.RiverData{{River: "ГРАДАЦ", Station: "ДЕГУРИЋ", WaterLevel: "40", Timestamp: ts}}))
	require.NoError(t, repo.SaveRiverData([]entities.RiverData{{River: "ГРАДАЦ", Station: "ДЕГУРИЋ", WaterLevel: "42", Timestamp: ts}}))

	history, err := repo.GetStationHistory("ГРАДАЦ", "ДЕГУРИЋ", ts.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "42", history[0].WaterLevel)
	assert.True(t, history[0].Timestamp.Equal(ts))
}

func TestGetStationHistory(t *testing.T) {
	repo := newTestRepo(t)

	t0 := time.Date(2025, time.April, 18, 0, 0, 0, 0, time.UTC)
	var data []entities.RiverData
	for i := 5; i >= 0; i-- {
		data = append(data, entities.RiverData{
			River:     "САВА",
			Station:   "Шабац",
			Discharge: "1000",
			Timestamp: t0.Add(time.Duration(i) * time.Hour),
		})
	}
	data = append(data, entities.RiverData{River: "САВА", Station: "Беочин", Discharge: "5", Timestamp: t0})
	require.NoError(t, repo.SaveRiverData(data))

	history, err := repo.GetStationHistory("САВА", "Шабац", t0.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, history, 4)
	for i, rd := range history {
		assert.True(t, rd.Timestamp.Equal(t0.Add(time.Duration(i+2)*time.Hour)), "row %d at %s", i, rd.Timestamp)
		assert.Equal(t, "Шабац", rd.Station)
	}

	all, err := repo.GetRiverData(t0)
	require.NoError(t, err)
	assert.Len(t, all, 7)
}

func TestEmptyDatabase(t *testing.T) {
	repo := newTestRepo(t)

	last, err := repo.GetLastUpdateTime()
	require.NoError(t, err)
	assert.True(t, last.IsZero())

	rivers, err := repo.GetUniqueRivers()
	require.NoError(t, err)
	assert.Empty(t, rivers)
}

func TestMigratesOldSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`
	CREATE TABLE river_data (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		river TEXT NOT NULL,
		station TEXT NOT NULL,
		water_level TEXT,
		water_temp TEXT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(river, station, timestamp)
	);
	INSERT INTO river_data(river, station, water_level, water_temp, timestamp)
	VALUES ('ДУНАВ', 'Бездан', '300', '12', '2025-04-18 06:00:00');`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	repo, err := NewSQLiteRiverRepository(path, nil)
	require.NoError(t, err)
	defer repo.Close()

	latest, err := repo.GetRiverDataByName("ДУНАВ")
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "300", latest[0].WaterLevel)
	assert.Equal(t, "", latest[0].Discharge)

	last, err := repo.GetLastUpdateTime()
	require.NoError(t, err)
	assert.Equal(t, 2025, last.Year())
}
