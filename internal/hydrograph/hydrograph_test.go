package hydrograph

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelzeko/water-router/internal/entities"
)

func TestParseDischarge(t *testing.T) {
	ok := map[string]float64{
		"12.5":     12.5,
		" 12,5 ":   12.5,
		"1.234,5":  1234.5,
		"0":        0,
		"1 234.75": 1234.75,
	}
	for in, want := range ok {
		got, valid := ParseDischarge(in)
		require.True(t, valid, in)
		assert.InDelta(t, want, got, 1e-12, in)
	}

	for _, in := range []string{"", "-", " - ", "n/a", "NaN", "Inf"} {
		_, valid := ParseDischarge(in)
		assert.False(t, valid, in)
	}
}

func observation(ts time.Time, discharge string) entities.RiverData {
	return entities.RiverData{
		River:     "ДУНАВ",
		Station:   "Бездан",
		Discharge: discharge,
		Timestamp: ts,
	}
}

func TestFromObservationsInterpolates(t *testing.T) {
	t0 := time.Date(2025, time.April, 18, 6, 0, 0, 0, time.UTC)
	obs := []entities.RiverData{
		observation(t0.Add(2*time.Hour), "300"),
		observation(t0, "100"),
		observation(t0.Add(time.Hour), "-"),
		observation(t0.Add(time.Hour), "200"),
	}

	h, err := FromObservations(obs, 30*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, "ДУНАВ", h.River)
	assert.Equal(t, "Бездан", h.Station)
	assert.True(t, h.Start.Equal(t0))
	assert.Equal(t, 30*time.Minute, h.Step)
	assert.Equal(t, []float64{100, 150, 200, 250, 300}, h.Flows)
	assert.True(t, h.End().Equal(t0.Add(2*time.Hour)))
}

func TestFromObservationsDropsDuplicates(t *testing.T) {
	t0 := time.Date(2025, time.April, 18, 6, 0, 0, 0, time.UTC)
	obs := []entities.RiverData{
		observation(t0, "10"),
		observation(t0, "99"),
		observation(t0.Add(time.Hour), "20"),
	}

	h, err := FromObservations(obs, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20}, h.Flows)
}

func TestFromObservationsTrailingPartialStep(t *testing.T) {
	t0 := time.Date(2025, time.April, 18, 6, 0, 0, 0, time.UTC)
	obs := []entities.RiverData{
		observation(t0, "10"),
		observation(t0.Add(90*time.Minute), "40"),
	}

	h, err := FromObservations(obs, time.Hour)
	require.NoError(t, err)
	require.Len(t, h.Flows, 2)
	assert.InDelta(t, 30.0, h.Flows[1], 1e-12)
}

func TestFromObservationsErrors(t *testing.T) {
	_, err := FromObservations(nil, time.Hour)
	assert.ErrorIs(t, err, ErrNoSamples)

	_, err = FromObservations([]entities.RiverData{observation(time.Now(), "")}, time.Hour)
	assert.ErrorIs(t, err, ErrNoSamples)

	_, err = FromObservations([]entities.RiverData{observation(time.Now(), "1")}, 0)
	assert.ErrorIs(t, err, ErrInvalidStep)
}

func TestReadCSV(t *testing.T) {
	in := `Date,Flow (cfs)
2024-03-01 00:00:00,1.0
2024-03-01 00:15:00,2.0
2024-03-01 00:30:00,3.0
2024-03-01 00:45:00,5.0
`
	h, err := ReadCSV(strings.NewReader(in), "Flow (cfs)")
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, h.Step)
	assert.Equal(t, []float64{1, 2, 3, 5}, h.Flows)
	assert.True(t, h.Start.Equal(time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)))
}

func TestReadCSVErrors(t *testing.T) {
	cases := map[string]string{
		"missing column": "Date,Stage\n2024-03-01 00:00:00,1\n",
		"bad timestamp":  "Date,Flow\nyesterday,1\n",
		"bad flow":       "Date,Flow\n2024-03-01 00:00:00,high\n",
		"irregular step": "Date,Flow\n2024-03-01 00:00:00,1\n2024-03-01 00:15:00,1\n2024-03-01 00:20:00,1\n",
		"backwards":      "Date,Flow\n2024-03-01 00:15:00,1\n2024-03-01 00:00:00,1\n",
	}
	for name, in := range cases {
		_, err := ReadCSV(strings.NewReader(in), "Flow")
		assert.Error(t, err, name)
	}

	_, err := ReadCSV(strings.NewReader("Date,Flow\n"), "Flow")
	assert.ErrorIs(t, err, ErrNoSamples)
}

func TestWriteCSV(t *testing.T) {
	h := &entities.Hydrograph{
		Start: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
		Step:  15 * time.Minute,
		Flows: []float64{1, 2, 3},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, h, "flow", []float64{1, 0.5, 1.25}))
	assert.Equal(t, "timestamp,flow\n"+
		"2024-03-01T00:00:00Z,1\n"+
		"2024-03-01T00:15:00Z,0.5\n"+
		"2024-03-01T00:30:00Z,1.25\n", buf.String())

	assert.Error(t, WriteCSV(&buf, h, "flow", make([]float64, 4)))
}
