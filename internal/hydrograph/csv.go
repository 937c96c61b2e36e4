package hydrograph

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/abelzeko/water-router/internal/entities"
)

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// ReadCSV reads a gauge series. The first column holds the timestamp and
// column names the discharge column. The sampling step is taken from the
// first two rows and every later row must follow it.
func ReadCSV(r io.Reader, column string) (*entities.Hydrograph, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoSamples
		}
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	col := -1
	for i, name := range header {
		if strings.TrimSpace(name) == column {
			col = i
			break
		}
	}
	if col < 1 {
		return nil, fmt.Errorf("column %q not found in csv header %v", column, header)
	}

	h := &entities.Hydrograph{Station: column}
	var prev time.Time
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv line %d: %w", line, err)
		}

		t, err := parseTime(rec[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		q, err := strconv.ParseFloat(strings.TrimSpace(rec[col]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid flow %q: %w", line, rec[col], err)
		}

		switch len(h.Flows) {
		case 0:
			h.Start = t
		case 1:
			h.Step = t.Sub(prev)
			if h.Step <= 0 {
				return nil, fmt.Errorf("line %d: %w (got %s)", line, ErrInvalidStep, h.Step)
			}
		default:
			if d := t.Sub(prev); d != h.Step {
				return nil, fmt.Errorf("line %d: irregular step %s, expected %s", line, d, h.Step)
			}
		}
		h.Flows = append(h.Flows, q)
		prev = t
	}

	if len(h.Flows) == 0 {
		return nil, ErrNoSamples
	}
	return h, nil
}

// WriteCSV writes flows as "timestamp,<column>" rows using the timing of h.
// flows must not be longer than h.
func WriteCSV(w io.Writer, h *entities.Hydrograph, column string, flows []float64) error {
	if len(flows) > h.Len() {
		return fmt.Errorf("%d flows do not fit a hydrograph of %d samples", len(flows), h.Len())
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"timestamp", column}); err != nil {
		return err
	}
	for i, q := range flows {
		row := []string{
			h.TimeAt(i).Format(time.RFC3339),
			strconv.FormatFloat(q, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
