package repository

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/jengzang/traffic-density-go/internal/analysis"
	"github.com/jengzang/traffic-density-go/internal/models"
)

// ObservationHeader is the fixed column order of the observation log
var ObservationHeader = []string{
	"date", "time", "location",
	"car", "bike", "bus", "truck",
	"total", "density",
	"pollution", "fuel_waste",
}

// ObservationRepository is the append-only CSV observation log.
// Appends from one process are serialised; other processes must not write
// to the same file concurrently.
type ObservationRepository struct {
	path   string
	mu     sync.Mutex
	logger *zap.SugaredLogger
}

// NewObservationRepository creates a repository over the CSV file at path
func NewObservationRepository(path string, logger *zap.SugaredLogger) *ObservationRepository {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &ObservationRepository{path: path, logger: logger}
}

// Path returns the CSV file path
func (r *ObservationRepository) Path() string {
	return r.path
}

// EnsureInitialized creates the file with its header if it does not exist.
// An existing file is never truncated or rewritten.
func (r *ObservationRepository) EnsureInitialized() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ensureInitialized()
}

func (r *ObservationRepository) ensureInitialized() error {
	if info, err := os.Stat(r.path); err == nil && info.Size() > 0 {
		return nil
	}

	if dir := filepath.Dir(r.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(analysis.ErrWrite, "create directory %s: %v", dir, err)
		}
	}

	f, err := os.OpenFile(r.path, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return errors.Wrapf(analysis.ErrWrite, "open %s: %v", r.path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return errors.Wrapf(analysis.ErrWrite, "stat %s: %v", r.path, err)
	}
	if info.Size() > 0 {
		return nil
	}

	if err := writeRecord(f, ObservationHeader); err != nil {
		return errors.Wrapf(analysis.ErrWrite, "write header to %s: %v", r.path, err)
	}
	r.logger.Infow("observation log created", "path", r.path)
	return nil
}

// Append writes one observation as a single row
func (r *ObservationRepository) Append(obs models.Observation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureInitialized(); err != nil {
		return err
	}

	f, err := os.OpenFile(r.path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrapf(analysis.ErrWrite, "open %s: %v", r.path, err)
	}

	if err := writeRecord(f, observationRecord(obs)); err != nil {
		f.Close()
		return errors.Wrapf(analysis.ErrWrite, "append to %s: %v", r.path, err)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(analysis.ErrWrite, "close %s: %v", r.path, err)
	}
	return nil
}

// ReadAll returns every observation in file order. A missing file yields no
// rows; malformed rows are skipped.
func (r *ObservationRepository) ReadAll() ([]models.Observation, error) {
	f, err := os.Open(r.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to open observation log")
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read observation log header")
	}

	colMap := make(map[string]int, len(header))
	for i, col := range header {
		colMap[col] = i
	}
	for _, col := range ObservationHeader {
		if _, ok := colMap[col]; !ok {
			return nil, errors.Errorf("observation log %s is missing column %q", r.path, col)
		}
	}

	var observations []models.Observation
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			r.logger.Warnw("skipping unreadable observation row", "line", line, "error", err)
			continue
		}

		obs, err := parseObservation(row, colMap)
		if err != nil {
			r.logger.Warnw("skipping malformed observation row", "line", line, "error", err)
			continue
		}
		observations = append(observations, obs)
	}

	return observations, nil
}

func writeRecord(w io.Writer, record []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(record); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// formatFloat renders v like Python's float repr: shortest round-trip digits,
// at least one fractional digit, exponent form below 1e-4 and from 1e16 up
// ("6.0", "3.96", "1e-05").
func formatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	if v != 0 {
		if abs := math.Abs(v); abs < 1e-4 || abs >= 1e16 {
			return strconv.FormatFloat(v, 'e', -1, 64)
		}
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func formatTotal(obs models.Observation) string {
	if obs.Averaged {
		return formatFloat(obs.Total)
	}
	return strconv.FormatFloat(obs.Total, 'f', -1, 64)
}

func observationRecord(obs models.Observation) []string {
	return []string{
		obs.Date,
		obs.Time,
		obs.Location,
		strconv.Itoa(obs.Counts.Get(models.Car)),
		strconv.Itoa(obs.Counts.Get(models.Motorcycle)),
		strconv.Itoa(obs.Counts.Get(models.Bus)),
		strconv.Itoa(obs.Counts.Get(models.Truck)),
		formatTotal(obs),
		obs.Density.String(),
		formatFloat(obs.Pollution),
		formatFloat(obs.FuelWaste),
	}
}

// parseObservation converts a CSV row to an Observation
func parseObservation(row []string, colMap map[string]int) (models.Observation, error) {
	var obs models.Observation

	field := func(col string) (string, error) {
		i := colMap[col]
		if i >= len(row) {
			return "", errors.Errorf("missing %s", col)
		}
		return row[i], nil
	}

	var err error
	if obs.Date, err = field("date"); err != nil {
		return obs, err
	}
	if obs.Time, err = field("time"); err != nil {
		return obs, err
	}
	if obs.Location, err = field("location"); err != nil {
		return obs, err
	}

	countCols := []struct {
		col   string
		class models.VehicleClass
	}{
		{"car", models.Car},
		{"bike", models.Motorcycle},
		{"bus", models.Bus},
		{"truck", models.Truck},
	}
	for _, cc := range countCols {
		raw, err := field(cc.col)
		if err != nil {
			return obs, err
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return obs, errors.Wrapf(err, "invalid %s", cc.col)
		}
		obs.Counts[cc.class] = n
	}

	floats := []struct {
		col string
		dst *float64
	}{
		{"total", &obs.Total},
		{"pollution", &obs.Pollution},
		{"fuel_waste", &obs.FuelWaste},
	}
	for _, fc := range floats {
		raw, err := field(fc.col)
		if err != nil {
			return obs, err
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return obs, errors.Wrapf(err, "invalid %s", fc.col)
		}
		*fc.dst = v
	}
	obs.Averaged = strings.ContainsAny(row[colMap["total"]], ".e")

	raw, err := field("density")
	if err != nil {
		return obs, err
	}
	if obs.Density, err = models.ParseDensityLevel(raw); err != nil {
		return obs, err
	}

	return obs, nil
}
