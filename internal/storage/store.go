// Package storage persists closed-loop runs on disk, one directory per run
// holding metadata.json and commands.csv.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/gengqx/apollo/internal/sim"
)

var (
	ErrRunNotFound   = errors.New("storage: run not found")
	ErrUnknownColumn = errors.New("storage: unknown column")
	ErrInvalidRunID  = errors.New("storage: invalid run id")
)

const (
	metadataFile = "metadata.json"
	commandsFile = "commands.csv"
)

// Columns is the commands.csv header. States are sampled before the command
// of the same row was applied.
var Columns = []string{"time", "x", "y", "heading", "speed", "throttle", "brake", "steering", "lateral_error"}

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// runDir maps a run id to its directory. Ids are single path elements, so
// nothing outside baseDir is reachable.
func (s *Store) runDir(runID string) (string, error) {
	if runID == "" || runID == "." || runID == ".." || strings.ContainsAny(runID, `/\`) || filepath.Base(runID) != runID {
		return "", errors.Wrapf(ErrInvalidRunID, "%q", runID)
	}
	return filepath.Join(s.baseDir, runID), nil
}

type RunMetadata struct {
	ID          string             `json:"id"`
	Scenario    string             `json:"scenario"`
	Controllers []string           `json:"controllers"`
	Integrator  string             `json:"integrator"`
	Timestamp   time.Time          `json:"timestamp"`
	Dt          float64            `json:"dt"`
	Duration    float64            `json:"duration"`
	Steps       int                `json:"steps"`
	Metrics     map[string]float64 `json:"metrics"`
	Errors      []string           `json:"errors,omitempty"`
}

// NewRunID returns <scenario>_<first 8 hex digits of a random uuid>.
func NewRunID(scenario string) string {
	return fmt.Sprintf("%s_%s", scenario, uuid.NewString()[:8])
}

// Save writes meta and result under a fresh run id and returns it. ID,
// Timestamp, Steps, Metrics and Errors are filled from the result.
func (s *Store) Save(meta RunMetadata, result *sim.Result) (string, error) {
	meta.ID = NewRunID(meta.Scenario)
	meta.Timestamp = time.Now()
	meta.Steps = result.StepsTaken
	meta.Metrics = result.Metrics
	meta.Errors = nil
	for _, err := range result.Errors {
		meta.Errors = append(meta.Errors, err.Error())
	}

	runDir, err := s.runDir(meta.ID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", errors.Wrapf(err, "creating run dir %s", runDir)
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := writeCommands(filepath.Join(runDir, commandsFile), result); err != nil {
		return "", err
	}
	return meta.ID, nil
}

func writeJSON(path string, v any) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(f))

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return errors.Wrapf(enc.Encode(v), "writing %s", path)
}

func writeCommands(path string, result *sim.Result) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(f))

	w := csv.NewWriter(f)
	if err := w.Write(Columns); err != nil {
		return err
	}

	format := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
	for i, x := range result.States {
		row := make([]string, 0, len(Columns))
		row = append(row, format(result.Times[i]))
		for j := 0; j < sim.VehicleStateDim; j++ {
			row = append(row, format(x[j]))
		}
		// The final state has no command.
		if i < len(result.Commands) {
			cmd := result.Commands[i]
			row = append(row, format(cmd.Throttle), format(cmd.Brake), format(cmd.SteeringTarget), format(cmd.Debug.LateralError))
		} else {
			row = append(row, "0", "0", "0", "0")
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return errors.Wrapf(w.Error(), "writing %s", path)
}

// List returns every readable run, newest first. Directories without valid
// metadata are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	dir, err := s.runDir(runID)
	if err != nil {
		return nil, err
	}
	metaPath := filepath.Join(dir, metadataFile)
	data, err := os.ReadFile(metaPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errors.Wrapf(err, "decoding %s", metaPath)
	}

	return &meta, nil
}

// LoadSeries returns the time column and one named column of a run.
func (s *Store) LoadSeries(runID, column string) ([]float64, []float64, error) {
	col := -1
	for i, c := range Columns {
		if c == column {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, nil, errors.Wrapf(ErrUnknownColumn, "%q (have %v)", column, Columns)
	}

	dir, err := s.runDir(runID)
	if err != nil {
		return nil, nil, err
	}
	csvPath := filepath.Join(dir, commandsFile)
	file, err := os.Open(csvPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, errors.Wrap(ErrRunNotFound, runID)
		}
		return nil, nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "reading %s", csvPath)
	}

	if len(records) < 2 {
		return []float64{}, []float64{}, nil
	}

	times := make([]float64, 0, len(records)-1)
	values := make([]float64, 0, len(records)-1)
	for _, record := range records[1:] {
		if len(record) <= col {
			continue
		}
		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			continue
		}
		v, err := strconv.ParseFloat(record[col], 64)
		if err != nil {
			continue
		}
		times = append(times, t)
		values = append(values, v)
	}

	return times, values, nil
}

// ExportData is a run flattened into one JSON document.
type ExportData struct {
	RunMetadata
	Series map[string][]float64 `json:"series"`
}

// Export writes the metadata and every column of a run to w as JSON.
func (s *Store) Export(runID string, w io.Writer) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}

	data := ExportData{RunMetadata: *meta, Series: make(map[string][]float64, len(Columns))}
	for _, c := range Columns {
		times, values, err := s.LoadSeries(runID, c)
		if err != nil {
			return err
		}
		if c == "time" {
			values = times
		}
		data.Series[c] = values
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
