// Package storage persists trajectories and sweep results at the
// boundary of the numerical core: one directory per run with JSON
// metadata and a CSV spin archive, plus a sqlite store for aggregate
// results.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/solmag/spinchain/internal/integrate"
	"github.com/solmag/spinchain/internal/spin"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Params    spin.Params `json:"params"`
	Samples   int         `json:"samples"`
	Duration  float64     `json:"duration"`
	Failed    bool        `json:"failed,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// SaveRun writes one trajectory as metadata.json + trajectory.csv in a
// fresh run directory and returns the run id. Spin values are written
// with full round-trip precision and exactly as integrated, never
// re-normalized at serialization time. runErr, when non-nil, marks the
// archive as a flagged partial result.
func (s *Store) SaveRun(tr *integrate.Trajectory, runErr error) (string, error) {
	runID := fmt.Sprintf("run_%s_%s", time.Now().UTC().Format("20060102T150405"), uuid.NewString()[:8])
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:        runID,
		Timestamp: time.Now().UTC(),
		Params:    tr.Params,
		Samples:   tr.Len(),
	}
	if n := tr.Len(); n > 0 {
		meta.Duration = tr.Times[n-1]
	}
	if runErr != nil {
		meta.Failed = true
		meta.Error = runErr.Error()
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "trajectory.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	defer w.Flush()

	header := []string{"time"}
	for i := 0; i < tr.Params.N; i++ {
		header = append(header,
			fmt.Sprintf("s%d_x", i), fmt.Sprintf("s%d_y", i), fmt.Sprintf("s%d_z", i))
	}
	if err := w.Write(header); err != nil {
		return "", err
	}

	row := make([]string, 0, 1+3*tr.Params.N)
	for i := range tr.States {
		row = row[:0]
		row = append(row, strconv.FormatFloat(tr.Times[i], 'g', -1, 64))
		for _, v := range tr.States[i] {
			row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	return runID, w.Error()
}

// LoadRun reads a trajectory archive back.
func (s *Store) LoadRun(runID string) (*integrate.Trajectory, *RunMetadata, error) {
	runDir := filepath.Join(s.baseDir, runID)

	data, err := os.ReadFile(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return nil, nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, nil, err
	}

	f, err := os.Open(filepath.Join(runDir, "trajectory.csv"))
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) < 1 {
		return nil, nil, fmt.Errorf("run %s: empty trajectory archive", runID)
	}

	want := 1 + 3*meta.Params.N
	tr := &integrate.Trajectory{Params: meta.Params}
	for _, rec := range records[1:] {
		if len(rec) != want {
			return nil, nil, fmt.Errorf("%w: row has %d columns, want %d", spin.ErrConfiguration, len(rec), want)
		}
		t, err := strconv.ParseFloat(rec[0], 64)
		if err != nil {
			return nil, nil, err
		}
		state := make(spin.State, 3*meta.Params.N)
		for i, cell := range rec[1:] {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, nil, err
			}
			state[i] = v
		}
		tr.Times = append(tr.Times, t)
		tr.States = append(tr.States, state)
	}
	return tr, &meta, nil
}

// List returns metadata for every run under the store, skipping
// directories without readable metadata.
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
		data, err := os.ReadFile(filepath.Join(s.baseDir, entry.Name(), "metadata.json"))
		if err != nil {
			continue
		}
		var meta RunMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		runs = append(runs, meta)
	}
	return runs, nil
}
