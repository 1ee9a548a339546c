package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"FountainProtocol/internal/model"
)

// fileContents is the on-disk layout of the JSON state file.
type fileContents struct {
	States    []model.OracleState   `json:"states"`
	Snapshots []model.DailySnapshot `json:"snapshots"`
}

// FileStore keeps states and snapshots in a single JSON file, rewritten on every commit.
type FileStore struct {
	mu       sync.Mutex
	log      *slog.Logger
	filePath string
	mem      *MemoryStore
}

// NewFileStore loads the state file, or starts empty if it doesn't exist.
func NewFileStore(log *slog.Logger, filePath string) (*FileStore, error) {
	contents, err := loadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("load state file: %w", err)
	}
	mem := NewMemoryStore()
	for i := range contents.States {
		mem.states[contents.States[i].Date] = contents.States[i]
	}
	for i := range contents.Snapshots {
		mem.snapshots[contents.Snapshots[i].Date] = contents.Snapshots[i]
	}
	log.Info("file store opened", "path", filePath, "days", len(contents.Snapshots))
	return &FileStore{log: log, filePath: filePath, mem: mem}, nil
}

func (f *FileStore) GetPriorState(ctx context.Context, date string) (*model.OracleState, error) {
	return f.mem.GetPriorState(ctx, date)
}

func (f *FileStore) GetSnapshot(ctx context.Context, date string) (*model.DailySnapshot, error) {
	return f.mem.GetSnapshot(ctx, date)
}

func (f *FileStore) ListSnapshots(ctx context.Context, limit int) ([]*model.DailySnapshot, error) {
	return f.mem.ListSnapshots(ctx, limit)
}

func (f *FileStore) PutState(ctx context.Context, st *model.OracleState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.mem.PutState(ctx, st); err != nil {
		return err
	}
	if err := f.save(); err != nil {
		f.mem.mu.Lock()
		delete(f.mem.states, st.Date)
		f.mem.mu.Unlock()
		return err
	}
	return nil
}

func (f *FileStore) PutSnapshot(ctx context.Context, snap *model.DailySnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.mem.PutSnapshot(ctx, snap); err != nil {
		return err
	}
	if err := f.save(); err != nil {
		f.mem.mu.Lock()
		delete(f.mem.snapshots, snap.Date)
		f.mem.mu.Unlock()
		return err
	}
	return nil
}

// CommitDay adds both records and rewrites the file once. On a write failure
// neither record is kept in memory.
func (f *FileStore) CommitDay(ctx context.Context, st *model.OracleState, snap *model.DailySnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.mem.CommitDay(ctx, st, snap); err != nil {
		return err
	}
	if err := f.save(); err != nil {
		f.mem.mu.Lock()
		delete(f.mem.states, st.Date)
		delete(f.mem.snapshots, snap.Date)
		f.mem.mu.Unlock()
		return err
	}
	return nil
}

func (f *FileStore) Close() error { return nil }

func (f *FileStore) save() error {
	f.mem.mu.RLock()
	contents := fileContents{
		States:    make([]model.OracleState, 0, len(f.mem.states)),
		Snapshots: make([]model.DailySnapshot, 0, len(f.mem.snapshots)),
	}
	for _, st := range f.mem.states {
		contents.States = append(contents.States, st)
	}
	for _, snap := range f.mem.snapshots {
		contents.Snapshots = append(contents.Snapshots, snap)
	}
	f.mem.mu.RUnlock()

	sort.Slice(contents.States, func(i, j int) bool { return contents.States[i].Date < contents.States[j].Date })
	sort.Slice(contents.Snapshots, func(i, j int) bool { return contents.Snapshots[i].Date < contents.Snapshots[j].Date })
	return saveFile(f.filePath, &contents)
}

// loadFile reads the state file. Returns empty contents if the file doesn't exist.
func loadFile(filePath string) (*fileContents, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &fileContents{}, nil
		}
		return nil, err
	}
	var contents fileContents
	if err := json.Unmarshal(data, &contents); err != nil {
		return nil, err
	}
	return &contents, nil
}

// saveFile writes the state file via a temp file and rename.
func saveFile(filePath string, contents *fileContents) error {
	data, err := json.MarshalIndent(contents, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(filePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filePath)
}
