// Package memory implements every repository port in process memory. With a
// data file configured the whole state is written to disk after each change
// and read back on Open, which gives the CLI persistence between runs.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/imperium-ai/imperium/internal/domain/council"
	"github.com/imperium-ai/imperium/internal/domain/gate"
	"github.com/imperium-ai/imperium/internal/domain/journal"
	"github.com/imperium-ai/imperium/internal/domain/progression"
	"github.com/imperium-ai/imperium/internal/domain/shared"
	"github.com/imperium-ai/imperium/internal/domain/task"
	"github.com/imperium-ai/imperium/internal/domain/trial"
)

// ══════════════════════════════════════════════════════════════════════════════
// STORE
// ══════════════════════════════════════════════════════════════════════════════

// Store holds all state behind one mutex. Repositories returned by its
// accessors share that state.
type Store struct {
	mu     sync.RWMutex
	engine *progression.Engine
	path   string

	users   map[string]progression.UserProgression
	gates   map[gateKey]gate.State
	records map[string]map[int]trial.Record
	tasks   map[string]*task.Task
	entries map[string]*journal.Entry
	cases   map[string]council.Case

	// seq orders tasks, entries and cases created within the same instant.
	seq    int64
	order  map[string]int64
	closed bool
}

type gateKey struct {
	UserID string
	Action gate.Action
}

// New creates an empty store that lives only in memory.
func New(engine *progression.Engine) *Store {
	if engine == nil {
		engine = progression.NewEngine(nil)
	}
	return &Store{
		engine:  engine,
		users:   make(map[string]progression.UserProgression),
		gates:   make(map[gateKey]gate.State),
		records: make(map[string]map[int]trial.Record),
		tasks:   make(map[string]*task.Task),
		entries: make(map[string]*journal.Entry),
		cases:   make(map[string]council.Case),
		order:   make(map[string]int64),
	}
}

// Open creates a store backed by path. A missing file is an empty store.
func Open(path string, engine *progression.Engine) (*Store, error) {
	s := New(engine)
	s.path = path
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("memory: read %s: %w", path, err)
	}
	if err := s.load(data); err != nil {
		return nil, fmt.Errorf("memory: load %s: %w", path, err)
	}
	return s, nil
}

// Progression returns the progression repository.
func (s *Store) Progression() *ProgressionRepository { return &ProgressionRepository{s: s} }

// Gates returns the gate state repository.
func (s *Store) Gates() *GateRepository { return &GateRepository{s: s} }

// Trials returns the trial progress repository.
func (s *Store) Trials() *TrialProgressRepository { return &TrialProgressRepository{s: s} }

// Tasks returns the task repository.
func (s *Store) Tasks() *TaskRepository { return &TaskRepository{s: s} }

// Journal returns the journal repository.
func (s *Store) Journal() *JournalRepository { return &JournalRepository{s: s} }

// Council returns the council case repository.
func (s *Store) Council() *CouncilRepository { return &CouncilRepository{s: s} }

// Ping reports whether the store accepts operations.
func (s *Store) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Close flushes and stops the store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.flushLocked()
}

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("memory: store is closed")

type txKey struct{ s *Store }

func (s *Store) inTx(ctx context.Context) bool {
	return ctx != nil && ctx.Value(txKey{s}) != nil
}

// Atomically runs fn under the store lock. Writes made with the context
// passed to fn are flushed once when fn returns, and are undone if fn or
// the flush fails. Commit hooks run after the lock is released.
func (s *Store) Atomically(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	hooks, err := s.atomically(ctx, fn)
	if err != nil {
		return err
	}
	hooks.Run(ctx)
	return nil
}

func (s *Store) atomically(ctx context.Context, fn func(ctx context.Context) error) (*shared.CommitHooks, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	snap := s.snapshot()
	txCtx, hooks := shared.WithCommitHooks(context.WithValue(ctx, txKey{s}, true))
	if err := fn(txCtx); err != nil {
		s.restore(snap)
		return nil, err
	}
	if err := s.flushLocked(); err != nil {
		s.restore(snap)
		return nil, err
	}
	return hooks, nil
}

func (s *Store) write(ctx context.Context, fn func() error) error {
	if s.inTx(ctx) {
		return fn()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	var snap snapshot
	if s.path != "" {
		snap = s.snapshot()
	}
	if err := fn(); err != nil {
		return err
	}
	if err := s.flushLocked(); err != nil {
		// Memory never runs ahead of the file.
		s.restore(snap)
		return err
	}
	return nil
}

func (s *Store) read(ctx context.Context, fn func() error) error {
	if s.inTx(ctx) {
		return fn()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return fn()
}

// snapshot copies the maps. Stored values are replaced on write, never
// mutated, so a shallow copy is enough except for the nested records.
type snapshot struct {
	users   map[string]progression.UserProgression
	gates   map[gateKey]gate.State
	records map[string]map[int]trial.Record
	tasks   map[string]*task.Task
	entries map[string]*journal.Entry
	cases   map[string]council.Case
	seq     int64
	order   map[string]int64
}

func (s *Store) snapshot() snapshot {
	snap := snapshot{
		users:   maps.Clone(s.users),
		gates:   maps.Clone(s.gates),
		records: make(map[string]map[int]trial.Record, len(s.records)),
		tasks:   maps.Clone(s.tasks),
		entries: maps.Clone(s.entries),
		cases:   maps.Clone(s.cases),
		seq:     s.seq,
		order:   maps.Clone(s.order),
	}
	for id, recs := range s.records {
		snap.records[id] = maps.Clone(recs)
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.users = snap.users
	s.gates = snap.gates
	s.records = snap.records
	s.tasks = snap.tasks
	s.entries = snap.entries
	s.cases = snap.cases
	s.seq = snap.seq
	s.order = snap.order
}

func (s *Store) nextSeq(id string) {
	if _, ok := s.order[id]; ok {
		return
	}
	s.seq++
	s.order[id] = s.seq
}

// ══════════════════════════════════════════════════════════════════════════════
// FILE FORMAT
// ══════════════════════════════════════════════════════════════════════════════

type fileState struct {
	Version int                    `json:"version"`
	Users   []progression.Snapshot `json:"users"`
	Gates   []fileGate             `json:"gates"`
	Trials  []trial.Record         `json:"trials"`
	Tasks   []fileTask             `json:"tasks"`
	Journal []fileEntry            `json:"journal"`
	Cases   []fileCase             `json:"council_cases"`
}

type fileGate struct {
	UserID string      `json:"user_id"`
	Action gate.Action `json:"action"`
	gate.State
}

type fileTask struct {
	*task.Task
	Seq int64 `json:"seq"`
}

type fileEntry struct {
	*journal.Entry
	Seq int64 `json:"seq"`
}

type fileCase struct {
	council.Case
	Seq int64 `json:"seq"`
}

const fileVersion = 1

func (s *Store) flushLocked() error {
	if s.path == "" {
		return nil
	}

	st := fileState{Version: fileVersion}
	for _, u := range s.users {
		st.Users = append(st.Users, u.Snapshot())
	}
	for k, g := range s.gates {
		st.Gates = append(st.Gates, fileGate{UserID: k.UserID, Action: k.Action, State: g})
	}
	for _, recs := range s.records {
		for _, r := range recs {
			st.Trials = append(st.Trials, r)
		}
	}
	for _, t := range s.tasks {
		st.Tasks = append(st.Tasks, fileTask{Task: t, Seq: s.order[t.ID]})
	}
	for _, e := range s.entries {
		st.Journal = append(st.Journal, fileEntry{Entry: e, Seq: s.order[e.ID]})
	}
	for _, c := range s.cases {
		st.Cases = append(st.Cases, fileCase{Case: c, Seq: s.order[c.ID]})
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("memory: encode state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".imperium-*.tmp")
	if err != nil {
		return fmt.Errorf("memory: write state: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("memory: write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("memory: write state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("memory: write state: %w", err)
	}
	return nil
}

func (s *Store) load(data []byte) error {
	var st fileState
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	if st.Version != fileVersion {
		return fmt.Errorf("unsupported state version %d", st.Version)
	}

	for _, snap := range st.Users {
		u, err := s.engine.Restore(snap)
		if err != nil {
			return err
		}
		s.users[u.ID] = u
	}
	for _, g := range st.Gates {
		s.gates[gateKey{UserID: g.UserID, Action: g.Action}] = g.State
	}
	for _, r := range st.Trials {
		if s.records[r.UserID] == nil {
			s.records[r.UserID] = make(map[int]trial.Record)
		}
		s.records[r.UserID][r.TrialID] = r
	}
	for _, t := range st.Tasks {
		if t.Task == nil {
			continue
		}
		s.tasks[t.ID] = t.Task
		s.track(t.ID, t.Seq)
	}
	for _, e := range st.Journal {
		if e.Entry == nil {
			continue
		}
		s.entries[e.ID] = e.Entry
		s.track(e.ID, e.Seq)
	}
	for _, c := range st.Cases {
		s.cases[c.ID] = c.Case
		s.track(c.ID, c.Seq)
	}
	return nil
}

func (s *Store) track(id string, seq int64) {
	s.order[id] = seq
	if seq > s.seq {
		s.seq = seq
	}
}
