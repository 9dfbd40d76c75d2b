package pattern

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	builtinDirName  = "builtin"
	userFileName    = "user.json"
	learnedFileName = "learned.json"
)

// partitionFile is the on-disk shape of one pattern partition.
type partitionFile struct {
	// Name labels built-in sets; empty for user/learned partitions.
	Name     string     `json:"name,omitempty"`
	Patterns []*Pattern `json:"patterns"`
}

// Store is the durable pattern catalog. It is safe for concurrent use;
// writes are serialized and reads see consistent snapshots.
type Store struct {
	dir    string
	logger *zap.Logger

	mu         sync.RWMutex
	patterns   map[string]*Pattern
	builtinIDs map[string]struct{}
	generation uint64

	now func() time.Time
}

// NewStore creates a store rooted at dir. Call Load before use.
func NewStore(dir string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		dir:        dir,
		logger:     logger,
		patterns:   make(map[string]*Pattern),
		builtinIDs: make(map[string]struct{}),
		now:        time.Now,
	}
}

// Load reads all partitions from disk, replacing the in-memory catalog.
//
// Per-entry and per-partition failures are logged and skipped. If no
// partition yields any pattern, the built-in default set is installed,
// so the store is never empty after Load. Load is idempotent: calling
// it twice leaves the same catalog.
func (s *Store) Load(ctx context.Context) error {
	patterns := make(map[string]*Pattern)
	builtinIDs := make(map[string]struct{})

	// Built-in partitions: every *.json under builtin/, merged in
	// lexical order.
	builtinDir := filepath.Join(s.dir, builtinDirName)
	entries, err := os.ReadDir(builtinDir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("builtin partition directory unreadable",
				zap.String("dir", builtinDir), zap.Error(err))
		}
	} else {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for _, name := range names {
			loaded := s.loadPartition(filepath.Join(builtinDir, name))
			for _, p := range loaded {
				if s.insert(patterns, p) {
					builtinIDs[p.ID] = struct{}{}
				}
			}
		}
	}

	// User partition.
	for _, p := range s.loadPartition(filepath.Join(s.dir, userFileName)) {
		p.UserDefined = true
		if p.Source == "" {
			p.Source = SourceUser
		}
		s.insert(patterns, p)
	}

	// Learned partition.
	for _, p := range s.loadPartition(filepath.Join(s.dir, learnedFileName)) {
		p.AutoGenerated = true
		if p.Source == "" {
			p.Source = SourceLearning
		}
		s.insert(patterns, p)
	}

	// The store must never be empty after load.
	if len(patterns) == 0 {
		for _, p := range defaultPatterns(s.now()) {
			patterns[p.ID] = p
			builtinIDs[p.ID] = struct{}{}
		}
		s.logger.Info("no patterns on disk, installed default set",
			zap.Int("count", len(patterns)))
	}

	s.mu.Lock()
	s.patterns = patterns
	s.builtinIDs = builtinIDs
	s.generation++
	s.mu.Unlock()

	s.logger.Info("pattern catalog loaded",
		zap.Int("total", len(patterns)),
		zap.Int("builtin", len(builtinIDs)))
	return nil
}

// loadPartition reads one partition file, returning only valid entries.
// Failures degrade to an empty result.
func (s *Store) loadPartition(path string) []*Pattern {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("partition unreadable, treating as empty",
				zap.String("path", path),
				zap.Error(&LoadError{Partition: path, Err: err}))
		}
		return nil
	}

	var pf partitionFile
	if err := json.Unmarshal(data, &pf); err != nil {
		s.logger.Warn("partition corrupt, treating as empty",
			zap.String("path", path),
			zap.Error(&LoadError{Partition: path, Err: err}))
		return nil
	}

	valid := make([]*Pattern, 0, len(pf.Patterns))
	for _, p := range pf.Patterns {
		if err := p.Validate(); err != nil {
			s.logger.Warn("skipping invalid pattern entry",
				zap.String("path", path),
				zap.String("id", p.ID),
				zap.Error(err))
			continue
		}
		valid = append(valid, p)
	}
	return valid
}

// insert adds p to the map unless the id is already taken.
func (s *Store) insert(patterns map[string]*Pattern, p *Pattern) bool {
	if _, dup := patterns[p.ID]; dup {
		s.logger.Warn("skipping duplicate pattern id", zap.String("id", p.ID))
		return false
	}
	patterns[p.ID] = p
	return true
}

// Get returns a copy of the pattern with the given id.
func (s *Store) Get(id string) (*Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patterns[id]
	if !ok {
		return nil, fmt.Errorf("get %q: %w", id, ErrNotFound)
	}
	return p.Clone(), nil
}

// GetByCategory returns copies of all patterns in the category, sorted
// by id.
func (s *Store) GetByCategory(category string) []*Pattern {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Pattern
	for _, p := range s.patterns {
		if p.Category == category {
			out = append(out, p.Clone())
		}
	}
	sortByID(out)
	return out
}

// Search returns patterns whose id, name, category, or keywords contain
// the query, case-insensitively.
func (s *Store) Search(query string) []*Pattern {
	q := strings.ToLower(query)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Pattern
	for _, p := range s.patterns {
		if matchesQuery(p, q) {
			out = append(out, p.Clone())
		}
	}
	sortByID(out)
	return out
}

func matchesQuery(p *Pattern, q string) bool {
	if strings.Contains(strings.ToLower(p.ID), q) ||
		strings.Contains(strings.ToLower(p.Name), q) ||
		strings.Contains(strings.ToLower(p.Category), q) {
		return true
	}
	for _, kw := range p.Keywords {
		if strings.Contains(strings.ToLower(kw), q) {
			return true
		}
	}
	return false
}

// All returns a snapshot of the whole catalog, sorted by id. The
// snapshot is stable for the duration of an analysis regardless of
// concurrent mutations.
func (s *Store) All() []*Pattern {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Pattern, 0, len(s.patterns))
	for _, p := range s.patterns {
		out = append(out, p.Clone())
	}
	sortByID(out)
	return out
}

// Count returns the number of patterns in the catalog.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.patterns)
}

// Generation returns the mutation counter. It changes whenever the
// active pattern set changes; caches key off it.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Add inserts a new pattern after validation. Adding an existing id
// fails with ErrExists.
func (s *Store) Add(p *Pattern) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.patterns[p.ID]; dup {
		return fmt.Errorf("add %q: %w", p.ID, ErrExists)
	}
	cp := p.Clone()
	now := s.now()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = now
	}
	if cp.Source == "" {
		cp.Source = SourceUser
		cp.UserDefined = true
	}
	s.patterns[cp.ID] = cp
	s.generation++
	return nil
}

// Update replaces an existing pattern after validation and bumps
// UpdatedAt. Unknown ids fail with ErrNotFound.
func (s *Store) Update(p *Pattern) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.patterns[p.ID]
	if !ok {
		return fmt.Errorf("update %q: %w", p.ID, ErrNotFound)
	}
	cp := p.Clone()
	cp.CreatedAt = old.CreatedAt
	cp.UpdatedAt = s.now()
	s.patterns[cp.ID] = cp
	s.generation++
	return nil
}

// Remove deletes a pattern, reporting whether it was present.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.patterns[id]; !ok {
		return false
	}
	delete(s.patterns, id)
	delete(s.builtinIDs, id)
	s.generation++
	return true
}

// IncrementOccurrence bumps the occurrence counter for the given ids.
// Unknown ids are ignored; occurrence bumps do not change UpdatedAt.
func (s *Store) IncrementOccurrence(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if p, ok := s.patterns[id]; ok {
			p.OccurrenceCount++
		}
	}
}

// Save persists the user and learned partitions. Built-in patterns are
// never re-serialized. Failures surface as *IOError.
func (s *Store) Save(ctx context.Context) error {
	s.mu.RLock()
	var user, learned []*Pattern
	for id, p := range s.patterns {
		if _, isBuiltin := s.builtinIDs[id]; isBuiltin {
			continue
		}
		switch {
		case p.Source == SourceLearning || p.AutoGenerated:
			learned = append(learned, p.Clone())
		case p.Source == SourceUser || p.UserDefined:
			user = append(user, p.Clone())
		}
	}
	s.mu.RUnlock()

	sortByID(user)
	sortByID(learned)

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return &IOError{Op: "mkdir", Path: s.dir, Err: err}
	}
	if err := s.writePartition(filepath.Join(s.dir, userFileName), user); err != nil {
		return err
	}
	if err := s.writePartition(filepath.Join(s.dir, learnedFileName), learned); err != nil {
		return err
	}

	s.logger.Debug("pattern catalog saved",
		zap.Int("user", len(user)), zap.Int("learned", len(learned)))
	return nil
}

// writePartition atomically replaces one partition file.
func (s *Store) writePartition(path string, patterns []*Pattern) error {
	data, err := json.MarshalIndent(partitionFile{Patterns: patterns}, "", "  ")
	if err != nil {
		return &IOError{Op: "marshal", Path: path, Err: err}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &IOError{Op: "write", Path: tmp, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		return &IOError{Op: "rename", Path: path, Err: err}
	}
	return nil
}

func sortByID(patterns []*Pattern) {
	sort.Slice(patterns, func(i, j int) bool { return patterns[i].ID < patterns[j].ID })
}
