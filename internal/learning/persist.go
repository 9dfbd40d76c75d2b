package learning

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"
)

// ledgerFile is the on-disk form of the aggregated unknowns, kept next
// to the learned partition so recurrence counts survive across
// invocations.
type ledgerFile struct {
	Unknowns []ledgerEntry `json:"unknowns"`
}

type ledgerEntry struct {
	Signature string    `json:"signature"`
	Example   string    `json:"example"`
	Count     int       `json:"count"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// LoadUnknowns restores the unknowns ledger from path. A missing file
// is not an error. Counts for signatures already tracked in memory are
// merged additively.
func (e *Engine) LoadUnknowns(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read unknowns ledger: %w", err)
	}

	var f ledgerFile
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse unknowns ledger %s: %w", path, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, u := range f.Unknowns {
		if u.Signature == "" || u.Count <= 0 {
			continue
		}
		rec, ok := e.unknowns[u.Signature]
		if !ok {
			if len(e.unknowns) >= e.cfg.MaxTracked {
				e.evictOldestLocked()
			}
			rec = &unknownRecord{
				signature: u.Signature,
				example:   u.Example,
				firstSeen: u.FirstSeen,
			}
			e.unknowns[u.Signature] = rec
		}
		rec.count += u.Count
		if u.LastSeen.After(rec.lastSeen) {
			rec.lastSeen = u.LastSeen
		}
	}
	return nil
}

// SaveUnknowns writes the tracked signatures to path, staged through a
// temp file. Entries are sorted so the file diffs cleanly.
func (e *Engine) SaveUnknowns(path string) error {
	e.mu.Lock()
	f := ledgerFile{Unknowns: make([]ledgerEntry, 0, len(e.unknowns))}
	for _, r := range e.unknowns {
		f.Unknowns = append(f.Unknowns, ledgerEntry{
			Signature: r.signature,
			Example:   r.example,
			Count:     r.count,
			FirstSeen: r.firstSeen,
			LastSeen:  r.lastSeen,
		})
	}
	e.mu.Unlock()

	sort.Slice(f.Unknowns, func(i, j int) bool {
		return f.Unknowns[i].Signature < f.Unknowns[j].Signature
	})

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode unknowns ledger: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write unknowns ledger: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename unknowns ledger: %w", err)
	}
	return nil
}
