package repository

import (
	"sort"
	"time"

	"github.com/okian/league/internal/domain/model"
)

// index is an in-memory (username, date) -> snapshot map shared by the
// memory, json and gist backends. It is not synchronized.
type index struct {
	byUser map[string]map[model.Date]model.Snapshot
}

func newIndex() *index {
	return &index{byUser: make(map[string]map[model.Date]model.Snapshot)}
}

func (ix *index) put(s model.Snapshot) {
	days, ok := ix.byUser[s.Username]
	if !ok {
		days = make(map[model.Date]model.Snapshot)
		ix.byUser[s.Username] = days
	}
	days[s.Date] = s.Clone()
}

func (ix *index) get(username string, date model.Date) (model.Snapshot, bool) {
	s, ok := ix.byUser[username][date]
	if !ok {
		return model.Snapshot{}, false
	}
	return s.Clone(), true
}

func (ix *index) rangeOf(username string, start, end model.Date) []model.Snapshot {
	out := make([]model.Snapshot, 0)
	for d, s := range ix.byUser[username] {
		if d.Before(start) || d.After(end) {
			continue
		}
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func (ix *index) users() []string {
	out := make([]string, 0, len(ix.byUser))
	for u, days := range ix.byUser {
		if len(days) > 0 {
			out = append(out, u)
		}
	}
	sort.Strings(out)
	return out
}

func (ix *index) latest() (model.Date, bool) {
	var latest model.Date
	found := false
	for _, days := range ix.byUser {
		for d := range days {
			if !found || d.After(latest) {
				latest, found = d, true
			}
		}
	}
	return latest, found
}

// prune deletes everything older than the retention cutoff and returns the
// removed keys.
func (ix *index) prune(retainDays int) []Key {
	if retainDays <= 0 {
		return nil
	}
	latest, ok := ix.latest()
	if !ok {
		return nil
	}
	cutoff := pruneCutoff(latest, retainDays)
	var removed []Key
	for u, days := range ix.byUser {
		for d := range days {
			if d.Before(cutoff) {
				delete(days, d)
				removed = append(removed, Key{Username: u, Date: d})
			}
		}
		if len(days) == 0 {
			delete(ix.byUser, u)
		}
	}
	return removed
}

func (ix *index) dates() []model.Date {
	set := make(map[model.Date]struct{})
	for _, days := range ix.byUser {
		for d := range days {
			set[d] = struct{}{}
		}
	}
	out := make([]model.Date, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func (ix *index) onDate(date model.Date) map[string]model.Snapshot {
	out := make(map[string]model.Snapshot)
	for u, days := range ix.byUser {
		if s, ok := days[date]; ok {
			out[u] = s.Clone()
		}
	}
	return out
}

func (ix *index) clone() *index {
	c := newIndex()
	for _, days := range ix.byUser {
		for _, s := range days {
			c.put(s)
		}
	}
	return c
}

// historyEntry is one date of the combined history document. The layout is
// shared by the json and gist backends.
type historyEntry struct {
	Date      model.Date                `json:"date"`
	Timestamp time.Time                 `json:"timestamp"`
	Results   map[string]model.Snapshot `json:"results"`
}

// toHistory renders the index as history entries, oldest first. stamps
// carries the last write time per date; missing stamps are left zero.
func (ix *index) toHistory(stamps map[model.Date]time.Time) []historyEntry {
	dates := ix.dates()
	out := make([]historyEntry, 0, len(dates))
	for _, d := range dates {
		out = append(out, historyEntry{Date: d, Timestamp: stamps[d], Results: ix.onDate(d)})
	}
	return out
}

// indexFromHistory rebuilds an index and the per-date stamps. The username
// and date of each record are taken from the entry keys.
func indexFromHistory(entries []historyEntry) (*index, map[model.Date]time.Time) {
	ix := newIndex()
	stamps := make(map[model.Date]time.Time, len(entries))
	for _, e := range entries {
		stamps[e.Date] = e.Timestamp
		for u, s := range e.Results {
			s.Username = u
			s.Date = e.Date
			ix.put(s)
		}
	}
	return ix, stamps
}
