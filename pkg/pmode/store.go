package pmode

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// State tags the lifecycle position of a stored record
type State string

const (
	StateActive     State = "active"
	StateTombstoned State = "tombstoned"
	StateRemoved    State = "removed"
)

// Change reports whether a mutation altered the store
type Change int

const (
	Unchanged Change = iota
	Changed
)

// Record is one stored P-Mode with its lifecycle state
type Record struct {
	PMode        *ProcessingMode
	State        State
	LastModified time.Time
}

// AuditEvent describes one registry mutation attempt
type AuditEvent struct {
	Time    time.Time
	Action  string
	PModeID string
	Success bool
	Detail  string
}

// AuditSink receives registry audit events
type AuditSink interface {
	Record(ev AuditEvent)
}

type slogAudit struct {
	logger *slog.Logger
}

func (a slogAudit) Record(ev AuditEvent) {
	a.logger.Info("pmode audit",
		"action", ev.Action,
		"pmode", ev.PModeID,
		"success", ev.Success,
		"detail", ev.Detail)
}

// Store is the validated P-Mode registry. All operations are safe for
// concurrent use; reads take the read lock, mutations the write lock.
// Every mutation is persisted through the journal before the in-memory
// state is considered committed.
type Store struct {
	mu        sync.RWMutex
	records   map[string]*Record
	defaultID string
	journal   Journal
	audit     AuditSink
	logger    *slog.Logger
	now       func() time.Time
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithAuditSink replaces the default slog-backed audit sink
func WithAuditSink(sink AuditSink) StoreOption {
	return func(s *Store) { s.audit = sink }
}

// WithLogger sets the store logger
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = logger }
}

// NewStore creates a registry backed by the given journal and replays
// its contents. Invalid persisted records are all reported, joined into
// a single error, so an operator sees every problem at once.
func NewStore(journal Journal, opts ...StoreOption) (*Store, error) {
	s := &Store{
		records: make(map[string]*Record),
		journal: journal,
		logger:  slog.Default().With("component", "pmode"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.audit == nil {
		s.audit = slogAudit{logger: s.logger}
	}

	if journal != nil {
		records, defaultID, err := journal.Load()
		if err != nil {
			return nil, fmt.Errorf("loading pmode journal: %w", err)
		}
		var invalid []error
		for _, rec := range records {
			if rec.State == StateRemoved {
				continue
			}
			if err := rec.PMode.Validate(); err != nil {
				invalid = append(invalid, err)
				continue
			}
			s.records[rec.PMode.ID] = rec
		}
		s.defaultID = defaultID
		if len(invalid) > 0 {
			return nil, errors.Join(invalid...)
		}
	}
	return s, nil
}

// Create registers a new P-Mode. The record is validated first; an ID
// collision with any non-removed record fails with DuplicateKeyError.
func (s *Store) Create(pm *ProcessingMode) error {
	if err := pm.Validate(); err != nil {
		s.emit("create", idOf(pm), false, err.Error())
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[pm.ID]; exists {
		s.emit("create", pm.ID, false, "duplicate id")
		return &DuplicateKeyError{PModeID: pm.ID}
	}

	rec := &Record{PMode: pm.Clone(), State: StateActive, LastModified: s.now()}
	s.records[pm.ID] = rec
	if err := s.persistLocked(); err != nil {
		delete(s.records, pm.ID)
		s.emit("create", pm.ID, false, err.Error())
		return err
	}
	s.emit("create", pm.ID, true, "")
	return nil
}

// Update replaces an existing record. Submitting identical content
// reports Unchanged without touching the journal.
func (s *Store) Update(pm *ProcessingMode) (Change, error) {
	if err := pm.Validate(); err != nil {
		s.emit("update", idOf(pm), false, err.Error())
		return Unchanged, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.records[pm.ID]
	if !exists {
		s.emit("update", pm.ID, false, "no-such-id")
		return Unchanged, nil
	}
	if rec.State == StateActive && *rec.PMode == *pm {
		s.emit("update", pm.ID, true, "unchanged")
		return Unchanged, nil
	}

	prev := *rec
	rec.PMode = pm.Clone()
	rec.State = StateActive
	rec.LastModified = s.now()
	if err := s.persistLocked(); err != nil {
		*rec = prev
		s.emit("update", pm.ID, false, err.Error())
		return Unchanged, err
	}
	s.emit("update", pm.ID, true, "")
	return Changed, nil
}

// MarkDeleted tombstones a record. Tombstoned records stay listed but
// no longer resolve. Tombstoning twice reports Unchanged.
func (s *Store) MarkDeleted(id string) (Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.records[id]
	if !exists {
		s.emit("mark-deleted", id, false, "no-such-id")
		return Unchanged, nil
	}
	if rec.State == StateTombstoned {
		s.emit("mark-deleted", id, false, "already-deleted")
		return Unchanged, nil
	}

	prev := *rec
	rec.State = StateTombstoned
	rec.LastModified = s.now()
	if err := s.persistLocked(); err != nil {
		*rec = prev
		s.emit("mark-deleted", id, false, err.Error())
		return Unchanged, err
	}
	s.emit("mark-deleted", id, true, "")
	return Changed, nil
}

// Delete removes a record entirely. Repeated deletes report Unchanged.
// The default ID is left untouched even when it names the removed
// record, so a later re-registration restores default resolution.
func (s *Store) Delete(id string) (Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.records[id]
	if !exists {
		s.emit("delete", id, false, "no-such-id")
		return Unchanged, nil
	}

	rec.State = StateRemoved
	delete(s.records, id)
	if err := s.persistLocked(); err != nil {
		rec.State = StateActive
		s.records[id] = rec
		s.emit("delete", id, false, err.Error())
		return Unchanged, err
	}
	s.emit("delete", id, true, "")
	return Changed, nil
}

// SetDefault nominates the fallback P-Mode for Resolve
func (s *Store) SetDefault(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.records[id]
	if !exists || rec.State != StateActive {
		s.emit("set-default", id, false, "no-such-id")
		return fmt.Errorf("set default %s: %w", id, ErrNotFound)
	}

	prev := s.defaultID
	s.defaultID = id
	if err := s.persistLocked(); err != nil {
		s.defaultID = prev
		s.emit("set-default", id, false, err.Error())
		return err
	}
	s.emit("set-default", id, true, "")
	return nil
}

// DefaultID returns the nominated default P-Mode ID, or ""
func (s *Store) DefaultID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultID
}

// Resolution is the outcome of a Resolve call
type Resolution struct {
	PMode *ProcessingMode
	// ViaDefault is true when the requested ID missed and the default
	// record served the lookup
	ViaDefault bool
}

// Resolve looks up an active record by ID. A miss falls back to the
// default record when one is nominated and active; the result reports
// which step matched.
func (s *Store) Resolve(id string) (Resolution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if rec, ok := s.records[id]; ok && rec.State == StateActive {
		return Resolution{PMode: rec.PMode.Clone()}, nil
	}
	if s.defaultID != "" && s.defaultID != id {
		if rec, ok := s.records[s.defaultID]; ok && rec.State == StateActive {
			return Resolution{PMode: rec.PMode.Clone(), ViaDefault: true}, nil
		}
	}
	return Resolution{}, fmt.Errorf("resolve %s: %w", id, ErrNotFound)
}

// Get returns the record for an ID regardless of state
func (s *Store) Get(id string) (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, false
	}
	cp := *rec
	cp.PMode = rec.PMode.Clone()
	return &cp, true
}

// List returns all records sorted by ID
func (s *Store) List() []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Record, 0, len(s.records))
	for _, rec := range s.records {
		cp := *rec
		cp.PMode = rec.PMode.Clone()
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PMode.ID < out[j].PMode.ID })
	return out
}

// ValidateAll re-validates every stored record and returns one error
// per invalid record rather than stopping at the first
func (s *Store) ValidateAll() []error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var errs []error
	for _, rec := range s.records {
		if err := rec.PMode.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (s *Store) persistLocked() error {
	if s.journal == nil {
		return nil
	}
	recs := make([]*Record, 0, len(s.records))
	for _, rec := range s.records {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].PMode.ID < recs[j].PMode.ID })
	if err := s.journal.Save(recs, s.defaultID); err != nil {
		return fmt.Errorf("persisting pmode registry: %w", err)
	}
	return nil
}

func (s *Store) emit(action, id string, success bool, detail string) {
	s.audit.Record(AuditEvent{
		Time:    s.now(),
		Action:  action,
		PModeID: id,
		Success: success,
		Detail:  detail,
	})
}

func idOf(pm *ProcessingMode) string {
	if pm == nil {
		return ""
	}
	return pm.ID
}
