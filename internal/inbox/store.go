package inbox

import (
	"context"
	"sync"
	"time"

	"github.com/supportdesk/triage/internal/logger"
	"github.com/supportdesk/triage/internal/metrics"
	"github.com/supportdesk/triage/internal/source"
)

// LoadResult describes one Load.
type LoadResult struct {
	Source   string        `json:"source"`
	Fetched  int           `json:"fetched"`
	Retained int           `json:"retained"`
	Filtered int           `json:"filtered"`
	Invalid  int           `json:"invalid"`
	Duration time.Duration `json:"duration"`
	LoadedAt time.Time     `json:"loadedAt"`
}

// Store owns the processed collection. Load replaces it wholesale; SetStatus
// patches one record. Readers always get copies.
type Store struct {
	src     source.Source
	proc    *Processor
	log     logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu     sync.RWMutex
	emails []*Email
	index  map[string]int
	last   LoadResult
}

func NewStore(src source.Source, proc *Processor, opts ...Option) *Store {
	o := buildOptions(opts)
	return &Store{
		src:     src,
		proc:    proc,
		log:     o.log.With(logger.String("source", src.Name())),
		metrics: o.metrics,
		now:     o.now,
		index:   map[string]int{},
	}
}

// Load fetches, processes and installs a new collection. When the source is
// unavailable the collection becomes empty and the error is returned.
func (s *Store) Load(ctx context.Context) (LoadResult, error) {
	start := time.Now()
	res := LoadResult{Source: s.src.Name()}

	raws, err := s.src.Records(ctx)
	if err != nil {
		res.Duration = time.Since(start)
		res.LoadedAt = s.now()
		s.install(nil, res)
		s.metrics.RecordLoad(false, res.Duration, 0, 0, 0)
		s.log.Warn("Failed to fetch records", logger.Error(err))
		return res, err
	}

	run := s.proc.Run(raws)
	res.Fetched = run.Fetched
	res.Retained = len(run.Emails)
	res.Filtered = run.Filtered
	res.Invalid = run.Invalid
	res.Duration = time.Since(start)
	res.LoadedAt = s.now()

	s.install(run.Emails, res)

	s.metrics.RecordLoad(true, res.Duration, res.Retained, res.Filtered, res.Invalid)
	for _, e := range run.Emails {
		s.metrics.RecordClassification(string(e.Priority), string(e.Sentiment))
	}
	s.log.Info("Loaded support emails",
		logger.Int("fetched", res.Fetched),
		logger.Int("retained", res.Retained),
		logger.Int("filtered", res.Filtered),
		logger.Int("invalid", res.Invalid),
		logger.Duration("duration", res.Duration),
	)
	return res, nil
}

func (s *Store) install(emails []*Email, res LoadResult) {
	index := make(map[string]int, len(emails))
	for i, e := range emails {
		index[e.ID] = i
	}

	s.mu.Lock()
	s.emails = emails
	s.index = index
	s.last = res
	s.mu.Unlock()
}

// LastLoad returns the result of the most recent Load.
func (s *Store) LastLoad() LoadResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Len is the collection size.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.emails)
}

// Records returns a copy of the collection in sorted order.
func (s *Store) Records() []*Email {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.emails)
}

func cloneAll(emails []*Email) []*Email {
	out := make([]*Email, len(emails))
	for i, e := range emails {
		out[i] = e.clone()
	}
	return out
}

// Get returns a copy of the record with id.
func (s *Store) Get(id string) (*Email, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return s.emails[i].clone(), true
}

// SetStatus replaces the status of the record with id and nothing else.
// An unknown id is reported as not found and changes nothing.
func (s *Store) SetStatus(id string, status Status) (bool, error) {
	if _, err := ParseStatus(string(status)); err != nil {
		return false, err
	}

	s.mu.Lock()
	i, ok := s.index[id]
	if ok {
		s.emails[i].Status = status
	}
	s.mu.Unlock()

	if !ok {
		s.log.Debug("Status change for unknown id", logger.String("id", id))
		return false, nil
	}
	s.metrics.RecordStatusChange(string(status))
	s.log.Info("Status updated", logger.String("id", id), logger.String("status", string(status)))
	return true, nil
}

// MarkResolved records a successful send for id.
func (s *Store) MarkResolved(id string) bool {
	found, _ := s.SetStatus(id, StatusResolved)
	return found
}

// Stats summarizes the current collection at now.
func (s *Store) Stats(now time.Time) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Summarize(s.emails, now)
}

// StatsNow summarizes the collection at the store's clock.
func (s *Store) StatsNow() Stats {
	return s.Stats(s.now())
}

// Filter returns copies of the records matching c.
func (s *Store) Filter(c Criteria) []*Email {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(Filter(s.emails, c))
}
