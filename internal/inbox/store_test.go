package inbox

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportdesk/triage/internal/metrics"
	"github.com/supportdesk/triage/internal/source"
)

type switchSource struct {
	records []source.RawRecord
	fail    bool
}

func (s *switchSource) Name() string { return "test" }

func (s *switchSource) Records(ctx context.Context) ([]source.RawRecord, error) {
	if s.fail {
		return nil, fmt.Errorf("%w: connection refused", source.ErrUnavailable)
	}
	return s.records, nil
}

func sampleRecords() []source.RawRecord {
	return []source.RawRecord{
		raw("email_1", "a@x.com", "Login issue", "I cannot access my account, frustrated", "2024-01-04T06:00:00Z"),
		raw("email_2", "b@x.com", "Pricing question", "Thanks! I need help choosing a plan", "2024-01-02"),
		raw("email_3", "c@x.com", "Hi", "Just saying hi", "2024-01-04"),
		raw("email_4", "d@x.com", "Billing request", "Please check my invoice", "2024-01-03 20:00:00"),
	}
}

func newTestStore(t *testing.T, src source.Source) *Store {
	t.Helper()
	return NewStore(src, newTestProcessor(t),
		WithClock(func() time.Time { return fixedNow }),
		WithMetrics(metrics.New()),
	)
}

func TestStoreLoad(t *testing.T) {
	s := newTestStore(t, &switchSource{records: sampleRecords()})

	res, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test", res.Source)
	assert.Equal(t, 4, res.Fetched)
	assert.Equal(t, 3, res.Retained)
	assert.Equal(t, 1, res.Filtered)
	assert.Equal(t, 0, res.Invalid)
	assert.Equal(t, fixedNow, res.LoadedAt)
	assert.Equal(t, res, s.LastLoad())

	records := s.Records()
	require.Len(t, records, 3)
	assert.Equal(t, "email_1", records[0].ID)
	assert.Equal(t, "email_4", records[1].ID)
	assert.Equal(t, "email_2", records[2].ID)
}

func TestStoreLoadFailureEmptiesCollection(t *testing.T) {
	src := &switchSource{records: sampleRecords()}
	s := newTestStore(t, src)

	_, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, s.Len())

	src.fail = true
	_, err = s.Load(context.Background())
	assert.True(t, errors.Is(err, source.ErrUnavailable))
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, s.StatsNow().TotalEmails)
}

func TestStoreLoadReplacesCollection(t *testing.T) {
	src := &switchSource{records: sampleRecords()}
	s := newTestStore(t, src)
	_, err := s.Load(context.Background())
	require.NoError(t, err)

	found, err := s.SetStatus("email_1", StatusResolved)
	require.NoError(t, err)
	require.True(t, found)

	src.records = sampleRecords()[:1]
	_, err = s.Load(context.Background())
	require.NoError(t, err)

	e, ok := s.Get("email_1")
	require.True(t, ok)
	assert.Equal(t, StatusPending, e.Status)
	_, ok = s.Get("email_2")
	assert.False(t, ok)
}

func TestStoreSetStatus(t *testing.T) {
	s := newTestStore(t, &switchSource{records: sampleRecords()})
	_, err := s.Load(context.Background())
	require.NoError(t, err)

	before, _ := s.Get("email_2")

	found, err := s.SetStatus("email_2", StatusResolved)
	require.NoError(t, err)
	assert.True(t, found)

	after, _ := s.Get("email_2")
	assert.Equal(t, StatusResolved, after.Status)
	after.Status = before.Status
	assert.Equal(t, before, after)
}

func TestStoreSetStatusUnknownIDIsNoop(t *testing.T) {
	s := newTestStore(t, &switchSource{records: sampleRecords()})
	_, err := s.Load(context.Background())
	require.NoError(t, err)

	before := s.Records()
	found, err := s.SetStatus("email_999", StatusResolved)
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, before, s.Records())

	assert.False(t, s.MarkResolved("email_999"))
	assert.Equal(t, before, s.Records())
}

func TestStoreSetStatusInvalid(t *testing.T) {
	s := newTestStore(t, &switchSource{records: sampleRecords()})
	_, err := s.Load(context.Background())
	require.NoError(t, err)

	before := s.Records()
	_, err = s.SetStatus("email_1", Status("archived"))
	assert.ErrorIs(t, err, ErrInvalidStatus)
	assert.Equal(t, before, s.Records())
}

func TestStoreReturnsCopies(t *testing.T) {
	s := newTestStore(t, &switchSource{records: sampleRecords()})
	_, err := s.Load(context.Background())
	require.NoError(t, err)

	records := s.Records()
	records[0].Status = StatusResolved
	records[0].ExtractedInfo.Requirements = append(records[0].ExtractedInfo.Requirements, "injected")

	fresh, _ := s.Get(records[0].ID)
	assert.Equal(t, StatusPending, fresh.Status)
	assert.NotContains(t, fresh.ExtractedInfo.Requirements, "injected")
}

func TestStoreFilterAndStats(t *testing.T) {
	s := newTestStore(t, &switchSource{records: sampleRecords()})
	_, err := s.Load(context.Background())
	require.NoError(t, err)

	assert.True(t, s.MarkResolved("email_4"))

	urgent := s.Filter(Criteria{Priority: "urgent"})
	require.Len(t, urgent, 1)
	assert.Equal(t, "email_1", urgent[0].ID)

	resolved := s.Filter(Criteria{Status: "resolved", Sentiment: "all"})
	require.Len(t, resolved, 1)
	assert.Equal(t, "email_4", resolved[0].ID)

	stats := s.StatsNow()
	assert.Equal(t, 3, stats.TotalEmails)
	assert.Equal(t, 1, stats.EmailsResolved)
	assert.Equal(t, 2, stats.EmailsPending)
	assert.Equal(t, 2, stats.EmailsLast24h)
}
