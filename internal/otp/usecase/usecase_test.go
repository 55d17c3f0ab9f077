package usecase_test

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/otp/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpgate/internal/pkg/hash"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
	"github.com/stretchr/testify/require"
)

var errStore = errors.New("store is down")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type seqID struct{ n atomic.Int64 }

func (s *seqID) Generate() int64 { return s.n.Add(1) }

type fakeDB struct {
	mu      sync.Mutex
	records []entity.Record
	audits  []entity.AuditEntry

	getErr       error
	createErr    error
	incErr       error
	markErr      error
	deleteErr    error
	listAuditErr error

	incCalls int
	// raceConsume makes MarkConsumed lose against a concurrent winner.
	raceConsume bool
}

func (f *fakeDB) GetLatestRecord(_ context.Context, identity string) (*entity.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return nil, f.getErr
	}

	var latest *entity.Record
	for i := range f.records {
		r := &f.records[i]
		if r.Identity != identity {
			continue
		}
		if latest == nil || r.CreatedAt.After(latest.CreatedAt) || (r.CreatedAt.Equal(latest.CreatedAt) && r.ID > latest.ID) {
			latest = r
		}
	}
	if latest == nil {
		return nil, goerror.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (f *fakeDB) CreateRecord(_ context.Context, rec entity.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return f.createErr
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeDB) IncrementAttempts(_ context.Context, id int64, maxAttempts int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.incCalls++
	if f.incErr != nil {
		return 0, f.incErr
	}
	rec := f.byID(id)
	if err := guardWrite(rec, maxAttempts); err != nil {
		return 0, err
	}
	rec.Attempts++
	return rec.Attempts, nil
}

func (f *fakeDB) MarkConsumed(_ context.Context, id int64, at time.Time, maxAttempts int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.markErr != nil {
		return f.markErr
	}
	if f.raceConsume {
		return entity.ErrRecordConsumed
	}
	rec := f.byID(id)
	if err := guardWrite(rec, maxAttempts); err != nil {
		return err
	}
	rec.Consumed = true
	rec.ConsumedAt = &at
	return nil
}

func (f *fakeDB) byID(id int64) *entity.Record {
	for i := range f.records {
		if f.records[i].ID == id {
			return &f.records[i]
		}
	}
	return nil
}

// guardWrite mirrors the WHERE clause of the postgres updates.
func guardWrite(rec *entity.Record, maxAttempts int) error {
	switch {
	case rec == nil:
		return goerror.ErrNotFound
	case rec.Consumed:
		return entity.ErrRecordConsumed
	case rec.Attempts >= maxAttempts:
		return entity.ErrRecordLocked
	default:
		return nil
	}
}

func (f *fakeDB) DeleteExpiredRecords(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	n := len(f.records)
	f.records = slices.DeleteFunc(f.records, func(r entity.Record) bool { return r.ExpiresAt.Before(before) })
	return int64(n - len(f.records)), nil
}

func (f *fakeDB) CreateAudit(_ context.Context, entry entity.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.audits = append(f.audits, entry)
	return nil
}

func (f *fakeDB) ListAuditsBefore(_ context.Context, before time.Time) ([]entity.AuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.listAuditErr != nil {
		return nil, f.listAuditErr
	}
	var out []entity.AuditEntry
	for _, a := range f.audits {
		if a.Timestamp.Before(before) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeDB) DeleteAuditsBefore(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := len(f.audits)
	f.audits = slices.DeleteFunc(f.audits, func(a entity.AuditEntry) bool { return a.Timestamp.Before(before) })
	return int64(n - len(f.audits)), nil
}

func (f *fakeDB) auditStatuses() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	audits := slices.Clone(f.audits)
	slices.SortFunc(audits, func(a, b entity.AuditEntry) int { return cmp.Compare(a.ID, b.ID) })

	out := make([]string, 0, len(audits))
	for _, a := range audits {
		out = append(out, string(a.EventType)+":"+a.Status)
	}
	return out
}

type fakeCache struct {
	clock    *fakeClock
	locks    map[string]time.Time
	err      error
	acquired int
}

func (f *fakeCache) AcquireIssueLock(_ context.Context, identity string, ttl time.Duration) (bool, error) {
	f.acquired++
	if f.err != nil {
		return false, f.err
	}
	now := f.clock.Now()
	if exp, ok := f.locks[identity]; ok && now.Before(exp) {
		return false, nil
	}
	f.locks[identity] = now.Add(ttl)
	return true, nil
}

func (f *fakeCache) ReleaseIssueLock(_ context.Context, identity string) error {
	if f.err != nil {
		return f.err
	}
	delete(f.locks, identity)
	return nil
}

type fakeMQ struct {
	mu     sync.Mutex
	events []usecase.DeliveryEvent
	err    error
}

func (f *fakeMQ) PublishDelivery(_ context.Context, msg usecase.DeliveryEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.events = append(f.events, msg)
	return f.err
}

func (f *fakeMQ) lastCode(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	require.NotEmpty(t, f.events)
	return f.events[len(f.events)-1].Code
}

type fakeArchive struct {
	runs [][]entity.AuditEntry
	err  error
}

func (f *fakeArchive) ArchiveAudits(_ context.Context, _ time.Time, entries []entity.AuditEntry) error {
	if f.err != nil {
		return f.err
	}
	f.runs = append(f.runs, entries)
	return nil
}

type env struct {
	uc      *usecase.Usecase
	db      *fakeDB
	cache   *fakeCache
	mq      *fakeMQ
	archive *fakeArchive
	clock   *fakeClock
	hmac    *hash.HMACSHA256
	routine *goroutine.Manager
}

func newEnv(t *testing.T, yaml string, opts ...func(*usecase.Dependency)) *env {
	t.Helper()

	// defaults: five minute expiry, 60s cooldown, five attempts
	if yaml == "" {
		yaml = "{}"
	}
	cfg, err := config.NewViperFromBytes("yaml", []byte(yaml))
	require.NoError(t, err)

	v, err := validator.NewV10Validator()
	require.NoError(t, err)

	mac, err := hash.NewHMACSHA256("test-secret")
	require.NoError(t, err)

	clk := &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	e := &env{
		db:      &fakeDB{},
		cache:   &fakeCache{clock: clk, locks: map[string]time.Time{}},
		mq:      &fakeMQ{},
		archive: &fakeArchive{},
		clock:   clk,
		hmac:    mac,
		routine: goroutine.NewManager(50),
	}

	dep := usecase.Dependency{
		RepoDB:        e.db,
		RepoCache:     e.cache,
		RepoMessaging: e.mq,
		RepoArchive:   e.archive,
		Validator:     v,
		Config:        cfg,
		HMAC:          mac,
		UID:           &seqID{},
		Clock:         clk,
		Instrument:    instrument.NewNoop(),
		Goroutine:     e.routine,
	}
	for _, opt := range opts {
		opt(&dep)
	}
	e.uc = usecase.New(dep)

	return e
}

// flush waits for pending audit writes and returns them in issue order. The
// env accepts no audits afterwards.
func (e *env) flush(t *testing.T) []string {
	t.Helper()
	require.NoError(t, e.routine.Wait())
	return e.db.auditStatuses()
}

func (e *env) seed(rec entity.Record) {
	e.db.records = append(e.db.records, rec)
}

func requireCode(t *testing.T, err error, code goerror.Code) *goerror.Error {
	t.Helper()

	var gerr *goerror.Error
	require.ErrorAs(t, err, &gerr)
	require.Equal(t, code, gerr.Code(), gerr.String())
	return gerr
}
