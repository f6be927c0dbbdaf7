package accounts_test

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-accounts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() {
		_ = db.Close()
	})

	_, err = accounts.Migrate(context.Background(), db)
	require.NoError(t, err)

	return db
}

type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}

// sequenceRandom returns predictable, distinct strings
type sequenceRandom struct {
	mu sync.Mutex
	n  int
}

func (s *sequenceRandom) RandomString(length int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	out := fmt.Sprintf("rnd%d", s.n)
	if len(out) < length {
		out += strings.Repeat("x", length-len(out))
	}
	return out[:length], nil
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock(now time.Time) *fixedClock {
	return &fixedClock{now: now}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type capturingMailer struct {
	mu       sync.Mutex
	messages []accounts.Message
	err      error
}

func (m *capturingMailer) Send(ctx context.Context, msg accounts.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msg)
	return nil
}

func (m *capturingMailer) Last() (accounts.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		return accounts.Message{}, false
	}
	return m.messages[len(m.messages)-1], true
}

type capturingSink struct {
	mu     sync.Mutex
	events []accounts.ActivityEvent
}

func (c *capturingSink) Record(ctx context.Context, evt accounts.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *capturingSink) Types() []accounts.ActivityEventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]accounts.ActivityEventType, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.EventType)
	}
	return out
}

type testEnv struct {
	db     *bun.DB
	repo   accounts.RepositoryManager
	deps   accounts.Dependencies
	clock  *fixedClock
	mailer *capturingMailer
	sink   *capturingSink
}

func newTestEnv(t *testing.T, opts ...func(*accounts.Options)) *testEnv {
	t.Helper()

	db := newTestDB(t)
	repo := accounts.NewRepositoryManager(db)

	cfg := accounts.DefaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}

	env := &testEnv{
		db:     db,
		repo:   repo,
		clock:  newFixedClock(time.Unix(1_700_000_000, 0)),
		mailer: &capturingMailer{},
		sink:   &capturingSink{},
	}

	env.deps = accounts.NewDependencies(repo, cfg,
		accounts.WithHasher(testHasher),
		accounts.WithRandom(&sequenceRandom{}),
		accounts.WithMailer(env.mailer),
		accounts.WithActivity(env.sink),
		accounts.WithLogger(testLogger{}),
		accounts.WithClock(env.clock.Now),
	)

	return env
}

// insertAccount stores an account directly, skipping validation
func (e *testEnv) insertAccount(t *testing.T, username, email string, status accounts.Status) *accounts.Account {
	t.Helper()

	account := &accounts.Account{
		Username: username,
		Email:    email,
		Status:   status,
		AuthKey:  "key-" + username,
	}
	require.NoError(t, account.SetPassword(testHasher, "secret"))

	created, err := e.repo.Accounts().Register(context.Background(), account)
	require.NoError(t, err)
	return created
}
