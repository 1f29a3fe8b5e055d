package achievement

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questlog-gg/questlog-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY FAKES
// ══════════════════════════════════════════════════════════════════════════════

type memLedger struct {
	mu      sync.Mutex
	records map[string]*AwardRecord

	failRecord error // returned by RecordAward when set
	failCheck  error // returned by HasEverBeenAwarded when set
}

func newMemLedger() *memLedger {
	return &memLedger{records: make(map[string]*AwardRecord)}
}

func ledgerKey(userID shared.UserID, achievementID shared.AchievementID) string {
	return userID.String() + "|" + achievementID.String()
}

func (l *memLedger) HasEverBeenAwarded(_ context.Context, userID shared.UserID, achievementID shared.AchievementID) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failCheck != nil {
		return false, l.failCheck
	}
	_, ok := l.records[ledgerKey(userID, achievementID)]
	return ok, nil
}

func (l *memLedger) RecordAward(_ context.Context, record AwardRecord) (*AwardRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failRecord != nil {
		return nil, l.failRecord
	}
	key := ledgerKey(record.UserID, record.AchievementID)
	if _, ok := l.records[key]; ok {
		return nil, shared.ErrAwardExists
	}
	saved := record
	l.records[key] = &saved
	return &saved, nil
}

func (l *memLedger) ListAwards(_ context.Context, userID shared.UserID) ([]AwardRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []AwardRecord
	for _, rec := range l.records {
		if rec.UserID == userID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (l *memLedger) MarkExperienceApplied(_ context.Context, userID shared.UserID, achievementID shared.AchievementID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if rec, ok := l.records[ledgerKey(userID, achievementID)]; ok {
		rec.XPApplied = true
	}
	return nil
}

func (l *memLedger) ListUnapplied(_ context.Context, limit int) ([]AwardRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []AwardRecord
	for _, rec := range l.records {
		if !rec.XPApplied {
			out = append(out, *rec)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (l *memLedger) RecentAwards(_ context.Context, limit int) ([]AwardRecord, error) {
	return l.ListUnapplied(context.Background(), limit)
}

func (l *memLedger) record(userID shared.UserID, achievementID shared.AchievementID) *AwardRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.records[ledgerKey(userID, achievementID)]
}

type memCache struct {
	mu    sync.Mutex
	known map[shared.UserID][]shared.AchievementID

	setCalls int
	failAll  error
}

func newMemCache() *memCache {
	return &memCache{known: make(map[shared.UserID][]shared.AchievementID)}
}

func (c *memCache) GetKnown(_ context.Context, userID shared.UserID) ([]shared.AchievementID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAll != nil {
		return nil, c.failAll
	}
	ids, ok := c.known[userID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	out := make([]shared.AchievementID, len(ids))
	copy(out, ids)
	return out, nil
}

func (c *memCache) SetKnown(_ context.Context, userID shared.UserID, ids []shared.AchievementID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAll != nil {
		return c.failAll
	}
	stored := make([]shared.AchievementID, len(ids))
	copy(stored, ids)
	c.known[userID] = stored
	c.setCalls++
	return nil
}

func (c *memCache) AddKnown(_ context.Context, userID shared.UserID, id shared.AchievementID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAll != nil {
		return c.failAll
	}
	if _, ok := c.known[userID]; !ok {
		return nil
	}
	c.known[userID] = append(c.known[userID], id)
	return nil
}

func (c *memCache) Invalidate(_ context.Context, userID shared.UserID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.known, userID)
	return nil
}

type memSnapshots struct {
	mu    sync.Mutex
	snaps map[shared.UserID]*ActivitySnapshot
}

func newMemSnapshots() *memSnapshots {
	return &memSnapshots{snaps: make(map[shared.UserID]*ActivitySnapshot)}
}

func (s *memSnapshots) Snapshot(_ context.Context, userID shared.UserID) (*ActivitySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snaps[userID]
	if !ok {
		return nil, shared.ErrUserNotFound
	}
	copied := *snap
	return &copied, nil
}

func (s *memSnapshots) put(snap *ActivitySnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[snap.UserID] = snap
}

type memExperience struct {
	mu      sync.Mutex
	totals  map[shared.UserID]int
	applied map[string]bool

	failGrant error
}

func newMemExperience() *memExperience {
	return &memExperience{
		totals:  make(map[shared.UserID]int),
		applied: make(map[string]bool),
	}
}

func (e *memExperience) Grant(_ context.Context, userID shared.UserID, amount int, sourceRef string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failGrant != nil {
		return 0, e.failGrant
	}
	if e.applied[sourceRef] {
		return 0, shared.ErrGrantAlreadyApplied
	}
	e.applied[sourceRef] = true
	e.totals[userID] += amount
	return e.totals[userID], nil
}

func (e *memExperience) Total(_ context.Context, userID shared.UserID) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totals[userID], nil
}

type memNotifier struct {
	mu    sync.Mutex
	calls []shared.AchievementID

	fail error
}

func (n *memNotifier) AchievementEarned(_ context.Context, _ shared.UserID, def Definition) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		return n.fail
	}
	n.calls = append(n.calls, def.ID)
	return nil
}

func (n *memNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

type memPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *memPublisher) Publish(event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *memPublisher) ofType(t shared.EventType) []shared.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []shared.Event
	for _, ev := range p.events {
		if ev.EventType() == t {
			out = append(out, ev)
		}
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// TEST HARNESS
// ══════════════════════════════════════════════════════════════════════════════

const testUserID = shared.UserID("6a8f2c1e-0000-4000-8000-000000000001")

type engineFixture struct {
	engine     *Engine
	ledger     *memLedger
	cache      *memCache
	snapshots  *memSnapshots
	experience *memExperience
	notifier   *memNotifier
	events     *memPublisher
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	f := &engineFixture{
		ledger:     newMemLedger(),
		cache:      newMemCache(),
		snapshots:  newMemSnapshots(),
		experience: newMemExperience(),
		notifier:   &memNotifier{},
		events:     &memPublisher{},
	}
	f.engine = NewEngine(DefaultCatalog(), f.ledger, f.cache, f.snapshots,
		f.experience, f.notifier, f.events, nil)
	return f
}

func memberSnapshot(userID shared.UserID) *ActivitySnapshot {
	return &ActivitySnapshot{
		UserID:           userID,
		Role:             shared.RoleMember,
		JoinedAt:         time.Now().Add(-24 * time.Hour),
		RegistrationRank: 100_000,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// EVALUATION
// ══════════════════════════════════════════════════════════════════════════════

func TestEvaluateAndAward_GrantsAllEligible(t *testing.T) {
	f := newEngineFixture(t)
	snap := memberSnapshot(testUserID)
	snap.HasPublishedFind = true
	snap.FindCount = 12
	snap.UpvotesGiven = 30
	f.snapshots.put(snap)

	granted, err := f.engine.EvaluateAndAward(context.Background(), testUserID)
	require.NoError(t, err)

	assert.ElementsMatch(t, []shared.AchievementID{"first_find", "scout_10", "cheerleader_25"}, granted)

	// Rewards applied exactly once each: 100 + 200 + 100.
	total, err := f.experience.Total(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, 400, total)

	// Every ledger row carries the applied flag.
	for _, id := range granted {
		rec := f.ledger.record(testUserID, id)
		require.NotNil(t, rec)
		assert.True(t, rec.XPApplied, "id %q", id)
	}

	assert.Equal(t, 3, f.notifier.count())
	assert.Len(t, f.events.ofType(shared.EventAchievementEarned), 3)
	assert.Len(t, f.events.ofType(shared.EventXPGained), 3)
}

func TestEvaluateAndAward_StaffNeverAwarded(t *testing.T) {
	f := newEngineFixture(t)
	snap := memberSnapshot(testUserID)
	snap.Role = shared.RoleStaff
	snap.HasPublishedFind = true
	snap.FindCount = 1000
	snap.RegistrationRank = 0
	f.snapshots.put(snap)

	granted, err := f.engine.EvaluateAndAward(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Empty(t, granted)

	total, _ := f.experience.Total(context.Background(), testUserID)
	assert.Zero(t, total)
	assert.Zero(t, f.notifier.count())
}

func TestEvaluateAndAward_SecondRunGrantsNothing(t *testing.T) {
	f := newEngineFixture(t)
	snap := memberSnapshot(testUserID)
	snap.HasPublishedFind = true
	snap.FindCount = 12
	f.snapshots.put(snap)

	first, err := f.engine.EvaluateAndAward(context.Background(), testUserID)
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := f.engine.EvaluateAndAward(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Empty(t, second)

	total, _ := f.experience.Total(context.Background(), testUserID)
	assert.Equal(t, 300, total)
	assert.Equal(t, 2, f.notifier.count())
}

func TestEvaluateAndAward_CacheLossCausesNoDuplicates(t *testing.T) {
	f := newEngineFixture(t)
	snap := memberSnapshot(testUserID)
	snap.HasPublishedFind = true
	f.snapshots.put(snap)

	_, err := f.engine.EvaluateAndAward(context.Background(), testUserID)
	require.NoError(t, err)

	// Simulate a cache flush. The ledger is authoritative, so the next
	// evaluation must still grant nothing.
	require.NoError(t, f.cache.Invalidate(context.Background(), testUserID))

	granted, err := f.engine.EvaluateAndAward(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Empty(t, granted)

	total, _ := f.experience.Total(context.Background(), testUserID)
	assert.Equal(t, 100, total)
}

func TestEvaluateAndAward_UnknownUser(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.engine.EvaluateAndAward(context.Background(), testUserID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestEvaluateAndAward_EmptyUserID(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.engine.EvaluateAndAward(context.Background(), "")
	assert.ErrorIs(t, err, shared.ErrInvalidID)
}

// ══════════════════════════════════════════════════════════════════════════════
// PARTIAL GRANTS
// ══════════════════════════════════════════════════════════════════════════════

func TestEvaluateAndAward_ExperienceFailureIsPartial(t *testing.T) {
	f := newEngineFixture(t)
	snap := memberSnapshot(testUserID)
	snap.HasPublishedFind = true
	f.snapshots.put(snap)
	f.experience.failGrant = errors.New("xp store down")

	granted, err := f.engine.EvaluateAndAward(context.Background(), testUserID)

	// The award stands and is reported as newly granted, but the error
	// says the reward is still owed.
	require.Error(t, err)
	assert.True(t, shared.IsPartialGrant(err))
	assert.Equal(t, []shared.AchievementID{"first_find"}, granted)

	rec := f.ledger.record(testUserID, "first_find")
	require.NotNil(t, rec)
	assert.False(t, rec.XPApplied)

	// The award is never rolled back: a later evaluation skips it via the
	// ledger even though no experience was applied.
	f.experience.failGrant = nil
	again, err := f.engine.EvaluateAndAward(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestEvaluateAndAward_NotificationFailureIsPartial(t *testing.T) {
	f := newEngineFixture(t)
	snap := memberSnapshot(testUserID)
	snap.HasPublishedFind = true
	f.snapshots.put(snap)
	f.notifier.fail = errors.New("notifier down")

	granted, err := f.engine.EvaluateAndAward(context.Background(), testUserID)

	require.Error(t, err)
	assert.True(t, shared.IsPartialGrant(err))
	assert.Equal(t, []shared.AchievementID{"first_find"}, granted)

	// Experience still landed despite the notification failure.
	total, _ := f.experience.Total(context.Background(), testUserID)
	assert.Equal(t, 100, total)
	rec := f.ledger.record(testUserID, "first_find")
	require.NotNil(t, rec)
	assert.True(t, rec.XPApplied)
}

func TestEvaluateAndAward_LedgerDownSurfacesError(t *testing.T) {
	f := newEngineFixture(t)
	snap := memberSnapshot(testUserID)
	snap.HasPublishedFind = true
	f.snapshots.put(snap)
	f.ledger.failCheck = errors.New("connection refused")

	granted, err := f.engine.EvaluateAndAward(context.Background(), testUserID)
	require.Error(t, err)
	assert.True(t, shared.IsStoreUnavailable(err))
	assert.Empty(t, granted)
}

// ══════════════════════════════════════════════════════════════════════════════
// CONCURRENCY
// ══════════════════════════════════════════════════════════════════════════════

func TestEvaluateAndAward_ConcurrentRunsAwardOnce(t *testing.T) {
	f := newEngineFixture(t)
	snap := memberSnapshot(testUserID)
	snap.HasPublishedFind = true
	snap.FindCount = 60
	snap.UpvotesGiven = 30
	snap.UpvotesReceived = 120
	snap.FollowsGiven = 15
	snap.FollowsReceived = 60
	f.snapshots.put(snap)

	const workers = 16
	results := make(chan []shared.AchievementID, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			granted, err := f.engine.EvaluateAndAward(context.Background(), testUserID)
			assert.NoError(t, err)
			results <- granted
		}()
	}
	wg.Wait()
	close(results)

	// Across all concurrent evaluations each achievement is reported as
	// newly granted exactly once.
	counts := make(map[shared.AchievementID]int)
	for granted := range results {
		for _, id := range granted {
			counts[id]++
		}
	}
	assert.Len(t, counts, 7)
	for id, n := range counts {
		assert.Equal(t, 1, n, "id %q", id)
	}

	// And experience was applied exactly once per achievement:
	// 100+200+500+100+300+50+300.
	total, _ := f.experience.Total(context.Background(), testUserID)
	assert.Equal(t, 1550, total)
}

// ══════════════════════════════════════════════════════════════════════════════
// READ PATH
// ══════════════════════════════════════════════════════════════════════════════

func TestCurrentAchievements_ReadRepairsCache(t *testing.T) {
	f := newEngineFixture(t)
	f.snapshots.put(memberSnapshot(testUserID))

	_, err := f.ledger.RecordAward(context.Background(), AwardRecord{
		UserID: testUserID, AchievementID: "scout_10", GrantedAt: time.Now(), XPGranted: 200,
	})
	require.NoError(t, err)
	_, err = f.ledger.RecordAward(context.Background(), AwardRecord{
		UserID: testUserID, AchievementID: "first_find", GrantedAt: time.Now(), XPGranted: 100,
	})
	require.NoError(t, err)

	ids, err := f.engine.CurrentAchievements(context.Background(), testUserID)
	require.NoError(t, err)

	// Catalog order, not insertion order.
	assert.Equal(t, []shared.AchievementID{"first_find", "scout_10"}, ids)
	assert.Equal(t, 1, f.cache.setCalls)

	// The repaired cache serves the next read without touching the ledger.
	cached, err := f.cache.GetKnown(context.Background(), testUserID)
	require.NoError(t, err)
	assert.ElementsMatch(t, ids, cached)
}

func TestCurrentAchievements_CacheFailureFallsBackToLedger(t *testing.T) {
	f := newEngineFixture(t)
	f.snapshots.put(memberSnapshot(testUserID))
	f.cache.failAll = errors.New("redis down")

	_, err := f.ledger.RecordAward(context.Background(), AwardRecord{
		UserID: testUserID, AchievementID: "first_find", GrantedAt: time.Now(), XPGranted: 100,
	})
	require.NoError(t, err)

	ids, err := f.engine.CurrentAchievements(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, []shared.AchievementID{"first_find"}, ids)
}

func TestCurrentAchievements_LazyRankAwardOnRead(t *testing.T) {
	f := newEngineFixture(t)
	snap := memberSnapshot(testUserID)
	snap.RegistrationRank = 41 // within the founding-member cutoff of 100
	f.snapshots.put(snap)

	ids, err := f.engine.CurrentAchievements(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, []shared.AchievementID{"founding_member"}, ids)

	// A real award with the full sequence, not a read-time illusion.
	rec := f.ledger.record(testUserID, "founding_member")
	require.NotNil(t, rec)
	assert.True(t, rec.XPApplied)
	total, _ := f.experience.Total(context.Background(), testUserID)
	assert.Equal(t, 500, total)
}

func TestCurrentAchievements_RankRecheckedOnWarmCache(t *testing.T) {
	f := newEngineFixture(t)
	snap := memberSnapshot(testUserID)
	snap.RegistrationRank = 5
	f.snapshots.put(snap)

	// Warm cache that predates the award: rank eligibility must still be
	// noticed even though the cached set is served.
	require.NoError(t, f.cache.SetKnown(context.Background(), testUserID, nil))

	ids, err := f.engine.CurrentAchievements(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Contains(t, ids, shared.AchievementID("founding_member"))
	require.NotNil(t, f.ledger.record(testUserID, "founding_member"))
}

func TestCurrentAchievements_StaffGetsNoLazyAwards(t *testing.T) {
	f := newEngineFixture(t)
	snap := memberSnapshot(testUserID)
	snap.Role = shared.RoleStaff
	snap.RegistrationRank = 0
	f.snapshots.put(snap)

	ids, err := f.engine.CurrentAchievements(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Nil(t, f.ledger.record(testUserID, "founding_member"))
}

func TestCurrentAchievements_RepeatReadsAreStable(t *testing.T) {
	f := newEngineFixture(t)
	snap := memberSnapshot(testUserID)
	snap.RegistrationRank = 3
	f.snapshots.put(snap)

	first, err := f.engine.CurrentAchievements(context.Background(), testUserID)
	require.NoError(t, err)
	second, err := f.engine.CurrentAchievements(context.Background(), testUserID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	total, _ := f.experience.Total(context.Background(), testUserID)
	assert.Equal(t, 500, total) // granted once, not per read
}

// ══════════════════════════════════════════════════════════════════════════════
// LEVEL PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

func TestLevelProgressFor(t *testing.T) {
	f := newEngineFixture(t)
	f.experience.totals[testUserID] = 250

	p, err := f.engine.LevelProgressFor(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Level.Int())
	assert.Equal(t, 150, p.CurrentXPInLevel)
	assert.Equal(t, 50, p.RemainingXPToNextLevel)
}

func TestLevelUpEventCrossesBoundary(t *testing.T) {
	f := newEngineFixture(t)
	snap := memberSnapshot(testUserID)
	snap.FindCount = 50 // scout_10 (200) + pathfinder_50 (500)
	f.snapshots.put(snap)

	_, err := f.engine.EvaluateAndAward(context.Background(), testUserID)
	require.NoError(t, err)

	// 0 -> 200 crosses level 1->2, 200 -> 700 crosses 2->4.
	ups := f.events.ofType(shared.EventLevelUp)
	require.Len(t, ups, 2)
}
