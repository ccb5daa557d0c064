package services

import (
	"context"
	"sort"
	"strings"
	stdsync "sync"
	"time"

	"github.com/custodia-labs/searchsync/internal/core/domain"
	"github.com/custodia-labs/searchsync/internal/core/ports/driven"
	"github.com/custodia-labs/searchsync/internal/core/ports/driving"
)

// Ensure mocks implement interfaces
var (
	_ driven.IndexGateway   = (*mockIndex)(nil)
	_ driven.RecordSource   = (*mockRecordSource)(nil)
	_ driven.SyncStateStore = (*mockSyncStateStore)(nil)
	_ driven.QueryLogStore  = (*mockQueryLogStore)(nil)
	_ driven.SchedulerStore = (*mockSchedulerStore)(nil)
	_ driving.SyncEngine    = (*mockSyncEngine)(nil)
)

// --- mockIndex ---

// mockIndex is an in-memory IndexGateway keyed by entity and id.
type mockIndex struct {
	mu      stdsync.Mutex
	docs    map[domain.EntityType]map[string]domain.IndexedDocument
	created map[domain.EntityType]bool

	pingErr     error
	ensureErr   error
	indexErr    error
	bulkErr     error
	deleteErr   error
	searchErr   error
	complErr    error
	failIDs     map[string]bool
	bulkCalls   int
	indexCalls  int
	lastQuery   domain.StructuredQuery
	lastPage    domain.Page
	lastEntity  []domain.EntityType
	searchHits  *domain.SearchHits
	completions []domain.Suggestion
	complDelay  time.Duration
}

func newMockIndex() *mockIndex {
	return &mockIndex{
		docs:    make(map[domain.EntityType]map[string]domain.IndexedDocument),
		created: make(map[domain.EntityType]bool),
		failIDs: make(map[string]bool),
	}
}

func (m *mockIndex) Ping(_ context.Context) error { return m.pingErr }

func (m *mockIndex) EnsureIndex(_ context.Context, def domain.IndexDefinition) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ensureErr != nil {
		return false, m.ensureErr
	}
	if m.created[def.Entity] {
		return false, nil
	}
	m.created[def.Entity] = true
	return true, nil
}

func (m *mockIndex) put(doc domain.IndexedDocument) {
	if m.docs[doc.Entity] == nil {
		m.docs[doc.Entity] = make(map[string]domain.IndexedDocument)
	}
	m.docs[doc.Entity][doc.ID] = doc
}

func (m *mockIndex) IndexDocument(_ context.Context, doc domain.IndexedDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indexCalls++
	if m.indexErr != nil {
		return m.indexErr
	}
	m.put(doc)
	return nil
}

func (m *mockIndex) UpdateDocument(_ context.Context, entity domain.EntityType, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[entity][id]
	if !ok {
		return domain.ErrNotFound
	}
	for k, v := range fields {
		doc.Fields[k] = v
	}
	return nil
}

func (m *mockIndex) DeleteDocument(_ context.Context, entity domain.EntityType, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.docs[entity], id)
	return nil
}

func (m *mockIndex) BulkIndex(_ context.Context, _ domain.EntityType, docs []domain.IndexedDocument) (domain.BulkResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bulkCalls++
	if m.bulkErr != nil {
		return domain.BulkResult{}, m.bulkErr
	}
	var res domain.BulkResult
	for _, d := range docs {
		if m.failIDs[d.ID] {
			res.Failed = append(res.Failed, domain.BulkItemError{ID: d.ID, Err: domain.ErrIndexRequest})
			continue
		}
		m.put(d)
		res.Indexed++
	}
	return res, nil
}

func (m *mockIndex) Search(_ context.Context, entities []domain.EntityType, q domain.StructuredQuery, page domain.Page) (*domain.SearchHits, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastQuery = q
	m.lastPage = page
	m.lastEntity = entities
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if m.searchHits != nil {
		return m.searchHits, nil
	}
	return &domain.SearchHits{}, nil
}

func (m *mockIndex) Completion(ctx context.Context, _ []domain.EntityType, prefix string, limit int) ([]domain.Suggestion, error) {
	if m.complDelay > 0 {
		select {
		case <-time.After(m.complDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.complErr != nil {
		return nil, m.complErr
	}
	var out []domain.Suggestion
	for _, s := range m.completions {
		if strings.HasPrefix(strings.ToLower(s.Text), strings.ToLower(prefix)) && len(out) < limit {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockIndex) Count(_ context.Context, entity domain.EntityType) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs[entity]), nil
}

func (m *mockIndex) Health(_ context.Context) (*domain.IndexHealth, error) {
	return &domain.IndexHealth{Backend: "mock", Status: "green"}, nil
}

func (m *mockIndex) Close() error { return nil }

func (m *mockIndex) doc(entity domain.EntityType, id string) (domain.IndexedDocument, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[entity][id]
	return d, ok
}

// --- mockRecordSource ---

type mockRecordSource struct {
	mu      stdsync.Mutex
	records map[domain.EntityType][]domain.Record
	readErr error
	calls   int

	// afterPage runs after each FindModifiedSince page is read.
	afterPage func(page []domain.Record)
}

func newMockRecordSource() *mockRecordSource {
	return &mockRecordSource{records: make(map[domain.EntityType][]domain.Record)}
}

func (m *mockRecordSource) add(records ...domain.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.records[r.Entity()] = append(m.records[r.Entity()], r)
	}
}

func (m *mockRecordSource) remove(entity domain.EntityType, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.records[entity][:0]
	for _, r := range m.records[entity] {
		if r.RecordID() != id {
			kept = append(kept, r)
		}
	}
	m.records[entity] = kept
}

func (m *mockRecordSource) FindByID(_ context.Context, entity domain.EntityType, id string) (domain.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	for _, r := range m.records[entity] {
		if r.RecordID() == id {
			return r, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockRecordSource) FindModifiedSince(_ context.Context, entity domain.EntityType, w domain.ModifiedWindow, limit int) ([]domain.Record, error) {
	m.mu.Lock()
	m.calls++
	if m.readErr != nil {
		m.mu.Unlock()
		return nil, m.readErr
	}
	var matched []domain.Record
	for _, r := range m.records[entity] {
		if w.Contains(r) {
			matched = append(matched, r)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return domain.ModifiedOrder(matched[i], matched[j]) })
	page := window(matched, 0, limit)
	afterPage := m.afterPage
	m.mu.Unlock()

	if afterPage != nil {
		afterPage(page)
	}
	return page, nil
}

// replace swaps the stored record with the same entity and id.
func (m *mockRecordSource) replace(r domain.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, old := range m.records[r.Entity()] {
		if old.RecordID() == r.RecordID() {
			m.records[r.Entity()][i] = r
			return
		}
	}
}

func (m *mockRecordSource) FindPage(_ context.Context, entity domain.EntityType, offset, limit int) ([]domain.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.readErr != nil {
		return nil, m.readErr
	}
	return window(m.records[entity], offset, limit), nil
}

func window(records []domain.Record, offset, limit int) []domain.Record {
	if offset >= len(records) {
		return nil
	}
	end := offset + limit
	if end > len(records) {
		end = len(records)
	}
	return append([]domain.Record(nil), records[offset:end]...)
}

// --- mockSyncStateStore ---

type mockSyncStateStore struct {
	mu      stdsync.Mutex
	states  map[string]domain.SyncState
	saveErr error
	getErr  error
}

func newMockSyncStateStore() *mockSyncStateStore {
	return &mockSyncStateStore{states: make(map[string]domain.SyncState)}
}

func (m *mockSyncStateStore) Save(_ context.Context, state domain.SyncState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.states[state.Key] = state
	return nil
}

func (m *mockSyncStateStore) Get(_ context.Context, key string) (*domain.SyncState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	st, ok := m.states[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &st, nil
}

func (m *mockSyncStateStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, key)
	return nil
}

// --- mockQueryLogStore ---

type mockQueryLogStore struct {
	mu         stdsync.Mutex
	records    []*domain.SearchQueryRecord
	clicks     map[string][]domain.ClickedResult
	history    []string
	popular    []domain.PopularQuery
	analytics  *domain.SearchAnalytics
	saveErr    error
	historyErr error
	popularErr error
	saveDelay  time.Duration
	lastRange  domain.TimeRange
	lastSince  time.Time
}

func newMockQueryLogStore() *mockQueryLogStore {
	return &mockQueryLogStore{clicks: make(map[string][]domain.ClickedResult)}
}

func (m *mockQueryLogStore) Save(ctx context.Context, record *domain.SearchQueryRecord) error {
	if m.saveDelay > 0 {
		select {
		case <-time.After(m.saveDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.records = append(m.records, record)
	return nil
}

func (m *mockQueryLogStore) AppendClick(_ context.Context, queryID string, click domain.ClickedResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clicks[queryID] = append(m.clicks[queryID], click)
	return nil
}

func (m *mockQueryLogStore) Get(_ context.Context, queryID string) (*domain.SearchQueryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ID == queryID {
			return r, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockQueryLogStore) UserHistory(_ context.Context, _, _ string, limit int) ([]string, error) {
	if m.historyErr != nil {
		return nil, m.historyErr
	}
	if len(m.history) > limit {
		return m.history[:limit], nil
	}
	return m.history, nil
}

func (m *mockQueryLogStore) PopularQueries(_ context.Context, _ string, since time.Time, limit int) ([]domain.PopularQuery, error) {
	m.mu.Lock()
	m.lastSince = since
	m.mu.Unlock()
	if m.popularErr != nil {
		return nil, m.popularErr
	}
	if len(m.popular) > limit {
		return m.popular[:limit], nil
	}
	return m.popular, nil
}

func (m *mockQueryLogStore) Analytics(_ context.Context, r domain.TimeRange, _ int) (*domain.SearchAnalytics, error) {
	m.lastRange = r
	if m.analytics != nil {
		return m.analytics, nil
	}
	return &domain.SearchAnalytics{}, nil
}

func (m *mockQueryLogStore) ClickThrough(_ context.Context, r domain.TimeRange) (*domain.ClickThroughStats, error) {
	m.lastRange = r
	return &domain.ClickThroughStats{}, nil
}

func (m *mockQueryLogStore) Trends(_ context.Context, r domain.TimeRange) ([]domain.TrendPoint, error) {
	m.lastRange = r
	return []domain.TrendPoint{}, nil
}

func (m *mockQueryLogStore) UserBehavior(_ context.Context, userID string, r domain.TimeRange, _ int) (*domain.UserBehavior, error) {
	m.lastRange = r
	return &domain.UserBehavior{UserID: userID}, nil
}

func (m *mockQueryLogStore) saved() []*domain.SearchQueryRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.SearchQueryRecord(nil), m.records...)
}

// --- mockSchedulerStore ---

// mockSchedulerStore implements driven.SchedulerStore for testing.
type mockSchedulerStore struct {
	mu       stdsync.RWMutex
	tasks    map[string]*domain.ScheduledTask
	results  map[string][]domain.TaskResult
	saveErr  error
	getErr   error
	pruneErr error
	pruned   int
}

func newMockSchedulerStore() *mockSchedulerStore {
	return &mockSchedulerStore{
		tasks:   make(map[string]*domain.ScheduledTask),
		results: make(map[string][]domain.TaskResult),
	}
}

func (m *mockSchedulerStore) GetTask(_ context.Context, taskID string) (*domain.ScheduledTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	task, exists := m.tasks[taskID]
	if !exists {
		return nil, nil
	}
	taskCopy := *task
	return &taskCopy, nil
}

func (m *mockSchedulerStore) ListTasks(_ context.Context) ([]domain.ScheduledTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tasks := make([]domain.ScheduledTask, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, *t)
	}
	return tasks, nil
}

func (m *mockSchedulerStore) SaveTask(_ context.Context, task *domain.ScheduledTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	taskCopy := *task
	m.tasks[task.ID] = &taskCopy
	return nil
}

func (m *mockSchedulerStore) DeleteTask(_ context.Context, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, taskID)
	return nil
}

func (m *mockSchedulerStore) RecordResult(_ context.Context, result *domain.TaskResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[result.TaskID] = append([]domain.TaskResult{*result}, m.results[result.TaskID]...)
	return nil
}

func (m *mockSchedulerStore) GetTaskHistory(_ context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	results := m.results[taskID]
	if len(results) > limit {
		results = results[:limit]
	}
	return append([]domain.TaskResult(nil), results...), nil
}

func (m *mockSchedulerStore) PruneHistory(_ context.Context, keep int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruned = keep
	return m.pruneErr
}

func (m *mockSchedulerStore) task(id string) *domain.ScheduledTask {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tasks[id]
}

// --- mockSyncEngine ---

type mockSyncEngine struct {
	mu           stdsync.Mutex
	pingErr      error
	ensureErr    error
	fullErr      error
	incErr       error
	syncOneErr   error
	deleteErr    error
	fullCalls    int
	incCalls     int
	syncOneCalls []string
	deleteCalls  []string
	fullEntities []domain.EntityType
	incStarted   chan struct{}
	incBlock     chan struct{}
	watermark    time.Time
}

func (m *mockSyncEngine) FullSync(_ context.Context, entities []domain.EntityType) (*domain.SyncReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fullCalls++
	m.fullEntities = entities
	r := domain.NewSyncReport(domain.SyncModeFull, time.Now())
	r.Add(domain.EntityPost, 3, 0)
	return r, m.fullErr
}

func (m *mockSyncEngine) IncrementalSync(_ context.Context) (*domain.SyncReport, error) {
	m.mu.Lock()
	m.incCalls++
	started, block := m.incStarted, m.incBlock
	err := m.incErr
	m.mu.Unlock()

	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if block != nil {
		<-block
	}
	r := domain.NewSyncReport(domain.SyncModeIncremental, time.Now())
	r.Add(domain.EntityUser, 1, 1)
	return r, err
}

func (m *mockSyncEngine) SyncOne(_ context.Context, entity domain.EntityType, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncOneCalls = append(m.syncOneCalls, entity.String()+"/"+id)
	return m.syncOneErr
}

func (m *mockSyncEngine) DeleteOne(_ context.Context, entity domain.EntityType, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls = append(m.deleteCalls, entity.String()+"/"+id)
	return m.deleteErr
}

func (m *mockSyncEngine) EnsureIndices(_ context.Context) error { return m.ensureErr }
func (m *mockSyncEngine) Ping(_ context.Context) error          { return m.pingErr }
func (m *mockSyncEngine) LoadWatermark(_ context.Context) error { return nil }
func (m *mockSyncEngine) Watermark() time.Time                  { return m.watermark }

func (m *mockSyncEngine) incrementalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.incCalls
}

// --- record fixtures ---

func testPost(id string, modified time.Time) *domain.PostRecord {
	return &domain.PostRecord{
		ID:        id,
		Author:    &domain.AuthorRef{ID: "u-" + id, Username: "author_" + id},
		Caption:   domain.Ptr("caption " + id),
		Content:   domain.Ptr("content " + id),
		Tags:      []string{"campus"},
		CreatedAt: domain.Ptr(modified),
		UpdatedAt: domain.Ptr(modified),
	}
}

func testUser(id string, modified time.Time) *domain.UserRecord {
	return &domain.UserRecord{
		ID:        id,
		Username:  domain.Ptr("user_" + id),
		CreatedAt: domain.Ptr(modified),
	}
}
