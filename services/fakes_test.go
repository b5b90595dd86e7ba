package services

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/calvinlm/MatchPoint-Prototype-sub000/models"
	"github.com/calvinlm/MatchPoint-Prototype-sub000/realtime"
	"github.com/calvinlm/MatchPoint-Prototype-sub000/repositories"
	"github.com/calvinlm/MatchPoint-Prototype-sub000/storage"
)

// In-memory fakes implementing the repository interfaces. The fake transactor
// snapshots repo state before the callback and restores it on error, matching
// the rollback semantics the services rely on.

type fakeQueueRepo struct {
	items  map[int]*models.QueueItem
	nextID int
}

func newFakeQueueRepo() *fakeQueueRepo {
	return &fakeQueueRepo{items: make(map[int]*models.QueueItem), nextID: 1}
}

func (r *fakeQueueRepo) snapshot() map[int]*models.QueueItem {
	snap := make(map[int]*models.QueueItem, len(r.items))
	for id, item := range r.items {
		cp := *item
		snap[id] = &cp
	}
	return snap
}

func (r *fakeQueueRepo) restore(snap map[int]*models.QueueItem) {
	r.items = snap
}

func (r *fakeQueueRepo) Create(ctx context.Context, exec repositories.SQLExecutor, item *models.QueueItem) error {
	max := 0
	for _, existing := range r.items {
		if existing.TournamentID == item.TournamentID && existing.Position > max {
			max = existing.Position
		}
	}
	item.ID = r.nextID
	r.nextID++
	item.Position = max + 1
	item.Version = 0
	item.UpdatedAt = time.Now()
	cp := *item
	r.items[item.ID] = &cp
	return nil
}

func (r *fakeQueueRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.QueueItem, error) {
	item, ok := r.items[id]
	if !ok {
		return nil, repositories.ErrQueueItemNotFound
	}
	cp := *item
	return &cp, nil
}

func (r *fakeQueueRepo) GetByMatchID(ctx context.Context, exec repositories.SQLExecutor, matchID int) (*models.QueueItem, error) {
	for _, item := range r.items {
		if item.MatchID == matchID {
			cp := *item
			return &cp, nil
		}
	}
	return nil, repositories.ErrQueueItemNotFound
}

func (r *fakeQueueRepo) ListByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) ([]*models.QueueItem, error) {
	items := make([]*models.QueueItem, 0)
	for _, item := range r.items {
		if item.TournamentID == tournamentID {
			cp := *item
			items = append(items, &cp)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Position < items[j].Position })
	return items, nil
}

func (r *fakeQueueRepo) cas(id, expectedVersion int, mutate func(*models.QueueItem)) (*models.QueueItem, error) {
	item, ok := r.items[id]
	if !ok || item.Version != expectedVersion {
		return nil, repositories.ErrQueueItemStale
	}
	mutate(item)
	item.Version++
	item.UpdatedAt = time.Now()
	cp := *item
	return &cp, nil
}

func (r *fakeQueueRepo) UpdatePositionCAS(ctx context.Context, exec repositories.SQLExecutor, id, position, expectedVersion int) (*models.QueueItem, error) {
	return r.cas(id, expectedVersion, func(item *models.QueueItem) { item.Position = position })
}

func (r *fakeQueueRepo) UpdateCourtCAS(ctx context.Context, exec repositories.SQLExecutor, id int, courtID *int, expectedVersion int) (*models.QueueItem, error) {
	return r.cas(id, expectedVersion, func(item *models.QueueItem) { item.CourtID = courtID })
}

func (r *fakeQueueRepo) TouchCAS(ctx context.Context, exec repositories.SQLExecutor, id, expectedVersion int) (*models.QueueItem, error) {
	return r.cas(id, expectedVersion, func(item *models.QueueItem) {})
}

func (r *fakeQueueRepo) Delete(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	if _, ok := r.items[id]; !ok {
		return repositories.ErrQueueItemNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *fakeQueueRepo) CompactPositions(ctx context.Context, exec repositories.SQLExecutor, tournamentID, removedPosition int) error {
	for _, item := range r.items {
		if item.TournamentID == tournamentID && item.Position > removedPosition {
			item.Position--
			item.Version++
			item.UpdatedAt = time.Now()
		}
	}
	return nil
}

type fakeMatchRepo struct {
	matches map[int]*models.Match
}

func newFakeMatchRepo() *fakeMatchRepo {
	return &fakeMatchRepo{matches: make(map[int]*models.Match)}
}

func (r *fakeMatchRepo) snapshot() map[int]*models.Match {
	snap := make(map[int]*models.Match, len(r.matches))
	for id, m := range r.matches {
		cp := *m
		snap[id] = &cp
	}
	return snap
}

func (r *fakeMatchRepo) restore(snap map[int]*models.Match) {
	r.matches = snap
}

func (r *fakeMatchRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Match, error) {
	m, ok := r.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *fakeMatchRepo) ListCompletedByBracket(ctx context.Context, exec repositories.SQLExecutor, bracketID int) ([]*models.Match, error) {
	matches := make([]*models.Match, 0)
	for _, m := range r.matches {
		if m.BracketID == bracketID && m.Status == models.MatchStatusCompleted && m.Score != nil {
			cp := *m
			matches = append(matches, &cp)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	return matches, nil
}

func (r *fakeMatchRepo) UpdateStatusCourt(ctx context.Context, exec repositories.SQLExecutor, id int, status models.MatchStatus, courtID *int) (*models.Match, error) {
	m, ok := r.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	m.Status = status
	m.CourtID = courtID
	m.UpdatedAt = time.Now()
	cp := *m
	return &cp, nil
}

func (r *fakeMatchRepo) UpdateScoreStatusWinner(ctx context.Context, exec repositories.SQLExecutor, id int, score *models.Score, status models.MatchStatus, winnerTeamID *int) (*models.Match, error) {
	m, ok := r.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	m.Score = score
	m.Status = status
	m.WinnerTeamID = winnerTeamID
	m.UpdatedAt = time.Now()
	cp := *m
	return &cp, nil
}

type fakeTransactor struct {
	queue   *fakeQueueRepo
	matches *fakeMatchRepo
}

func (t *fakeTransactor) WithinTx(ctx context.Context, fn repositories.TxFunc) error {
	var queueSnap map[int]*models.QueueItem
	var matchSnap map[int]*models.Match
	if t.queue != nil {
		queueSnap = t.queue.snapshot()
	}
	if t.matches != nil {
		matchSnap = t.matches.snapshot()
	}
	if err := fn(nil); err != nil {
		if t.queue != nil {
			t.queue.restore(queueSnap)
		}
		if t.matches != nil {
			t.matches.restore(matchSnap)
		}
		return err
	}
	return nil
}

type fakeStandingRepo struct {
	// RecomputeTournament пересчитывает сетки параллельно, поэтому мьютекс.
	mu        sync.Mutex
	byBracket map[int][]*models.Standing
	nextID    int
}

func newFakeStandingRepo() *fakeStandingRepo {
	return &fakeStandingRepo{byBracket: make(map[int][]*models.Standing), nextID: 1}
}

func (r *fakeStandingRepo) ReplaceForBracket(ctx context.Context, exec repositories.SQLExecutor, bracketID int, standings []*models.Standing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := make([]*models.Standing, 0, len(standings))
	for _, s := range standings {
		cp := *s
		cp.ID = r.nextID
		r.nextID++
		stored = append(stored, &cp)
	}
	r.byBracket[bracketID] = stored
	return nil
}

func (r *fakeStandingRepo) ListByBracket(ctx context.Context, exec repositories.SQLExecutor, bracketID int) ([]*models.Standing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := r.byBracket[bracketID]
	out := make([]*models.Standing, 0, len(stored))
	for _, s := range stored {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out, nil
}

type fakeBracketRepo struct {
	brackets map[int]*models.Bracket
}

func newFakeBracketRepo() *fakeBracketRepo {
	return &fakeBracketRepo{brackets: make(map[int]*models.Bracket)}
}

func (r *fakeBracketRepo) GetByID(ctx context.Context, id int) (*models.Bracket, error) {
	b, ok := r.brackets[id]
	if !ok {
		return nil, repositories.ErrBracketNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *fakeBracketRepo) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Bracket, error) {
	brackets := make([]*models.Bracket, 0)
	for _, b := range r.brackets {
		if b.TournamentID == tournamentID {
			cp := *b
			brackets = append(brackets, &cp)
		}
	}
	sort.Slice(brackets, func(i, j int) bool { return brackets[i].ID < brackets[j].ID })
	return brackets, nil
}

type fakeSnapshotStore struct {
	mu      sync.Mutex
	uploads map[string][]byte
}

func newFakeSnapshotStore() *fakeSnapshotStore {
	return &fakeSnapshotStore{uploads: make(map[string][]byte)}
}

func (s *fakeSnapshotStore) Upload(ctx context.Context, key, contentType string, reader io.Reader) (*storage.UploadResult, error) {
	payload, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads[key] = payload
	return &storage.UploadResult{Key: key}, nil
}

func (s *fakeSnapshotStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.uploads, key)
	return nil
}

func (s *fakeSnapshotStore) GetPublicURL(key string) string {
	return "https://snapshots.test/" + key
}

// fakeRecomputeTracker записывает запрошенные пересчёты вместо реальной работы.
type fakeRecomputeTracker struct {
	recomputed []int
}

func (f *fakeRecomputeTracker) GetByBracket(ctx context.Context, bracketID int) ([]*models.Standing, error) {
	return nil, nil
}

func (f *fakeRecomputeTracker) Recompute(ctx context.Context, bracketID int) ([]*models.Standing, error) {
	f.recomputed = append(f.recomputed, bracketID)
	return nil, nil
}

func (f *fakeRecomputeTracker) RecomputeTournament(ctx context.Context, tournamentID int) error {
	return nil
}

type publishedEvent struct {
	Topic realtime.Topic
	Event realtime.Event
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(topic realtime.Topic, event realtime.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Topic: topic, Event: event})
}

func (p *recordingPublisher) byType(eventType realtime.EventType) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	matched := make([]publishedEvent, 0)
	for _, e := range p.events {
		if e.Event.Type == eventType {
			matched = append(matched, e)
		}
	}
	return matched
}
