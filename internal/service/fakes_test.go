package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/peoplelab/hr-kb/internal/domain"
	"github.com/peoplelab/hr-kb/internal/port"
)

// Shared fixtures for tests that only need some row to exist.
var (
	qnaFixture = domain.QnAEntry{
		QuestionTitle:   "Probation period length",
		QuestionDetails: "How long is the standard probation period?",
		Answer:          "Three months.",
		CreatedByID:     "hr-1",
	}
	manualFixture = domain.Manual{
		Title:        "Leave policy",
		Content:      "Annual leave accrues monthly.",
		VersionMajor: 1,
		VersionMinor: 0,
		CreatedByID:  "hr-1",
	}
	manualVersionFixture = domain.ManualVersion{
		VersionMajor: 1,
		VersionMinor: 0,
		Content:      "Annual leave accrues monthly.",
		ChangeType:   domain.ChangeTypeMajor,
		ChangeLog:    "Initial creation",
		CreatedByID:  "hr-1",
	}
)

// fakeEmbedder records every embedded text and returns a fixed-size
// vector, or the configured error.
type fakeEmbedder struct {
	mu    sync.Mutex
	dim   int
	err   error
	calls []string
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{dim: 8}
}

func (e *fakeEmbedder) ModelName() string { return "fake-embedder" }
func (e *fakeEmbedder) Dimension() int    { return e.dim }

func (e *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	e.calls = append(e.calls, text)
	vec := make([]float32, e.dim)
	vec[0] = float32(len(text))
	return vec, nil
}

func (e *fakeEmbedder) embeddedTexts() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

// fakeVectorIndex keeps embeddings in memory and answers nearest-neighbor
// queries from a preset similarity table.
type fakeVectorIndex struct {
	mu         sync.Mutex
	embeddings map[string][]float32 // "entity/id" -> vector
	sims       map[string]float64   // "entity/id" -> similarity
	missing    map[string][]string
	all        map[string][]string
	updateErr  error
}

func newFakeVectorIndex() *fakeVectorIndex {
	return &fakeVectorIndex{
		embeddings: map[string][]float32{},
		sims:       map[string]float64{},
		missing:    map[string][]string{},
		all:        map[string][]string{},
	}
}

func vecKey(entity, id string) string { return entity + "/" + id }

func (v *fakeVectorIndex) setSimilarity(entity, id string, sim float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sims[vecKey(entity, id)] = sim
}

func (v *fakeVectorIndex) NearestNeighbors(_ context.Context, entity string, _ []float32, threshold float64, limit int) ([]port.VectorHit, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	var hits []port.VectorHit
	prefix := entity + "/"
	for key, sim := range v.sims {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if sim > threshold { // strictly above
			hits = append(hits, port.VectorHit{ID: strings.TrimPrefix(key, prefix), Similarity: sim})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (v *fakeVectorIndex) UpdateEmbedding(_ context.Context, entity, id string, vector []float32) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.updateErr != nil {
		return v.updateErr
	}
	v.embeddings[vecKey(entity, id)] = vector
	return nil
}

func (v *fakeVectorIndex) MissingEmbeddings(_ context.Context, entity string) ([]string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.missing[entity]...), nil
}

func (v *fakeVectorIndex) AllIDs(_ context.Context, entity string) ([]string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.all[entity]...), nil
}

func (v *fakeVectorIndex) embedding(entity, id string) ([]float32, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	vec, ok := v.embeddings[vecKey(entity, id)]
	return vec, ok
}

// fakeQnARepo is an in-memory QnARepository.
type fakeQnARepo struct {
	mu      sync.Mutex
	entries map[string]*domain.QnAEntry
	order   []string // insertion order
	nextID  int
	views   map[string]int
	failGet map[string]error // per-id GetQnAByID failures
}

func newFakeQnARepo() *fakeQnARepo {
	return &fakeQnARepo{
		entries: map[string]*domain.QnAEntry{},
		views:   map[string]int{},
		failGet: map[string]error{},
	}
}

func (r *fakeQnARepo) CreateQnA(_ context.Context, q *domain.QnAEntry, categoryIDs, tagNames []string) (*domain.QnAEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	stored := *q
	stored.ID = fmt.Sprintf("qna-%d", r.nextID)
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	for _, id := range categoryIDs {
		stored.Categories = append(stored.Categories, domain.Category{ID: id})
	}
	for _, name := range tagNames {
		stored.Tags = append(stored.Tags, domain.Tag{Name: name})
	}
	r.entries[stored.ID] = &stored
	r.order = append(r.order, stored.ID)
	out := stored
	return &out, nil
}

func (r *fakeQnARepo) GetQnAByID(_ context.Context, id string) (*domain.QnAEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.failGet[id]; ok {
		return nil, err
	}
	entry, ok := r.entries[id]
	if !ok || entry.IsDeleted {
		return nil, port.ErrQnANotFound
	}
	out := *entry
	return &out, nil
}

func (r *fakeQnARepo) UpdateQnA(_ context.Context, q *domain.QnAEntry, categoryIDs, tagNames []string) (*domain.QnAEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[q.ID]
	if !ok || entry.IsDeleted {
		return nil, port.ErrQnANotFound
	}
	entry.QuestionTitle = q.QuestionTitle
	entry.QuestionDetails = q.QuestionDetails
	entry.Answer = q.Answer
	entry.AnswerBasis = q.AnswerBasis
	entry.UpdatedByID = q.UpdatedByID
	entry.UpdatedAt = time.Now()
	if categoryIDs != nil {
		entry.Categories = nil
		for _, id := range categoryIDs {
			entry.Categories = append(entry.Categories, domain.Category{ID: id})
		}
	}
	if tagNames != nil {
		entry.Tags = nil
		for _, name := range tagNames {
			entry.Tags = append(entry.Tags, domain.Tag{Name: name})
		}
	}
	out := *entry
	return &out, nil
}

func (r *fakeQnARepo) SoftDeleteQnA(_ context.Context, id, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if !ok || entry.IsDeleted {
		return port.ErrQnANotFound
	}
	entry.IsDeleted = true
	return nil
}

func (r *fakeQnARepo) IncrementQnAViewCount(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views[id]++
	return nil
}

func (r *fakeQnARepo) matchesFilter(entry *domain.QnAEntry, f port.QnAFilter) bool {
	if f.CategoryID != "" {
		found := false
		for _, c := range entry.Categories {
			if c.ID == f.CategoryID {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	if f.TagName != "" {
		found := false
		for _, t := range entry.Tags {
			if t.Name == f.TagName {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (r *fakeQnARepo) ListQnA(_ context.Context, f port.QnAFilter, offset, limit int) ([]domain.QnAEntry, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []domain.QnAEntry
	// newest first
	for i := len(r.order) - 1; i >= 0; i-- {
		entry := r.entries[r.order[i]]
		if entry.IsDeleted || !r.matchesFilter(entry, f) {
			continue
		}
		matched = append(matched, *entry)
	}
	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (r *fakeQnARepo) QnAKeywordMatches(_ context.Context, query string, limit int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	needle := strings.ToLower(query)
	var ids []string
	for i := len(r.order) - 1; i >= 0 && len(ids) < limit; i-- {
		entry := r.entries[r.order[i]]
		if entry.IsDeleted {
			continue
		}
		haystack := strings.ToLower(entry.QuestionTitle + " " + entry.QuestionDetails + " " + entry.Answer)
		if strings.Contains(haystack, needle) {
			ids = append(ids, entry.ID)
		}
	}
	return ids, nil
}

func (r *fakeQnARepo) FilterQnAIDs(_ context.Context, ids []string, f port.QnAFilter) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var kept []string
	for _, id := range ids {
		entry, ok := r.entries[id]
		if !ok || entry.IsDeleted {
			continue
		}
		if r.matchesFilter(entry, f) {
			kept = append(kept, id)
		}
	}
	return kept, nil
}

func (r *fakeQnARepo) GetQnAByIDs(_ context.Context, ids []string) ([]domain.QnAEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var entries []domain.QnAEntry
	for _, id := range ids {
		if entry, ok := r.entries[id]; ok && !entry.IsDeleted {
			entries = append(entries, *entry)
		}
	}
	return entries, nil
}

// fakeManualRepo is an in-memory ManualRepository with version history.
type fakeManualRepo struct {
	mu       sync.Mutex
	manuals  map[string]*domain.Manual
	versions map[string]*domain.ManualVersion
	order    []string
	nextID   int
}

func newFakeManualRepo() *fakeManualRepo {
	return &fakeManualRepo{
		manuals:  map[string]*domain.Manual{},
		versions: map[string]*domain.ManualVersion{},
	}
}

func (r *fakeManualRepo) appendVersion(manualID string, v *domain.ManualVersion) *domain.ManualVersion {
	r.nextID++
	stored := *v
	stored.ID = fmt.Sprintf("ver-%d", r.nextID)
	stored.ManualID = manualID
	stored.CreatedAt = time.Now().Add(time.Duration(r.nextID) * time.Millisecond)
	r.versions[stored.ID] = &stored
	return &stored
}

func (r *fakeManualRepo) CreateManual(_ context.Context, m *domain.Manual, v *domain.ManualVersion) (*domain.Manual, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	stored := *m
	stored.ID = fmt.Sprintf("manual-%d", r.nextID)
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	r.manuals[stored.ID] = &stored
	r.order = append(r.order, stored.ID)
	r.appendVersion(stored.ID, v)
	out := stored
	return &out, nil
}

func (r *fakeManualRepo) GetManualByID(_ context.Context, id string) (*domain.Manual, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.manuals[id]
	if !ok || m.IsDeleted {
		return nil, port.ErrManualNotFound
	}
	out := *m
	out.Versions = r.versionsFor(id)
	return &out, nil
}

func (r *fakeManualRepo) UpdateManual(_ context.Context, m *domain.Manual, v *domain.ManualVersion) (*domain.Manual, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.manuals[m.ID]
	if !ok || current.IsDeleted {
		return nil, port.ErrManualNotFound
	}
	current.Title = m.Title
	current.Content = m.Content
	current.VersionMajor = m.VersionMajor
	current.VersionMinor = m.VersionMinor
	current.UpdatedByID = m.UpdatedByID
	current.UpdatedAt = time.Now()
	r.appendVersion(m.ID, v)
	out := *current
	out.Versions = r.versionsFor(m.ID)
	return &out, nil
}

func (r *fakeManualRepo) SoftDeleteManual(_ context.Context, id, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.manuals[id]
	if !ok || m.IsDeleted {
		return port.ErrManualNotFound
	}
	m.IsDeleted = true
	return nil
}

func (r *fakeManualRepo) ListManuals(_ context.Context, f port.ManualFilter, offset, limit int) ([]domain.Manual, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []domain.Manual
	for i := len(r.order) - 1; i >= 0; i-- {
		m := r.manuals[r.order[i]]
		if m.IsDeleted || !matchesManualFilter(m, f) {
			continue
		}
		matched = append(matched, *m)
	}
	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func matchesManualFilter(m *domain.Manual, f port.ManualFilter) bool {
	if f.CreatedFrom != nil && m.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && m.CreatedAt.After(*f.CreatedTo) {
		return false
	}
	return true
}

func (r *fakeManualRepo) ManualKeywordMatches(_ context.Context, query string, limit int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	needle := strings.ToLower(query)
	var ids []string
	for i := len(r.order) - 1; i >= 0 && len(ids) < limit; i-- {
		m := r.manuals[r.order[i]]
		if m.IsDeleted {
			continue
		}
		if strings.Contains(strings.ToLower(m.Title+" "+m.Content), needle) {
			ids = append(ids, m.ID)
		}
	}
	return ids, nil
}

func (r *fakeManualRepo) FilterManualIDs(_ context.Context, ids []string, f port.ManualFilter) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var kept []string
	for _, id := range ids {
		m, ok := r.manuals[id]
		if !ok || m.IsDeleted {
			continue
		}
		if matchesManualFilter(m, f) {
			kept = append(kept, id)
		}
	}
	return kept, nil
}

func (r *fakeManualRepo) GetManualByIDs(_ context.Context, ids []string) ([]domain.Manual, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var manuals []domain.Manual
	for _, id := range ids {
		if m, ok := r.manuals[id]; ok && !m.IsDeleted {
			manuals = append(manuals, *m)
		}
	}
	return manuals, nil
}

func (r *fakeManualRepo) versionsFor(manualID string) []domain.ManualVersion {
	var versions []domain.ManualVersion
	for _, v := range r.versions {
		if v.ManualID == manualID {
			versions = append(versions, *v)
		}
	}
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].CreatedAt.After(versions[j].CreatedAt)
	})
	return versions
}

func (r *fakeManualRepo) ListManualVersions(_ context.Context, manualID string) ([]domain.ManualVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.versionsFor(manualID), nil
}

func (r *fakeManualRepo) GetManualVersion(_ context.Context, versionID string) (*domain.ManualVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.versions[versionID]
	if !ok {
		return nil, port.ErrVersionNotFound
	}
	out := *v
	return &out, nil
}
