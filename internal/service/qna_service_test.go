package service

import (
	"context"
	"testing"

	"github.com/peoplelab/hr-kb/internal/domain"
	"github.com/peoplelab/hr-kb/internal/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQnAServiceForTest() (*QnAService, *fakeQnARepo, *fakeVectorIndex, *fakeEmbedder) {
	repo := newFakeQnARepo()
	vectors := newFakeVectorIndex()
	embedder := newFakeEmbedder()
	svc := NewQnAService(repo, vectors, embedder, 0.3, 50)
	return svc, repo, vectors, embedder
}

func TestQnACreate_WritesContentAndEmbedding(t *testing.T) {
	svc, _, vectors, embedder := newQnAServiceForTest()
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateQnAInput{
		QuestionTitle:   "How do I request annual leave?",
		QuestionDetails: "I want to take next Friday off.",
		Answer:          "Submit the request through the portal.",
		CategoryIDs:     []string{"cat-leave"},
		TagNames:        []string{"leave", "vacation"},
		UserID:          "user-1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	// One embedding call, over the concatenated entry text.
	texts := embedder.embeddedTexts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "How do I request annual leave?")
	assert.Contains(t, texts[0], "Submit the request through the portal.")

	_, ok := vectors.embedding(port.EntityQnA, created.ID)
	assert.True(t, ok, "embedding should be stored for the new entry")
}

func TestQnACreate_RequiresTitleAndDetails(t *testing.T) {
	svc, _, _, embedder := newQnAServiceForTest()
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateQnAInput{QuestionDetails: "details"})
	assert.ErrorIs(t, err, port.ErrInvalidInput)

	_, err = svc.Create(ctx, CreateQnAInput{QuestionTitle: "title"})
	assert.ErrorIs(t, err, port.ErrInvalidInput)

	assert.Empty(t, embedder.embeddedTexts(), "invalid input must not reach the provider")
}

func TestQnACreate_ProviderFailureWritesNothing(t *testing.T) {
	svc, repo, _, embedder := newQnAServiceForTest()
	embedder.err = port.ErrEmbeddingNotConfigured

	_, err := svc.Create(context.Background(), CreateQnAInput{
		QuestionTitle:   "title",
		QuestionDetails: "details",
	})
	require.ErrorIs(t, err, port.ErrEmbeddingNotConfigured)
	assert.Empty(t, repo.entries, "embedding runs before any write")
}

func TestQnAUpdate_RecomputesEmbedding(t *testing.T) {
	svc, _, vectors, embedder := newQnAServiceForTest()
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateQnAInput{
		QuestionTitle:   "Expense policy",
		QuestionDetails: "How are expenses reimbursed?",
		UserID:          "user-1",
	})
	require.NoError(t, err)

	_, err = svc.Update(ctx, created.ID, UpdateQnAInput{
		QuestionTitle:   "Expense policy",
		QuestionDetails: "How are travel expenses reimbursed?",
		Answer:          "Within 30 days of filing.",
		UserID:          "user-2",
	})
	require.NoError(t, err)

	texts := embedder.embeddedTexts()
	require.Len(t, texts, 2)
	assert.Contains(t, texts[1], "Within 30 days of filing.")

	_, ok := vectors.embedding(port.EntityQnA, created.ID)
	assert.True(t, ok)
}

func TestQnAGet_IncrementsViewCount(t *testing.T) {
	svc, repo, _, _ := newQnAServiceForTest()
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateQnAInput{
		QuestionTitle:   "title",
		QuestionDetails: "details",
	})
	require.NoError(t, err)

	_, err = svc.Get(ctx, created.ID)
	require.NoError(t, err)
	_, err = svc.Get(ctx, created.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, repo.views[created.ID])
}

func TestQnADelete_RemovesFromSearchAndGet(t *testing.T) {
	svc, _, vectors, _ := newQnAServiceForTest()
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateQnAInput{
		QuestionTitle:   "Parking rules",
		QuestionDetails: "Where can I park?",
	})
	require.NoError(t, err)
	vectors.setSimilarity(port.EntityQnA, created.ID, 0.9)

	require.NoError(t, svc.Delete(ctx, created.ID, "admin-1"))

	_, err = svc.Get(ctx, created.ID)
	assert.ErrorIs(t, err, port.ErrQnANotFound)

	// The id may still rank, but hydration drops the deleted row.
	results, _, err := svc.Search(ctx, QnASearchParams{Query: "parking", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestQnASearch_EmptyQueryLists(t *testing.T) {
	svc, _, _, embedder := newQnAServiceForTest()
	ctx := context.Background()

	for _, title := range []string{"first", "second", "third"} {
		_, err := svc.Create(ctx, CreateQnAInput{QuestionTitle: title, QuestionDetails: "details"})
		require.NoError(t, err)
	}
	embedder.calls = nil

	results, meta, err := svc.Search(ctx, QnASearchParams{Query: "  ", Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, 3, meta.Total)
	assert.Equal(t, 2, meta.TotalPages)
	assert.Equal(t, "third", results[0].QuestionTitle, "listing is newest first")
	assert.Empty(t, embedder.embeddedTexts(), "empty query must not call the provider")
}

func TestQnASearch_HybridRanking(t *testing.T) {
	svc, _, vectors, _ := newQnAServiceForTest()
	ctx := context.Background()

	// Semantically close but phrased differently: vector path only.
	vacation, err := svc.Create(ctx, CreateQnAInput{
		QuestionTitle:   "Vacation day balance",
		QuestionDetails: "How many days off do I have left?",
	})
	require.NoError(t, err)
	vectors.setSimilarity(port.EntityQnA, vacation.ID, 0.88)

	// Matches the literal keyword and ranks moderately on the vector path.
	annual, err := svc.Create(ctx, CreateQnAInput{
		QuestionTitle:   "Annual leave carryover",
		QuestionDetails: "Can unused annual leave carry over to next year?",
	})
	require.NoError(t, err)
	vectors.setSimilarity(port.EntityQnA, annual.ID, 0.62)

	// Keyword-only match, semantically distant.
	memo, err := svc.Create(ctx, CreateQnAInput{
		QuestionTitle:   "Office supplies",
		QuestionDetails: "The annual budget memo mentions supplies.",
	})
	require.NoError(t, err)
	vectors.setSimilarity(port.EntityQnA, memo.ID, 0.12)

	results, meta, err := svc.Search(ctx, QnASearchParams{Query: "annual", Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, 3, meta.Total)

	// annual: 0.7*0.62 + 0.3 = 0.734 beats vacation: 0.7*0.88 = 0.616
	// beats memo: keyword only, 0.3 (similarity 0.12 is under the cutoff).
	assert.Equal(t, annual.ID, results[0].ID)
	assert.Equal(t, vacation.ID, results[1].ID)
	assert.Equal(t, memo.ID, results[2].ID)
}

func TestQnASearch_SemanticHitOutranksKeywordOnly(t *testing.T) {
	svc, _, vectors, _ := newQnAServiceForTest()
	ctx := context.Background()

	// Asks about annual-leave rules without using the query's wording.
	policy, err := svc.Create(ctx, CreateQnAInput{
		QuestionTitle:   "연차 휴가 규정",
		QuestionDetails: "연차는 어떻게 계산되나요?",
		Answer:          "입사일 기준으로 매년 15일이 부여됩니다.",
	})
	require.NoError(t, err)
	vectors.setSimilarity(port.EntityQnA, policy.ID, 0.85)

	// Contains the literal query string but is semantically unrelated.
	offtopic, err := svc.Create(ctx, CreateQnAInput{
		QuestionTitle:   "회식비 정산",
		QuestionDetails: "연차 사용일의 회식비는 정산 대상인가요?",
	})
	require.NoError(t, err)
	vectors.setSimilarity(port.EntityQnA, offtopic.ID, 0.2)

	results, _, err := svc.Search(ctx, QnASearchParams{Query: "연차", Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 2)

	// policy: 0.7*0.85 + 0.3 (keyword also matches) = 0.895;
	// offtopic: keyword only, 0.3.
	assert.Equal(t, policy.ID, results[0].ID)
	assert.Equal(t, offtopic.ID, results[1].ID)
}

func TestQnASearch_ThresholdIsStrict(t *testing.T) {
	svc, _, vectors, _ := newQnAServiceForTest()
	ctx := context.Background()

	boundary, err := svc.Create(ctx, CreateQnAInput{
		QuestionTitle:   "Relocation support",
		QuestionDetails: "Moving stipend details.",
	})
	require.NoError(t, err)
	above, err := svc.Create(ctx, CreateQnAInput{
		QuestionTitle:   "Relocation timeline",
		QuestionDetails: "When does support start?",
	})
	require.NoError(t, err)

	// Exactly at the cutoff: excluded. Just above: included.
	vectors.setSimilarity(port.EntityQnA, boundary.ID, 0.30)
	vectors.setSimilarity(port.EntityQnA, above.ID, 0.300001)

	results, _, err := svc.Search(ctx, QnASearchParams{Query: "stipend timing", Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, above.ID, results[0].ID)
}

func TestQnASearch_FilterAppliesToBothPaths(t *testing.T) {
	svc, _, vectors, _ := newQnAServiceForTest()
	ctx := context.Background()

	tagged, err := svc.Create(ctx, CreateQnAInput{
		QuestionTitle:   "Payroll schedule",
		QuestionDetails: "When is payday?",
		CategoryIDs:     []string{"cat-pay"},
	})
	require.NoError(t, err)
	untagged, err := svc.Create(ctx, CreateQnAInput{
		QuestionTitle:   "Payroll deductions",
		QuestionDetails: "What is withheld from payday amounts?",
	})
	require.NoError(t, err)

	vectors.setSimilarity(port.EntityQnA, tagged.ID, 0.7)
	vectors.setSimilarity(port.EntityQnA, untagged.ID, 0.9)

	results, meta, err := svc.Search(ctx, QnASearchParams{
		Query:  "payday",
		Filter: port.QnAFilter{CategoryID: "cat-pay"},
		Page:   1,
		Limit:  10,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, tagged.ID, results[0].ID)
	assert.Equal(t, 1, meta.Total, "total counts the filtered set, not raw candidates")
}

func TestQnASearch_ProviderFailureFailsSearch(t *testing.T) {
	svc, _, _, embedder := newQnAServiceForTest()
	embedder.err = port.ErrEmbeddingNotConfigured

	_, _, err := svc.Search(context.Background(), QnASearchParams{Query: "leave", Page: 1, Limit: 10})
	assert.ErrorIs(t, err, port.ErrEmbeddingNotConfigured,
		"a scored query never silently degrades to keyword-only results")
}

func TestQnASearch_RejectsBadPaging(t *testing.T) {
	svc, _, _, _ := newQnAServiceForTest()

	_, _, err := svc.Search(context.Background(), QnASearchParams{Query: "x", Page: 0, Limit: 10})
	assert.ErrorIs(t, err, port.ErrInvalidInput)

	_, _, err = svc.Search(context.Background(), QnASearchParams{Query: "x", Page: 1, Limit: 0})
	assert.ErrorIs(t, err, port.ErrInvalidInput)
}

func TestQnASearch_PaginationOverMergedSet(t *testing.T) {
	svc, _, vectors, _ := newQnAServiceForTest()
	ctx := context.Background()

	sims := []float64{0.9, 0.8, 0.7, 0.6, 0.5}
	ids := make([]string, 0, len(sims))
	for _, sim := range sims {
		created, err := svc.Create(ctx, CreateQnAInput{
			QuestionTitle:   "Benefits overview",
			QuestionDetails: "Coverage details.",
		})
		require.NoError(t, err)
		vectors.setSimilarity(port.EntityQnA, created.ID, sim)
		ids = append(ids, created.ID)
	}

	page1, meta, err := svc.Search(ctx, QnASearchParams{Query: "insurance", Page: 1, Limit: 2})
	require.NoError(t, err)
	page2, _, err := svc.Search(ctx, QnASearchParams{Query: "insurance", Page: 2, Limit: 2})
	require.NoError(t, err)
	page3, _, err := svc.Search(ctx, QnASearchParams{Query: "insurance", Page: 3, Limit: 2})
	require.NoError(t, err)

	assert.Equal(t, 5, meta.Total)
	assert.Equal(t, 3, meta.TotalPages)

	var got []string
	for _, page := range [][]string{collectIDs(page1), collectIDs(page2), collectIDs(page3)} {
		got = append(got, page...)
	}
	assert.Equal(t, ids, got, "pages walk the ranked set in order without gaps or repeats")
}

func collectIDs(entries []domain.QnAEntry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}
