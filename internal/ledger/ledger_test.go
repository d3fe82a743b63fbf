package ledger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbdcwatch/monitor/internal/model"
)

func testRecord(source, uid, url, title string) model.Record {
	return model.Record{
		UID:         uid,
		Source:      source,
		Entity:      "Test Bank",
		Category:    "press",
		Title:       title,
		URL:         url,
		ContentType: "html",
		CrawlTime:   model.Now(time.Date(2026, 1, 7, 9, 0, 0, 0, time.UTC)),
	}
}

func TestOpenFirstRunIsNotAnError(t *testing.T) {
	st, err := NewStore(t.TempDir())
	require.NoError(t, err)

	l, err := st.Open("ecb")
	require.NoError(t, err)
	assert.Equal(t, 0, l.KnownKeys())
}

func TestAcceptRejectsWithinRunDuplicates(t *testing.T) {
	st, err := NewStore(t.TempDir())
	require.NoError(t, err)
	l, err := st.Open("ecb")
	require.NoError(t, err)

	rec := testRecord("ecb", "uid-1", "https://x.test/1", "First")
	assert.True(t, l.Accept(rec))
	assert.False(t, l.Accept(rec), "same record twice in one run must be rejected")
	assert.Len(t, l.Accepted(), 1)
}

func TestAcceptURLFallback(t *testing.T) {
	st, err := NewStore(t.TempDir())
	require.NoError(t, err)
	l, err := st.Open("ecb")
	require.NoError(t, err)

	require.True(t, l.Accept(testRecord("ecb", "uid-1", "https://x.test/1", "First")))

	// Different uid, same url: still the same entity.
	dup := testRecord("ecb", "uid-2", "https://x.test/1", "First again")
	assert.False(t, l.Accept(dup))
}

func TestDedupIdempotenceAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	st, err := NewStore(dir)
	require.NoError(t, err)

	records := []model.Record{
		testRecord("boj", "uid-a", "https://boj.test/a", "A"),
		testRecord("boj", "uid-b", "https://boj.test/b", "B"),
	}

	// Run 1: both accepted.
	l, err := st.Open("boj")
	require.NoError(t, err)
	for _, r := range records {
		require.True(t, l.Accept(r))
	}
	require.NoError(t, l.Flush())

	allSize := func() int {
		recs, err := st.ReadLedger(filepath.Join(dir, "boj_standard_all.csv"))
		require.NoError(t, err)
		return len(recs)
	}
	require.Equal(t, 2, allSize())

	// Runs 2..4: identical collector output, nothing new.
	for run := 2; run <= 4; run++ {
		l, err := st.Open("boj")
		require.NoError(t, err)
		for _, r := range records {
			assert.False(t, l.Accept(r), "run %d must reject known records", run)
		}
		require.NoError(t, l.Flush())
		assert.Equal(t, 2, allSize(), "run %d must not grow history", run)

		newRecs, err := st.ReadLedger(filepath.Join(dir, "boj_standard_new.csv"))
		require.NoError(t, err)
		assert.Empty(t, newRecs, "run %d delta must be empty", run)
	}
}

func TestFlushPersistsOutcome(t *testing.T) {
	dir := t.TempDir()
	st, err := NewStore(dir)
	require.NoError(t, err)
	l, err := st.Open("imf")
	require.NoError(t, err)

	rec := testRecord("imf", "uid-1", "https://imf.test/1", "CBDC paper")
	require.True(t, l.Accept(rec))

	accepted := l.Accepted()
	accepted[0].Outcome = &model.Outcome{
		RecordUID:     rec.UID,
		FinalDecision: model.DecisionInclude,
		Agreement:     model.AgreementBoth,
		JudgeA:        &model.Verdict{RecordUID: rec.UID, JudgeID: model.JudgeA, Decision: model.DecisionInclude, Reasoning: "explicit CBDC topic"},
		JudgeB:        &model.Verdict{RecordUID: rec.UID, JudgeID: model.JudgeB, Decision: model.DecisionInclude, Reasoning: "retail CBDC pilot"},
	}
	require.NoError(t, l.Flush())

	recs, err := st.ReadLedger(filepath.Join(dir, "imf_standard_new.csv"))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.NotNil(t, recs[0].Outcome)
	assert.Equal(t, model.DecisionInclude, recs[0].Outcome.FinalDecision)
	assert.Equal(t, model.AgreementBoth, recs[0].Outcome.Agreement)
	assert.Equal(t, "explicit CBDC topic", recs[0].Outcome.JudgeA.Reasoning)
}

func TestBackfillContentOnlyFillsEmpty(t *testing.T) {
	dir := t.TempDir()
	st, err := NewStore(dir)
	require.NoError(t, err)

	l, err := st.Open("ecb")
	require.NoError(t, err)
	empty := testRecord("ecb", "uid-1", "https://x.test/1", "No body yet")
	full := testRecord("ecb", "uid-2", "https://x.test/2", "Has body")
	full.Content = "original body"
	require.True(t, l.Accept(empty))
	require.True(t, l.Accept(full))
	require.NoError(t, l.Flush())

	l, err = st.Open("ecb")
	require.NoError(t, err)
	assert.True(t, l.BackfillContent("uid-1", "fetched later"))
	assert.False(t, l.BackfillContent("uid-2", "must not overwrite"))
	assert.False(t, l.BackfillContent("uid-1", "already filled in memory"))
	require.NoError(t, l.Flush())

	recs, err := st.ReadLedger(filepath.Join(dir, "ecb_standard_all.csv"))
	require.NoError(t, err)
	byUID := map[string]model.Record{}
	for _, r := range recs {
		byUID[r.UID] = r
	}
	assert.Equal(t, "fetched later", byUID["uid-1"].Content)
	assert.Equal(t, "original body", byUID["uid-2"].Content)
}

func TestEmptyContentListsBackfillCandidates(t *testing.T) {
	st, err := NewStore(t.TempDir())
	require.NoError(t, err)

	l, err := st.Open("boj")
	require.NoError(t, err)
	empty := testRecord("boj", "uid-1", "https://boj.test/1", "No body")
	full := testRecord("boj", "uid-2", "https://boj.test/2", "Has body")
	full.Content = "body text"
	require.True(t, l.Accept(empty))
	require.True(t, l.Accept(full))
	require.NoError(t, l.Flush())

	l, err = st.Open("boj")
	require.NoError(t, err)
	candidates := l.EmptyContent()
	require.Len(t, candidates, 1)
	assert.Equal(t, "uid-1", candidates[0].UID)

	// Newly accepted records are not history yet.
	require.True(t, l.Accept(testRecord("boj", "uid-3", "https://boj.test/3", "Fresh")))
	assert.Len(t, l.EmptyContent(), 1)
}

func TestMergeIdempotent(t *testing.T) {
	dir := t.TempDir()
	st, err := NewStore(dir)
	require.NoError(t, err)

	for _, src := range []string{"ecb", "boj"} {
		l, err := st.Open(src)
		require.NoError(t, err)
		require.True(t, l.Accept(testRecord(src, src+"-1", "https://"+src+".test/1", "One")))
		require.True(t, l.Accept(testRecord(src, src+"-2", "https://"+src+".test/2", "Two")))
		require.NoError(t, l.Flush())
	}

	require.NoError(t, st.Merge())
	first, err := os.ReadFile(filepath.Join(dir, "GLOBAL_standard_all.csv"))
	require.NoError(t, err)
	firstNew, err := os.ReadFile(filepath.Join(dir, "GLOBAL_standard_new.csv"))
	require.NoError(t, err)

	require.NoError(t, st.Merge())
	second, err := os.ReadFile(filepath.Join(dir, "GLOBAL_standard_all.csv"))
	require.NoError(t, err)
	secondNew, err := os.ReadFile(filepath.Join(dir, "GLOBAL_standard_new.csv"))
	require.NoError(t, err)

	assert.Equal(t, first, second, "merging unchanged inputs must be byte-identical")
	assert.Equal(t, firstNew, secondNew)

	merged, err := st.ReadLedger(filepath.Join(dir, "GLOBAL_standard_all.csv"))
	require.NoError(t, err)
	assert.Len(t, merged, 4)
}

func TestMergeDedupsAcrossSources(t *testing.T) {
	dir := t.TempDir()
	st, err := NewStore(dir)
	require.NoError(t, err)

	// Two sources observed the same url under different uids.
	shared := "https://bis.test/shared"
	la, err := st.Open("alpha")
	require.NoError(t, err)
	require.True(t, la.Accept(testRecord("alpha", "a-1", shared, "Shared")))
	require.NoError(t, la.Flush())

	lb, err := st.Open("beta")
	require.NoError(t, err)
	require.True(t, lb.Accept(testRecord("beta", "b-1", shared, "Shared")))
	require.NoError(t, lb.Flush())

	require.NoError(t, st.Merge())
	merged, err := st.ReadLedger(filepath.Join(dir, "GLOBAL_standard_all.csv"))
	require.NoError(t, err)
	assert.Len(t, merged, 1, "url fallback must collapse cross-source duplicates")
}

func TestSourcesExcludesGlobal(t *testing.T) {
	dir := t.TempDir()
	st, err := NewStore(dir)
	require.NoError(t, err)

	for _, src := range []string{"ecb", "boj"} {
		l, err := st.Open(src)
		require.NoError(t, err)
		require.True(t, l.Accept(testRecord(src, src+"-1", "https://"+src+".test/1", "One")))
		require.NoError(t, l.Flush())
	}
	require.NoError(t, st.Merge())

	sources, err := st.Sources()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ecb", "boj"}, sources)
}
