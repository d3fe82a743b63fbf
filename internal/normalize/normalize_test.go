package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbdcwatch/monitor/internal/model"
)

func TestUIDDeterministic(t *testing.T) {
	a := UID("ecb", "https://ecb.europa.eu/press/1")
	b := UID("ecb", "https://ecb.europa.eu/press/1")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	// Different source, same url: different identity.
	assert.NotEqual(t, a, UID("boj", "https://ecb.europa.eu/press/1"))
}

func TestUIDFallsBackToURL(t *testing.T) {
	assert.Equal(t, UID("", "https://x.test/a"), UID("", "https://x.test/a"))
	assert.NotEqual(t, UID("", "https://x.test/a"), UID("s", "https://x.test/a"))
}

func TestCleanLine(t *testing.T) {
	assert.Equal(t, "Digital euro update", CleanLine("  Digital​ euro\r\n update \t"))
	assert.Equal(t, "", CleanLine("‌‍"))
}

func TestCleanBlockPreservesParagraphs(t *testing.T) {
	in := "First paragraph.\r\n\r\n\r\nSecond  paragraph."
	out := CleanBlock(in)
	assert.Equal(t, "First paragraph.\n\nSecond paragraph.", out)
}

func TestNormalizeFillsEveryField(t *testing.T) {
	now := time.Date(2026, 1, 7, 9, 0, 0, 0, time.UTC)
	rec, err := Normalize(model.RawItem{
		Source: "ecb",
		Entity: "ECB",
		Title:  "Digital euro progress report",
		URL:    "https://www.ecb.europa.eu/euro/digital_euro/report.pdf",
	}, now)
	require.NoError(t, err)

	assert.Equal(t, "ecb", rec.Source)
	assert.Equal(t, "pdf", rec.ContentType)
	assert.Equal(t, "2026-01-07 09:00:00", rec.CrawlTime)
	assert.Equal(t, UID("ecb", rec.URL), rec.UID)
	// Absent fields are empty strings, never dropped.
	assert.Equal(t, "", rec.Abstract)
	assert.Equal(t, "", rec.Content)
	assert.Len(t, rec.Row(), len(model.StandardFields))
}

func TestNormalizeIdempotentUID(t *testing.T) {
	raw := model.RawItem{Source: "boj", Title: "Payment systems report", URL: "https://boj.or.jp/en/x"}
	a, err := Normalize(raw, time.Now())
	require.NoError(t, err)
	b, err := Normalize(raw, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, a.UID, b.UID)
}

func TestNormalizeRejectsEmptyItem(t *testing.T) {
	_, err := Normalize(model.RawItem{Source: "ecb"}, time.Now())
	require.Error(t, err)

	var verr *model.ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Equal(t, "ecb", verr.Source)
}

func TestNormalizeDefaultsContentType(t *testing.T) {
	rec, err := Normalize(model.RawItem{Source: "s", Title: "t", URL: "https://x.test/page"}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "html", rec.ContentType)
}
