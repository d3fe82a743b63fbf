package judge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbdcwatch/monitor/internal/model"
)

func TestParseResponseValid(t *testing.T) {
	resp, err := parseResponse(`{"is_relevant": true, "confidence": 0.92, "reasoning": "digital euro pilot"}`)
	require.NoError(t, err)
	assert.Equal(t, model.DecisionInclude, resp.Decision)
	assert.InDelta(t, 0.92, resp.Confidence, 0.001)
	assert.Equal(t, "digital euro pilot", resp.Reasoning)
}

func TestParseResponseExclude(t *testing.T) {
	resp, err := parseResponse(`{"is_relevant": false, "confidence": 0.7, "reasoning": "price commentary"}`)
	require.NoError(t, err)
	assert.Equal(t, model.DecisionExclude, resp.Decision)
}

func TestParseResponseMarkdownFence(t *testing.T) {
	resp, err := parseResponse("```json\n{\"is_relevant\": true, \"confidence\": 0.8, \"reasoning\": \"ok\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, model.DecisionInclude, resp.Decision)
}

func TestParseResponseSurroundingProse(t *testing.T) {
	resp, err := parseResponse(`Here is my assessment: {"is_relevant": false, "confidence": 0.6, "reasoning": "no CBDC angle"} Hope that helps.`)
	require.NoError(t, err)
	assert.Equal(t, model.DecisionExclude, resp.Decision)
}

func TestParseResponseMalformed(t *testing.T) {
	_, err := parseResponse("the model had a bad day")
	assert.Error(t, err, "unparseable output must surface as a failed attempt")
}

func TestBuildItemTruncatesContent(t *testing.T) {
	long := make([]byte, 5000)
	for i := range long {
		long[i] = 'x'
	}
	item := buildItem(Request{Title: "T", Content: string(long)})
	assert.Less(t, len(item), 1200)
}

func TestPrefilterDefaults(t *testing.T) {
	p := NewPrefilter(nil)

	assert.True(t, p.Match(Request{Title: "ECB advances Digital Euro rulebook"}))
	assert.True(t, p.Match(Request{Title: "Quarterly bulletin", Content: "a section on wholesale CBDC settlement"}))
	assert.False(t, p.Match(Request{Title: "Governor announces interest rate decision"}))
}

func TestPrefilterOverride(t *testing.T) {
	p := NewPrefilter([]string{"digital tenge"})

	assert.True(t, p.Match(Request{Title: "Kazakhstan launches Digital Tenge phase two"}))
	assert.False(t, p.Match(Request{Title: "ECB advances digital euro rulebook"}))
}
