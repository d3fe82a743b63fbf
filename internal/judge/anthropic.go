package judge

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/cbdcwatch/monitor/internal/model"
	"github.com/cbdcwatch/monitor/pkg/anthropic"
)

// AnthropicJudge is the primary judgment service, backed by a Claude
// model via the official SDK.
type AnthropicJudge struct {
	client anthropic.Client
	model  string
	system []anthropic.SystemBlock
}

// NewAnthropic builds the primary judge.
func NewAnthropic(client anthropic.Client, modelID string) *AnthropicJudge {
	return &AnthropicJudge{
		client: client,
		model:  modelID,
		system: anthropic.BuildCachedSystemBlocks(relevancePrompt),
	}
}

func (j *AnthropicJudge) ID() model.JudgeID { return model.JudgeA }

func (j *AnthropicJudge) Assess(ctx context.Context, req Request) (Response, error) {
	resp, err := j.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     j.model,
		MaxTokens: 256,
		System:    j.system,
		Messages: []anthropic.Message{
			{Role: "user", Content: buildItem(req)},
		},
	})
	if err != nil {
		return Response{}, eris.Wrap(err, "judge: anthropic call")
	}

	var parts []string
	for _, block := range resp.Content {
		if block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return parseResponse(strings.Join(parts, "\n"))
}
