package judge

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/cbdcwatch/monitor/internal/model"
	"github.com/cbdcwatch/monitor/pkg/openrouter"
)

// OpenRouterJudge is the secondary judgment service, an independent
// model family reached through OpenRouter so one provider outage never
// blinds both judges.
type OpenRouterJudge struct {
	client openrouter.Client
	model  string
}

// NewOpenRouter builds the secondary judge.
func NewOpenRouter(client openrouter.Client, modelID string) *OpenRouterJudge {
	return &OpenRouterJudge{client: client, model: modelID}
}

func (j *OpenRouterJudge) ID() model.JudgeID { return model.JudgeB }

func (j *OpenRouterJudge) Assess(ctx context.Context, req Request) (Response, error) {
	resp, err := j.client.ChatCompletion(ctx, openrouter.ChatCompletionRequest{
		Model: j.model,
		Messages: []openrouter.Message{
			{Role: "system", Content: relevancePrompt},
			{Role: "user", Content: buildItem(req)},
		},
	})
	if err != nil {
		return Response{}, eris.Wrap(err, "judge: openrouter call")
	}
	if len(resp.Choices) == 0 {
		return Response{}, eris.New("judge: openrouter returned no choices")
	}
	return parseResponse(resp.Choices[0].Message.Content)
}
