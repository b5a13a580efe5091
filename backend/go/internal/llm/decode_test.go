package llm

import (
	"context"
	"errors"
	"testing"

	"NarrativeScout/backend/go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLLM returns a canned reply and records the last request.
type fakeLLM struct {
	reply string
	err   error
	last  *models.GenerateContentRequest
}

func (f *fakeLLM) GenerateContent(_ context.Context, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.GenerateContentResponse{
		Content: []models.Content{{Parts: []*models.Part{{Text: f.reply}}, Role: models.SpeakerModel}},
	}, nil
}

type payload struct {
	Items []struct {
		Title string `json:"title" validate:"required"`
	} `json:"items" validate:"required,dive"`
}

func TestComplete_PassesSystemAndUser(t *testing.T) {
	fake := &fakeLLM{reply: "hello"}
	gw := NewGateway(fake, 0, nil)

	got, err := gw.Complete(context.Background(), "be terse", "say hi")

	require.NoError(t, err)
	assert.Equal(t, "hello", got)
	assert.Equal(t, "be terse", fake.last.SystemInstruction)
	assert.Equal(t, "say hi", fake.last.UserText())
}

func TestComplete_PropagatesTransportError(t *testing.T) {
	errDown := errors.New("connection refused")
	gw := NewGateway(&fakeLLM{err: errDown}, 0, nil)

	_, err := gw.Complete(context.Background(), "s", "u")

	assert.ErrorIs(t, err, errDown)
	var parseErr *ParseError
	assert.False(t, errors.As(err, &parseErr))
}

func TestCompleteAs_DecodesFencedJSON(t *testing.T) {
	gw := NewGateway(&fakeLLM{reply: "Result:\n```json\n{\"items\":[{\"title\":\"a\"}]}\n```"}, 0, nil)

	out, err := CompleteAs[payload](context.Background(), gw, "s", "u")

	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	assert.Equal(t, "a", out.Items[0].Title)
}

func TestCompleteAs_RepairsTrailingComma(t *testing.T) {
	gw := NewGateway(&fakeLLM{reply: `{"items":[{"title":"a"},{"title":"b"},]}`}, 0, nil)

	out, err := CompleteAs[payload](context.Background(), gw, "s", "u")

	require.NoError(t, err)
	assert.Len(t, out.Items, 2)
}

func TestCompleteAs_ParseErrorCarriesRaw(t *testing.T) {
	raw := "I'm sorry, I can't produce that."
	gw := NewGateway(&fakeLLM{reply: raw}, 0, nil)

	_, err := CompleteAs[payload](context.Background(), gw, "s", "u")

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, raw, parseErr.Raw)
}

func TestCompleteAs_ShapeValidation(t *testing.T) {
	tests := map[string]string{
		"missing key":   `{"other":[]}`,
		"missing title": `{"items":[{"title":""}]}`,
	}
	for name, reply := range tests {
		t.Run(name, func(t *testing.T) {
			gw := NewGateway(&fakeLLM{reply: reply}, 0, nil)
			_, err := CompleteAs[payload](context.Background(), gw, "s", "u")

			var parseErr *ParseError
			assert.ErrorAs(t, err, &parseErr)
		})
	}
}

func TestCompleteAs_EmptyListIsValid(t *testing.T) {
	gw := NewGateway(&fakeLLM{reply: `{"items":[]}`}, 0, nil)

	out, err := CompleteAs[payload](context.Background(), gw, "s", "u")

	require.NoError(t, err)
	assert.Empty(t, out.Items)
}
