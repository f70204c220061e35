package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeLenient_PlainJSON(t *testing.T) {
	raw := `{"results":[{"id":"a","matched_requirement_index":1,"evidence_en":"x","evidence_cn":"y","tldr_en":"tx","tldr_cn":"ty","score":8}]}`
	resp, err := DecodeLenient(raw)
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "a", resp.Results[0].ID)
	assert.Equal(t, 8.0, resp.Results[0].Score)
}

func TestDecodeLenient_StripsMarkdownCodeFence(t *testing.T) {
	raw := "```json\n" + `{"results":[{"id":"a","score":5}]}` + "\n```"
	resp, err := DecodeLenient(raw)
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "a", resp.Results[0].ID)
}

func TestDecodeLenient_TrailingTextAfterObject(t *testing.T) {
	raw := `{"results":[{"id":"a","score":5}]}` + "\n\nHope this helps!"
	resp, err := DecodeLenient(raw)
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
}

func TestDecodeLenient_TruncatedJSON_SuffixRepair(t *testing.T) {
	raw := `{"results":[{"id":"a","matched_requirement_index":1,"evidence_en":"x","score":7},{"id":"b","score":3`
	resp, err := DecodeLenient(raw)
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "a", resp.Results[0].ID)
	assert.Equal(t, "b", resp.Results[1].ID)
}

func TestDecodeLenient_TrailingCommaBeforeCloser(t *testing.T) {
	raw := `{"results":[{"id":"a","score":1},]`
	resp, err := DecodeLenient(raw)
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
}

func TestDecodeLenient_UnrecoverableGarbage(t *testing.T) {
	_, err := DecodeLenient("not json at all, just prose.")
	assert.Error(t, err)
}
