package eval

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/retrievit/core"
)

func writeDataset(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dataset.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDataset(t *testing.T) {
	path := writeDataset(t, `[
		{
			"question": "how does the scheduler assign work?",
			"ground_truth_contexts": ["the scheduler assigns work to idle runners"],
			"expected_answer": "round robin over idle runners"
		},
		{
			"question": "what do fencing tokens guarantee?",
			"ground_truth_contexts": ["fencing tokens are monotonically increasing"]
		}
	]`)

	items, err := LoadDataset(path)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "round robin over idle runners", items[0].ExpectedAnswer)
	assert.Empty(t, items[1].ExpectedAnswer)
}

func TestLoadDatasetMissingFile(t *testing.T) {
	_, err := LoadDataset(filepath.Join(t.TempDir(), "absent.json"))
	assert.ErrorIs(t, err, core.ErrStorage)
}

func TestLoadDatasetMalformedJSON(t *testing.T) {
	path := writeDataset(t, `{"not": "an array"}`)
	_, err := LoadDataset(path)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestValidateDatasetListsEveryProblem(t *testing.T) {
	err := ValidateDataset([]Item{
		{Question: "", GroundTruthContexts: []string{"valid context"}},
		{Question: "valid question", GroundTruthContexts: nil},
		{Question: "another", GroundTruthContexts: []string{"ok", "  "}},
	})
	require.ErrorIs(t, err, core.ErrValidation)
	assert.Contains(t, err.Error(), "item 0: empty question")
	assert.Contains(t, err.Error(), "item 1: no ground truth contexts")
	assert.Contains(t, err.Error(), "item 2: context 1 is empty")
}

func TestValidateDatasetEmpty(t *testing.T) {
	assert.ErrorIs(t, ValidateDataset(nil), core.ErrValidation)
}
