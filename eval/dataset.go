package eval

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/poiesic/retrievit/core"
)

// Item is one benchmark query: a question and the ground-truth passages a
// good retrieval should surface. ExpectedAnswer feeds the optional judged
// generation step.
type Item struct {
	Question            string   `json:"question"`
	GroundTruthContexts []string `json:"ground_truth_contexts"`
	ExpectedAnswer      string   `json:"expected_answer,omitempty"`
}

// LoadDataset reads a JSON benchmark file: an array of items. The whole
// dataset is validated before anything runs; a file with bad items fails
// with every offender listed.
func LoadDataset(path string) ([]Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read dataset: %w", core.ErrStorage, err)
	}

	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: parse dataset %s: %v", core.ErrValidation, path, err)
	}
	if err := ValidateDataset(items); err != nil {
		return nil, err
	}
	return items, nil
}

// ValidateDataset checks every item and reports all problems at once,
// itemized by index, so a bad file is fixed in one pass.
func ValidateDataset(items []Item) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: dataset is empty", core.ErrValidation)
	}

	var problems []string
	for i, item := range items {
		if strings.TrimSpace(item.Question) == "" {
			problems = append(problems, fmt.Sprintf("item %d: empty question", i))
		}
		if len(item.GroundTruthContexts) == 0 {
			problems = append(problems, fmt.Sprintf("item %d: no ground truth contexts", i))
		}
		for j, ctx := range item.GroundTruthContexts {
			if strings.TrimSpace(ctx) == "" {
				problems = append(problems, fmt.Sprintf("item %d: context %d is empty", i, j))
			}
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", core.ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}
