package categorization

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/pennywise/pkg/llm"
	"github.com/FACorreiaa/pennywise/pkg/metrics"
)

const classifierSystem = `You categorize Indian bank transactions.
Answer with a JSON array only, one object per transaction: {"id": "<id>", "category": "<category>"}.
Allowed categories: food, groceries, transport, shopping, bills, entertainment, health, education, subscriptions, transfer, income, other.
Use "other" when unsure.`

// maxClassifyBatch bounds one prompt.
const maxClassifyBatch = 50

// Classifier asks the language model to categorize transactions the keyword
// and fuzzy passes could not place.
type Classifier struct {
	model   llm.Model
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewClassifier creates a model-backed classifier.
func NewClassifier(model llm.Model, timeout time.Duration, logger *slog.Logger, m *metrics.Metrics) *Classifier {
	return &Classifier{model: model, timeout: timeout, logger: logger, metrics: m}
}

type classification struct {
	ID       string `json:"id"`
	Category string `json:"category"`
}

// Classify returns a category for each candidate the model placed outside
// "other". Unknown ids and categories in the answer are ignored.
func (c *Classifier) Classify(ctx context.Context, candidates []Candidate) (map[uuid.UUID]Category, error) {
	out := make(map[uuid.UUID]Category)
	for start := 0; start < len(candidates); start += maxClassifyBatch {
		end := min(start+maxClassifyBatch, len(candidates))
		if err := c.classifyBatch(ctx, candidates[start:end], out); err != nil {
			return out, err
		}
	}
	return out, nil
}

func (c *Classifier) classifyBatch(ctx context.Context, batch []Candidate, out map[uuid.UUID]Category) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	known := make(map[string]uuid.UUID, len(batch))
	var prompt strings.Builder
	prompt.WriteString("Transactions (id | merchant | description):\n")
	for _, cand := range batch {
		id := cand.ID.String()
		known[id] = cand.ID
		fmt.Fprintf(&prompt, "%s | %s | %s\n", id, cand.Merchant, cand.Description)
	}

	raw, err := c.model.Generate(ctx, classifierSystem, prompt.String())
	if err != nil {
		c.metrics.ModelCall("classify", "error")
		return fmt.Errorf("classifier model call failed: %w", err)
	}

	var answers []classification
	if err := json.Unmarshal([]byte(llm.CleanJSON(raw)), &answers); err != nil {
		c.metrics.ModelCall("classify", "invalid")
		return fmt.Errorf("classifier returned invalid JSON: %w", err)
	}
	c.metrics.ModelCall("classify", "ok")

	for _, a := range answers {
		id, ok := known[a.ID]
		if !ok {
			continue
		}
		if cat, ok := Parse(a.Category); ok && cat != Other {
			out[id] = cat
		}
	}
	return nil
}
