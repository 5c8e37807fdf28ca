package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"sync/atomic"
	"time"

	"dermai-backend/internal/metrics"
)

var ErrModelNotReady = errors.New("ML model is not properly initialized. Please try again later.")

type LabelScore struct {
	Index       int
	Label       string
	Probability float64
}

// ConditionClassifier turns raw model scores into ranked label probabilities.
// A nil model is allowed so the service can start and report itself unhealthy.
type ConditionClassifier struct {
	model Classifier
	meta  ModelMetadata
	ready atomic.Bool
}

func NewConditionClassifier(model Classifier, meta ModelMetadata) *ConditionClassifier {
	return &ConditionClassifier{model: model, meta: meta}
}

func (c *ConditionClassifier) Metadata() ModelMetadata {
	return c.meta
}

// Ready runs a forward pass on a random input and caches whether the model
// answered with one score per label.
func (c *ConditionClassifier) Ready(ctx context.Context) error {
	if c.model == nil {
		c.ready.Store(false)
		return ErrModelNotReady
	}

	size := c.meta.ImageSize
	data := make([]float32, 3*size*size)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for i := range data {
		data[i] = float32(rng.NormFloat64())
	}

	scores, err := c.model.Predict(ctx, Tensor{Shape: []int64{1, 3, int64(size), int64(size)}, Data: data})
	if err == nil && len(scores) != len(c.meta.Labels) {
		err = fmt.Errorf("model returned %d scores for %d labels", len(scores), len(c.meta.Labels))
	}
	if err != nil {
		slog.Error("model liveness check failed", "error", err)
		c.ready.Store(false)
		return fmt.Errorf("%w: %v", ErrModelNotReady, err)
	}

	c.ready.Store(true)
	return nil
}

func (c *ConditionClassifier) IsReady() bool {
	return c.model != nil && c.ready.Load()
}

// Classify returns the top-k labels for an upright image, most probable first.
func (c *ConditionClassifier) Classify(ctx context.Context, input Tensor) ([]LabelScore, error) {
	if !c.IsReady() {
		return nil, ErrModelNotReady
	}

	defer metrics.ObservePrediction(time.Now())

	scores, err := c.model.Predict(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("error running classifier: %w", err)
	}
	if len(scores) != len(c.meta.Labels) {
		return nil, fmt.Errorf("model returned %d scores for %d labels", len(scores), len(c.meta.Labels))
	}

	return TopK(Softmax(scores), c.meta.Labels, c.meta.TopK), nil
}

func Softmax(logits []float32) []float64 {
	if len(logits) == 0 {
		return nil
	}

	maxLogit := math.Inf(-1)
	for _, l := range logits {
		maxLogit = math.Max(maxLogit, float64(l))
	}

	probs := make([]float64, len(logits))
	var sum float64
	for i, l := range logits {
		probs[i] = math.Exp(float64(l) - maxLogit)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// TopK sorts by probability descending; equal probabilities keep label order.
func TopK(probs []float64, labels []string, k int) []LabelScore {
	scores := make([]LabelScore, len(probs))
	for i, p := range probs {
		scores[i] = LabelScore{Index: i, Label: labels[i], Probability: p}
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Probability > scores[j].Probability
	})

	if k > len(scores) {
		k = len(scores)
	}
	return scores[:k]
}
