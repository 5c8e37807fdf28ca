package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

// RemoteClassifier calls an HTTP inference server that accepts a flattened
// tensor and returns one logit per label.
type RemoteClassifier struct {
	client    *resty.Client
	numLabels int
}

type remotePredictRequest struct {
	Shape []int64   `json:"shape"`
	Data  []float32 `json:"data"`
}

type remotePredictResponse struct {
	Logits []float32 `json:"logits"`
}

func LoadRemoteClassifier(baseURL string, meta ModelMetadata) (Classifier, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("REMOTE_MODEL_URL must be set for remote model")
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30*time.Second).
		SetHeader("Content-Type", "application/json")

	return &RemoteClassifier{client: client, numLabels: len(meta.Labels)}, nil
}

func (m *RemoteClassifier) Predict(ctx context.Context, input Tensor) ([]float32, error) {
	var out remotePredictResponse
	res, err := m.client.R().
		SetContext(ctx).
		SetBody(remotePredictRequest{Shape: input.Shape, Data: input.Data}).
		SetResult(&out).
		Post("/predict")
	if err != nil {
		return nil, fmt.Errorf("error calling inference server: %w", err)
	}

	if res.IsError() {
		slog.Error("inference server returned error", "status_code", res.StatusCode(), "body", res.String())
		return nil, fmt.Errorf("inference server returned status %d", res.StatusCode())
	}

	if len(out.Logits) != m.numLabels {
		return nil, fmt.Errorf("inference server returned %d scores, expected %d", len(out.Logits), m.numLabels)
	}

	return out.Logits, nil
}

func (m *RemoteClassifier) Release() {}
