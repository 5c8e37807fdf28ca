package core

import (
	"context"
	"fmt"
	"sync"
)

type ModelType string

const (
	OnnxModel   ModelType = "onnx"
	RemoteModel ModelType = "remote"
)

// Tensor is a dense float32 tensor in row-major order.
type Tensor struct {
	Shape []int64
	Data  []float32
}

// Classifier returns one raw score per label for a preprocessed image tensor.
type Classifier interface {
	Predict(ctx context.Context, input Tensor) ([]float32, error)

	Release()
}

// ModelLoader builds a classifier from a location (file path or URL).
type ModelLoader func(location string, meta ModelMetadata) (Classifier, error)

var (
	loadersMu     sync.RWMutex
	customLoaders = map[ModelType]ModelLoader{}
)

// RegisterModelLoader adds or overrides a loader, mainly for tests.
func RegisterModelLoader(modelType ModelType, loader ModelLoader) {
	loadersMu.Lock()
	defer loadersMu.Unlock()
	customLoaders[modelType] = loader
}

func NewModelLoaders() map[ModelType]ModelLoader {
	loaders := map[ModelType]ModelLoader{
		OnnxModel:   LoadOnnxClassifier,
		RemoteModel: LoadRemoteClassifier,
	}

	loadersMu.RLock()
	defer loadersMu.RUnlock()
	for t, l := range customLoaders {
		loaders[t] = l
	}
	return loaders
}

func LoadClassifier(modelType ModelType, location string, meta ModelMetadata) (Classifier, error) {
	loader, ok := NewModelLoaders()[modelType]
	if !ok {
		return nil, fmt.Errorf("invalid model type: %s", modelType)
	}
	return loader(location, meta)
}
