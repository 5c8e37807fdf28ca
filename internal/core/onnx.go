package core

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	initOnce sync.Once
	initErr  error
)

// InitOnnxRuntime loads the onnxruntime shared library once per process.
func InitOnnxRuntime(dylib string) error {
	initOnce.Do(func() {
		if dylib == "" {
			initErr = fmt.Errorf("ONNX_RUNTIME_DYLIB must be set")
			return
		}
		ort.SetSharedLibraryPath(dylib)
		initErr = ort.InitializeEnvironment()
	})
	return initErr
}

func DestroyOnnxRuntime() error {
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

type OnnxClassifier struct {
	session   *ort.DynamicAdvancedSession
	numLabels int64
}

func LoadOnnxClassifier(modelPath string, meta ModelMetadata) (Classifier, error) {
	if !ort.IsInitialized() {
		return nil, fmt.Errorf("onnx runtime is not initialized")
	}

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{meta.InputName},
		[]string{meta.OutputName},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create onnx session from %s: %w", modelPath, err)
	}

	return &OnnxClassifier{session: session, numLabels: int64(len(meta.Labels))}, nil
}

func (m *OnnxClassifier) Predict(ctx context.Context, input Tensor) ([]float32, error) {
	if len(input.Shape) == 0 {
		return nil, fmt.Errorf("input tensor has no shape")
	}

	inT, err := ort.NewTensor(ort.NewShape(input.Shape...), input.Data)
	if err != nil {
		return nil, fmt.Errorf("error creating input tensor: %w", err)
	}
	defer inT.Destroy()

	outT, err := ort.NewEmptyTensor[float32](ort.NewShape(input.Shape[0], m.numLabels))
	if err != nil {
		return nil, fmt.Errorf("error creating output tensor: %w", err)
	}
	defer outT.Destroy()

	if err := m.session.Run([]ort.Value{inT}, []ort.Value{outT}); err != nil {
		return nil, fmt.Errorf("session run error: %w", err)
	}

	scores := make([]float32, m.numLabels)
	copy(scores, outT.GetData())
	return scores, nil
}

func (m *OnnxClassifier) Release() {
	m.session.Destroy()
}
