package core

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"dermai-backend/internal/database"
	"dermai-backend/internal/retry"
	"dermai-backend/internal/storage"
	"dermai-backend/pkg/api"

	"github.com/stretchr/testify/require"
)

type fixedClassifier struct {
	logits []float32
	err    error
	calls  atomic.Int32
	input  Tensor
}

func (m *fixedClassifier) Predict(ctx context.Context, input Tensor) ([]float32, error) {
	m.calls.Add(1)
	m.input = input
	if m.err != nil {
		return nil, m.err
	}
	return append([]float32(nil), m.logits...), nil
}

func (m *fixedClassifier) Release() {}

type stubAugmenter struct {
	result  api.DetailedAnalysis
	ok      bool
	reports []string
}

func (s *stubAugmenter) Augment(ctx context.Context, report string) (api.DetailedAnalysis, bool) {
	s.reports = append(s.reports, report)
	return s.result, s.ok
}

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	return img
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func encodePNG(t *testing.T, img image.Image) []byte {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func createTestStore(t *testing.T) *database.Store {
	db, err := database.Open(filepath.Join(t.TempDir(), "core.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return database.NewStore(db, testPolicy())
}

func createImageStore(t *testing.T) *storage.LocalImageStore {
	images, err := storage.NewLocalImageStore(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)
	return images
}

// readyClassifier favors label index 4 (FU-ringworm).
func readyClassifier(t *testing.T) (*ConditionClassifier, *fixedClassifier) {
	model := &fixedClassifier{logits: []float32{0.1, 0.2, 0.3, 0.4, 5.0, 0.1, 2.0, 1.0}}
	c := NewConditionClassifier(model, DefaultModelMetadata())
	require.NoError(t, c.Ready(context.Background()))
	return c, model
}
