package core

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v2"
)

//go:embed labels.yaml
var labelsYAML []byte

type ModelMetadata struct {
	InputName  string    `yaml:"input_name"`
	OutputName string    `yaml:"output_name"`
	ImageSize  int       `yaml:"image_size"`
	Mean       []float32 `yaml:"mean"`
	Std        []float32 `yaml:"std"`
	TopK       int       `yaml:"top_k"`
	Labels     []string  `yaml:"labels"`
}

func ParseModelMetadata(data []byte) (ModelMetadata, error) {
	var meta ModelMetadata
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("error parsing model metadata: %w", err)
	}

	if len(meta.Mean) != 3 || len(meta.Std) != 3 {
		return meta, fmt.Errorf("model metadata must define 3 mean and 3 std values")
	}
	for _, s := range meta.Std {
		if s == 0 {
			return meta, fmt.Errorf("model metadata std values must be non-zero")
		}
	}
	if meta.ImageSize <= 0 {
		return meta, fmt.Errorf("invalid image size %d", meta.ImageSize)
	}
	if len(meta.Labels) == 0 {
		return meta, fmt.Errorf("model metadata has no labels")
	}
	if meta.TopK <= 0 || meta.TopK > len(meta.Labels) {
		meta.TopK = min(3, len(meta.Labels))
	}

	return meta, nil
}

// DefaultModelMetadata describes the bundled 8-class skin condition model.
func DefaultModelMetadata() ModelMetadata {
	meta, err := ParseModelMetadata(labelsYAML)
	if err != nil {
		panic(err)
	}
	return meta
}

func (m ModelMetadata) HasLabel(label string) bool {
	for _, l := range m.Labels {
		if l == label {
			return true
		}
	}
	return false
}
