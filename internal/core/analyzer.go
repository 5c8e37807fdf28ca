package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"dermai-backend/internal/database"
	"dermai-backend/internal/storage"
	"dermai-backend/pkg/api"

	"gorm.io/datatypes"
)

type Augmenter interface {
	Augment(ctx context.Context, report string) (api.DetailedAnalysis, bool)
}

// Analyzer runs the image pipeline: validation, storage, classification,
// report synthesis, augmentation and persistence.
type Analyzer struct {
	classifier *ConditionClassifier
	augmenter  Augmenter
	store      *database.Store
	images     storage.ImageStore
}

func NewAnalyzer(classifier *ConditionClassifier, augmenter Augmenter, store *database.Store, images storage.ImageStore) *Analyzer {
	return &Analyzer{classifier: classifier, augmenter: augmenter, store: store, images: images}
}

func (a *Analyzer) Classifier() *ConditionClassifier {
	return a.classifier
}

func (a *Analyzer) Images() storage.ImageStore {
	return a.images
}

// Analyze classifies an image and builds the full result. Augmentation
// failures degrade to fallback text and never fail the analysis.
func (a *Analyzer) Analyze(ctx context.Context, data []byte, imageRef string) (api.AnalysisResult, error) {
	if !a.classifier.IsReady() {
		return api.AnalysisResult{}, ErrModelNotReady
	}

	tensor, err := Preprocess(data, a.classifier.Metadata())
	if err != nil {
		return api.AnalysisResult{}, err
	}

	scores, err := a.classifier.Classify(ctx, tensor)
	if err != nil {
		return api.AnalysisResult{}, err
	}

	preds := FormatPredictions(scores)
	if len(preds) == 0 {
		return api.AnalysisResult{}, fmt.Errorf("classifier returned no predictions")
	}

	report := BuildReport(imageRef, preds)
	detailed, augmented := a.augmenter.Augment(ctx, report)
	if !augmented {
		slog.Warn("returning analysis without llm enhancement", "image", imageRef)
	}

	return api.AnalysisResult{
		ReportMetadata:        NewReportMetadata(time.Now()),
		PrimaryAnalysis:       preds[0],
		DifferentialDiagnoses: preds[1:],
		DetailedAnalysis:      detailed,
		PatientGuidance:       PatientGuidance(),
	}, nil
}

// Submit validates and stores an upload, analyzes it and persists the result.
// The stored image is removed again on any failure after it was written.
func (a *Analyzer) Submit(ctx context.Context, userID, filename string, data []byte) (result api.AnalysisResult, err error) {
	if err := ValidateImage(bytes.NewReader(data)); err != nil {
		return result, err
	}

	if !a.classifier.IsReady() {
		return result, ErrModelNotReady
	}

	ref, err := a.images.Put(ctx, storage.StoredName(filename, time.Now()), bytes.NewReader(data))
	if err != nil {
		return result, fmt.Errorf("error storing upload: %w", err)
	}

	defer func() {
		if err != nil {
			if delErr := a.images.Delete(context.WithoutCancel(ctx), ref); delErr != nil && !errors.Is(delErr, storage.ErrImageNotFound) {
				slog.Error("error removing upload after failed analysis", "image", ref, "error", delErr)
			}
		}
	}()

	result, err = a.Analyze(ctx, data, ref)
	if err != nil {
		return result, err
	}

	exists, err := a.images.Exists(ctx, ref)
	if err != nil {
		return result, fmt.Errorf("error checking stored upload: %w", err)
	}
	if !exists {
		return result, fmt.Errorf("stored upload %s is missing", ref)
	}

	detailed, err := json.Marshal(result.DetailedAnalysis)
	if err != nil {
		return result, fmt.Errorf("error serializing detailed analysis: %w", err)
	}

	row := database.SkinAnalysisResult{
		UserID:           userID,
		Timestamp:        result.ReportMetadata.Timestamp,
		ImagePath:        ref,
		PrimaryCondition: result.PrimaryAnalysis.Condition,
		Confidence:       result.PrimaryAnalysis.Confidence,
		DetailedAnalysis: datatypes.JSON(detailed),
	}
	if err = a.store.SaveAnalysis(ctx, &row); err != nil {
		return result, err
	}

	result.ID = row.ID
	slog.Info("analysis stored", "id", row.ID, "user_id", userID, "condition", row.PrimaryCondition, "confidence", row.Confidence)
	return result, nil
}

// Preview regenerates the thumbnail for a stored analysis. A missing image
// yields a nil preview.
func (a *Analyzer) Preview(ctx context.Context, ref string) *string {
	rc, err := a.images.Open(ctx, ref)
	if err != nil {
		if !errors.Is(err, storage.ErrImageNotFound) {
			slog.Error("error opening stored image", "image", ref, "error", err)
		}
		return nil
	}
	defer rc.Close()

	preview, err := CreatePreview(rc)
	if err != nil {
		slog.Error("error creating image preview", "image", ref, "error", err)
		return nil
	}
	return &preview
}

// Delete removes an analysis row and then its image, best effort.
func (a *Analyzer) Delete(ctx context.Context, id uint) error {
	row, err := a.store.DeleteAnalysis(ctx, id)
	if err != nil {
		return err
	}
	a.removeImage(ctx, row.ImagePath)
	return nil
}

func (a *Analyzer) removeImage(ctx context.Context, ref string) {
	if ref == "" {
		return
	}
	if err := a.images.Delete(ctx, ref); err != nil && !errors.Is(err, storage.ErrImageNotFound) {
		slog.Error("error removing analysis image", "image", ref, "error", err)
	}
}

func DecodeDetailedAnalysis(raw datatypes.JSON) api.DetailedAnalysis {
	var detailed api.DetailedAnalysis
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &detailed); err != nil {
			slog.Error("error decoding stored detailed analysis", "error", err)
		}
	}
	return detailed
}
