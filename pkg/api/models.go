package api

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Prediction struct {
	Condition       string  `json:"condition"`
	Confidence      float64 `json:"confidence"`
	Assessment      string  `json:"assessment"`
	ConfidenceLevel string  `json:"confidence_level"`
}

// DetailedAnalysis holds the five bullet-point sections produced by the LLM.
type DetailedAnalysis struct {
	Overview   []string `json:"overview"`
	Symptoms   []string `json:"symptoms"`
	Treatment  []string `json:"treatment"`
	Prevention []string `json:"prevention"`
	Warning    []string `json:"warning"`
}

func (d DetailedAnalysis) Empty() bool {
	return len(d.Overview)+len(d.Symptoms)+len(d.Treatment)+len(d.Prevention)+len(d.Warning) == 0
}

type ReportMetadata struct {
	Timestamp    time.Time `json:"timestamp"`
	ReportID     string    `json:"report_id"`
	AnalysisType string    `json:"analysis_type"`
}

type PatientGuidance struct {
	Disclaimer string   `json:"disclaimer"`
	NextSteps  []string `json:"next_steps"`
}

type AnalysisResult struct {
	ReportMetadata        ReportMetadata   `json:"report_metadata"`
	PrimaryAnalysis       Prediction       `json:"primary_analysis"`
	DifferentialDiagnoses []Prediction     `json:"differential_diagnoses"`
	DetailedAnalysis      DetailedAnalysis `json:"detailed_analysis"`
	PatientGuidance       PatientGuidance  `json:"patient_guidance"`
	ID                    uint             `json:"id"`
}

type AnalyzeResponse struct {
	Success   bool           `json:"success"`
	Result    AnalysisResult `json:"result"`
	Timestamp time.Time      `json:"timestamp"`
}

type AnalysisSummary struct {
	ID               uint             `json:"id"`
	Timestamp        time.Time        `json:"timestamp"`
	PrimaryCondition string           `json:"primary_condition"`
	Confidence       float64          `json:"confidence"`
	DetailedAnalysis DetailedAnalysis `json:"detailed_analysis"`
}

type AnalysisHistoryResponse struct {
	Success   bool              `json:"success"`
	History   []AnalysisSummary `json:"history"`
	UserID    string            `json:"user_id"`
	Timestamp time.Time         `json:"timestamp"`
}

type AnalysisDetail struct {
	AnalysisSummary
	ImagePreview *string `json:"image_preview"`
}

type AnalysisDetailResponse struct {
	Success   bool           `json:"success"`
	Result    AnalysisDetail `json:"result"`
	Timestamp time.Time      `json:"timestamp"`
}

type UserQuery struct {
	UserID string `schema:"user_id"`
}

// AnalysisID accepts both a JSON number and a numeric string.
type AnalysisID uint

func (id *AnalysisID) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == "" {
		return fmt.Errorf("analysis_id is required")
	}

	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
	}

	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || v == 0 {
		return fmt.Errorf("invalid analysis_id %q", raw)
	}
	*id = AnalysisID(v)
	return nil
}

type DeleteAnalysisRequest struct {
	AnalysisID *AnalysisID `json:"analysis_id"`
}

type MessageResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type ErrorResponse struct {
	Success   bool      `json:"success"`
	Error     string    `json:"error"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type HealthResponse struct {
	Status            string    `json:"status"`
	ModelLoaded       bool      `json:"model_loaded"`
	DatabaseConnected bool      `json:"database_connected"`
	UploadFolder      bool      `json:"upload_folder"`
	LLMConfigured     bool      `json:"llm_configured"`
	Timestamp         time.Time `json:"timestamp"`
}

type ServiceStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type SystemServices struct {
	ChatService     ServiceStatus `json:"chat_service"`
	AnalysisService ServiceStatus `json:"analysis_service"`
	Database        ServiceStatus `json:"database"`
}

type SystemStatusResponse struct {
	Success   bool           `json:"success"`
	Timestamp time.Time      `json:"timestamp"`
	Services  SystemServices `json:"services"`
}

type InitResponse struct {
	Status       string `json:"status"`
	Database     string `json:"database,omitempty"`
	ModelLoaded  bool   `json:"model_loaded"`
	UploadFolder bool   `json:"upload_folder"`
	Message      string `json:"message"`
}
