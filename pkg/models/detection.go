package models

import (
	"fmt"

	"github.com/google/uuid"
)

// RiskLevel grades how harmful a detected rumor is likely to be.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

var riskLabels = map[RiskLevel]string{
	RiskLow:      "LOW RISK",
	RiskMedium:   "MEDIUM RISK",
	RiskHigh:     "HIGH RISK",
	RiskCritical: "CRITICAL",
}

// ListRiskLevels returns every risk level from least to most severe.
func ListRiskLevels() []RiskLevel {
	return []RiskLevel{RiskLow, RiskMedium, RiskHigh, RiskCritical}
}

// IsValid checks if the RiskLevel is one of the predefined levels.
func (r RiskLevel) IsValid() bool {
	_, ok := riskLabels[r]
	return ok
}

func (r RiskLevel) String() string {
	return string(r)
}

// Label is the display text for the level.
func (r RiskLevel) Label() string {
	if l, ok := riskLabels[r]; ok {
		return l
	}
	return "UNKNOWN"
}

func (r *RiskLevel) UnmarshalText(text []byte) error {
	l := RiskLevel(text)
	if !l.IsValid() {
		return fmt.Errorf("invalid risk level: %s", text)
	}
	*r = l
	return nil
}

func (r RiskLevel) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// AnalysisResult is the detailed breakdown attached to a detection.
type AnalysisResult struct {
	Keywords        []string `json:"keywords"`
	Sentiment       string   `json:"sentiment"`
	Category        string   `json:"category"`
	Sources         []string `json:"sources"`
	FactCheckPoints []string `json:"fact_check_points"`
	RiskIndicators  []string `json:"risk_indicators"`
}

// Detection is a single stored verdict.
type Detection struct {
	ID          uuid.UUID       `json:"id"`
	Content     string          `json:"content"`
	IsRumor     bool            `json:"is_rumor"`
	Confidence  float64         `json:"confidence"`
	RiskLevel   RiskLevel       `json:"risk_level"`
	Explanation string          `json:"explanation"`
	Analysis    *AnalysisResult `json:"analysis,omitempty"`
	CreatedAt   Timestamp       `json:"created_at"`
}

// BatchDetection is the outcome of a bulk submission.
type BatchDetection struct {
	Total   int         `json:"total"`
	Success int         `json:"success"`
	Failed  int         `json:"failed"`
	Results []Detection `json:"results"`
}

// PropagationNode is one vertex of a spread network.
type PropagationNode struct {
	NodeID     string         `json:"node_id"`
	ParentID   *string        `json:"parent_id,omitempty"`
	Content    *string        `json:"content,omitempty"`
	UserInfo   map[string]any `json:"user_info,omitempty"`
	Engagement map[string]any `json:"engagement,omitempty"`
	Timestamp  *Timestamp     `json:"timestamp,omitempty"`
}

// Propagation describes how a detected rumor spread.
type Propagation struct {
	DetectionID    uuid.UUID         `json:"detection_id"`
	Nodes          []PropagationNode `json:"nodes"`
	Pattern        *string           `json:"pattern,omitempty"`
	SpreadSpeed    *string           `json:"spread_speed,omitempty"`
	EstimatedReach *int              `json:"estimated_reach,omitempty"`
	InfluenceScore *float64          `json:"influence_score,omitempty"`
}

// HistoryStats summarises a user's stored detections.
type HistoryStats struct {
	TotalRecords  int              `json:"total_records"`
	RumorsCount   int              `json:"rumors_count"`
	VerifiedCount int              `json:"verified_count"`
	ByRiskLevel   RiskDistribution `json:"by_risk_level"`
}
