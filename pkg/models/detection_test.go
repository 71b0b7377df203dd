package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

func TestRiskLevel_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		level RiskLevel
		want  bool
	}{
		{"Valid Level: Low", RiskLow, true},
		{"Valid Level: Medium", RiskMedium, true},
		{"Valid Level: High", RiskHigh, true},
		{"Valid Level: Critical", RiskCritical, true},
		{"Invalid Level: Unknown", RiskLevel("severe"), false},
		{"Invalid Level: Empty String", RiskLevel(""), false},
		{"Invalid Level: Wrong Case", RiskLevel("HIGH"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.level.IsValid(); got != tt.want {
				t.Errorf("RiskLevel.IsValid() for level '%s' = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}

func TestRiskLevel_Label(t *testing.T) {
	tests := []struct {
		level RiskLevel
		want  string
	}{
		{RiskLow, "LOW RISK"},
		{RiskMedium, "MEDIUM RISK"},
		{RiskHigh, "HIGH RISK"},
		{RiskCritical, "CRITICAL"},
		{RiskLevel("other"), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			if got := tt.level.Label(); got != tt.want {
				t.Errorf("RiskLevel.Label() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestListRiskLevels_Ordered(t *testing.T) {
	got := ListRiskLevels()
	want := []RiskLevel{RiskLow, RiskMedium, RiskHigh, RiskCritical}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("ListRiskLevels() = %v, want %v", got, want)
	}
}

func TestRiskLevel_UnmarshalText(t *testing.T) {
	type TestStruct struct {
		Level RiskLevel `json:"risk_level"`
	}

	tests := []struct {
		name        string
		input       []byte
		fromJSON    bool
		want        RiskLevel
		wantErr     bool
		errContains string
	}{
		{"Valid Level: High", []byte(`high`), false, RiskHigh, false, ""},
		{"Invalid Level: Typo", []byte(`hihg`), false, "", true, "invalid risk level"},
		{"Invalid Level: Empty", []byte(``), false, "", true, "invalid risk level"},
		{"Valid Level from JSON object", []byte(`{"risk_level": "critical"}`), true, RiskCritical, false, ""},
		{"Invalid Level from JSON object", []byte(`{"risk_level": "extreme"}`), true, "", true, "invalid risk level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				got RiskLevel
				err error
			)
			if tt.fromJSON {
				var ts TestStruct
				err = json.Unmarshal(tt.input, &ts)
				got = ts.Level
			} else {
				err = got.UnmarshalText(tt.input)
			}

			if (err != nil) != tt.wantErr {
				t.Fatalf("UnmarshalText() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("error = %v, want error containing %q", err, tt.errContains)
				}
				return
			}
			if got != tt.want {
				t.Errorf("UnmarshalText() got = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRiskDistribution_Count(t *testing.T) {
	d := RiskDistribution{Low: 4, Medium: 3, High: 2, Critical: 1}

	if d.Total() != 10 {
		t.Errorf("Total() = %d, want 10", d.Total())
	}
	for _, level := range ListRiskLevels() {
		if d.Count(level) == 0 {
			t.Errorf("Count(%s) should not be zero", level)
		}
	}
	if d.Count(RiskLevel("bogus")) != 0 {
		t.Error("Count() for an unknown level should be zero")
	}
}

func TestDetection_DecodesServerPayload(t *testing.T) {
	payload := `{
		"id": "1f0c1d6e-8d61-4a56-9c8f-5d1b0d3e7a11",
		"content": "the moon is made of cheese",
		"is_rumor": true,
		"confidence": 0.35,
		"risk_level": "critical",
		"explanation": "no evidence",
		"analysis": {"keywords": ["moon"], "sentiment": "neutral", "category": "science",
			"sources": [], "fact_check_points": [], "risk_indicators": ["absurd"]},
		"created_at": "2025-03-01T10:20:30.123456"
	}`

	var d Detection
	if err := json.Unmarshal([]byte(payload), &d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.RiskLevel != RiskCritical || !d.IsRumor {
		t.Errorf("unexpected verdict: %+v", d)
	}
	if d.Analysis == nil || d.Analysis.Category != "science" {
		t.Errorf("analysis not decoded: %+v", d.Analysis)
	}
	if d.CreatedAt.Year() != 2025 || d.CreatedAt.Nanosecond() != 123456000 {
		t.Errorf("created_at not decoded: %v", d.CreatedAt)
	}
}
