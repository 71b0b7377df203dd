package api

import (
	"net/url"

	"github.com/Ryan-Har/rumorlens/pkg/models"
	"github.com/google/uuid"
)

// BasePath is prefixed to every endpoint below.
const BasePath = "/api/v1"

// Endpoint paths relative to BasePath.
const (
	PathLogin            = "/auth/login"
	PathRegister         = "/auth/register"
	PathRefresh          = "/auth/refresh"
	PathLogout           = "/auth/logout"
	PathCurrentUser      = "/users/me"
	PathPassword         = "/users/me/password"
	PathDetectSingle     = "/detection/single"
	PathDetectBatch      = "/detection/batch"
	PathDetection        = "/detection/"
	PathHistory          = "/history"
	PathHistoryStats     = "/history/stats"
	PathHistoryBatch     = "/history/batch"
	PathOverview         = "/analysis/overview"
	PathTrend            = "/analysis/trend"
	PathCategories       = "/analysis/category"
	PathKeywords         = "/analysis/keywords"
	PathRiskDistribution = "/analysis/risk-distribution"
)

// LoginForm builds the password-grant form body. The grant names the email
// field "username".
func LoginForm(email, password string) url.Values {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)
	return form
}

// RegisterRequest defines model for RegisterRequest.
type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// RefreshRequest defines model for RefreshRequest.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// PasswordUpdateRequest defines model for PasswordUpdateRequest.
type PasswordUpdateRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Message is the generic acknowledgement body.
type Message struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
}

// DetectionRequest defines model for DetectionRequest.
type DetectionRequest struct {
	Content            string `json:"content"`
	IncludeAnalysis    bool   `json:"include_analysis"`
	IncludePropagation bool   `json:"include_propagation"`
}

// BatchDetectionRequest defines model for BatchDetectionRequest.
type BatchDetectionRequest struct {
	Contents        []string `json:"contents"`
	IncludeAnalysis bool     `json:"include_analysis"`
}

// BatchDeleteRequest defines model for BatchDeleteRequest.
type BatchDeleteRequest struct {
	IDs []uuid.UUID `json:"ids"`
}

// TokenResponse is the body returned by login and refresh.
type TokenResponse = models.TokenPair
