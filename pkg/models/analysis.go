package models

type OverviewStats struct {
	TotalDetections int     `json:"total_detections"`
	TotalRumors     int     `json:"total_rumors"`
	TotalVerified   int     `json:"total_verified"`
	RumorRate       float64 `json:"rumor_rate"`
	AvgConfidence   float64 `json:"avg_confidence"`
}

type TrendDataPoint struct {
	Date     string `json:"date"`
	Rumors   int    `json:"rumors"`
	Verified int    `json:"verified"`
	Total    int    `json:"total"`
}

type Trend struct {
	Data   []TrendDataPoint `json:"data"`
	Period string           `json:"period"`
}

type CategoryStats struct {
	Category   string  `json:"category"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type Categories struct {
	Data  []CategoryStats `json:"data"`
	Total int             `json:"total"`
}

type KeywordStats struct {
	Keyword string  `json:"keyword"`
	Count   int     `json:"count"`
	Weight  float64 `json:"weight"`
}

type Keywords struct {
	Data          []KeywordStats `json:"data"`
	TotalKeywords int            `json:"total_keywords"`
}

// RiskDistribution counts detections per risk level.
type RiskDistribution struct {
	Low      int `json:"low"`
	Medium   int `json:"medium"`
	High     int `json:"high"`
	Critical int `json:"critical"`
}

// Total sums all levels.
func (d RiskDistribution) Total() int {
	return d.Low + d.Medium + d.High + d.Critical
}

// Count returns the count for a single level.
func (d RiskDistribution) Count(level RiskLevel) int {
	switch level {
	case RiskLow:
		return d.Low
	case RiskMedium:
		return d.Medium
	case RiskHigh:
		return d.High
	case RiskCritical:
		return d.Critical
	default:
		return 0
	}
}

type RiskDistributionReport struct {
	Distribution RiskDistribution `json:"distribution"`
	Total        int              `json:"total"`
}
