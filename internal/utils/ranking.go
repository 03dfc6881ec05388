package utils

import (
	"math"
	"time"
)

type PopularityConfig struct {
	Gravity         float64 // time decay exponent
	WeightMember    float64
	WeightApplicant float64
	WeightComment   float64
	WeightBookmark  float64
	WeightView      float64
	ScaleFactor     float64
}

var DefaultPopularity = PopularityConfig{
	Gravity:         1.2,
	WeightMember:    4.0,
	WeightApplicant: 2.0,
	WeightComment:   1.5,
	WeightBookmark:  3.0,
	WeightView:      0.05,
	ScaleFactor:     1000.0,
}

// PopularitySignals are the raw counts a project's score is computed from.
type PopularitySignals struct {
	Members    int
	Applicants int
	Comments   int
	Bookmarks  int
	Views      int
}

// CalculatePopularity returns a non-negative score that grows with
// engagement and decays with age.
func CalculatePopularity(createdAt, now time.Time, s PopularitySignals) float64 {
	cfg := DefaultPopularity
	hours := now.Sub(createdAt).Hours()
	if hours < 0 {
		hours = 0
	}

	weighted := float64(s.Members)*cfg.WeightMember +
		float64(s.Applicants)*cfg.WeightApplicant +
		float64(s.Comments)*cfg.WeightComment +
		float64(s.Bookmarks)*cfg.WeightBookmark +
		float64(s.Views)*cfg.WeightView
	if weighted < 0 {
		weighted = 0
	}

	// log10(sum+1) keeps a zero-engagement project at zero.
	numerator := math.Log10(weighted+1) * cfg.ScaleFactor
	decay := math.Pow(hours/24+2, cfg.Gravity)
	return numerator / decay
}
