package health

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/platinummonkey/clientops/pkg/lifecycle"
)

// Risk is the band a client's overall score falls into
type Risk string

const (
	RiskLow      Risk = "LOW"
	RiskMedium   Risk = "MEDIUM"
	RiskHigh     Risk = "HIGH"
	RiskCritical Risk = "CRITICAL"
)

// Risks lists the levels from healthiest to worst
var Risks = []Risk{RiskLow, RiskMedium, RiskHigh, RiskCritical}

// ParseRisk converts a wire value into a Risk
func ParseRisk(s string) (Risk, error) {
	r := Risk(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return r, nil
	}
	return "", fmt.Errorf("unknown risk level %q", s)
}

// riskBands: >=80 LOW, 60-79 MEDIUM, 40-59 HIGH, below 40 CRITICAL
var riskBands = lifecycle.MustBands(RiskCritical,
	lifecycle.Step[Risk]{Min: 40, Value: RiskHigh},
	lifecycle.Step[Risk]{Min: 60, Value: RiskMedium},
	lifecycle.Step[Risk]{Min: 80, Value: RiskLow},
)

// RiskOf classifies an overall score
func RiskOf(overall int) Risk {
	return riskBands.Classify(float64(overall))
}

// AtRisk reports whether the level needs attention
func (r Risk) AtRisk() bool {
	return r == RiskHigh || r == RiskCritical
}

// Trend is the direction of the score since the previous calculation
type Trend string

const (
	TrendImproving Trend = "IMPROVING"
	TrendStable    Trend = "STABLE"
	TrendDeclining Trend = "DECLINING"
)

// TrendOf is the sign of the score change
func TrendOf(scoreChange int) Trend {
	switch {
	case scoreChange > 0:
		return TrendImproving
	case scoreChange < 0:
		return TrendDeclining
	}
	return TrendStable
}

// Area is one component of the health score
type Area string

const (
	AreaUsage        Area = "usage"
	AreaPayment      Area = "payment"
	AreaSubscription Area = "subscription"
)

// Areas lists the components in tie-break order
var Areas = []Area{AreaUsage, AreaPayment, AreaSubscription}

// Weights combine the sub-scores. They come from the rules file.
type Weights struct {
	Usage        float64 `yaml:"usage" json:"usage"`
	Payment      float64 `yaml:"payment" json:"payment"`
	Subscription float64 `yaml:"subscription" json:"subscription"`
}

// EqualWeights weighs every area the same
func EqualWeights() Weights {
	return Weights{Usage: 1, Payment: 1, Subscription: 1}
}

// Validate requires non-negative, finite weights with a positive sum
func (w Weights) Validate() error {
	for _, v := range []float64{w.Usage, w.Payment, w.Subscription} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("health weights must be finite and non-negative, got %+v", w)
		}
	}
	if w.Usage+w.Payment+w.Subscription <= 0 {
		return fmt.Errorf("health weights must not all be zero")
	}
	return nil
}

// Scores is one client's sub-scores as calculated by the platform
type Scores struct {
	OrganizationID   string    `json:"organization_id"`
	OrganizationName string    `json:"organization_name,omitempty"`
	Usage            int       `json:"usage_score"`
	Payment          int       `json:"payment_score"`
	Subscription     int       `json:"subscription_score"`
	ScoreChange      int       `json:"score_change"`
	CalculatedAt     time.Time `json:"calculated_at"`
}

func (s Scores) of(a Area) int {
	switch a {
	case AreaUsage:
		return clamp(s.Usage)
	case AreaPayment:
		return clamp(s.Payment)
	case AreaSubscription:
		return clamp(s.Subscription)
	}
	return 0
}

// ClientHealth is a client's scored health
type ClientHealth struct {
	Scores
	OverallScore int   `json:"overall_score"`
	RiskLevel    Risk  `json:"risk_level"`
	Trend        Trend `json:"trend"`
	WeakestArea  Area  `json:"weakest_area"`
}

// Scorer computes overall scores with one set of weights
type Scorer struct {
	weights Weights
}

// NewScorer validates the weights
func NewScorer(w Weights) (*Scorer, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{weights: w}, nil
}

// Weights returns the configured weights
func (sc *Scorer) Weights() Weights {
	return sc.weights
}

// Overall is the weighted mean of the sub-scores, each clamped to 0..100,
// rounded half away from zero
func (sc *Scorer) Overall(s Scores) int {
	w := sc.weights
	sum := w.Usage + w.Payment + w.Subscription
	v := (w.Usage*float64(s.of(AreaUsage)) +
		w.Payment*float64(s.of(AreaPayment)) +
		w.Subscription*float64(s.of(AreaSubscription))) / sum
	return clamp(int(math.Round(v)))
}

// Score derives overall score, risk, trend and weakest area
func (sc *Scorer) Score(s Scores) ClientHealth {
	overall := sc.Overall(s)
	return ClientHealth{
		Scores:       s,
		OverallScore: overall,
		RiskLevel:    RiskOf(overall),
		Trend:        TrendOf(s.ScoreChange),
		WeakestArea:  WeakestArea(s),
	}
}

// ScoreAll scores every client
func (sc *Scorer) ScoreAll(all []Scores) []ClientHealth {
	out := make([]ClientHealth, len(all))
	for i, s := range all {
		out[i] = sc.Score(s)
	}
	return out
}

// WeakestArea is the lowest sub-score; ties go to the earlier area in Areas
func WeakestArea(s Scores) Area {
	weakest := Areas[0]
	for _, a := range Areas[1:] {
		if s.of(a) < s.of(weakest) {
			weakest = a
		}
	}
	return weakest
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
