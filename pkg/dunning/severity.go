package dunning

import (
	"fmt"

	"github.com/platinummonkey/clientops/pkg/lifecycle"
)

// Severity is how urgent a sequence is, by days since the payment failed
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityModerate Severity = "MODERATE"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Severities lists the bands from least to most urgent
var Severities = []Severity{SeverityLow, SeverityModerate, SeverityHigh, SeverityCritical}

// Thresholds are the first day of each band above LOW. They come from the
// rules file and must be strictly increasing and positive.
type Thresholds struct {
	Moderate int `yaml:"moderate" json:"moderate"`
	High     int `yaml:"high" json:"high"`
	Critical int `yaml:"critical" json:"critical"`
}

// DefaultThresholds: LOW below 3 days, MODERATE 3-6, HIGH 7-13, CRITICAL from 14
func DefaultThresholds() Thresholds {
	return Thresholds{Moderate: 3, High: 7, Critical: 14}
}

// Validate checks ordering
func (t Thresholds) Validate() error {
	if t.Moderate <= 0 || t.High <= t.Moderate || t.Critical <= t.High {
		return fmt.Errorf("dunning thresholds must satisfy 0 < moderate < high < critical, got %d/%d/%d",
			t.Moderate, t.High, t.Critical)
	}
	return nil
}

// Classifier maps days since failure onto a Severity
type Classifier struct {
	thresholds Thresholds
	bands      lifecycle.Bands[Severity]
}

// NewClassifier validates the thresholds and builds a classifier
func NewClassifier(t Thresholds) (*Classifier, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	bands, err := lifecycle.NewBands(SeverityLow,
		lifecycle.Step[Severity]{Min: float64(t.Moderate), Value: SeverityModerate},
		lifecycle.Step[Severity]{Min: float64(t.High), Value: SeverityHigh},
		lifecycle.Step[Severity]{Min: float64(t.Critical), Value: SeverityCritical},
	)
	if err != nil {
		return nil, err
	}
	return &Classifier{thresholds: t, bands: bands}, nil
}

// DefaultClassifier uses DefaultThresholds
func DefaultClassifier() *Classifier {
	c, err := NewClassifier(DefaultThresholds())
	if err != nil {
		panic(err)
	}
	return c
}

// Thresholds returns the configured thresholds
func (c *Classifier) Thresholds() Thresholds {
	return c.thresholds
}

// SeverityOf classifies a day count
func (c *Classifier) SeverityOf(daysSinceFailure int) Severity {
	return c.bands.Classify(float64(daysSinceFailure))
}

var defaultClassifier = DefaultClassifier()

// SeverityOf classifies with the default thresholds
func SeverityOf(daysSinceFailure int) Severity {
	return defaultClassifier.SeverityOf(daysSinceFailure)
}
