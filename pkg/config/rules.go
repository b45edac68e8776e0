package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/clientops/pkg/aggregator"
	"github.com/platinummonkey/clientops/pkg/dunning"
	"github.com/platinummonkey/clientops/pkg/health"
)

// Rules are the business parameters operators tune without a deploy
type Rules struct {
	HealthWeights     health.Weights         `yaml:"health_weights"`
	DunningThresholds dunning.Thresholds     `yaml:"dunning_thresholds"`
	Alerts            aggregator.AlertLimits `yaml:"alerts"`
}

// DefaultRules returns the rules used when no file is configured
func DefaultRules() Rules {
	return Rules{
		HealthWeights:     health.EqualWeights(),
		DunningThresholds: dunning.DefaultThresholds(),
		Alerts:            aggregator.DefaultAlertLimits(),
	}
}

// Validate checks every section
func (r Rules) Validate() error {
	var errs []error
	if err := r.HealthWeights.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("health_weights: %w", err))
	}
	if err := r.DunningThresholds.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("dunning_thresholds: %w", err))
	}
	if r.Alerts.CriticalStalls < 0 || r.Alerts.CriticalDunning < 0 ||
		r.Alerts.AtRiskShare < 0 || r.Alerts.MinRecoveryRate < 0 {
		errs = append(errs, errors.New("alerts: limits must not be negative"))
	}
	return errors.Join(errs...)
}

// ParseRules decodes YAML over the defaults, so a file only needs the
// sections it changes. Unknown keys are rejected.
func ParseRules(data []byte) (Rules, error) {
	r := DefaultRules()
	if len(bytes.TrimSpace(data)) == 0 {
		return r, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&r); err != nil {
		return Rules{}, fmt.Errorf("failed to parse rules: %w", err)
	}
	if err := r.Validate(); err != nil {
		return Rules{}, fmt.Errorf("invalid rules: %w", err)
	}
	return r, nil
}

// LoadRules reads the rules file; an empty path yields DefaultRules
func LoadRules(path string) (Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("failed to read rules file: %w", err)
	}
	return ParseRules(data)
}

// HealthApplier pushes weights into anything holding a health scorer
func HealthApplier(target interface{ SetWeights(health.Weights) error }) Applier {
	return func(r Rules) error {
		return target.SetWeights(r.HealthWeights)
	}
}

// DunningApplier pushes thresholds into anything holding a dunning classifier
func DunningApplier(target interface{ SetClassifier(*dunning.Classifier) }) Applier {
	return func(r Rules) error {
		c, err := dunning.NewClassifier(r.DunningThresholds)
		if err != nil {
			return err
		}
		target.SetClassifier(c)
		return nil
	}
}

// AggregatorApplier pushes every section into the dashboard aggregator
func AggregatorApplier(a *aggregator.Aggregator) Applier {
	return func(r Rules) error {
		scorer, err := health.NewScorer(r.HealthWeights)
		if err != nil {
			return err
		}
		c, err := dunning.NewClassifier(r.DunningThresholds)
		if err != nil {
			return err
		}
		a.SetScorer(scorer)
		a.SetClassifier(c)
		a.SetAlertLimits(r.Alerts)
		return nil
	}
}
