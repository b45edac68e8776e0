package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/clientops/pkg/aggregator"
	"github.com/platinummonkey/clientops/pkg/dunning"
	"github.com/platinummonkey/clientops/pkg/health"
)

func TestParseRules_PartialFileKeepsDefaults(t *testing.T) {
	r, err := ParseRules([]byte(`
health_weights:
  usage: 2
  payment: 1
  subscription: 1
`))
	require.NoError(t, err)
	assert.Equal(t, health.Weights{Usage: 2, Payment: 1, Subscription: 1}, r.HealthWeights)
	assert.Equal(t, dunning.DefaultThresholds(), r.DunningThresholds)
	assert.Equal(t, aggregator.DefaultAlertLimits(), r.Alerts)
}

func TestParseRules_Empty(t *testing.T) {
	r, err := ParseRules([]byte("  \n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultRules(), r)
}

func TestParseRules_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "health_weight:\n  usage: 1\n"},
		{"negative weight", "health_weights:\n  usage: -1\n"},
		{"zero weights", "health_weights:\n  usage: 0\n  payment: 0\n  subscription: 0\n"},
		{"unordered thresholds", "dunning_thresholds:\n  moderate: 7\n  high: 3\n  critical: 14\n"},
		{"negative alert", "alerts:\n  at_risk_share: -0.1\n"},
		{"not yaml", "health_weights: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRules([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadRules(t *testing.T) {
	r, err := LoadRules("")
	require.NoError(t, err)
	assert.Equal(t, DefaultRules(), r)

	_, err = LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

type weightsTarget struct {
	mu      sync.Mutex
	weights []health.Weights
}

func (w *weightsTarget) SetWeights(v health.Weights) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.weights = append(w.weights, v)
	return nil
}

func (w *weightsTarget) last() health.Weights {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.weights) == 0 {
		return health.Weights{}
	}
	return w.weights[len(w.weights)-1]
}

type classifierTarget struct {
	mu sync.Mutex
	c  *dunning.Classifier
}

func (c *classifierTarget) SetClassifier(v *dunning.Classifier) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.c = v
}

func (c *classifierTarget) thresholds() dunning.Thresholds {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.c.Thresholds()
}

func TestWatchRules_ReloadsValidChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("health_weights:\n  usage: 1\n  payment: 1\n  subscription: 1\n"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	weights := &weightsTarget{}
	classifier := &classifierTarget{}
	agg := aggregator.New(nil)

	rules, err := WatchRules(ctx, path, nil, HealthApplier(weights), DunningApplier(classifier), AggregatorApplier(agg))
	require.NoError(t, err)
	assert.Equal(t, health.EqualWeights(), rules.HealthWeights)
	assert.Equal(t, health.EqualWeights(), weights.last())
	assert.Equal(t, dunning.DefaultThresholds(), classifier.thresholds())

	// invalid edit is ignored
	require.NoError(t, os.WriteFile(path, []byte("health_weights:\n  usage: -5\n"), 0o600))
	time.Sleep(3 * reloadDelay)
	assert.Equal(t, health.EqualWeights(), weights.last())

	require.NoError(t, os.WriteFile(path, []byte(`
health_weights:
  usage: 3
  payment: 1
  subscription: 0
dunning_thresholds:
  moderate: 2
  high: 5
  critical: 10
`), 0o600))

	assert.Eventually(t, func() bool {
		return weights.last() == health.Weights{Usage: 3, Payment: 1}
	}, 5*time.Second, 50*time.Millisecond)
	assert.Eventually(t, func() bool {
		return classifier.thresholds().Critical == 10
	}, 5*time.Second, 50*time.Millisecond)
}

func TestWatchRules_NoFile(t *testing.T) {
	weights := &weightsTarget{}
	rules, err := WatchRules(context.Background(), "", nil, HealthApplier(weights))
	require.NoError(t, err)
	assert.Equal(t, DefaultRules(), rules)
	assert.Equal(t, health.EqualWeights(), weights.last())
}

func TestWatchRules_InvalidInitialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dunning_thresholds:\n  moderate: 0\n"), 0o600))

	_, err := WatchRules(context.Background(), path, nil)
	assert.Error(t, err)
}
