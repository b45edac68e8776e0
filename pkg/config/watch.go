package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/platinummonkey/clientops/pkg/observability"
)

// reloadDelay coalesces the burst of events an editor or a ConfigMap swap produces
const reloadDelay = 250 * time.Millisecond

// Applier receives every valid rules update
type Applier func(Rules) error

// WatchRules loads the rules file, applies it, and re-applies it whenever the
// file changes until ctx is done. A file that fails to parse or validate is
// logged and skipped; the last good rules stay in effect. The directory is
// watched rather than the file so atomic replaces are seen.
func WatchRules(ctx context.Context, path string, logger *observability.Logger, appliers ...Applier) (Rules, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}

	rules, err := LoadRules(path)
	if err != nil {
		return Rules{}, err
	}
	if err := applyAll(rules, appliers); err != nil {
		return Rules{}, err
	}
	if path == "" {
		return rules, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return Rules{}, fmt.Errorf("failed to create rules watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return Rules{}, fmt.Errorf("failed to watch rules directory: %w", err)
	}

	last, _ := os.ReadFile(path)
	log := logger.WithField("rules_file", path)

	go func() {
		defer watcher.Close()

		timer := time.NewTimer(reloadDelay)
		timer.Stop()
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
					timer.Reset(reloadDelay)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.WithError(err).Warn("rules watcher error")
			case <-timer.C:
				data, err := os.ReadFile(path)
				if err != nil {
					log.WithError(err).Warn("failed to read rules file, keeping current rules")
					continue
				}
				if bytes.Equal(data, last) {
					continue
				}
				next, err := ParseRules(data)
				if err != nil {
					log.WithError(err).Warn("rejected rules update, keeping current rules")
					continue
				}
				if err := applyAll(next, appliers); err != nil {
					log.WithError(err).Warn("failed to apply rules update")
					continue
				}
				last = data
				log.WithFields(map[string]interface{}{
					"usage_weight":        next.HealthWeights.Usage,
					"payment_weight":      next.HealthWeights.Payment,
					"subscription_weight": next.HealthWeights.Subscription,
					"dunning_critical":    next.DunningThresholds.Critical,
				}).Info("rules reloaded")
			}
		}
	}()

	return rules, nil
}

func applyAll(r Rules, appliers []Applier) error {
	var errs []error
	for _, apply := range appliers {
		if err := apply(r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
