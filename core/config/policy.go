package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Policy holds the tunable scoring weights. It is read from a YAML file and may be
// swapped at runtime by a PolicyWatcher.
type Policy struct {
	Ranking    RankingPolicy   `yaml:"ranking"`
	Dimensions DimensionPolicy `yaml:"dimensions"`
}

type RankingPolicy struct {
	Relevance   float64 `yaml:"relevance"`
	SuccessRate float64 `yaml:"success_rate"`
	Usage       float64 `yaml:"usage"`
}

// DimensionPolicy weighs the inspection dimensions when computing the overall score.
// Equal weights yield the plain arithmetic mean.
type DimensionPolicy struct {
	Attitude        float64 `yaml:"attitude"`
	Professionalism float64 `yaml:"professionalism"`
	Compliance      float64 `yaml:"compliance"`
}

// Weight returns the weight of the named dimension, or 0 for an unknown name.
func (p DimensionPolicy) Weight(dimension string) float64 {
	switch dimension {
	case "attitude":
		return p.Attitude
	case "professionalism":
		return p.Professionalism
	case "compliance":
		return p.Compliance
	}
	return 0
}

func DefaultPolicy() Policy {
	return Policy{
		Ranking: RankingPolicy{
			Relevance:   0.6,
			SuccessRate: 0.3,
			Usage:       0.1,
		},
		Dimensions: DimensionPolicy{
			Attitude:        1,
			Professionalism: 1,
			Compliance:      1,
		},
	}
}

func (p Policy) Validate() error {
	r := p.Ranking
	if r.Relevance < 0 || r.SuccessRate < 0 || r.Usage < 0 {
		return fmt.Errorf("ranking weights must be non-negative")
	}
	if r.Relevance+r.SuccessRate+r.Usage == 0 {
		return fmt.Errorf("ranking weights must not all be zero")
	}
	d := p.Dimensions
	if d.Attitude <= 0 || d.Professionalism <= 0 || d.Compliance <= 0 {
		return fmt.Errorf("dimension weights must be positive")
	}
	return nil
}

// LoadPolicy reads a policy file. Sections missing from the file keep their defaults.
func LoadPolicy(path string) (Policy, error) {
	policy := DefaultPolicy()
	if path == "" {
		return policy, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("reading policy file: %w", err)
	}

	if err := yaml.Unmarshal(raw, &policy); err != nil {
		return Policy{}, fmt.Errorf("parsing policy file: %w", err)
	}

	if err := policy.Validate(); err != nil {
		return Policy{}, fmt.Errorf("invalid policy file %s: %w", path, err)
	}

	return policy, nil
}

// PolicyWatcher serves the current policy and reloads it when the file changes.
type PolicyWatcher struct {
	path     string
	current  atomic.Pointer[Policy]
	watcher  *fsnotify.Watcher
	debounce time.Duration
	done     chan struct{}
}

// NewPolicyWatcher loads the policy at path. With an empty path the defaults are served
// and Run returns immediately.
func NewPolicyWatcher(path string) (*PolicyWatcher, error) {
	policy, err := LoadPolicy(path)
	if err != nil {
		return nil, err
	}

	w := &PolicyWatcher{
		path:     path,
		debounce: 200 * time.Millisecond,
		done:     make(chan struct{}),
	}
	w.current.Store(&policy)

	if path == "" {
		return w, nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating policy watcher: %w", err)
	}
	// Watch the directory: editors and config-map mounts replace files by rename.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watching policy dir: %w", err)
	}
	w.watcher = fsw

	return w, nil
}

// Static returns a watcher that always serves p.
func Static(p Policy) *PolicyWatcher {
	w := &PolicyWatcher{done: make(chan struct{})}
	w.current.Store(&p)
	return w
}

func (w *PolicyWatcher) Current() Policy {
	return *w.current.Load()
}

// Run processes file events until ctx is cancelled or Close is called.
func (w *PolicyWatcher) Run(ctx context.Context) {
	if w.watcher == nil {
		return
	}

	target := filepath.Clean(w.path)
	var reload <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				reload = time.After(w.debounce)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.WarnContext(ctx, "policy watcher error", "error", err)
		case <-reload:
			reload = nil
			w.reload(ctx)
		}
	}
}

func (w *PolicyWatcher) reload(ctx context.Context) {
	policy, err := LoadPolicy(w.path)
	if err != nil {
		slog.WarnContext(ctx, "ignoring invalid policy update", "path", w.path, "error", err)
		return
	}
	w.current.Store(&policy)
	slog.InfoContext(ctx, "policy reloaded",
		"path", w.path,
		"ranking", policy.Ranking,
		"dimensions", policy.Dimensions)
}

func (w *PolicyWatcher) Close() error {
	select {
	case <-w.done:
	default:
		close(w.done)
	}
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}
