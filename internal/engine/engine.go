// Package engine is the library surface consumed by the CLI and other
// frontends: series loading with caching, configurations, price calculation
// and export.
package engine

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/INSPIRATIONlabs/ofmlgo/internal/cache"
	"github.com/INSPIRATIONlabs/ofmlgo/internal/catalog"
	"github.com/INSPIRATIONlabs/ofmlgo/internal/discovery"
	"github.com/INSPIRATIONlabs/ofmlgo/internal/ocd"
	"github.com/INSPIRATIONlabs/ofmlgo/internal/pricing"
	"github.com/INSPIRATIONlabs/ofmlgo/internal/storage/snapshot"
)

var (
	// ErrArticleNotFound indicates an unknown article number.
	ErrArticleNotFound = errors.New("article not found")

	// ErrPropertyNotFound indicates an unknown property id.
	ErrPropertyNotFound = errors.New("property not found")

	// ErrInvalidValue indicates a value id not listed for the property.
	ErrInvalidValue = errors.New("invalid property value")
)

// Options configures an Engine.
type Options struct {
	DataRoot  string
	Languages []string // text and directory language preference

	CacheTTL   time.Duration
	CacheSize  int
	Snapshots  *snapshot.Store    // optional persistent model cache
	Overrides  ocd.OverrideSource // optional recovery confirmation source
	Logger     *zap.Logger
}

// Engine ties discovery, loading, caching and pricing together. Safe for
// concurrent use; models are immutable once loaded.
type Engine struct {
	opts   Options
	models *cache.Cache[*ocd.Model]
	log    *zap.Logger
}

// New builds an Engine.
func New(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Engine{
		opts:   opts,
		models: cache.New[*ocd.Model](opts.CacheSize, opts.CacheTTL),
		log:    opts.Logger,
	}
}

// DiscoverManufacturers scans the data root.
func (e *Engine) DiscoverManufacturers() []discovery.Manufacturer {
	return discovery.DiscoverManufacturers(e.opts.DataRoot, e.opts.Languages)
}

// LoadSeries returns the cached or freshly loaded model for a series, or
// (nil, nil) when the series has no pdata.ebase.
func (e *Engine) LoadSeries(manufacturer, series string) (*ocd.Model, error) {
	path := discovery.ResolveDataPath(e.opts.DataRoot, manufacturer, series, e.opts.Languages)
	if path == "" {
		return nil, nil
	}
	key := cache.Key{Manufacturer: manufacturer, Series: series}
	return e.models.GetOrLoad(key, func() (*ocd.Model, error) {
		return e.loadModel(key, path)
	})
}

func (e *Engine) loadModel(key cache.Key, path string) (*ocd.Model, error) {
	var snapKey []byte
	if e.opts.Snapshots != nil {
		if k, err := snapshot.SourceKey(key.Manufacturer, key.Series, path); err == nil {
			snapKey = k
			if m, err := e.opts.Snapshots.Get(k); err == nil {
				e.log.Debug("series restored from snapshot", zap.String("key", key.String()))
				return m, nil
			}
		}
	}

	m, err := ocd.Load(path, ocd.LoadOptions{
		Manufacturer: key.Manufacturer,
		Series:       key.Series,
		Languages:    e.opts.Languages,
		Overrides:    e.opts.Overrides,
		Logger:       e.log,
	})
	if err != nil {
		return nil, err
	}
	if e.opts.Snapshots != nil && snapKey != nil {
		if err := e.opts.Snapshots.Put(snapKey, m); err != nil {
			e.log.Warn("snapshot write failed", zap.String("key", key.String()), zap.Error(err))
		}
	}
	return m, nil
}

// ClearCache drops all cached models.
func (e *Engine) ClearCache() {
	e.models.Clear()
}

// ListFamilies groups a loaded model's articles.
func (e *Engine) ListFamilies(m *ocd.Model) []*catalog.Family {
	return catalog.ListFamilies(m)
}

// Configuration is one interactive product configuration. It holds a handle
// to the immutable model; cloning is cheap.
type Configuration struct {
	Model      *ocd.Model
	ArticleNr  string
	Selections pricing.Selections

	cachedPrice *pricing.Price
}

// CreateConfiguration builds a configuration for an article with the
// family's default selections.
func (e *Engine) CreateConfiguration(m *ocd.Model, articleNr string) (*Configuration, error) {
	a, ok := m.Article(articleNr)
	if !ok {
		return nil, ErrArticleNotFound
	}
	cfg := &Configuration{
		Model:      m,
		ArticleNr:  a.ArticleNr,
		Selections: make(pricing.Selections),
	}
	for _, fam := range catalog.ListFamilies(m) {
		if contains(fam.Articles, a.ArticleNr) {
			cfg.Selections = catalog.DefaultConfiguration(m, fam)
			break
		}
	}
	return cfg, nil
}

// SetProperty selects a value. The property must exist on the model and the
// value must be one of its listed options.
func (e *Engine) SetProperty(cfg *Configuration, property, value string) error {
	if _, ok := cfg.Model.Properties[property]; !ok {
		return ErrPropertyNotFound
	}
	if _, ok := cfg.Model.PropertyValue(property, value); !ok {
		return ErrInvalidValue
	}
	cfg.Selections[property] = value
	cfg.cachedPrice = nil
	return nil
}

// ResetProperty clears a selection.
func (e *Engine) ResetProperty(cfg *Configuration, property string) {
	delete(cfg.Selections, property)
	cfg.cachedPrice = nil
}

// Clone returns an independent copy sharing the model handle.
func (cfg *Configuration) Clone() *Configuration {
	out := &Configuration{
		Model:      cfg.Model,
		ArticleNr:  cfg.ArticleNr,
		Selections: make(pricing.Selections, len(cfg.Selections)),
	}
	for k, v := range cfg.Selections {
		out.Selections[k] = v
	}
	return out
}

// CalculatePrice computes the itemized price at the given date (YYYYMMDD or
// YYYY-MM-DD; ocd.DateMin when empty or unparseable). The result is memoized until
// the next selection change.
func (e *Engine) CalculatePrice(cfg *Configuration, priceDate string) pricing.Price {
	date, ok := ocd.NormalizeDate(priceDate, ocd.DateMin)
	if !ok {
		date = ocd.DateMin
	}
	if cfg.cachedPrice != nil && cfg.cachedPrice.PriceDate == date {
		return *cfg.cachedPrice
	}
	p := pricing.Calculate(cfg.Model, pricing.Request{
		ArticleNr:  cfg.ArticleNr,
		Selections: cfg.Selections,
		PriceDate:  date,
		Languages:  e.opts.Languages,
	})
	p.PriceDate = date
	cfg.cachedPrice = &p
	return p
}

// Warnings returns the model's load warnings plus any attached to the last
// calculation.
func (e *Engine) Warnings(cfg *Configuration) []ocd.DataWarning {
	out := append([]ocd.DataWarning(nil), cfg.Model.Warnings...)
	if cfg.cachedPrice != nil {
		out = append(out, cfg.cachedPrice.Warnings...)
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
