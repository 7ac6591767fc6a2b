// Package discovery scans an OFML data root for manufacturers, series and
// their data files. The expected layout is
//
//	<root>/<manufacturer>/<series>/<lang>/<version>/db/pdata.ebase
//
// with numeric versions (highest wins) and a language preference order.
package discovery

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// DefaultLanguages is the directory-level language preference order.
var DefaultLanguages = []string{"DE", "EN", "ANY"}

// SeriesRef names one series of a manufacturer.
type SeriesRef struct {
	ID string
	// DataPath is the resolved pdata.ebase path, empty when the series has
	// no usable data directory.
	DataPath string
}

// Manufacturer is one top-level data directory.
type Manufacturer struct {
	ID     string
	Path   string
	Series []SeriesRef
}

// DiscoverManufacturers walks the root directory. A missing or unreadable
// root yields an empty list, never an error.
func DiscoverManufacturers(root string, langs []string) []Manufacturer {
	if len(langs) == 0 {
		langs = DefaultLanguages
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}
	var out []Manufacturer
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		m := Manufacturer{ID: e.Name(), Path: filepath.Join(root, e.Name())}
		series, err := os.ReadDir(m.Path)
		if err != nil {
			continue
		}
		for _, s := range series {
			if !s.IsDir() || s.Name() == "global" || strings.HasPrefix(s.Name(), ".") {
				continue
			}
			ref := SeriesRef{ID: s.Name()}
			ref.DataPath = ResolveDataPath(root, m.ID, s.Name(), langs)
			m.Series = append(m.Series, ref)
		}
		sort.Slice(m.Series, func(i, j int) bool { return m.Series[i].ID < m.Series[j].ID })
		if len(m.Series) > 0 {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ResolveDataPath finds the pdata.ebase for a series: the first present
// language in preference order, then the highest numeric version beneath it.
// Returns "" when nothing usable exists.
func ResolveDataPath(root, manufacturer, series string, langs []string) string {
	if len(langs) == 0 {
		langs = DefaultLanguages
	}
	seriesDir := filepath.Join(root, manufacturer, series)

	candidates := make([]string, 0, len(langs))
	candidates = append(candidates, langs...)
	// Unlisted languages still count, after the preferred ones.
	if entries, err := os.ReadDir(seriesDir); err == nil {
		for _, e := range entries {
			if e.IsDir() && !containsFold(candidates, e.Name()) {
				candidates = append(candidates, e.Name())
			}
		}
	}

	for _, lang := range candidates {
		langDir := filepath.Join(seriesDir, lang)
		version := highestVersion(langDir)
		if version == "" {
			continue
		}
		path := filepath.Join(langDir, version, "db", "pdata.ebase")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// highestVersion returns the numerically largest version directory name.
func highestVersion(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	best := ""
	bestN := -1
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		n, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		if n > bestN {
			bestN = n
			best = e.Name()
		}
	}
	return best
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
