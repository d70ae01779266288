package configtree

import (
	"sort"

	"github.com/spf13/viper"
)

// ViperTree adapts a *viper.Viper subtree to Tree (spec.md §1 ambient
// stack), grounded in marmos91-dittofs's use of viper for layered
// configuration. EnumNodes walks viper's own key namespace rather than
// AllSettings()'s recursive map, since viper already lower-cases and
// dot-joins keys for us. Paths use viper's '.' key separator, not '/', and
// EnumNodes returns lower-cased names in sorted order, not configuration
// order.
type ViperTree struct {
	v *viper.Viper
}

// NewViperTree wraps the root of a loaded viper instance.
func NewViperTree(v *viper.Viper) *ViperTree {
	return &ViperTree{v: v}
}

// EnumNodes returns the distinct first path segment of every key under
// path, deduplicated and sorted for deterministic iteration order.
func (t *ViperTree) EnumNodes(path string) []string {
	sub := t.v
	if path != "" {
		sub = t.v.Sub(path)
	}

	if sub == nil {
		return nil
	}

	seen := make(map[string]struct{})

	for _, key := range sub.AllKeys() {
		seen[firstSegment(key)] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}

	sort.Strings(out)

	return out
}

// GetValue returns the string value at path, or def if unset.
func (t *ViperTree) GetValue(path, def string) string {
	if !t.v.IsSet(path) {
		return def
	}

	return t.v.GetString(path)
}

// Sub returns the subtree rooted at path, nil if it does not exist.
func (t *ViperTree) Sub(path string) Tree {
	sub := t.v.Sub(path)
	if sub == nil {
		return nil
	}

	return &ViperTree{v: sub}
}

func firstSegment(key string) string {
	for i, r := range key {
		if r == '.' {
			return key[:i]
		}
	}

	return key
}
