// Package configtree defines the narrow configuration surface the entity
// tree is built from (spec.md §1: configuration is explicitly out of scope
// for the core, which only consumes this interface), mirroring
// original_source/src/wfde/WfdeConfigurationPropertyTree.*.
package configtree

// Tree is a read-only view over a hierarchical configuration, scoped by
// slash-separated path. Implementations need not be thread-safe beyond
// concurrent reads.
type Tree interface {
	// EnumNodes lists the immediate child keys under path, in configuration
	// order. path is "" for the root.
	EnumNodes(path string) []string
	// GetValue returns the string value at path, or def if unset.
	GetValue(path, def string) string
	// Sub returns the subtree rooted at path; nil if path does not exist.
	Sub(path string) Tree
}
