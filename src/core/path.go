// Package core implements the target model and store: the interned,
// concurrent set of targets that the match/execute engine in package build
// operates over.
package core

import (
	"path/filepath"
	"strings"
)

// A Path is an absolute, slash-normalized filesystem path. It never carries
// a trailing slash (except the root) and never contains "." or ".."
// components once constructed via NewPath.
type Path string

// NewPath normalizes p into an absolute Path rooted at base if it isn't
// already absolute.
func NewPath(base, p string) Path {
	if !filepath.IsAbs(p) {
		p = filepath.Join(base, p)
	}
	return Path(filepath.Clean(p))
}

// String implements fmt.Stringer.
func (p Path) String() string { return string(p) }

// Dir returns the directory part of p, itself a Path.
func (p Path) Dir() Path { return Path(filepath.Dir(string(p))) }

// Base returns the leaf element of p.
func (p Path) Base() string { return filepath.Base(string(p)) }

// IsEmpty is true for the zero value, used as the "unknown location" marker
// path_target §3 permits for a target whose output location isn't known yet.
func (p Path) IsEmpty() bool { return p == "" }

// A DirPath is a Path known to denote a directory (as opposed to a file).
// It's a distinct type so APIs that require one cannot accidentally be
// handed a file path.
type DirPath Path

// NewDirPath normalizes p into an absolute DirPath rooted at base.
func NewDirPath(base, p string) DirPath { return DirPath(NewPath(base, p)) }

// String implements fmt.Stringer.
func (d DirPath) String() string { return string(d) }

// Join appends name to the directory, producing a Path.
func (d DirPath) Join(name string) Path {
	return Path(filepath.Join(string(d), name))
}

// IsAncestorOf returns true if d is an ancestor directory of (or equal to)
// other. The compile rule's -I prefix map does not call it: NewPrefixMap
// keeps every -I directory regardless of where it lies.
func (d DirPath) IsAncestorOf(other DirPath) bool {
	rel, err := filepath.Rel(string(d), string(other))
	if err != nil {
		return false
	}
	return rel == "." || !strings.HasPrefix(rel, "..")
}

// A Name is a target's leaf identifier, e.g. "main" in "//src/foo:main".
type Name string

// String implements fmt.Stringer.
func (n Name) String() string { return string(n) }

// An Ext represents the three-valued extension state from spec §3: absent
// (unspecified), empty (explicitly no extension) or present.
//
// The zero value is ExtUnspecified so a freshly zeroed TargetKey behaves as
// "no extension given yet", matching the spec's requirement that lookups
// with an absent extension match an entry with a present one.
type Ext struct {
	state extState
	value string
}

type extState uint8

const (
	// ExtUnspecified means the caller didn't say anything about the
	// extension either way.
	ExtUnspecified extState = iota
	// ExtNone means the caller explicitly asked for no extension.
	ExtNone
	// ExtPresent means the caller supplied a concrete extension value.
	ExtPresent
)

// NoExt constructs an Ext in the explicit "no extension" state.
func NoExt() Ext { return Ext{state: ExtNone} }

// PresentExt constructs an Ext carrying a concrete value. Once stored on a
// TargetKey entry this is immutable (spec §3: "once present, it is
// immutable").
func PresentExt(value string) Ext { return Ext{state: ExtPresent, value: value} }

// IsUnspecified reports whether no extension was given at all.
func (e Ext) IsUnspecified() bool { return e.state == ExtUnspecified }

// IsPresent reports whether a concrete extension value was given (possibly
// the empty string, which is distinct from ExtUnspecified).
func (e Ext) IsPresent() bool { return e.state == ExtPresent }

// Value returns the extension text; only meaningful when IsPresent is true.
func (e Ext) Value() string { return e.value }

// String implements fmt.Stringer, mostly for diagnostics.
func (e Ext) String() string {
	switch e.state {
	case ExtNone:
		return "<none>"
	case ExtPresent:
		return e.value
	default:
		return "<unspecified>"
	}
}

// matches reports whether e and other are compatible for lookup purposes:
// equal, or one of them unspecified. This is the "equality ignores a
// missing ext against a present ext" rule from spec §3.
func (e Ext) matches(other Ext) bool {
	if e.state == ExtUnspecified || other.state == ExtUnspecified {
		return true
	}
	return e.state == other.state && e.value == other.value
}

// upgrade returns the more specific of e and other, used when a lookup with
// a present extension finds a stored entry with an absent one (spec §3:
// "the first lookup with a present ext atomically upgrades the entry").
// Panics if both are present and different, which would be a caller bug
// (see Store.upgradeExt for the synchronized version used in practice).
func (e Ext) upgrade(other Ext) Ext {
	if e.state == ExtUnspecified {
		return other
	}
	if other.state == ExtUnspecified {
		return e
	}
	if e.state != other.state || e.value != other.value {
		panic("inconsistent extension upgrade: " + e.String() + " vs " + other.String())
	}
	return e
}
