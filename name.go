package zdc

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Reserved root entries.
// ContentName and MetaName hold the container's attribute records
// and exist in every container.
// LicenseName is optional and derived from the metadata record.
const (
	ContentName = "content.json"
	MetaName    = "meta.json"
	LicenseName = "license.txt"
)

// SplitName splits a qualified item name into its part and item components.
// The part of a root-level name is the empty string.
func SplitName(name string) (part, item string) {
	if i := strings.IndexByte(name, '/'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

// Ext produces the extension of a qualified item name,
// without the leading dot.
func Ext(name string) string {
	_, item := SplitName(name)
	if i := strings.LastIndexByte(item, '.'); i >= 0 {
		return item[i+1:]
	}
	return ""
}

func reserved(name string) bool {
	return name == ContentName || name == MetaName || name == LicenseName
}

// checkName validates a qualified item name: [part/]name.ext,
// with no empty segments and no path traversal.
func checkName(name string) error {
	if name == "" {
		return errors.Wrap(ErrInvalidName, "empty name")
	}
	segments := strings.Split(name, "/")
	if len(segments) > 2 {
		return errors.Wrapf(ErrInvalidName, "%s: too many path segments", name)
	}
	for _, seg := range segments {
		if seg == "" || seg == "." || seg == ".." {
			return errors.Wrapf(ErrInvalidName, "%s: bad path segment", name)
		}
	}
	item := segments[len(segments)-1]
	dot := strings.LastIndexByte(item, '.')
	if dot <= 0 || dot == len(item)-1 {
		return errors.Wrapf(ErrInvalidName, "%s: missing extension", name)
	}
	return nil
}

// sortNames orders qualified names by part, then by item name.
// Root entries sort before all parts.
func sortNames(names []string) {
	sort.Slice(names, func(i, j int) bool {
		pi, ni := SplitName(names[i])
		pj, nj := SplitName(names[j])
		if pi != pj {
			return pi < pj
		}
		return ni < nj
	})
}
