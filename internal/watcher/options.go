package watcher

import (
	"path/filepath"
	"strings"
	"time"
)

const defaultSettleDelay = 100 * time.Millisecond

// DefaultExclude names files that never signal a capture: OS droppings,
// temp files and SQLite sidecars other than the WAL.
var DefaultExclude = []string{".DS_Store", "Thumbs.db", "*.tmp", "*-shm", "*-journal"}

// Options configures the watcher.
//
// Patterns are filepath.Match globs applied to base names. A path is
// reported when it matches Include (or Include is empty) and matches no
// Exclude pattern. Hidden names are skipped unless KeepHidden is set;
// atomic writers stage their data in hidden temp files.
type Options struct {
	Include     []string
	Exclude     []string // nil means DefaultExclude
	KeepHidden  bool
	SettleDelay time.Duration
}

// StagingOptions watches what the capture flow writes: the staging
// database and staged images.
func StagingOptions(settle time.Duration) Options {
	return Options{
		Include:     []string{"staging.db", "staging.db-wal", "*.png", "*.jpg", "*.jpeg", "*.webp", "*.gif", "*.heic"},
		SettleDelay: settle,
	}
}

func (o *Options) setDefaults() {
	if o.SettleDelay <= 0 {
		o.SettleDelay = defaultSettleDelay
	}
	if o.Exclude == nil {
		o.Exclude = DefaultExclude
	}
}

// skipDir reports whether a subdirectory is left unwatched.
func (o *Options) skipDir(path string) bool {
	base := filepath.Base(path)
	return (!o.KeepHidden && hidden(base)) || matchAny(o.Exclude, base)
}

// skipFile reports whether changes to path are dropped. Only the base name
// is checked, so the staging area itself may live under a hidden directory.
func (o *Options) skipFile(path string) bool {
	base := filepath.Base(path)
	if !o.KeepHidden && hidden(base) {
		return true
	}
	if matchAny(o.Exclude, base) {
		return true
	}
	return len(o.Include) > 0 && !matchAny(o.Include, strings.ToLower(base))
}

func hidden(base string) bool {
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, err := filepath.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}
