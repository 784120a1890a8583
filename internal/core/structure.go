package core

import (
	"fmt"
	"sort"
	"strings"
)

// StructureReport lists the header problems of a file. Any error is fatal;
// warnings are recorded and processing continues.
type StructureReport struct {
	Errors   []string
	Warnings []string
}

// Fatal reports whether the file must be rejected before any row is attempted.
func (r StructureReport) Fatal() bool { return len(r.Errors) > 0 }

// ValidateStructure checks a normalized header against the columns of kind.
// Blank header cells are ignored.
func ValidateStructure(columns []string, kind ImportKind) StructureReport {
	var report StructureReport

	spec, ok := Lookup(kind)
	if !ok {
		report.Errors = append(report.Errors, fmt.Sprintf("Unknown import kind %q", kind))
		return report
	}

	seen := make(map[string]int, len(columns))
	var dups []string
	for _, c := range columns {
		if c == "" {
			continue
		}
		seen[c]++
		if seen[c] == 2 {
			dups = append(dups, c)
		}
	}
	if len(dups) > 0 {
		report.Errors = append(report.Errors, fmt.Sprintf("Duplicate columns found: %s", strings.Join(dups, ", ")))
	}

	var missing []string
	for _, c := range spec.Required {
		if seen[c] == 0 {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		report.Errors = append(report.Errors, fmt.Sprintf("Missing required columns in %s CSV: %s", kind, strings.Join(missing, ", ")))
	}

	var unknown []string
	for c := range seen {
		if !spec.Known(c) {
			unknown = append(unknown, c)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		report.Warnings = append(report.Warnings, fmt.Sprintf("Unknown columns in %s CSV will be ignored: %s", kind, strings.Join(unknown, ", ")))
	}

	return report
}
