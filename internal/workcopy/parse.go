package workcopy

import (
	"strings"

	"github.com/d1childress/ccmanager/pkg/models"
)

// Entry is one parsed name-status line
type Entry struct {
	Kind models.ChangeKind
	Path string
}

// ParseNameStatus parses `status<TAB>path` lines in input order. Lines with
// an unknown status code or without a path are skipped. Rename lines may
// carry a similarity score ("R087") and both paths; the last path is kept.
func ParseNameStatus(output string) []Entry {
	var entries []Entry

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			continue
		}

		kind, ok := statusKind(fields[0])
		if !ok {
			continue
		}

		path := fields[len(fields)-1]
		if strings.TrimSpace(path) == "" {
			continue
		}

		entries = append(entries, Entry{Kind: kind, Path: path})
	}

	return entries
}

func statusKind(code string) (models.ChangeKind, bool) {
	switch code {
	case "A":
		return models.ChangeAdded, true
	case "M":
		return models.ChangeModified, true
	case "D":
		return models.ChangeDeleted, true
	}

	if strings.HasPrefix(code, "R") && isDigits(code[1:]) {
		return models.ChangeRenamed, true
	}
	return "", false
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
