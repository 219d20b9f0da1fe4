package engine

import (
	"fmt"
	"strings"
	"unicode"

	"annual-reports-workers/internal/models"
	"annual-reports-workers/pkg/registry"
)

const maxKeySegment = 50

// AssignKeys sets the document_key and report id of every requirement in
// place. Colliding keys get a numeric suffix in list order.
func AssignKeys(reg *registry.Registry, reportID string, reqs []models.DocumentRequirement) {
	used := make(map[string]int, len(reqs))
	for i := range reqs {
		r := &reqs[i]
		segment := NormalizeForKey(r.Item)
		if segment == "" {
			segment = "static"
		}
		key := fmt.Sprintf("%s_%s_%s_%s", reportID, reg.ExternalType(r.TemplateID), r.Person, segment)

		n := used[key]
		used[key] = n + 1
		if n > 0 {
			key = fmt.Sprintf("%s_%d", key, n)
		}
		r.DocumentKey = key
		r.ReportID = reportID
	}
}

// NormalizeForKey lowercases s, turns whitespace into underscores and keeps
// only ASCII letters, digits, Hebrew letters and underscores.
func NormalizeForKey(s string) string {
	var b strings.Builder
	n := 0
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if n == maxKeySegment {
			break
		}
		switch {
		case unicode.IsSpace(r):
			r = '_'
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
		case r >= 0x0590 && r <= 0x05FF:
		default:
			continue
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}
