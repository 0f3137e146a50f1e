package crm

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/hugh/pipedesk/internal/database/models"
)

var mentionPattern = regexp.MustCompile(`@([\p{L}\p{N}_.\-]+)`)

// mentionTokens returns the distinct lower-cased @tokens in body, in order
// of first appearance.
func mentionTokens(body string) []string {
	var tokens []string
	seen := map[string]bool{}
	for _, m := range mentionPattern.FindAllStringSubmatch(body, -1) {
		tok := strings.ToLower(strings.TrimRight(m[1], ".-_"))
		if tok == "" || seen[tok] {
			continue
		}
		seen[tok] = true
		tokens = append(tokens, tok)
	}
	return tokens
}

// handle is a member's name with whitespace removed, lower-cased.
func handle(name string) string {
	return strings.ToLower(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, name))
}

func firstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}

// resolveMentions matches each token against the members' full handles,
// then their first names. The author is never included.
func resolveMentions(body string, authorID uuid.UUID, members []models.Membership) []uuid.UUID {
	tokens := mentionTokens(body)
	resolved := []uuid.UUID{}
	if len(tokens) == 0 {
		return resolved
	}

	seen := map[uuid.UUID]bool{}
	add := func(id uuid.UUID) {
		if id == authorID || seen[id] {
			return
		}
		seen[id] = true
		resolved = append(resolved, id)
	}

	for _, tok := range tokens {
		for _, m := range members {
			if m.User == nil {
				continue
			}
			if handle(m.User.Name) == tok || firstName(m.User.Name) == tok {
				add(m.UserID)
			}
		}
	}
	return resolved
}
