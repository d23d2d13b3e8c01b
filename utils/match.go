package utils

import "strings"

// NormalizeToken converts an action identifier to upper snake case:
// "view-user.management" becomes "VIEW_USER_MANAGEMENT".
func NormalizeToken(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	lastUnderscore := true
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch >= 'a' && ch <= 'z':
			b.WriteByte(ch - 'a' + 'A')
			lastUnderscore = false
		case ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
			b.WriteByte(ch)
			lastUnderscore = false
		case ch == '*':
			b.WriteByte(ch)
			lastUnderscore = false
		default:
			// separators collapse into a single underscore
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimRight(b.String(), "_")
}

// ValidToken reports whether s is a normalized VERB_MODULE[_SUBCONTEXT] token.
func ValidToken(s string) bool {
	if s == "" || s[0] < 'A' || s[0] > 'Z' {
		return false
	}
	segments := 1
	prevUnderscore := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch == '_':
			if prevUnderscore {
				return false
			}
			segments++
			prevUnderscore = true
		case ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
			prevUnderscore = false
		default:
			return false
		}
	}
	return segments >= 2 && !prevUnderscore
}

// MatchAction checks if the action matches the pattern. '*' matches any
// sequence of characters (including none); everything else is literal.
func MatchAction(pattern, action string) bool {
	if pattern == "*" || pattern == action {
		return true
	}
	pIndex, aIndex := 0, 0
	starIdx, matchIdx := -1, 0
	for aIndex < len(action) {
		switch {
		case pIndex < len(pattern) && pattern[pIndex] == action[aIndex]:
			pIndex++
			aIndex++
		case pIndex < len(pattern) && pattern[pIndex] == '*':
			starIdx = pIndex
			matchIdx = aIndex
			pIndex++
		case starIdx != -1:
			// backtrack: let the last '*' absorb one more character
			pIndex = starIdx + 1
			matchIdx++
			aIndex = matchIdx
		default:
			return false
		}
	}
	for pIndex < len(pattern) && pattern[pIndex] == '*' {
		pIndex++
	}
	return pIndex == len(pattern)
}

// SplitResource splits a canonical "type:id" resource. ok is false when
// either part is missing.
func SplitResource(resource string) (typ, id string, ok bool) {
	idx := strings.IndexByte(resource, ':')
	if idx <= 0 || idx == len(resource)-1 {
		return "", "", false
	}
	return resource[:idx], resource[idx+1:], true
}

// CanonicalResource trims a resource and lower-cases its type part.
// Values that are not "type:id" are returned trimmed and unchanged.
func CanonicalResource(resource string) string {
	resource = strings.TrimSpace(resource)
	typ, id, ok := SplitResource(resource)
	if !ok {
		return resource
	}
	return strings.ToLower(strings.TrimSpace(typ)) + ":" + strings.TrimSpace(id)
}
