package hosts

const (
	maxHostnameLength = 253
	maxLabelLength    = 63
)

// ValidHostname reports whether s is a syntactically valid hostname per the
// RFC 1123 label rules: dot-separated labels of letters, digits, and
// hyphens, no leading or trailing hyphen, label length at most 63 and total
// length at most 253.
func ValidHostname(s string) bool {
	if s == "" || len(s) > maxHostnameLength {
		return false
	}

	labelStart := 0
	for i := 0; i <= len(s); i++ {
		if i < len(s) && s[i] != '.' {
			continue
		}

		label := s[labelStart:i]
		if !validLabel(label) {
			return false
		}
		labelStart = i + 1
	}
	return true
}

func validLabel(label string) bool {
	if label == "" || len(label) > maxLabelLength {
		return false
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return false
	}
	for i := 0; i < len(label); i++ {
		c := label[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-':
		default:
			return false
		}
	}
	return true
}
