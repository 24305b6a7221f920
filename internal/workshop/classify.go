package workshop

import (
	"regexp"
	"strings"
)

// Kind is the classification of a single input line.
type Kind int

const (
	KindBlank Kind = iota
	KindCollection
	KindDirect
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindBlank:
		return "blank"
	case KindCollection:
		return "collection"
	case KindDirect:
		return "direct"
	case KindInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

var (
	collectionPattern = regexp.MustCompile(`filedetails/\?id=(\d+)`)
	directPattern     = regexp.MustCompile(`\b\d{8,10}\b`)
)

// Line is a classified input line.
type Line struct {
	Raw  string
	Kind Kind

	// CollectionID is set for KindCollection.
	CollectionID string
	// DirectID is the first 8-10 digit token on the line, if any. For
	// KindCollection it is the fallback used when expansion yields nothing.
	DirectID ID
}

// Classify inspects one line of user input. It performs no I/O.
func Classify(raw string) Line {
	text := strings.TrimSpace(raw)
	line := Line{Raw: text}
	if text == "" {
		line.Kind = KindBlank
		return line
	}

	if tok := directPattern.FindString(text); tok != "" {
		line.DirectID = ID(tok)
	}

	if m := collectionPattern.FindStringSubmatch(text); m != nil {
		line.Kind = KindCollection
		line.CollectionID = m[1]
		return line
	}

	if line.DirectID != "" {
		line.Kind = KindDirect
		return line
	}

	line.Kind = KindInvalid
	return line
}
