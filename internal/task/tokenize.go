package task

import (
	"fmt"
	"strings"
	"unicode"
)

// Fields is the parsed form of one command remainder (the message with the
// command verb already stripped by the transport). Attribute values stay as
// raw strings; the resolver gives them types. Optional fields are pointers
// because an absent text is meaningfully different from an empty one.
type Fields struct {
	Shortcut   string
	Text       *string
	Date       *string
	Period     *string
	Reschedule *string
}

// Tokenize splits a command remainder into a shortcut, free text and
// key:value attributes.
//
// The first whitespace-delimited token is the shortcut. The rest is split
// on ':'; the last word before each colon is taken as an attribute key and
// everything ahead of the first key becomes the text. So
//
//	"abc buy milk period:2 date:tomorrow"
//
// yields shortcut "abc", text "buy milk", period "2", date "tomorrow".
// Only the keys named by FieldNames are accepted.
func Tokenize(raw string) (Fields, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Fields{}, fmt.Errorf("%w: no task shortcut provided", ErrValidation)
	}

	var f Fields
	f.Shortcut = raw
	rest := ""
	if i := strings.IndexFunc(raw, unicode.IsSpace); i >= 0 {
		f.Shortcut = raw[:i]
		rest = strings.TrimSpace(raw[i:])
	}
	if rest == "" {
		return f, nil
	}

	segs := strings.Split(rest, ":")
	key := "text"
	for _, seg := range segs[:len(segs)-1] {
		val, next := splitTrailingKey(seg)
		if err := f.set(key, val); err != nil {
			return Fields{}, err
		}
		key = next
	}
	if err := f.set(key, strings.TrimSpace(segs[len(segs)-1])); err != nil {
		return Fields{}, err
	}
	return f, nil
}

// splitTrailingKey peels the last whitespace-delimited word off a colon
// segment: that word is the next attribute key, the remainder is the value
// for the previous one.
func splitTrailingKey(seg string) (val, key string) {
	seg = strings.TrimSpace(seg)
	i := strings.LastIndexFunc(seg, unicode.IsSpace)
	if i < 0 {
		return "", seg
	}
	return strings.TrimSpace(seg[:i]), strings.TrimSpace(seg[i:])
}

func (f *Fields) set(key, val string) error {
	switch key {
	case "text":
		// An empty text means "no description", not "description is empty".
		if val == "" {
			return nil
		}
		f.Text = &val
	case "date":
		f.Date = &val
	case "period":
		f.Period = &val
	case "reschedule":
		f.Reschedule = &val
	default:
		return fmt.Errorf("%w: unknown attribute %q", ErrValidation, key)
	}
	return nil
}
