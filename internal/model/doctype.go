package model

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// DocType is a priority-ranked documentation category.
type DocType int

const (
	DocReadme DocType = iota
	DocAgents
	DocClaude
	DocChangelog
	DocEntry
)

type docTypeRule struct {
	typ      DocType
	name     string
	priority int
	patterns []*regexp.Regexp
}

func patterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile("(?i)" + e)
	}
	return out
}

// docTypes is evaluated in order; equal priorities resolve by position.
var docTypes = []docTypeRule{
	{DocReadme, "README", 5, patterns(`README[^/]*\.(md|rst|txt|markdown)?$`, `^README[^/]*$`)},
	{DocAgents, "AGENTS", 4, patterns(`AGENTS\.md$`)},
	{DocClaude, "CLAUDE", 4, patterns(`CLAUDE\.md$`)},
	{DocChangelog, "CHANGELOG", 3, patterns(`CHANGE(S|LOG)[^/]*\.(md|rst|txt)?$`, `HISTORY[^/]*\.(md|rst|txt)?$`)},
	{DocEntry, "ENTRY", 2, patterns(
		`^main\.py$`, `^index\.(js|ts)$`, `^Cargo\.toml$`, `^package\.json$`,
		`^go\.mod$`, `^setup\.py$`, `^pyproject\.toml$`,
	)},
}

// DocTypes returns every DocType in evaluation order.
func DocTypes() []DocType {
	out := make([]DocType, len(docTypes))
	for i, s := range docTypes {
		out[i] = s.typ
	}
	return out
}

func (d DocType) rule() (docTypeRule, bool) {
	if d < 0 || int(d) >= len(docTypes) {
		return docTypeRule{}, false
	}
	return docTypes[d], true
}

// String returns the persisted name, e.g. "README".
func (d DocType) String() string {
	if s, ok := d.rule(); ok {
		return s.name
	}
	return fmt.Sprintf("DocType(%d)", int(d))
}

// Priority returns the ranking weight; higher is more relevant.
func (d DocType) Priority() int {
	if s, ok := d.rule(); ok {
		return s.priority
	}
	return 0
}

// Matches reports whether a bare file name matches any of the type's
// patterns. Matching is case-insensitive and unanchored unless the
// pattern itself anchors.
func (d DocType) Matches(fileName string) bool {
	s, ok := d.rule()
	if !ok {
		return false
	}
	for _, p := range s.patterns {
		if p.MatchString(fileName) {
			return true
		}
	}
	return false
}

// Classify returns the first DocType, in evaluation order, whose patterns
// match fileName.
func Classify(fileName string) (DocType, bool) {
	for _, s := range docTypes {
		if s.typ.Matches(fileName) {
			return s.typ, true
		}
	}
	return 0, false
}

// ParseDocType resolves a persisted name. Lookup is case-insensitive.
func ParseDocType(name string) (DocType, bool) {
	for _, s := range docTypes {
		if strings.EqualFold(s.name, name) {
			return s.typ, true
		}
	}
	return 0, false
}

func (d DocType) MarshalJSON() ([]byte, error) {
	if _, ok := d.rule(); !ok {
		return nil, fmt.Errorf("unknown doc type %d", int(d))
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts a name. Unknown names decode to README so an old
// or hand-edited cache still loads.
func (d *DocType) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	t, ok := ParseDocType(name)
	if !ok {
		t = DocReadme
	}
	*d = t
	return nil
}
