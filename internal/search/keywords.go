package search

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	keywordSplit = regexp.MustCompile(`[\s,;]+`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// extractKeywords lower-cases the query and splits it on whitespace,
// commas and semicolons.
func extractKeywords(query string) []string {
	lower := strings.ToLower(query)
	var out []string
	for _, k := range keywordSplit.Split(lower, -1) {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	if len(out) == 0 {
		return []string{lower}
	}
	return out
}

const regexCacheSize = 512

// patternCache memoizes compiled per-keyword regexes.
type patternCache struct {
	cache *lru.Cache[string, *regexp.Regexp]
}

func newPatternCache() *patternCache {
	c, _ := lru.New[string, *regexp.Regexp](regexCacheSize)
	return &patternCache{cache: c}
}

func (p *patternCache) get(key, expr string) *regexp.Regexp {
	if re, ok := p.cache.Get(key); ok {
		return re
	}
	re := regexp.MustCompile(expr)
	p.cache.Add(key, re)
	return re
}

const (
	wordChar    = `[\p{L}\p{N}_]`
	nonWordChar = `[^\p{L}\p{N}_]`
)

// word matches kw as a whole word. Letters and digits of any script count
// as word characters, so `\b` (ASCII only in RE2) cannot be used.
func (p *patternCache) word(kw string) *regexp.Regexp {
	return p.get("w:"+kw, wordBoundary(kw, true)+regexp.QuoteMeta(kw)+wordBoundary(kw, false))
}

// wordBoundary builds the assertion on one side of kw. Next to a word
// character the neighbour must be a non-word character or the text edge;
// next to a non-word character it must be a word character.
func wordBoundary(kw string, leading bool) string {
	var r rune
	if leading {
		r, _ = utf8.DecodeRuneInString(kw)
	} else {
		r, _ = utf8.DecodeLastRuneInString(kw)
	}
	if !isWordRune(r) {
		return wordChar
	}
	if leading {
		return `(?:^|` + nonWordChar + `)`
	}
	return `(?:$|` + nonWordChar + `)`
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

// window matches kw with up to 100 characters of same-line context on
// either side, case-insensitively.
func (p *patternCache) window(kw string) *regexp.Regexp {
	return p.get("s:"+kw, `(?i).{0,100}`+regexp.QuoteMeta(kw)+`.{0,100}`)
}

const snippetsPerKeyword = 2

// snippets returns up to two excerpts around kw, whitespace-collapsed and
// wrapped in ellipses.
func (p *patternCache) snippets(content, kw string) []string {
	matches := p.window(kw).FindAllString(content, snippetsPerKeyword)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		s := whitespace.ReplaceAllString(strings.TrimSpace(m), " ")
		out = append(out, "..."+s+"...")
	}
	return out
}
