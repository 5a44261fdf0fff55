package indexer

import (
	"regexp"
	"sort"
	"strings"
)

var (
	wikiLinkRe      = regexp.MustCompile(`\[\[([^\[\]|]+)(?:\|([^\[\]]*))?\]\]`)
	inlineLinkRe    = regexp.MustCompile(`!?\[([^\[\]]*)\]\(\s*<?([^\s()<>]+)>?(?:\s+"[^"]*")?\s*\)`)
	referenceLinkRe = regexp.MustCompile(`\[([^\[\]]+)\]\[([^\[\]]*)\]`)
	autoLinkRe      = regexp.MustCompile(`<((?:[a-zA-Z][a-zA-Z0-9+.\-]{1,31}:|//)[^\s<>]+)>`)
)

var externalSchemes = []string{"http://", "https://", "mailto:", "ftp://", "//"}

// IsExternalTarget reports whether target starts with a recognized external scheme.
func IsExternalTarget(target string) bool {
	lower := strings.ToLower(target)
	for _, scheme := range externalSchemes {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return false
}

type linkMatch struct {
	start, end int
	link       Link
}

// ExtractLinks finds inline, reference, wiki and autolinks in text, in order
// of appearance. A span of text yields at most one link.
func ExtractLinks(text string) []Link {
	if !strings.ContainsAny(text, "[<") {
		return nil
	}

	var matches []linkMatch
	add := func(loc []int, l Link) {
		l.IsInternal = !IsExternalTarget(l.Target)
		matches = append(matches, linkMatch{start: loc[0], end: loc[1], link: l})
	}

	for _, m := range wikiLinkRe.FindAllStringSubmatchIndex(text, -1) {
		target := strings.TrimSpace(text[m[2]:m[3]])
		label := target
		if m[4] >= 0 {
			if alias := strings.TrimSpace(text[m[4]:m[5]]); alias != "" {
				label = alias
			}
		}
		add(m, Link{Text: label, Target: target})
	}
	for _, m := range inlineLinkRe.FindAllStringSubmatchIndex(text, -1) {
		add(m, Link{Text: text[m[2]:m[3]], Target: text[m[4]:m[5]]})
	}
	for _, m := range referenceLinkRe.FindAllStringSubmatchIndex(text, -1) {
		label := text[m[2]:m[3]]
		ref := text[m[4]:m[5]]
		if ref == "" {
			ref = label
		}
		add(m, Link{Text: label, Target: ref})
	}
	for _, m := range autoLinkRe.FindAllStringSubmatchIndex(text, -1) {
		url := text[m[2]:m[3]]
		add(m, Link{Text: url, Target: url})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].start != matches[j].start {
			return matches[i].start < matches[j].start
		}
		return matches[i].end > matches[j].end
	})

	links := make([]Link, 0, len(matches))
	covered := -1
	for _, m := range matches {
		if m.start < covered {
			continue
		}
		links = append(links, m.link)
		covered = m.end
	}
	return links
}
