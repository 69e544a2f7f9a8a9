package bluesky

import (
	"strings"
	"unicode"
)

// tagFacets builds a tag facet for the leading hashtag of the post text,
// so clients render it as a clickable tag. The byte range is computed
// from the text rather than hardcoded; facet offsets are byte offsets,
// not rune offsets.
func tagFacets(text string) []facet {
	if !strings.HasPrefix(text, "#") {
		return nil
	}

	end := len(text)
	for i, r := range text {
		if i > 0 && (unicode.IsSpace(r) || unicode.IsPunct(r)) {
			end = i
			break
		}
	}
	if end <= 1 {
		return nil
	}

	tag := strings.ToLower(text[1:end])
	return []facet{
		{
			Index: byteRange{ByteStart: 0, ByteEnd: end},
			Features: []tagFeature{
				{Type: "app.bsky.richtext.facet#tag", Tag: tag},
			},
		},
	}
}
