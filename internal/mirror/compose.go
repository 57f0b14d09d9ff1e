package mirror

import (
	"fmt"

	"github.com/shiro-ka/shushu/internal/bluesky"
	"github.com/shiro-ka/shushu/internal/config"
	"github.com/shiro-ka/shushu/internal/richtext"
	"github.com/shiro-ka/shushu/internal/source"
)

const sourceBaseURL = "https://twitter.com"

// Permalink returns the canonical source URL of an item.
func Permalink(username, itemID string) string {
	return fmt.Sprintf("%s/%s/status/%s", sourceBaseURL, username, itemID)
}

// Compose assembles the final post record for one item: header plus
// transformed body, the header link facet, body link facets re-based
// past the header, and an image embed when any images transferred.
//
// Header and body occupy disjoint byte ranges, so the resulting facets
// cannot overlap and always lie within the text bounds.
func Compose(cfg *config.Config, item source.Item, body string, bodyFacets []richtext.Facet, images []bluesky.Image) bluesky.PostRecord {
	header := cfg.HeaderText
	headerLink := cfg.HeaderLink
	if headerLink == "" {
		headerLink = Permalink(cfg.TwitterUsername, item.ID)
	}

	text := header + "\n\n" + body

	facets := make([]bluesky.Facet, 0, len(bodyFacets)+1)
	facets = append(facets, bluesky.LinkFacet(0, len(header), headerLink))

	offset := len(header + "\n\n")
	for _, f := range bodyFacets {
		facets = append(facets, bluesky.LinkFacet(f.ByteStart+offset, f.ByteEnd+offset, f.URI))
	}

	rec := bluesky.PostRecord{
		Text:   text,
		Facets: facets,
	}
	if len(images) > 0 {
		rec.Embed = bluesky.NewImagesEmbed(images)
	}
	return rec
}
