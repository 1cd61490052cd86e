package sites

import (
	"regexp"

	"github.com/Sriram-PR/gallery-scraper/pkg/document"
	"github.com/Sriram-PR/gallery-scraper/pkg/extractor"
	"github.com/Sriram-PR/gallery-scraper/pkg/models"
)

// Pixhost handles https://pixhost.to/ galleries and single images.
// Images are keyed by their alt text, which is the uploaded filename.
func Pixhost() *extractor.Site {
	return &extractor.Site{
		Category: "pixhost",
		Root:     "https://pixhost.to/",
		Patterns: []*extractor.Pattern{
			{
				Subcategory:  "gallery",
				Variant:      models.VariantGallery,
				Expr:         regexp.MustCompile(`^(?:https?://)?pixhost\.to(?P<path>/gallery/[a-zA-Z0-9]+)`),
				DirectoryFmt: []string{"{category}", "{title} {gallery_key}"},
				FilenameFmt:  "{num:>03} {filename}.{extension}",
				ArchiveFmt:   "{gallery_key}_{image_key}",
			},
			{
				Subcategory:  "image",
				Variant:      models.VariantSingleItem,
				Expr:         regexp.MustCompile(`^(?:https?://)?pixhost\.to(?P<path>/show/\d+/[\w.-]+)`),
				DirectoryFmt: []string{"{category}"},
				FilenameFmt:  "{filename}.{extension}",
				ArchiveFmt:   "{image_key}",
			},
		},
		Listing: extractor.ListingSpec{
			ItemLink: document.Tag("a").AttrMatching("href", regexp.MustCompile(`/show/`)),
		},
		Media: extractor.MediaSpec{
			Element: document.Tag("img").WithID("image").WithAttr("src"),
			Key:     extractor.KeyFromLabel,
		},
		Title: textOf(document.Tag("h2"), document.Predicate{}),
	}
}
