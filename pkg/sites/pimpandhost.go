package sites

import (
	"regexp"

	"github.com/Sriram-PR/gallery-scraper/pkg/document"
	"github.com/Sriram-PR/gallery-scraper/pkg/extractor"
	"github.com/Sriram-PR/gallery-scraper/pkg/models"
)

// PimpAndHost handles https://pimpandhost.com/ albums and single images.
// Albums are paginated through an li.next control.
func PimpAndHost() *extractor.Site {
	return &extractor.Site{
		Category: "pimpandhost",
		Root:     "https://pimpandhost.com/",
		Patterns: []*extractor.Pattern{
			{
				Subcategory:  "gallery",
				Variant:      models.VariantGallery,
				Expr:         regexp.MustCompile(`^(?:https?://)?pimpandhost\.com(?P<path>/album/[a-zA-Z0-9]+)`),
				DirectoryFmt: []string{"{category}", "{title} {gallery_key}"},
				FilenameFmt:  "{num:>03} {filename}.{extension}",
				ArchiveFmt:   "{gallery_key}_{image_key}",
			},
			{
				Subcategory:  "image",
				Variant:      models.VariantSingleItem,
				Expr:         regexp.MustCompile(`^(?:https?://)?pimpandhost\.com(?P<path>/image/[a-zA-Z0-9]+)`),
				DirectoryFmt: []string{"{category}"},
				FilenameFmt:  "{filename}.{extension}",
				ArchiveFmt:   "{image_key}",
			},
		},
		Listing: extractor.ListingSpec{
			Container:   document.Any().WithID("album-images"),
			ItemLink:    document.Tag("a").AttrMatching("href", regexp.MustCompile(`/image/`)),
			NextControl: document.Tag("li").WithClass("next"),
			NextLink:    document.Tag("a").WithAttr("href"),
		},
		Media: extractor.MediaSpec{
			Element: document.Tag("img").IDMatching(regexp.MustCompile(`img_\d+`)).WithAttr("src"),
			Key:     extractor.KeyFromRefPath,
		},
		Title: textOf(document.Tag("div").WithClass("image-header"), document.Tag("span")),
	}
}
