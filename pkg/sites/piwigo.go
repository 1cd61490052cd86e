package sites

import (
	"regexp"
	"strconv"

	"github.com/Sriram-PR/gallery-scraper/pkg/document"
	"github.com/Sriram-PR/gallery-scraper/pkg/extractor"
	"github.com/Sriram-PR/gallery-scraper/pkg/models"
)

// Piwigo gallery software runs on arbitrary domains, so URLs must carry a
// "piwigo:" prefix to be dispatched here.
func Piwigo() *extractor.Site {
	return &extractor.Site{
		Category: "piwigo",
		Patterns: []*extractor.Pattern{
			{
				Subcategory:  "image",
				Variant:      models.VariantSingleItem,
				Expr:         regexp.MustCompile(`^piwigo:(?:https?://)?(?P<domain>[\w.-]+)/picture\?/(?P<image_id>\d+)(?:/category)?(?P<category>/.*)?`),
				DirectoryFmt: []string{"{category}", "{domain}"},
				FilenameFmt:  "{filename}-{image_id}.{extension}",
				ArchiveFmt:   "{image_id}",
			},
		},
		RootFor: func(caps extractor.Captures) string {
			return "https://" + caps["domain"] + "/"
		},
		PagePath: func(caps extractor.Captures) string {
			return "/picture?/" + caps["image_id"]
		},
		Media: extractor.MediaSpec{
			Element:    document.Tag("img").WithID("theMainImage").WithAttr("src"),
			Key:        extractor.KeyFromCapture,
			KeyCapture: "image_id",
			// The displayed image is a resized derivative; action.php serves the original.
			DownloadURL: func(sc extractor.SiteContext, _ string) string {
				return "https://" + sc.Domain + "/action.php?id=" + sc.Captures["image_id"] + "&part=e&download"
			},
			Extra: piwigoExtra,
		},
	}
}

func piwigoExtra(sc extractor.SiteContext, el *document.Element) models.Metadata {
	title, _ := el.Attr("title")
	imageID, _ := strconv.Atoi(sc.Captures["image_id"])
	// The raw capture, leading slash included; nil when the URL names no collection.
	var collection any
	if c := sc.Captures["category"]; c != "" {
		collection = c
	}
	return models.Metadata{
		models.KeyTitle:   title,
		models.KeyDomain:  sc.Domain,
		"image_id":        imageID,
		"collection_name": collection,
		"page_url":        "https://" + sc.Domain + "/picture?/" + sc.Captures["image_id"],
	}
}
