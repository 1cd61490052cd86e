package extractor

import (
	"fmt"
	"strings"

	"github.com/Sriram-PR/gallery-scraper/pkg/models"
	"github.com/Sriram-PR/gallery-scraper/pkg/output"
	"github.com/Sriram-PR/gallery-scraper/pkg/utils"
)

// DeriveArchiveKey builds the key the archive store uses to recognize an
// item across runs. Gallery items pass (gallery_key, item_key), single
// items pass (item_key).
func DeriveArchiveKey(category string, components ...string) string {
	return category + ":" + strings.Join(components, "_")
}

// PatternArchiveKey renders the pattern's ArchiveFmt over data and prefixes
// the category. Patterns without an ArchiveFmt fall back to joining
// components with DeriveArchiveKey.
func PatternArchiveKey(p *Pattern, category string, data models.Metadata, components ...string) (string, error) {
	if p.ArchiveFmt == "" {
		return DeriveArchiveKey(category, components...), nil
	}
	rendered, err := output.FormatTemplate(p.ArchiveFmt, data)
	if err != nil {
		return "", fmt.Errorf("archive format of %s/%s: %w", category, p.Subcategory, err)
	}
	if rendered == "" {
		return "", fmt.Errorf("%w: archive format %q of %s/%s rendered empty",
			utils.ErrMalformedMetadata, p.ArchiveFmt, category, p.Subcategory)
	}
	return DeriveArchiveKey(category, rendered), nil
}
