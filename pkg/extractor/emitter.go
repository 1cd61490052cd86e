package extractor

import (
	"iter"

	"github.com/Sriram-PR/gallery-scraper/pkg/models"
)

// EmitGallery yields one Directory message with the gallery fields, then one
// Url message per item. Item fields win over gallery fields on collision.
func EmitGallery(g models.GalleryMetadata, items []models.ItemMetadata) iter.Seq[models.Message] {
	return func(yield func(models.Message) bool) {
		galleryData := g.ToMetadata()
		if !yield(models.NewDirectoryMessage(galleryData)) {
			return
		}
		for _, item := range items {
			data := galleryData.Overlay(item.ToMetadata())
			if !yield(models.NewURLMessage(item.DownloadURL, data)) {
				return
			}
		}
	}
}

// EmitSingle yields Directory(item) then Url(item) with the same data.
func EmitSingle(item models.ItemMetadata) iter.Seq[models.Message] {
	return func(yield func(models.Message) bool) {
		data := item.ToMetadata()
		if !yield(models.NewDirectoryMessage(data)) {
			return
		}
		yield(models.NewURLMessage(item.DownloadURL, data))
	}
}
