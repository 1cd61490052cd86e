package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestMetadata_CloneIsIndependent(t *testing.T) {
	orig := Metadata{"title": "Trip"}
	c := orig.Clone()
	c["title"] = "Changed"
	assert.Equal(t, "Trip", orig["title"])

	var nilMeta Metadata
	assert.NotNil(t, nilMeta.Clone())
}

func TestMetadata_Overlay(t *testing.T) {
	gallery := Metadata{KeyTitle: "Trip", KeyCount: 2, KeyURL: "gallery-url"}
	item := Metadata{KeyURL: "https://img/1.jpg", KeyNum: 1}

	merged := gallery.Overlay(item)

	assert.Equal(t, "https://img/1.jpg", merged[KeyURL], "overlay fields win")
	assert.Equal(t, "Trip", merged[KeyTitle], "base fields inherited")
	assert.Equal(t, 1, merged[KeyNum])
	assert.Equal(t, "gallery-url", gallery[KeyURL], "base untouched")
}

func TestMetadata_String(t *testing.T) {
	m := Metadata{"a": "x", "b": 3}
	assert.Equal(t, "x", m.String("a"))
	assert.Equal(t, "", m.String("b"))
	assert.Equal(t, "", m.String("missing"))
}

func TestGalleryMetadata_ToMetadata(t *testing.T) {
	g := GalleryMetadata{
		Category:    "pixhost",
		Subcategory: "gallery",
		Title:       "Summer",
		GalleryKey:  "abc123",
		Domain:      "pixhost.to",
		ItemCount:   4,
	}
	m := g.ToMetadata()
	assert.Equal(t, Metadata{
		"category":    "pixhost",
		"subcategory": "gallery",
		"title":       "Summer",
		"gallery_key": "abc123",
		"domain":      "pixhost.to",
		"count":       4,
	}, m)
}

func TestItemMetadata_ToMetadata(t *testing.T) {
	t.Run("gallery item carries num", func(t *testing.T) {
		it := ItemMetadata{
			Category:       "pimpandhost",
			Subcategory:    "gallery",
			DownloadURL:    "https://pimpandhost.com/i/1.jpg",
			Filename:       "photo",
			Extension:      "jpg",
			ItemKey:        "k1",
			SequenceNumber: 3,
			ArchiveKey:     "pimpandhost:g_k1",
		}
		m := it.ToMetadata()
		assert.Equal(t, 3, m[KeyNum])
		assert.Equal(t, "https://pimpandhost.com/i/1.jpg", m[KeyURL])
		assert.Equal(t, "pimpandhost:g_k1", m[KeyArchiveKey])
	})

	t.Run("single item omits num", func(t *testing.T) {
		m := ItemMetadata{ItemKey: "k"}.ToMetadata()
		_, ok := m[KeyNum]
		assert.False(t, ok)
	})

	t.Run("extra cannot shadow core fields", func(t *testing.T) {
		it := ItemMetadata{
			DownloadURL: "https://real",
			Extra:       Metadata{KeyURL: "https://shadow", "image_id": 7290},
		}
		m := it.ToMetadata()
		assert.Equal(t, "https://real", m[KeyURL])
		assert.Equal(t, 7290, m["image_id"])
		_, stillThere := it.Extra[KeyArchiveKey]
		assert.False(t, stillThere, "Extra must not be mutated")
	})
}

func TestNewMessages_CopyData(t *testing.T) {
	data := Metadata{KeyTitle: "Trip"}
	dir := NewDirectoryMessage(data)
	u := NewURLMessage("https://x/1.jpg", data)
	data[KeyTitle] = "Mutated"

	assert.Equal(t, MessageDirectory, dir.Kind)
	assert.Empty(t, dir.URL)
	assert.Equal(t, "Trip", dir.Data[KeyTitle])
	assert.Equal(t, MessageURL, u.Kind)
	assert.Equal(t, "https://x/1.jpg", u.URL)
	assert.Equal(t, "Trip", u.Data[KeyTitle])
}

func TestCrawlMetadata_YAMLRoundTrip(t *testing.T) {
	now := time.Now().Truncate(time.Second).UTC()
	meta := CrawlMetadata{
		RunID:          "run-1",
		SourceURL:      "https://pixhost.to/gallery/abc",
		Category:       "pixhost",
		Subcategory:    "gallery",
		Variant:        "gallery",
		CrawlStartTime: now,
		CrawlEndTime:   now.Add(time.Second),
		Items: []ItemRecord{
			{Num: 1, ArchiveKey: "pixhost:abc_a.jpg", URL: "https://img/a.jpg", Status: ItemStatusEmitted},
		},
		Failures: []FailureRecord{{Href: "/show/1/b", ErrorType: "Content_ParsingOther", Message: "missing"}},
	}

	data, err := yaml.Marshal(meta)
	require.NoError(t, err)
	assert.Contains(t, string(data), "status: emitted")

	var got CrawlMetadata
	require.NoError(t, yaml.Unmarshal(data, &got))
	assert.Equal(t, meta, got)
}
