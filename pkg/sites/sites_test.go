package sites

import (
	"context"
	"fmt"
	"io"
	"slices"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/gallery-scraper/pkg/extractor"
	"github.com/Sriram-PR/gallery-scraper/pkg/models"
	"github.com/Sriram-PR/gallery-scraper/pkg/utils"
)

type mapFetcher map[string]string

func (m mapFetcher) FetchPage(_ context.Context, pageURL string) (string, error) {
	body, ok := m[pageURL]
	if !ok {
		return "", fmt.Errorf("%w: %s: %w: status 404 Not Found", utils.ErrTransport, pageURL, utils.ErrClientHTTPError)
	}
	return body, nil
}

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func run(t *testing.T, pages mapFetcher, rawURL string) (*extractor.Result, []models.Message) {
	t.Helper()
	d, ok := NewRegistry().Select(rawURL)
	require.True(t, ok, "no site matched %s", rawURL)
	res, err := extractor.New(pages, extractor.Options{}, testLogger()).Extract(context.Background(), d)
	require.NoError(t, err)
	return res, slices.Collect(res.Messages())
}

func TestDispatch(t *testing.T) {
	tests := []struct {
		url         string
		wantOK      bool
		category    string
		subcategory string
	}{
		{"https://pixhost.to/gallery/AbC12", true, "pixhost", "gallery"},
		{"pixhost.to/gallery/AbC12", true, "pixhost", "gallery"},
		{"https://pixhost.to/show/123/45_photo.jpg", true, "pixhost", "image"},
		{"https://pimpandhost.com/album/xYz9", true, "pimpandhost", "gallery"},
		{"https://pimpandhost.com/image/abc123", true, "pimpandhost", "image"},
		{"piwigo:https://instantsphotos.fr/picture?/7290/category/168-blaireau_europeen", true, "piwigo", "image"},
		{"piwigo:instantsphotos.fr/picture?/7290", true, "piwigo", "image"},
		{"https://instantsphotos.fr/picture?/7290", false, "", ""},
		{"https://pixhost.to/users/bob", false, "", ""},
		{"https://example.com/gallery/AbC12", false, "", ""},
		{"https://example.com/?u=https://pixhost.to/gallery/AbC12", false, "", ""},
	}

	reg := NewRegistry()
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			d, ok := reg.Select(tt.url)
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.category, d.Site.Category)
			assert.Equal(t, tt.subcategory, d.Pattern.Subcategory)
		})
	}
}

func TestPixhostGallery(t *testing.T) {
	pages := mapFetcher{
		"https://pixhost.to/gallery/AbC12": `<html><body><h2>Holiday</h2>
			<a href="https://pixhost.to/show/2/22_b.jpg"><img src="/t/2.jpg"></a>
			<a href="https://pixhost.to/show/1/11_a.jpg"><img src="/t/1.jpg"></a>
			<a href="/gallery/AbC12/edit">edit</a></body></html>`,
		"https://pixhost.to/show/1/11_a.jpg": `<html><body><img id="image" src="https://img1.pixhost.to/images/1/11_a.jpg" alt="a.jpg"></body></html>`,
		"https://pixhost.to/show/2/22_b.jpg": `<html><body><img id="image" src="https://img1.pixhost.to/images/2/22_b.jpg" alt="b.jpg"></body></html>`,
	}

	res, msgs := run(t, pages, "https://pixhost.to/gallery/AbC12")

	require.Len(t, msgs, 3)
	dir := msgs[0].Data
	assert.Equal(t, "Holiday", dir[models.KeyTitle])
	assert.Equal(t, "AbC12", dir[models.KeyGalleryKey])
	assert.Equal(t, 2, dir[models.KeyCount])
	assert.Equal(t, "pixhost.to", dir[models.KeyDomain])

	first := msgs[1]
	assert.Equal(t, "https://img1.pixhost.to/images/1/11_a.jpg", first.URL)
	assert.Equal(t, 1, first.Data[models.KeyNum])
	assert.Equal(t, "a", first.Data[models.KeyFilename])
	assert.Equal(t, "jpg", first.Data[models.KeyExtension])
	assert.Equal(t, "a.jpg", first.Data[models.KeyImageKey])
	assert.Equal(t, "pixhost:AbC12_a.jpg", first.Data[models.KeyArchiveKey])
	assert.Equal(t, "Holiday", first.Data[models.KeyTitle])

	assert.Equal(t, "b.jpg", msgs[2].Data[models.KeyImageKey])
	assert.Equal(t, 2, msgs[2].Data[models.KeyNum])
	assert.Equal(t, []string{"{category}", "{title} {gallery_key}"}, res.Pattern.DirectoryFmt)
}

func TestPixhostImage(t *testing.T) {
	pages := mapFetcher{
		"https://pixhost.to/show/123/45_photo.jpg": `<html><body><img id="image" src="https://img1.pixhost.to/images/123/45_photo.jpg" alt="photo.jpg"></body></html>`,
	}

	_, msgs := run(t, pages, "https://pixhost.to/show/123/45_photo.jpg")

	require.Len(t, msgs, 2)
	assert.Equal(t, models.MessageDirectory, msgs[0].Kind)
	assert.Equal(t, "https://img1.pixhost.to/images/123/45_photo.jpg", msgs[1].URL)
	assert.Equal(t, "pixhost:photo.jpg", msgs[1].Data[models.KeyArchiveKey])
	assert.Equal(t, msgs[0].Data, msgs[1].Data)
}

func pimpAlbumPage(title string, ids []string, next string) string {
	s := `<html><body><div class="image-header"><span>` + title + `</span></div><div id="album-images">`
	for _, id := range ids {
		s += `<a href="/image/` + id + `"><img src="/t/` + id + `.jpg"></a>`
	}
	s += `</div><ul class="pagination">`
	if next != "" {
		s += `<li class="next"><a href="` + next + `">&raquo;</a></li>`
	} else {
		s += `<li class="next disabled"><span>&raquo;</span></li>`
	}
	return s + `</ul></body></html>`
}

func pimpImagePage(id, alt string) string {
	return `<html><body><img class="thumb" src="/t/x.jpg"><img id="img_` + id + `" src="//ist.pimpandhost.com/` + id + `.jpg" alt="` + alt + `"></body></html>`
}

func TestPimpAndHostPaginatedAlbum(t *testing.T) {
	pages := mapFetcher{
		"https://pimpandhost.com/album/xYz9":        pimpAlbumPage("Set", []string{"c3", "b2"}, "/album/xYz9?page=2"),
		"https://pimpandhost.com/album/xYz9?page=2": pimpAlbumPage("Set", nil, "/album/xYz9?page=3"),
		"https://pimpandhost.com/album/xYz9?page=3": pimpAlbumPage("Set", []string{"a1"}, ""),
		"https://pimpandhost.com/image/a1":          pimpImagePage("1", "first.png"),
		"https://pimpandhost.com/image/b2":          pimpImagePage("2", "second.png"),
		"https://pimpandhost.com/image/c3":          pimpImagePage("3", "third"),
	}

	res, msgs := run(t, pages, "https://pimpandhost.com/album/xYz9")

	assert.Equal(t, 3, res.Pages)
	require.Len(t, msgs, 4)
	assert.Equal(t, "Set", msgs[0].Data[models.KeyTitle])
	assert.Equal(t, 3, msgs[0].Data[models.KeyCount])

	wantKeys := []string{"a1", "b2", "c3"}
	for i, msg := range msgs[1:] {
		assert.Equal(t, wantKeys[i], msg.Data[models.KeyImageKey])
		assert.Equal(t, "pimpandhost:xYz9_"+wantKeys[i], msg.Data[models.KeyArchiveKey])
		assert.Equal(t, i+1, msg.Data[models.KeyNum])
	}
	assert.Equal(t, "https://ist.pimpandhost.com/1.jpg", msgs[1].URL, "protocol relative src resolved against root")
	assert.Equal(t, "third", msgs[3].Data[models.KeyFilename])
	assert.Equal(t, "", msgs[3].Data[models.KeyExtension])
}

func TestPimpAndHostMissingContainer(t *testing.T) {
	pages := mapFetcher{
		"https://pimpandhost.com/album/xYz9": `<html><body><div class="image-header"><span>Gone</span></div></body></html>`,
	}
	d, ok := NewRegistry().Select("https://pimpandhost.com/album/xYz9")
	require.True(t, ok)

	_, err := extractor.New(pages, extractor.Options{}, testLogger()).Extract(context.Background(), d)

	assert.ErrorIs(t, err, utils.ErrParsing)
}

func TestPimpAndHostImage(t *testing.T) {
	pages := mapFetcher{"https://pimpandhost.com/image/abc123": pimpImagePage("9", "pic.jpeg")}

	_, msgs := run(t, pages, "https://pimpandhost.com/image/abc123")

	require.Len(t, msgs, 2)
	assert.Equal(t, "abc123", msgs[1].Data[models.KeyImageKey])
	assert.Equal(t, "pimpandhost:abc123", msgs[1].Data[models.KeyArchiveKey])
	assert.Equal(t, "jpeg", msgs[1].Data[models.KeyExtension])
}

func TestPiwigoImage(t *testing.T) {
	pages := mapFetcher{
		"https://instantsphotos.fr/picture?/7290": `<html><body>
			<img id="theMainImage" src="_data/i/upload/badger-me.jpg" alt="blaireau.jpg" title="Blaireau européen"></body></html>`,
	}

	res, msgs := run(t, pages, "piwigo:https://instantsphotos.fr/picture?/7290/category/168-blaireau_europeen")

	require.Len(t, msgs, 2)
	assert.Nil(t, res.Gallery)
	data := msgs[1].Data
	assert.Equal(t, "https://instantsphotos.fr/action.php?id=7290&part=e&download", msgs[1].URL)
	assert.Equal(t, msgs[1].URL, data[models.KeyURL])
	assert.Equal(t, "https://instantsphotos.fr/picture?/7290", data["page_url"])
	assert.Equal(t, 7290, data["image_id"])
	assert.Equal(t, "instantsphotos.fr", data[models.KeyDomain])
	assert.Equal(t, "Blaireau européen", data[models.KeyTitle])
	assert.Equal(t, "/168-blaireau_europeen", data["collection_name"])
	assert.Equal(t, "blaireau", data[models.KeyFilename])
	assert.Equal(t, "jpg", data[models.KeyExtension])
	assert.Equal(t, "piwigo:7290", data[models.KeyArchiveKey])
	assert.Equal(t, "{filename}-{image_id}.{extension}", res.Pattern.FilenameFmt)
}

func TestPiwigoImage_NoCollection(t *testing.T) {
	pages := mapFetcher{
		"https://demo.piwigo.org/picture?/12": `<img id="theMainImage" src="x.jpg" alt="x.jpg">`,
	}

	_, msgs := run(t, pages, "piwigo:demo.piwigo.org/picture?/12")

	collection, present := msgs[1].Data["collection_name"]
	assert.True(t, present)
	assert.Nil(t, collection)
	assert.Equal(t, "", msgs[1].Data[models.KeyTitle])
}

func TestAll_CategoriesUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, s := range All() {
		assert.False(t, seen[s.Category], "duplicate category %s", s.Category)
		seen[s.Category] = true
		assert.NotEmpty(t, s.Patterns)
	}
	assert.Len(t, seen, 3)
}
