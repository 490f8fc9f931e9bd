// ABOUTME: Normalizes Strapi records into catalog models
// ABOUTME: Handles v4 "attributes" wrappers, v5 flat records and media relations
package catalog

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/harper/artmatch/internal/models"
)

// Defaults shown when the CMS leaves a field blank
const (
	DefaultTitle           = "Untitled"
	DefaultArtist          = "Unknown artist"
	DefaultDescription     = "No description available."
	DefaultExhibitionTitle = "Untitled Exhibition"
	DefaultDate            = "Unknown"
)

// attributes unwraps a v4 record; v5 records are returned as-is
func attributes(item gjson.Result) gjson.Result {
	if attrs := item.Get("attributes"); attrs.Exists() && attrs.IsObject() {
		return attrs
	}
	return item
}

// relation unwraps a v4 relation ({"data": ...}) into a list of records
func relation(r gjson.Result) []gjson.Result {
	if !r.Exists() || r.Type == gjson.Null {
		return nil
	}
	if data := r.Get("data"); data.Exists() {
		r = data
	}
	if r.Type == gjson.Null {
		return nil
	}
	if r.IsArray() {
		var out []gjson.Result
		for _, item := range r.Array() {
			out = append(out, attributes(item))
		}
		return out
	}
	return []gjson.Result{attributes(r)}
}

func firstString(r gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := strings.TrimSpace(r.Get(p).String()); v != "" {
			return v
		}
	}
	return ""
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func (c *Client) parseArtwork(item gjson.Result) models.Artwork {
	attrs := attributes(item)

	art := models.Artwork{
		ID:          item.Get("id").String(),
		DocumentID:  firstString(item, "documentId", "attributes.documentId"),
		Slug:        firstString(attrs, "slug"),
		Title:       orDefault(firstString(attrs, "art_title", "title"), DefaultTitle),
		Artist:      orDefault(firstString(attrs, "artist", "artist_name"), DefaultArtist),
		Description: orDefault(firstString(attrs, "art_description", "description"), DefaultDescription),
		SaleStatus:  parseSaleStatus(firstString(attrs, "saleStatus", "sale_status")),
	}

	if price := attrs.Get("price"); price.Exists() && price.Type == gjson.Number {
		p := price.Float()
		art.Price = &p
	}

	for _, field := range []string{"images", "image"} {
		for _, media := range relation(attrs.Get(field)) {
			u := c.resolveURL(media.Get("url").String())
			if u == "" {
				continue
			}
			art.Images = append(art.Images, models.Image{
				URL:    u,
				Width:  int(media.Get("width").Int()),
				Height: int(media.Get("height").Int()),
			})
		}
	}

	if model := relation(attrs.Get("model3D")); len(model) > 0 {
		art.Model3DURL = c.resolveURL(model[0].Get("url").String())
	}

	return art
}

func (c *Client) parseExhibition(item gjson.Result) models.Exhibition {
	attrs := attributes(item)

	ex := models.Exhibition{
		ID:        item.Get("id").String(),
		Title:     orDefault(firstString(attrs, "exb_title", "title"), DefaultExhibitionTitle),
		StartDate: orDefault(firstString(attrs, "startDate"), DefaultDate),
		EndDate:   orDefault(firstString(attrs, "endDate"), DefaultDate),
	}

	if cover := relation(attrs.Get("coverImage")); len(cover) > 0 {
		ex.ImageURL = c.resolveURL(firstString(cover[0], "formats.medium.url", "url"))
	}

	return ex
}

func parseSaleStatus(s string) models.SaleStatus {
	status := models.SaleStatus(strings.ToLower(strings.TrimSpace(s)))
	switch status {
	case "for sale", "for_sale", "on sale":
		return models.SaleAvailable
	}
	if status == "" || !status.IsValid() {
		return models.SaleUnknown
	}
	return status
}

// resolveURL makes media URLs absolute against the catalog base
func (c *Client) resolveURL(u string) string {
	u = strings.TrimSpace(u)
	switch {
	case u == "":
		return ""
	case strings.HasPrefix(u, "http://"), strings.HasPrefix(u, "https://"):
		return u
	case strings.HasPrefix(u, "//"):
		return "https:" + u
	case strings.HasPrefix(u, "/"):
		return c.baseURL + u
	default:
		return c.baseURL + "/" + u
	}
}
