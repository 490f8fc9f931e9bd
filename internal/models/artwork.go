// ABOUTME: Gallery catalog models for artworks and exhibitions
// ABOUTME: Normalized from the Strapi content API regardless of its version
package models

// SaleStatus describes whether an artwork can be bought
type SaleStatus string

const (
	SaleAvailable SaleStatus = "available"
	SaleSold      SaleStatus = "sold"
	SaleReserved  SaleStatus = "reserved"
	SaleUnknown   SaleStatus = "unknown"
)

// IsValid returns true if the status is one of the known values
func (s SaleStatus) IsValid() bool {
	switch s {
	case SaleAvailable, SaleSold, SaleReserved, SaleUnknown:
		return true
	}
	return false
}

// Image is a media file attached to an artwork
type Image struct {
	URL    string `json:"url" yaml:"url"`
	Width  int    `json:"width,omitempty" yaml:"width,omitempty"`
	Height int    `json:"height,omitempty" yaml:"height,omitempty"`
}

// Artwork is a catalog entry
type Artwork struct {
	ID          string     `json:"id" yaml:"id"`
	DocumentID  string     `json:"document_id,omitempty" yaml:"document_id,omitempty"`
	Slug        string     `json:"slug,omitempty" yaml:"slug,omitempty"`
	Title       string     `json:"title" yaml:"title"`
	Artist      string     `json:"artist" yaml:"artist"`
	Description string     `json:"description" yaml:"description"`
	SaleStatus  SaleStatus `json:"sale_status" yaml:"sale_status"`
	Price       *float64   `json:"price,omitempty" yaml:"price,omitempty"`
	Images      []Image    `json:"images,omitempty" yaml:"images,omitempty"`
	Model3DURL  string     `json:"model_3d_url,omitempty" yaml:"model_3d_url,omitempty"`
}

// Label returns the string used to identify the artwork in a reference set
func (a *Artwork) Label() string {
	if a.Slug != "" {
		return a.Slug
	}
	return a.Title
}

// Has3DModel reports whether the artwork ships a 3D model
func (a *Artwork) Has3DModel() bool {
	return a.Model3DURL != ""
}

// Exhibition is a catalog exhibition
type Exhibition struct {
	ID        string `json:"id" yaml:"id"`
	Title     string `json:"title" yaml:"title"`
	StartDate string `json:"start_date" yaml:"start_date"`
	EndDate   string `json:"end_date" yaml:"end_date"`
	ImageURL  string `json:"image_url" yaml:"image_url"`
}
