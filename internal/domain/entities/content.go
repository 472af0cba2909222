package entities

import (
	"fmt"
	"time"
)

// ContentType identifies which CMS collection a piece of content lives in
type ContentType string

const (
	ContentTypeListing ContentType = "listing"
	ContentTypeArticle ContentType = "article"
	ContentTypeNews    ContentType = "news"
)

// improvableFields lists the text fields the pipeline may rewrite per type
var improvableFields = map[ContentType][]string{
	ContentTypeListing: {"description"},
	ContentTypeArticle: {"content", "excerpt", "meta_description"},
	ContentTypeNews:    {"content", "summary"},
}

// ParseContentType validates a raw content type
func ParseContentType(raw string) (ContentType, error) {
	ct := ContentType(raw)
	if _, ok := improvableFields[ct]; !ok {
		return "", fmt.Errorf("unknown content type %q", raw)
	}
	return ct, nil
}

// ImprovableFields returns the fields that can be improved for the type
func (t ContentType) ImprovableFields() []string {
	return improvableFields[t]
}

// AllowsField reports whether field may be read and rewritten for the type
func (t ContentType) AllowsField(field string) bool {
	for _, f := range improvableFields[t] {
		if f == field {
			return true
		}
	}
	return false
}

// Table returns the backing table name in the Supabase schema
func (t ContentType) Table() string {
	switch t {
	case ContentTypeListing:
		return "listings"
	case ContentTypeArticle:
		return "articles"
	case ContentTypeNews:
		return "news_articles"
	default:
		return ""
	}
}

// Label returns the Turkish label shown in admin messages
func (t ContentType) Label() string {
	switch t {
	case ContentTypeListing:
		return "ilan"
	case ContentTypeArticle:
		return "makale"
	case ContentTypeNews:
		return "haber"
	default:
		return string(t)
	}
}

// ContentRef addresses one field of one content entity
type ContentRef struct {
	Type  ContentType `json:"content_type"`
	ID    string      `json:"content_id"`
	Field string      `json:"field"`
}

// Validate checks the reference before any store access
func (r ContentRef) Validate() error {
	if r.Type.Table() == "" {
		return fmt.Errorf("unknown content type %q", r.Type)
	}
	if r.ID == "" {
		return fmt.Errorf("content id is required")
	}
	if !r.Type.AllowsField(r.Field) {
		return fmt.Errorf("field %q cannot be improved for %s", r.Field, r.Type)
	}
	return nil
}

// ContentEntity is the slice of a listing/article/news row the pipeline sees
type ContentEntity struct {
	Type         ContentType `json:"content_type"`
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Field        string      `json:"field"`
	Value        string      `json:"value"`
	QualityScore *int        `json:"quality_score,omitempty"`
	UpdatedAt    *time.Time  `json:"updated_at,omitempty"`
}

// ContentPatch is a full replacement of one field plus an optional score
type ContentPatch struct {
	Value        string
	QualityScore *int
}
