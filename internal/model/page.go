package model

import (
	"strings"
	"time"
)

// PageType is a coarse page category inferred from the URL path.
type PageType string

const (
	PageTypeAbout    PageType = "about"
	PageTypeProducts PageType = "products"
	PageTypeTeam     PageType = "team"
	PageTypeCareers  PageType = "careers"
	PageTypeContact  PageType = "contact"
	PageTypeNews     PageType = "news"
	PageTypeMain     PageType = "main"
)

// AllPageTypes returns all defined page types in presentation order.
func AllPageTypes() []PageType {
	return []PageType{
		PageTypeAbout,
		PageTypeProducts,
		PageTypeTeam,
		PageTypeCareers,
		PageTypeContact,
		PageTypeNews,
		PageTypeMain,
	}
}

var pageTypeHints = []struct {
	keyword string
	pt      PageType
}{
	{"about", PageTypeAbout},
	{"our-story", PageTypeAbout},
	{"company", PageTypeAbout},
	{"who-we-are", PageTypeAbout},
	{"product", PageTypeProducts},
	{"service", PageTypeProducts},
	{"solution", PageTypeProducts},
	{"team", PageTypeTeam},
	{"leadership", PageTypeTeam},
	{"people", PageTypeTeam},
	{"career", PageTypeCareers},
	{"job", PageTypeCareers},
	{"join", PageTypeCareers},
	{"contact", PageTypeContact},
	{"location", PageTypeContact},
	{"news", PageTypeNews},
	{"blog", PageTypeNews},
	{"press", PageTypeNews},
}

// InferPageType classifies a URL by path keyword. Unmatched paths,
// including the homepage, classify as main.
func InferPageType(rawURL string) PageType {
	path := rawURL
	if i := strings.Index(path, "://"); i >= 0 {
		path = path[i+3:]
	}
	if i := strings.Index(path, "/"); i >= 0 {
		path = path[i:]
	} else {
		path = "/"
	}
	path = strings.ToLower(path)
	for _, h := range pageTypeHints {
		if strings.Contains(path, h.keyword) {
			return h.pt
		}
	}
	return PageTypeMain
}

// ContentKind tags which extraction view a page body holds.
type ContentKind string

const (
	ContentKindCleanedHTML   ContentKind = "cleaned_html"
	ContentKindMarkdown      ContentKind = "markdown"
	ContentKindExtractedText ContentKind = "extracted_text"
	ContentKindEmpty         ContentKind = "empty"
)

// PageContent is one extracted page. If Kind is empty then Body is ""
// and Error explains why; otherwise Body is non-empty cleaned content.
type PageContent struct {
	URL        string      `json:"url"`
	FetchedAt  time.Time   `json:"fetched_at"`
	HTTPStatus int         `json:"http_status"`
	Kind       ContentKind `json:"content_kind"`
	Body       string      `json:"body"`
	ByteSize   int         `json:"byte_size"`
	Error      string      `json:"error,omitempty"`
}

// IsEmpty reports whether the page yielded no usable content.
func (p PageContent) IsEmpty() bool {
	return p.Kind == ContentKindEmpty
}

// CachedSite stores the extracted pages for one company site so repeat
// research within the TTL can skip discovery and extraction.
type CachedSite struct {
	SiteURL   string        `json:"site_url"`
	Pages     []PageContent `json:"pages"`
	CrawledAt time.Time     `json:"crawled_at"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// Expired reports whether the cache entry is past its TTL.
func (c CachedSite) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// ProbeResult holds the outcome of probing a seed site before discovery.
type ProbeResult struct {
	Reachable  bool   `json:"reachable"`
	StatusCode int    `json:"status_code"`
	HasRobots  bool   `json:"has_robots"`
	HasSitemap bool   `json:"has_sitemap"`
	Blocked    bool   `json:"blocked"`
	BlockType  string `json:"block_type,omitempty"`
	FinalURL   string `json:"final_url"`
}
