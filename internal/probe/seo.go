package probe

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"webwatch/internal/model"
)

// Thresholds for on-page signal checks. Search engines truncate titles
// around 60 characters and descriptions around 160.
const (
	titleMin    = 30
	titleMax    = 60
	metaDescMin = 70
	metaDescMax = 160
)

// AnalyzeSEO fetches the page and extracts basic on-page signals: title
// and meta description with length checks, H1/H2 counts, and images
// missing alt text.
func (c *Checker) AnalyzeSEO(ctx context.Context, url string) (model.SEOInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.SEOTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return model.SEOInfo{}, fmt.Errorf("seo request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return model.SEOInfo{}, fmt.Errorf("seo fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.SEOInfo{}, fmt.Errorf("seo fetch: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return model.SEOInfo{}, fmt.Errorf("parse html: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	metaDesc, _ := doc.Find(`meta[name="description"]`).First().Attr("content")
	metaDesc = strings.TrimSpace(metaDesc)

	h1Count := doc.Find("h1").Length()
	h2Count := doc.Find("h2").Length()

	imageCount := 0
	imagesWithoutAlt := 0
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		imageCount++
		if alt, _ := sel.Attr("alt"); strings.TrimSpace(alt) == "" {
			imagesWithoutAlt++
		}
	})

	// Lengths are counted in runes; byte counts would penalize
	// non-ASCII titles.
	issues := []string{}
	switch {
	case title == "":
		issues = append(issues, "No title tag found")
	case utf8.RuneCountInString(title) > titleMax:
		issues = append(issues, "Title too long (>60 chars)")
	case utf8.RuneCountInString(title) < titleMin:
		issues = append(issues, "Title too short (<30 chars)")
	}
	switch {
	case metaDesc == "":
		issues = append(issues, "No meta description found")
	case utf8.RuneCountInString(metaDesc) > metaDescMax:
		issues = append(issues, "Meta description too long (>160 chars)")
	case utf8.RuneCountInString(metaDesc) < metaDescMin:
		issues = append(issues, "Meta description too short (<70 chars)")
	}
	switch {
	case h1Count == 0:
		issues = append(issues, "No H1 tag found")
	case h1Count > 1:
		issues = append(issues, "Multiple H1 tags found")
	}
	if imagesWithoutAlt > 0 {
		issues = append(issues, fmt.Sprintf("%d images missing alt text", imagesWithoutAlt))
	}

	info := model.SEOInfo{
		H1Count:          &h1Count,
		H2Count:          &h2Count,
		ImageCount:       &imageCount,
		ImagesWithoutAlt: &imagesWithoutAlt,
		Issues:           issues,
	}
	if title != "" {
		info.Title = &title
	}
	if metaDesc != "" {
		info.MetaDescription = &metaDesc
	}
	return info, nil
}
