package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync"

	"github.com/gocolly/colly/v2"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Page is one crawled document, already reduced to readable text.
type Page struct {
	URL     string
	Lastmod string // as reported by the sitemap, may be empty
	Text    string
}

// Crawler walks a sitemap.xml and extracts the text of every page whose url
// matches at least one filter. No filters means every page.
type Crawler struct {
	filters []*regexp.Regexp
	logger  *slog.Logger
}

func NewCrawler(filters []string, logger *slog.Logger) (*Crawler, error) {
	c := &Crawler{logger: logger}
	for _, f := range filters {
		re, err := regexp.Compile(f)
		if err != nil {
			return nil, fmt.Errorf("failed to compile filter %q: %w", f, err)
		}
		c.filters = append(c.filters, re)
	}
	return c, nil
}

func (c *Crawler) match(url string) bool {
	if len(c.filters) == 0 {
		return true
	}
	for _, re := range c.filters {
		if re.MatchString(url) {
			return true
		}
	}
	return false
}

func (c *Crawler) Crawl(ctx context.Context, sitemapURL string) ([]Page, error) {
	if !strings.Contains(sitemapURL, ".xml") {
		return nil, fmt.Errorf("expected a sitemap url, got %q", sitemapURL)
	}

	sitemap := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.StdlibContext(ctx),
	)
	pages := sitemap.Clone()

	var mu sync.Mutex
	var out []Page

	sitemap.OnXML("//url", func(e *colly.XMLElement) {
		loc := strings.TrimSpace(e.ChildText("loc"))
		if loc == "" || !c.match(loc) {
			return
		}

		rctx := colly.NewContext()
		rctx.Put("lastmod", strings.TrimSpace(e.ChildText("lastmod")))

		err := pages.Request(http.MethodGet, loc, nil, rctx, nil)
		if err != nil {
			c.logger.Warn("failed to request page", "url", loc, "err", err)
		}
	})

	pages.OnResponse(func(r *colly.Response) {
		text, err := Text(r.Body, r.Request.URL)
		if err != nil {
			c.logger.Warn("failed to extract page text", "url", r.Request.URL, "err", err)
			return
		}
		if text == "" {
			return
		}

		c.logger.Debug("crawled page", "url", r.Request.URL, "len", len(text))

		mu.Lock()
		out = append(out, Page{
			URL:     r.Request.URL.String(),
			Lastmod: r.Ctx.Get("lastmod"),
			Text:    text,
		})
		mu.Unlock()
	})

	err := sitemap.Visit(sitemapURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sitemap: %w", err)
	}
	sitemap.Wait()
	pages.Wait()

	return out, nil
}
