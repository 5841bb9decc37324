package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"tesla-finder/models"
	"tesla-finder/utils"
)

// cardSelectors are tried in order; the first one that matches any card
// on the page wins.
var cardSelectors = []string{
	`[data-testid="listing-card"]`,
	`[data-testid*="listing"]`,
	`article`,
	`li[class*="listing"]`,
	`div[class*="listing-card"]`,
	`div[class*="car-card"]`,
}

// vehicleTypes are the schema.org types read from JSON-LD blocks.
var vehicleTypes = map[string]bool{"Car": true, "Vehicle": true, "Product": true}

// StaticExtractor parses server-rendered HTML with colly. It reads
// schema.org JSON-LD first and falls back to listing card markup.
type StaticExtractor struct {
	logger  *utils.Logger
	timeout time.Duration
}

// NewStaticExtractor creates a StaticExtractor with a per-request timeout.
func NewStaticExtractor(logger *utils.Logger, timeout time.Duration) *StaticExtractor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &StaticExtractor{logger: logger, timeout: timeout}
}

// FetchAndInterpret downloads pageURL once and returns the listings found.
func (s *StaticExtractor) FetchAndInterpret(ctx context.Context, pageURL, _ string) ([]*models.RawListing, error) {
	u, err := url.Parse(pageURL)
	if err != nil || u.Hostname() == "" {
		return nil, fmt.Errorf("static: invalid url %q", pageURL)
	}

	c := colly.NewCollector(
		colly.AllowedDomains(u.Hostname()),
		colly.UserAgent(userAgent),
	)
	timeout := s.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}
	c.SetRequestTimeout(timeout)

	var (
		mu     sync.Mutex
		ld     []cardData
		groups = make([][]cardData, len(cardSelectors))
	)

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})

	c.OnHTML(`script[type="application/ld+json"]`, func(e *colly.HTMLElement) {
		var doc any
		if err := json.Unmarshal([]byte(strings.TrimSpace(e.Text)), &doc); err != nil {
			s.logger.Debug("[static] Skipping unparseable JSON-LD on %s: %v", pageURL, err)
			return
		}
		found := walkJSONLD(doc, nil)
		mu.Lock()
		ld = append(ld, found...)
		mu.Unlock()
	})

	for i, sel := range cardSelectors {
		c.OnHTML(sel, func(e *colly.HTMLElement) {
			card := cardFromElement(e)
			if card.Title == "" {
				return
			}
			mu.Lock()
			groups[i] = append(groups[i], card)
			mu.Unlock()
		})
	}

	if err := c.Visit(pageURL); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("static: visit %s: %w", pageURL, err)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	cards := ld
	if len(cards) == 0 {
		for _, g := range groups {
			if len(g) > 0 {
				cards = g
				break
			}
		}
	}
	s.logger.Debug("[static] %s: %d JSON-LD items, %d cards used", pageURL, len(ld), len(cards))

	now := time.Now().UTC()
	out := make([]*models.RawListing, 0, len(cards))
	for _, card := range cards {
		r := card.raw(pageURL)
		r.ScrapedAt = now
		out = append(out, r)
	}
	return out, nil
}

func cardFromElement(e *colly.HTMLElement) cardData {
	href := e.ChildAttr("a[href]", "href")
	if e.Name == "a" {
		href = e.Attr("href")
	}
	img := e.ChildAttr("img", "src")
	if img == "" {
		img = e.ChildAttr("img", "data-src")
	}
	return cardData{
		Title:    firstText(e, "h2", "h3", `[data-testid*="title"]`, `[class*="title"]`),
		Price:    firstText(e, `[data-testid*="price"]`, `[class*="price"]`),
		Mileage:  firstText(e, `[data-testid*="mileage"]`, `[class*="mileage"]`, `[class*="kilometer"]`),
		Year:     firstText(e, `[data-testid*="year"]`, `[class*="year"]`),
		Location: firstText(e, `[data-testid*="location"]`, `[class*="location"]`),
		URL:      absolute(e, href),
		Image:    absolute(e, img),
	}
}

func firstText(e *colly.HTMLElement, selectors ...string) string {
	for _, sel := range selectors {
		if t := strings.TrimSpace(e.DOM.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

func absolute(e *colly.HTMLElement, ref string) string {
	if ref == "" {
		return ""
	}
	return e.Request.AbsoluteURL(ref)
}

// walkJSONLD collects vehicle-like nodes from a decoded JSON-LD document,
// following @graph and ItemList containers.
func walkJSONLD(v any, out []cardData) []cardData {
	switch node := v.(type) {
	case []any:
		for _, item := range node {
			out = walkJSONLD(item, out)
		}
	case map[string]any:
		if graph, ok := node["@graph"]; ok {
			return walkJSONLD(graph, out)
		}
		switch {
		case hasType(node, "ItemList"):
			return walkJSONLD(node["itemListElement"], out)
		case hasType(node, "ListItem"):
			return walkJSONLD(node["item"], out)
		case isVehicle(node):
			if card := cardFromJSONLD(node); card.Title != "" {
				out = append(out, card)
			}
		}
	}
	return out
}

func isVehicle(node map[string]any) bool {
	for _, t := range types(node) {
		if vehicleTypes[t] {
			return true
		}
	}
	return false
}

func hasType(node map[string]any, want string) bool {
	for _, t := range types(node) {
		if t == want {
			return true
		}
	}
	return false
}

func types(node map[string]any) []string {
	switch t := node["@type"].(type) {
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, v := range t {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func cardFromJSONLD(node map[string]any) cardData {
	offer := firstObject(node["offers"])

	card := cardData{
		Title: scalar(node["name"]),
		URL:   scalar(node["url"]),
		Image: imageOf(node["image"]),
	}
	if offer != nil {
		price := scalar(offer["price"])
		if price != "" {
			card.Price = strings.TrimSpace(scalar(offer["priceCurrency"]) + " " + price)
		}
		if card.URL == "" {
			card.URL = scalar(offer["url"])
		}
		if place := firstObject(offer["availableAtOrFrom"]); place != nil {
			if addr := firstObject(place["address"]); addr != nil {
				card.Location = scalar(addr["addressLocality"])
			}
		}
	}

	switch m := node["mileageFromOdometer"].(type) {
	case map[string]any:
		unit := ""
		switch strings.ToUpper(scalar(m["unitCode"])) {
		case "KMT":
			unit = " km"
		case "SMI":
			unit = " mi"
		}
		if v := scalar(m["value"]); v != "" {
			card.Mileage = v + unit
		}
	default:
		card.Mileage = scalar(m)
	}

	for _, key := range []string{"vehicleModelDate", "modelDate", "productionDate", "releaseDate"} {
		if y := scalar(node[key]); len(y) >= 4 {
			card.Year = y[:4]
			break
		}
	}
	return card
}

func firstObject(v any) map[string]any {
	switch o := v.(type) {
	case map[string]any:
		return o
	case []any:
		for _, item := range o {
			if m, ok := item.(map[string]any); ok {
				return m
			}
		}
	}
	return nil
}

func imageOf(v any) string {
	switch img := v.(type) {
	case string:
		return img
	case []any:
		if len(img) > 0 {
			return imageOf(img[0])
		}
	case map[string]any:
		return scalar(img["url"])
	}
	return ""
}

// scalar renders a JSON string or number as text.
func scalar(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case json.Number:
		return s.String()
	}
	return ""
}
