package extract

import (
	"fmt"
	"net/url"
	"regexp"

	"github.com/ppiankov/eventsweep/internal/classify"
	"github.com/ppiankov/eventsweep/internal/model"
	"golang.org/x/net/html"
)

// Card scraping knobs. The scraper favors precision over recall: a missed
// event costs less than a sink flooded with navigation links.
const (
	// MaxRegionBytes caps how far a card region extends past its opening tag
	MaxRegionBytes = 6000
	// DateDayWindow is the max gap between a month name and the day number
	DateDayWindow = 3
	// DateYearWindow is the max gap between the day number and a year
	DateYearWindow = 4
)

var (
	// Opening tag of a container whose markup carries a card hint
	regionStartPattern = regexp.MustCompile(`(?i)<(?:article|section|div|li|tr|td|ul|ol)\b[^>]*(?:event|listing|calendar)[^>]*>`)

	anchorPattern   = regexp.MustCompile(`(?is)<a\b[^>]*?\shref\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s>]+))[^>]*>(.*?)</a\s*>`)
	tagPattern      = regexp.MustCompile(`(?s)<[^>]*>`)
	nonTextPattern  = regexp.MustCompile(`(?is)<script\b.*?</script\s*>|<style\b.*?</style\s*>|<!--.*?-->`)
	cardDatePattern = regexp.MustCompile(fmt.Sprintf(
		`(?i)\b(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?[^\p{L}\d]{0,%d}\d{1,2}(?:st|nd|rd|th)?\b(?:[^\p{L}\d]{0,%d}\d{4}\b)?`,
		DateDayWindow, DateYearWindow,
	))
)

// CardScraper is the fallback extractor for pages without structured data
type CardScraper struct {
	classifier *classify.Classifier
}

// NewCardScraper creates a card scraper gated by the given classifier
func NewCardScraper(classifier *classify.Classifier) *CardScraper {
	return &CardScraper{classifier: classifier}
}

// Scrape splits htmlContent into hinted regions and keeps the ones whose
// first link looks like an event
func (c *CardScraper) Scrape(docURL string, htmlContent string) ([]model.RawEvent, error) {
	base, err := url.Parse(docURL)
	if err != nil {
		return nil, fmt.Errorf("parse document url: %w", err)
	}

	events := make([]model.RawEvent, 0)
	for _, region := range splitRegions(htmlContent) {
		raw, ok := c.scrapeRegion(base, region)
		if ok {
			events = append(events, raw)
		}
	}

	return events, nil
}

// splitRegions cuts the document at every hinted container start. A region
// runs to the next start, capped at MaxRegionBytes.
func splitRegions(htmlContent string) []string {
	starts := regionStartPattern.FindAllStringIndex(htmlContent, -1)
	regions := make([]string, 0, len(starts))

	for i, loc := range starts {
		end := len(htmlContent)
		if i+1 < len(starts) {
			end = starts[i+1][0]
		}
		if end-loc[0] > MaxRegionBytes {
			end = loc[0] + MaxRegionBytes
		}
		regions = append(regions, htmlContent[loc[0]:end])
	}

	return regions
}

func (c *CardScraper) scrapeRegion(base *url.URL, region string) (model.RawEvent, bool) {
	region = nonTextPattern.ReplaceAllString(region, " ")

	m := anchorPattern.FindStringSubmatch(region)
	if m == nil {
		return model.RawEvent{}, false
	}

	href := m[1] + m[2] + m[3]
	link := resolveURL(base, html.UnescapeString(href))
	title := visibleText(m[4])
	if link == "" || !c.classifier.LooksLikeEvent(title, link) {
		return model.RawEvent{}, false
	}

	return model.RawEvent{
		Producer: model.ProducerHeuristic,
		Name:     title,
		URL:      link,
		Start:    cardDatePattern.FindString(visibleText(region)),
	}, true
}

// visibleText strips tags, decodes entities and collapses whitespace
func visibleText(markup string) string {
	text := tagPattern.ReplaceAllString(markup, " ")
	return collapseSpace(html.UnescapeString(text))
}
