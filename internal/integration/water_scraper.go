// Package integration handles external service interactions
package integration

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/abelzeko/water-router/internal/entities"
)

// Default source URLs
const (
	DefaultSourceURL   = "https://www.hidmet.gov.rs/ciril/osmotreni/stanje_voda.php"
	DefaultGradacURL   = "https://www.hidmet.gov.rs/ciril/osmotreni/nrt_tabela_grafik.php?hm_id=45902&period=7"
	DefaultRhmzRsURL   = "https://novi.rhmzrs.com/page/bilten-izvjestaj-o-vodostanju"
	defaultHTTPTimeout = 30 * time.Second
)

var (
	bulletinLinkRe = regexp.MustCompile(`<a[^>]+href="([^"]+)"[^>]*>Редован\s+хидролошки\s+билтен`)
	bulletinTimeRe = regexp.MustCompile(`НА\s+ДАН\s+(\d{2}\.\d{2}\.\d{4})\.\s*ГОДИНЕ,\s*У\s*(\d{1,2}:\d{2})`)
)

// WaterScraper provides functionality to scrape water data from external sources
type WaterScraper struct {
	sourceURL      string
	gradacRiverURL string
	rhmzRsURL      string
	client         *http.Client
	log            *zap.SugaredLogger
}

// ScraperOption customises a WaterScraper
type ScraperOption func(*WaterScraper)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c *http.Client) ScraperOption {
	return func(ws *WaterScraper) { ws.client = c }
}

// WithLogger sets the scraper's logger
func WithLogger(l *zap.SugaredLogger) ScraperOption {
	return func(ws *WaterScraper) { ws.log = l }
}

// WithGradacURL overrides the ГРАДАЦ detail page URL
func WithGradacURL(u string) ScraperOption {
	return func(ws *WaterScraper) { ws.gradacRiverURL = u }
}

// WithRhmzRsURL overrides the RHMZ RS bulletin listing URL
func WithRhmzRsURL(u string) ScraperOption {
	return func(ws *WaterScraper) { ws.rhmzRsURL = u }
}

// NewWaterScraper creates a new water data scraper
func NewWaterScraper(sourceURL string, opts ...ScraperOption) *WaterScraper {
	if sourceURL == "" {
		sourceURL = DefaultSourceURL
	}
	ws := &WaterScraper{
		sourceURL:      sourceURL,
		gradacRiverURL: DefaultGradacURL,
		rhmzRsURL:      DefaultRhmzRsURL,
		client:         &http.Client{Timeout: defaultHTTPTimeout},
		log:            zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(ws)
	}
	return ws
}

// get fetches url and fails on any non-200 response
func (ws *WaterScraper) get(ctx context.Context, pageURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", pageURL, err)
	}
	res, err := ws.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch the webpage: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		res.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d %s", res.StatusCode, res.Status)
	}
	return res, nil
}

func (ws *WaterScraper) getDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	res, err := ws.get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse the webpage: %w", err)
	}
	return doc, nil
}

// FetchWaterData retrieves water data from the website
func (ws *WaterScraper) FetchWaterData(ctx context.Context) ([]entities.RiverData, error) {
	ws.log.Infof("Sending HTTP request to water monitoring website")
	doc, err := ws.getDocument(ctx, ws.sourceURL)
	if err != nil {
		ws.log.Errorf("Error fetching data: %v", err)
		return nil, err
	}

	// Extract timestamp from the website
	timestamp := ws.ExtractTimestamp(doc)

	var data []entities.RiverData
	rowCount := 0

	doc.Find("table tbody tr").Each(func(index int, row *goquery.Selection) {
		rowCount++
		cells := row.Find("td")
		if cells.Length() < 10 {
			return
		}

		// Station name sits in the third cell, inside an <a> tag
		data = append(data, entities.RiverData{
			River:       strings.TrimSpace(cells.Eq(0).Text()),
			Station:     strings.TrimSpace(cells.Eq(2).Find("a").Text()),
			WaterLevel:  strings.TrimSpace(cells.Eq(5).Text()),
			WaterChange: strings.TrimSpace(cells.Eq(6).Text()),
			Discharge:   strings.TrimSpace(cells.Eq(7).Text()),
			WaterTemp:   strings.TrimSpace(cells.Eq(8).Text()),
			Tendency:    cells.Eq(9).Find("img").AttrOr("alt", ""),
			Timestamp:   timestamp,
		})
	})

	ws.log.Infof("Parsed %d rows, extracted %d valid data entries", rowCount, len(data))
	return data, nil
}

// FetchGradacRiverData retrieves water data specifically for river ГРАДАЦ
// Only returns valid timestamp-level pairs where level is an integer
func (ws *WaterScraper) FetchGradacRiverData(ctx context.Context) ([]entities.RiverData, error) {
	ws.log.Infof("Sending HTTP request to fetch river ГРАДАЦ data")
	doc, err := ws.getDocument(ctx, ws.gradacRiverURL)
	if err != nil {
		ws.log.Errorf("Error fetching ГРАДАЦ river data: %v", err)
		return nil, fmt.Errorf("ГРАДАЦ river: %w", err)
	}

	var data []entities.RiverData
	processedRows, validRows, skippedRows := 0, 0, 0

	doc.Find("table tr").Each(func(index int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() != 2 {
			return
		}
		processedRows++

		dateTimeStr := strings.TrimSpace(cells.Eq(0).Text())
		waterLevelStr := strings.TrimSpace(cells.Eq(1).Text())

		// Skip header rows or rows without proper date format
		if dateTimeStr == "" || dateTimeStr == "Датум и време" ||
			!strings.Contains(dateTimeStr, ".") || !strings.Contains(dateTimeStr, ":") {
			skippedRows++
			return
		}

		// The detail page posts timestamps in UTC
		timestamp, parseErr := time.ParseInLocation("02.01.2006 15:04", dateTimeStr, time.UTC)
		if parseErr != nil {
			ws.log.Warnf("Skipping row with invalid timestamp format: %s, %v", dateTimeStr, parseErr)
			skippedRows++
			return
		}

		waterLevel, parseErr := strconv.Atoi(waterLevelStr)
		if parseErr != nil {
			ws.log.Warnf("Skipping row with non-integer water level: %s", waterLevelStr)
			skippedRows++
			return
		}

		validRows++
		data = append(data, entities.RiverData{
			River:      "ГРАДАЦ",
			Station:    "ДЕГУРИЋ",
			WaterLevel: strconv.Itoa(waterLevel),
			Timestamp:  timestamp,
		})
	})

	ws.log.Infof("ГРАДАЦ river data: processed %d rows, found %d valid entries, skipped %d invalid entries",
		processedRows, validRows, skippedRows)

	// Oldest first
	sort.Slice(data, func(i, j int) bool {
		return data[i].Timestamp.Before(data[j].Timestamp)
	})

	return data, nil
}

// ExtractTimestamp extracts the timestamp from the HTML document
func (ws *WaterScraper) ExtractTimestamp(doc *goquery.Document) time.Time {
	timestamp := time.Now()
	timestampText := ""

	selectors := []string{
		"div.col-md-12",
		"div",
		"h4",
		"div.container",
	}

	for _, selector := range selectors {
		doc.Find(selector).Each(func(i int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if strings.Contains(text, "Хидролошки подаци:") {
				ws.log.Debugf("Found timestamp text using selector '%s': %s", selector, text)
				timestampText = text
			}
		})
		if timestampText != "" {
			break
		}
	}

	if timestampText == "" {
		ws.log.Warnf("Timestamp text not found, using current time")
		return timestamp
	}

	extractedTime := ws.parseTimestampText(timestampText)
	if extractedTime.IsZero() {
		ws.log.Warnf("Failed to parse timestamp from: %s", timestampText)
		return timestamp
	}
	ws.log.Infof("Successfully extracted timestamp: %s", extractedTime.Format(time.RFC3339))
	return extractedTime
}

// parseTimestampText parses timestamp text such as
// "Хидролошки подаци: ПЕТАК 18.04.2025. време: 8:00 (06:00 UTC)"
func (ws *WaterScraper) parseTimestampText(text string) time.Time {
	if !strings.Contains(text, "Хидролошки подаци:") || !strings.Contains(text, "време:") {
		return time.Time{}
	}
	dateParts := strings.Split(text, "време:")

	// The date might be preceded by a day name
	var dateStr string
	headerParts := strings.SplitN(dateParts[0], ":", 2)
	if len(headerParts) < 2 {
		return time.Time{}
	}
	for _, field := range strings.Fields(headerParts[1]) {
		if strings.Contains(field, ".") {
			dateStr = field
			break
		}
	}
	timeStr := strings.TrimSpace(strings.Split(dateParts[1], "(")[0])

	var day, month, year int
	if _, err := fmt.Sscanf(dateStr, "%d.%d.%d.", &day, &month, &year); err != nil {
		ws.log.Warnf("Error parsing date from '%s': %v", dateStr, err)
		return time.Time{}
	}
	var hour, minute int
	if _, err := fmt.Sscanf(timeStr, "%d:%d", &hour, &minute); err != nil {
		ws.log.Warnf("Error parsing time from '%s': %v", timeStr, err)
		return time.Time{}
	}

	return time.Date(year, time.Month(month), day, hour, minute, 0, 0, serbianLocation())
}

// serbianLocation falls back to a fixed CET offset when tzdata is missing
func serbianLocation() *time.Location {
	loc, err := time.LoadLocation("Europe/Belgrade")
	if err != nil {
		return time.FixedZone("CET", 3600)
	}
	return loc
}

// FetchRhmzRsData retrieves water data from the novi.rhmzrs.com website
func (ws *WaterScraper) FetchRhmzRsData(ctx context.Context) ([]entities.RiverData, error) {
	ws.log.Infof("Fetching data from RHMZ RS website")

	// Step 1: fetch the listing page and find the latest bulletin
	res, err := ws.get(ctx, ws.rhmzRsURL)
	if err != nil {
		return nil, fmt.Errorf("RHMZ RS listing page: %w", err)
	}
	bodyBytes, err := io.ReadAll(res.Body)
	res.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("error reading RHMZ RS listing HTML: %w", err)
	}

	match := bulletinLinkRe.FindStringSubmatch(string(bodyBytes))
	if len(match) < 2 {
		return nil, fmt.Errorf("latest RHMZ RS bulletin link not found")
	}
	href, err := resolveLink(ws.rhmzRsURL, match[1])
	if err != nil {
		return nil, fmt.Errorf("invalid RHMZ RS bulletin link: %w", err)
	}
	ws.log.Infof("Found bulletin link: %s", href)

	// Step 2: fetch and parse the bulletin
	doc, err := ws.getDocument(ctx, href)
	if err != nil {
		return nil, fmt.Errorf("RHMZ RS bulletin page: %w", err)
	}
	data := ws.parseRhmzRsBulletin(doc)
	ws.log.Infof("RHMZ RS data: extracted %d river data entries", len(data))
	return data, nil
}

func (ws *WaterScraper) parseRhmzRsBulletin(doc *goquery.Document) []entities.RiverData {
	timestamp := time.Now()
	doc.Find("table tr").Each(func(i int, tr *goquery.Selection) {
		if tr.Find("td").Length() == 0 {
			return
		}
		text := strings.TrimSpace(tr.Find("td").First().Text())
		tsMatch := bulletinTimeRe.FindStringSubmatch(text)
		if len(tsMatch) != 3 {
			return
		}
		loc, err := time.LoadLocation("Europe/Sarajevo")
		if err != nil {
			loc = serbianLocation()
		}
		t, err := time.ParseInLocation("02.01.2006 15:04", tsMatch[1]+" "+tsMatch[2], loc)
		if err != nil {
			ws.log.Warnf("Error parsing RHMZ RS timestamp: %v", err)
			return
		}
		timestamp = t
	})

	var data []entities.RiverData
	var currentRiver string
	var headerPassed bool

	doc.Find("table tr").Each(func(i int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() < 4 {
			return
		}

		firstCell := strings.TrimSpace(cells.Eq(0).Text())
		if !headerPassed {
			headerPassed = firstCell == "РИЈЕКА"
			return
		}
		if strings.Contains(firstCell, "Напомена") || strings.Contains(firstCell, "Легенда") {
			return
		}

		// River names span several rows
		if firstCell != "" {
			currentRiver = firstCell
		}
		station := strings.TrimSpace(cells.Eq(1).Text())
		if currentRiver == "" || station == "" {
			return
		}

		data = append(data, entities.RiverData{
			River:       currentRiver,
			Station:     station,
			WaterLevel:  orDefault(strings.TrimSpace(cells.Eq(3).Text()), "0"),
			WaterChange: strings.TrimSpace(cells.Eq(4).Text()),
			WaterTemp:   blankPlaceholder(strings.TrimSpace(cells.Eq(5).Text())),
			Discharge:   blankPlaceholder(strings.TrimSpace(cells.Eq(6).Text())),
			Tendency:    tendencyFromSymbol(strings.TrimSpace(cells.Eq(7).Text())),
			Timestamp:   timestamp,
		})
	})
	return data
}

// resolveLink resolves a possibly relative link against the page it was found on
func resolveLink(page, link string) (string, error) {
	base, err := url.Parse(page)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(link)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

// orDefault maps the "-" placeholder and empty cells to def
func orDefault(v, def string) string {
	if v = blankPlaceholder(v); v == "" {
		return def
	}
	return v
}

// blankPlaceholder turns the bulletin's "-" for a missing reading into ""
func blankPlaceholder(v string) string {
	if v == "-" {
		return ""
	}
	return v
}

func tendencyFromSymbol(s string) string {
	switch s {
	case "▲":
		return "rising"
	case "▼":
		return "falling"
	case "●":
		return "stable"
	default:
		return ""
	}
}
