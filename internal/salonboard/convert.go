package salonboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/kokoraro/salonsync/internal/model"
)

// parseReservations extracts reservation items from the rendered list
// page. Rows missing an id or with unparseable times are reported as
// warnings and skipped; one broken row never loses the rest of the page.
// Only reservations starting within [start, end] are returned.
func parseReservations(html string, loc *time.Location, start, end time.Time) ([]model.ExternalItem, []string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, nil, fmt.Errorf("parsing reservation page: %w", err)
	}

	var items []model.ExternalItem
	var warnings []string

	doc.Find(".appointment-item").Each(func(i int, row *goquery.Selection) {
		id, ok := row.Attr("data-appointment-id")
		if !ok || id == "" {
			warnings = append(warnings, fmt.Sprintf("reservation row %d has no data-appointment-id", i))
			return
		}

		startAt, err := parseRowTime(row, ".start-time", loc)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("reservation %s: %v", id, err))
			return
		}
		endAt, err := parseRowTime(row, ".end-time", loc)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("reservation %s: %v", id, err))
			return
		}

		if startAt.Before(start) || startAt.After(end) {
			return
		}

		items = append(items, model.ExternalItem{
			ExternalID:    id,
			CustomerName:  rowText(row, ".customer-name"),
			CustomerPhone: rowText(row, ".customer-phone"),
			CustomerEmail: rowText(row, ".customer-email"),
			Start:         startAt,
			End:           endAt,
			ServiceName:   rowText(row, ".service-name"),
			NativeStatus:  strings.ToLower(rowText(row, ".status")),
		})
	})

	return items, warnings, nil
}

func rowText(row *goquery.Selection, selector string) string {
	return strings.TrimSpace(row.Find(selector).First().Text())
}

// parseRowTime reads a timestamp cell rendered in the salon's local
// timezone and returns it in UTC.
func parseRowTime(row *goquery.Selection, selector string, loc *time.Location) (time.Time, error) {
	raw := rowText(row, selector)
	if raw == "" {
		return time.Time{}, fmt.Errorf("missing %s cell", selector)
	}
	t, err := time.ParseInLocation(SlotTimeLayout, raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad %s value %q: %w", selector, raw, err)
	}
	return t.UTC(), nil
}
