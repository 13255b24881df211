// Package parse converts scraped page text into typed values. Everything
// here is pure so it can be tested without a live session.
package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"fleahist/internal/domain"
)

var jst = time.FixedZone("JST", 9*60*60)

var soldTotalRe = regexp.MustCompile(`全(\d+)件`)

// Price extracts an integer yen amount from text like "¥1,500",
// "￥1,234,567" or "1,500".
func Price(text string) (int, error) {
	cleaned := strings.NewReplacer("¥", "", "￥", "", ",", "").Replace(text)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return 0, fmt.Errorf("empty price text: %q", text)
	}
	n, err := strconv.Atoi(cleaned)
	if err != nil {
		return 0, fmt.Errorf("bad price text %q: %w", text, err)
	}
	return n, nil
}

// Rate extracts integer percentage points from text like "10%".
func Rate(text string) (int, error) {
	cleaned := strings.TrimSpace(strings.ReplaceAll(text, "%", ""))
	if cleaned == "" {
		return 0, fmt.Errorf("empty rate text: %q", text)
	}
	n, err := strconv.Atoi(cleaned)
	if err != nil {
		return 0, fmt.Errorf("bad rate text %q: %w", text, err)
	}
	return n, nil
}

// SoldTotal extracts the server-reported total from paging text like
// "1～20/全100件".
func SoldTotal(pagingText string) (int, error) {
	m := soldTotalRe.FindStringSubmatch(pagingText)
	if m == nil {
		return 0, fmt.Errorf("%w: paging text %q", domain.ErrPageFormat, pagingText)
	}
	return strconv.Atoi(m[1])
}

// Date parses "2006/01/02" in JST.
func Date(text string) (time.Time, error) {
	return time.ParseInLocation("2006/01/02", strings.TrimSpace(text), jst)
}

// DateTime parses either "2006年01月02日 15:04" or "2006/01/02 15:04" in
// JST; the two listing surfaces use different layouts.
func DateTime(text string) (time.Time, error) {
	text = strings.TrimSpace(text)
	if t, err := time.ParseInLocation("2006年01月02日 15:04", text, jst); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006/01/02 15:04", text, jst)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad datetime text %q", text)
	}
	return t, nil
}
