package sources

import (
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

const (
	minPageLength   = 200
	maxTitleLength  = 120
	defaultMaxLines = 25
)

var (
	stripPolicy = bluemonday.StrictPolicy()

	mdImagePattern  = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	mdLinkPattern   = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	urlPattern      = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+`)
	emphasisPattern = regexp.MustCompile(`[*_` + "`" + `]{1,3}`)
	spacePattern    = regexp.MustCompile(`[ \t\x{00a0}]+`)

	currencyPattern = regexp.MustCompile(`(?i)(?:[₹$£€]|\b(?:rs\.?|inr|usd))\s?\d[\d,]*(?:\.\d{1,2})?(?:\s*(?:onwards|\+|per person|/-))?`)
	pricePattern    = regexp.MustCompile(`(?i)(?:[₹$£€]|\b(?:rs\.?|inr|usd))\s?\d[\d,]*(?:\.\d{1,2})?`)
	freePattern     = regexp.MustCompile(`(?i)\bfree\b|\bno cover\b`)

	isoDatePattern   = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	slashDatePattern = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	monthDayPattern  = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s+(\d{4}))?\b`)
	dayMonthPattern  = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?(?:,?\s+(\d{4}))?\b`)
	relativePattern  = regexp.MustCompile(`(?i)\b(today|tonight|tomorrow)\b`)
	clock12Pattern   = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)
	clock24Pattern   = regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)\b`)

	months = map[string]time.Month{
		"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
		"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
		"sep": time.September, "sept": time.September, "oct": time.October,
		"nov": time.November, "dec": time.December,
	}
)

var eventKeywords = []string{
	"concert", "live", "music", "festival", "show", "comedy", "stand-up", "standup",
	"workshop", "class", "exhibition", "expo", "market", "fair", "party", "night",
	"tour", "walk", "performance", "theatre", "theater", "screening", "meetup",
	"brunch", "tasting", "marathon", "run", "match", "gig", "open mic", "dj",
}

var navigationMarkers = []string{
	"home", "login", "log in", "sign in", "sign up", "register now", "menu",
	"search", "privacy policy", "terms of use", "terms and conditions", "contact us",
	"about us", "cookie", "download the app", "get the app", "subscribe", "follow us",
	"copyright", "©", "all rights reserved", "view all", "see all", "load more",
	"filter", "sort by", "skip to content", "back to top", "list your event",
}

var errorPageMarkers = []string{
	"page not found", "404 not found", "error 404", "403 forbidden", "access denied",
	"enable javascript", "verify you are human", "captcha", "something went wrong",
	"service unavailable", "too many requests", "temporarily unavailable", "coming soon",
}

var metadataPrefixes = []string{
	"date:", "time:", "when:", "where:", "location:", "venue:", "price:", "cost:",
	"fee:", "tickets:", "contact:", "phone:", "email:", "website:", "category:",
}

var locationIndicators = []string{"venue:", "location:", "where:", "address:", "held at", "takes place at", " at "}

var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{"comedy", []string{"comedy", "stand-up", "standup", "open mic"}},
	{"music", []string{"concert", "music", "gig", "live band", "dj", "jazz", "unplugged"}},
	{"workshops", []string{"workshop", "class", "masterclass", "bootcamp"}},
	{"food", []string{"food", "brunch", "tasting", "dinner", "culinary"}},
	{"arts", []string{"art", "exhibition", "gallery", "theatre", "theater", "dance", "screening"}},
	{"sports", []string{"marathon", "run", "match", "cricket", "football", "yoga", "cycling"}},
	{"nightlife", []string{"party", "club", "night"}},
}

// CleanText strips markup, links and URLs from scraped HTML or markdown and
// collapses whitespace within each line
func CleanText(content string) string {
	content = mdImagePattern.ReplaceAllString(content, "")
	content = mdLinkPattern.ReplaceAllString(content, "$1")
	content = stripPolicy.Sanitize(content)
	content = html.UnescapeString(content)
	content = urlPattern.ReplaceAllString(content, "")

	lines := strings.Split(content, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = spacePattern.ReplaceAllString(strings.TrimSpace(line), " ")
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// StripCurrency removes price fragments such as "₹499 onwards" from a line
func StripCurrency(s string) string {
	s = currencyPattern.ReplaceAllString(s, "")
	return strings.Trim(spacePattern.ReplaceAllString(strings.TrimSpace(s), " "), " -|,:")
}

// IsNonEventPage reports whether cleaned page content is an error,
// placeholder or pure navigation page
func IsNonEventPage(content string) bool {
	trimmed := strings.TrimSpace(content)
	if len(trimmed) < minPageLength {
		return true
	}
	head := strings.ToLower(trimmed)
	if len(head) > 600 {
		head = head[:600]
	}
	for _, marker := range errorPageMarkers {
		if strings.Contains(head, marker) {
			return true
		}
	}
	lower := strings.ToLower(trimmed)
	for _, kw := range eventKeywords {
		if strings.Contains(lower, kw) {
			return false
		}
	}
	return true
}

// ScrapedLine is one event extracted from a listing page
type ScrapedLine struct {
	Title       string
	Description string
	DateText    string
	StartsAt    time.Time
	VenueName   string
	PriceText   string
	Category    string
}

type extractBlock struct {
	line         ScrapedLine
	clock        string
	hour, minute int
	dateSeen     bool
}

// LineExtractor splits cleaned listing content into event candidates
type LineExtractor struct {
	Location  *time.Location
	Now       time.Time
	MaxEvents int
}

// Extract walks the content line by line. A header or title-like line opens
// a block and the lines after it fill date, time, venue and price. Inside a
// block that has no venue yet, a title-like line is taken as the venue.
// Blocks without a parseable date are dropped.
func (x LineExtractor) Extract(content string) []ScrapedLine {
	loc := x.Location
	if loc == nil {
		loc = time.UTC
	}
	now := x.Now
	if now.IsZero() {
		now = time.Now()
	}
	limit := x.MaxEvents
	if limit <= 0 {
		limit = defaultMaxLines
	}

	var (
		blocks  []extractBlock
		current *extractBlock
	)
	flush := func() {
		if current != nil {
			blocks = append(blocks, *current)
		}
		current = nil
	}

	for _, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if isSeparator(line) {
			flush()
			continue
		}
		if isNavigation(line) {
			continue
		}

		if isTitleLine(line) {
			hasKeyword := containsEventKeyword(line)
			switch {
			case current == nil, strings.HasPrefix(line, "#"):
			case current.line.VenueName == "":
				current.line.VenueName = cleanTitle(line)
				x.fillFromLine(current, line, now, loc)
				continue
			case !current.dateSeen && !hasKeyword:
				x.fillFromLine(current, line, now, loc)
				continue
			}
			flush()
			current = &extractBlock{line: ScrapedLine{Title: cleanTitle(line)}}
			x.fillFromLine(current, line, now, loc)
			if current.line.DateText != "" {
				current.line.Title = strings.Trim(strings.Replace(current.line.Title, current.line.DateText, "", 1), " -|,:")
			}
			continue
		}
		if current == nil {
			continue
		}
		x.fillFromLine(current, line, now, loc)
	}
	flush()

	seen := make(map[string]bool)
	var out []ScrapedLine
	for _, b := range blocks {
		l := b.line
		if l.Title == "" || len(l.Title) < 4 || len(l.Title) > maxTitleLength || l.StartsAt.IsZero() {
			continue
		}
		key := strings.ToLower(l.Title) + "|" + l.StartsAt.Format("2006-01-02")
		if seen[key] {
			continue
		}
		seen[key] = true
		if l.Category == "" {
			l.Category = GuessCategory(l.Title + " " + l.Description)
		}
		out = append(out, l)
		if len(out) >= limit {
			break
		}
	}
	return out
}

func (x LineExtractor) fillFromLine(b *extractBlock, line string, now time.Time, loc *time.Location) {
	lower := strings.ToLower(line)

	if b.line.DateText == "" {
		if dateText, date, ok := ParseDateText(line, now, loc); ok {
			b.line.DateText = dateText
			b.line.StartsAt = date
			b.dateSeen = true
		}
	}
	if b.clock == "" {
		if clock, h, m, ok := parseClock(line); ok {
			b.clock, b.hour, b.minute = clock, h, m
		}
	}
	if b.clock != "" && !b.line.StartsAt.IsZero() {
		d := b.line.StartsAt
		b.line.StartsAt = time.Date(d.Year(), d.Month(), d.Day(), b.hour, b.minute, 0, 0, loc)
	}
	if b.line.PriceText == "" {
		b.line.PriceText = extractPrice(line)
	}
	if b.line.VenueName == "" {
		b.line.VenueName = extractVenue(line, lower)
	}
	if b.line.Description == "" && len(line) > 40 && !isMetadata(lower) && cleanTitle(line) != b.line.Title {
		b.line.Description = StripCurrency(line)
	}
}

// ParseDateText finds the first date in a line. Dates without a year are
// placed in the coming twelve months. Times default to 19:00.
func ParseDateText(line string, now time.Time, loc *time.Location) (string, time.Time, bool) {
	now = now.In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	at := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 19, 0, 0, 0, loc)
	}
	valid := func(y int, m time.Month, d int) bool {
		t := time.Date(y, m, d, 0, 0, 0, 0, loc)
		return t.Day() == d && t.Month() == m
	}

	if m := isoDatePattern.FindStringSubmatch(line); m != nil {
		y, mo, d := atoi(m[1]), time.Month(atoi(m[2])), atoi(m[3])
		if mo >= 1 && mo <= 12 && valid(y, mo, d) {
			return m[0], at(y, mo, d), true
		}
	}
	if m := slashDatePattern.FindStringSubmatch(line); m != nil {
		mo, d, y := time.Month(atoi(m[1])), atoi(m[2]), atoi(m[3])
		if mo >= 1 && mo <= 12 && valid(y, mo, d) {
			return m[0], at(y, mo, d), true
		}
	}
	for _, p := range []struct {
		re               *regexp.Regexp
		monthIdx, dayIdx int
	}{
		{monthDayPattern, 1, 2},
		{dayMonthPattern, 2, 1},
	} {
		m := p.re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		mo, ok := months[strings.ToLower(m[p.monthIdx])]
		if !ok {
			continue
		}
		d := atoi(m[p.dayIdx])
		y := now.Year()
		explicitYear := m[3] != ""
		if explicitYear {
			y = atoi(m[3])
		}
		if !valid(y, mo, d) {
			continue
		}
		if !explicitYear && time.Date(y, mo, d, 0, 0, 0, 0, loc).Before(today) {
			y++
		}
		return m[0], at(y, mo, d), true
	}
	if m := relativePattern.FindStringSubmatch(line); m != nil {
		d := today
		if strings.EqualFold(m[1], "tomorrow") {
			d = d.AddDate(0, 0, 1)
		}
		return m[0], at(d.Year(), d.Month(), d.Day()), true
	}
	return "", time.Time{}, false
}

// GuessCategory assigns a category from keywords in the text
func GuessCategory(text string) string {
	lower := strings.ToLower(text)
	for _, c := range categoryKeywords {
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				return c.category
			}
		}
	}
	return "community"
}

func parseClock(line string) (string, int, int, bool) {
	if m := clock12Pattern.FindStringSubmatch(line); m != nil {
		h := atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute = atoi(m[2])
		}
		if h < 1 || h > 12 || minute > 59 {
			return "", 0, 0, false
		}
		if strings.EqualFold(m[3], "pm") && h != 12 {
			h += 12
		}
		if strings.EqualFold(m[3], "am") && h == 12 {
			h = 0
		}
		return m[0], h, minute, true
	}
	if m := clock24Pattern.FindStringSubmatch(line); m != nil {
		return m[0], atoi(m[1]), atoi(m[2]), true
	}
	return "", 0, 0, false
}

func extractPrice(line string) string {
	if freePattern.MatchString(line) {
		return "Free"
	}
	if m := pricePattern.FindString(line); m != "" {
		return strings.TrimSpace(m)
	}
	return ""
}

func extractVenue(line, lower string) string {
	for _, indicator := range locationIndicators {
		idx := strings.Index(lower, indicator)
		if idx < 0 {
			continue
		}
		venue := strings.TrimSpace(line[idx+len(indicator):])
		if i := strings.IndexAny(venue, "|•·"); i >= 0 {
			venue = venue[:i]
		}
		venue = StripCurrency(venue)
		if _, _, ok := ParseDateText(venue, time.Now(), time.UTC); ok {
			continue
		}
		if _, _, _, ok := parseClock(venue); ok {
			continue
		}
		if len(venue) > 3 && len(venue) < 100 {
			return venue
		}
	}
	return ""
}

func isTitleLine(line string) bool {
	if strings.HasPrefix(line, "#") {
		return len(cleanTitle(line)) >= 4
	}
	if len(line) < 6 || len(line) > maxTitleLength {
		return false
	}
	lower := strings.ToLower(line)
	if isMetadata(lower) {
		return false
	}
	if _, _, ok := ParseDateText(line, time.Now(), time.UTC); ok {
		return false
	}
	if _, _, _, ok := parseClock(line); ok {
		return false
	}
	return looksLikeTitle(line) && !strings.HasSuffix(line, ".")
}

func containsEventKeyword(line string) bool {
	lower := strings.ToLower(line)
	for _, kw := range eventKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// looksLikeTitle reports whether at least half the words are capitalized
func looksLikeTitle(line string) bool {
	words := strings.Fields(line)
	if len(words) < 2 || len(words) > 15 {
		return false
	}
	capitalWords := 0
	for _, word := range words {
		r := []rune(word)
		if len(r) > 0 && r[0] >= 'A' && r[0] <= 'Z' {
			capitalWords++
		}
	}
	return float64(capitalWords)/float64(len(words)) >= 0.5
}

func cleanTitle(line string) string {
	title := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
	title = emphasisPattern.ReplaceAllString(title, "")
	title = strings.TrimLeft(title, "-•*0123456789. ")
	for _, prefix := range []string{"Event:", "Show:", "Workshop:", "Concert:"} {
		if len(title) > len(prefix) && strings.EqualFold(title[:len(prefix)], prefix) {
			title = strings.TrimSpace(title[len(prefix):])
		}
	}
	return StripCurrency(title)
}

func isMetadata(lower string) bool {
	for _, p := range metadataPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

func isNavigation(line string) bool {
	if line == "" {
		return false
	}
	lower := strings.ToLower(strings.Trim(line, "#*-|> "))
	if len(lower) <= 2 {
		return true
	}
	padded := " " + strings.Join(strings.Fields(lower), " ") + " "
	for _, marker := range navigationMarkers {
		if lower == marker || (len(lower) < 40 && strings.Contains(padded, " "+marker+" ")) {
			return true
		}
	}
	return false
}

func isSeparator(line string) bool {
	return line == "---" || line == "***" || line == "___"
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
