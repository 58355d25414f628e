// Package prices retrieves daily hourly price schedules from the remote
// price service.
package prices

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// maxBodySize bounds a day schedule response. A day of quarter-hour entries
// is well under 20 KiB.
const maxBodySize = 1 << 20

// Entry is the price for the interval [Start, End).
type Entry struct {
	Start time.Time
	End   time.Time
	Price decimal.Decimal
}

// Contains reports whether t falls inside the entry interval.
func (e Entry) Contains(t time.Time) bool {
	return !t.Before(e.Start) && t.Before(e.End)
}

// Schedule is the ordered price list for one calendar day.
type Schedule struct {
	Day     Day
	Entries []Entry
}

// At returns the entry whose interval contains t.
func (s *Schedule) At(t time.Time) (Entry, bool) {
	if s == nil {
		return Entry{}, false
	}
	i := sort.Search(len(s.Entries), func(i int) bool {
		return s.Entries[i].End.After(t)
	})
	if i < len(s.Entries) && s.Entries[i].Contains(t) {
		return s.Entries[i], true
	}
	return Entry{}, false
}

// Day is a calendar date in the price zone.
type Day struct {
	Year  int
	Month time.Month
	Date  int
}

// DayOf returns the calendar day of t in loc.
func DayOf(t time.Time, loc *time.Location) Day {
	y, m, d := t.In(loc).Date()
	return Day{Year: y, Month: m, Date: d}
}

// IsZero reports whether d is unset.
func (d Day) IsZero() bool {
	return d == Day{}
}

func (d Day) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Date)
}

// path renders the service path segment, e.g. "2024/01-15".
func (d Day) path() string {
	return fmt.Sprintf("%04d/%02d-%02d", d.Year, d.Month, d.Date)
}

// Options parameterise the price client.
type Options struct {
	BaseURL   string
	Area      string
	Currency  string
	CAFile    string
	Timeout   time.Duration
	UserAgent string
}

// Client fetches schedules over HTTPS.
type Client struct {
	opts   Options
	client *http.Client
}

// NewClient builds a client. When opts.CAFile is set, only that PEM root is
// trusted for TLS.
func NewClient(opts Options) (*Client, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.CAFile != "" {
		pool, err := loadRoots(opts.CAFile)
		if err != nil {
			return nil, err
		}
		transport.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	}

	return &Client{
		opts: opts,
		client: &http.Client{
			Timeout:   timeout,
			Transport: &userAgentTransport{transport: transport, userAgent: opts.UserAgent},
		},
	}, nil
}

// URL returns the schedule address for day.
func (c *Client) URL(day Day) string {
	return fmt.Sprintf("%s/api/v1/prices/%s_%s.json", c.opts.BaseURL, day.path(), c.opts.Area)
}

// Fetch retrieves the schedule for day. Any status other than 200 is an error.
func (c *Client) Fetch(ctx context.Context, day Day) (*Schedule, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(day), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get schedule %s: %w", day, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("read schedule %s: %w", day, err)
	}
	if len(body) > maxBodySize {
		return nil, fmt.Errorf("schedule %s exceeds %d bytes", day, maxBodySize)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price service status %d for %s", resp.StatusCode, day)
	}

	entries, err := decode(body, c.opts.Currency+"_per_kWh")
	if err != nil {
		return nil, fmt.Errorf("decode schedule %s: %w", day, err)
	}
	return &Schedule{Day: day, Entries: entries}, nil
}

type rawEntry map[string]json.RawMessage

// decode parses the service payload, reading the price from priceKey.
func decode(body []byte, priceKey string) ([]Entry, error) {
	var raw []rawEntry
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(raw))
	for i, r := range raw {
		start, err := r.time("time_start")
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		end, err := r.time("time_end")
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		if !end.After(start) {
			return nil, fmt.Errorf("entry %d: end %s not after start %s", i, end, start)
		}
		field, ok := r[priceKey]
		if !ok || string(field) == "null" {
			return nil, fmt.Errorf("entry %d: missing %s", i, priceKey)
		}
		var p decimal.Decimal
		if err := json.Unmarshal(field, &p); err != nil {
			return nil, fmt.Errorf("entry %d: %s: %w", i, priceKey, err)
		}
		entries = append(entries, Entry{Start: start, End: end, Price: p})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Start.Before(entries[j].Start)
	})
	return entries, nil
}

func (r rawEntry) time(key string) (time.Time, error) {
	field, ok := r[key]
	if !ok {
		return time.Time{}, fmt.Errorf("missing %s", key)
	}
	var s string
	if err := json.Unmarshal(field, &s); err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", key, err)
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", key, err)
	}
	return t, nil
}

func loadRoots(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ca file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("ca file %s: no certificates found", path)
	}
	return pool, nil
}

type userAgentTransport struct {
	transport http.RoundTripper
	userAgent string
}

// RoundTrip sets the User-Agent header on a clone of req.
func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.userAgent != "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}
	return t.transport.RoundTrip(req)
}
