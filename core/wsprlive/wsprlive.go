package wsprlive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/ftl/wsprglobe/core"
)

// DefaultURL of the public wspr.live ClickHouse HTTP interface.
const DefaultURL = "https://db1.wspr.live/"

// DefaultMaxSpots is used when the query has no row limit.
const DefaultMaxSpots = 1000

const timeLayout = "2006-01-02 15:04:05"

// TimeBounds returns the closed time range of the query: it ends days and hours before now and spans the query window.
func TimeBounds(q core.Query, now time.Time) core.TimeSpan {
	end := now.UTC().
		Add(-time.Duration(q.DaysAgo) * 24 * time.Hour).
		Add(-time.Duration(q.HoursAgo) * time.Hour)
	start := end.Add(-time.Duration(q.WindowMinutes) * time.Minute)
	return core.TimeSpan{From: start, To: end}
}

// BuildQuery returns the SQL statement that selects the spots for the given query. ranges are the frequency ranges
// of the selected bands, nil means no frequency predicate.
func BuildQuery(q core.Query, excludeOdd bool, ranges []core.FrequencyRange, now time.Time) string {
	bounds := TimeBounds(q, now)
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT * FROM wspr.rx WHERE time >= '%s' AND time <= '%s'", bounds.From.Format(timeLayout), bounds.To.Format(timeLayout))

	if rx := Callsign(q.RxCall); rx != "" {
		fmt.Fprintf(&b, " AND rx_sign = '%s'", rx)
	}
	if tx := Callsign(q.TxCall); tx != "" {
		fmt.Fprintf(&b, " AND tx_sign = '%s'", tx)
	}
	if excludeOdd {
		b.WriteString(" AND NOT (rx_sign LIKE '0%' OR rx_sign LIKE '1%' OR rx_sign LIKE 'Q%' OR tx_sign LIKE '0%' OR tx_sign LIKE '1%' OR tx_sign LIKE 'Q%')")
	}
	if len(ranges) > 0 {
		conditions := make([]string, len(ranges))
		for i, r := range ranges {
			conditions[i] = fmt.Sprintf("(frequency >= %.0f AND frequency <= %.0f)", float64(r.From), float64(r.To))
		}
		fmt.Fprintf(&b, " AND (%s)", strings.Join(conditions, " OR "))
	}

	limit := q.MaxSpots
	if limit <= 0 {
		limit = DefaultMaxSpots
	}
	fmt.Fprintf(&b, " ORDER BY time DESC LIMIT %d", limit)
	return b.String()
}

// Callsign normalizes a callsign for use in a query. Everything but letters, digits and the slash is dropped.
func Callsign(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	var b strings.Builder
	for _, c := range s {
		switch {
		case c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '/':
			b.WriteRune(c)
		}
	}
	return b.String()
}

// Client for the wspr.live API.
type Client struct {
	url    string
	client *http.Client
}

// NewClient returns a client for the API at the given URL. If url is empty, DefaultURL is used.
func NewClient(apiURL string) *Client {
	if apiURL == "" {
		apiURL = DefaultURL
	}
	return &Client{
		url:    apiURL,
		client: &http.Client{},
	}
}

type response struct {
	Data []core.Spot `json:"data"`
	Rows int         `json:"rows"`
}

// Fetch runs the given statement once and returns the spots. There is no retry and no timeout besides the context.
func (c *Client) Fetch(ctx context.Context, statement string) ([]core.Spot, error) {
	endpoint, err := url.Parse(c.url)
	if err != nil {
		return nil, errors.Wrap(err, "invalid API URL")
	}
	params := endpoint.Query()
	params.Set("query", statement+" FORMAT JSON")
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create API request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "API request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, errors.Errorf("API request failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var result response
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "cannot decode API response")
	}
	log.Printf("fetched %d spots", len(result.Data))
	return result.Data, nil
}
