package funds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"time"
)

// Fund is one watchlist entry's live valuation estimate.
type Fund struct {
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`     // estimated net value
	Change   float64 `json:"change"`    // estimated percent change
	NetValue float64 `json:"net_value"` // last published net value
	TimeStr  string  `json:"time_str"`
	Source   string  `json:"source"`
}

// Fetcher fetches one fund's live estimate.
type Fetcher interface {
	FetchFund(ctx context.Context, code string) (*Fund, error)
}

var codePattern = regexp.MustCompile(`^\d{6}$`)

// ValidCode reports whether code is a 6-digit fund code.
func ValidCode(code string) bool {
	return codePattern.MatchString(code)
}

const guzhiURL = "http://fundgz.1234567.com.cn/js/%s.js"

// jsonpgz unwraps the fundgz JSONP envelope: jsonpgz({...});
var jsonpgz = regexp.MustCompile(`jsonpgz\((.*)\)`)

// GuzhiClient reads live fund estimates from the fundgz endpoint, which
// serves every numeric field as a string inside a JSONP wrapper.
type GuzhiClient struct {
	BaseURL string // format string taking the fund code
	client  *http.Client
}

func NewGuzhiClient(timeout time.Duration) *GuzhiClient {
	return &GuzhiClient{
		BaseURL: guzhiURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (g *GuzhiClient) FetchFund(ctx context.Context, code string) (*Fund, error) {
	if !ValidCode(code) {
		return nil, fmt.Errorf("invalid fund code %q", code)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(g.BaseURL, code), nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fund %s: %w", code, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fund %s: HTTP %d", code, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fund %s: %w", code, err)
	}

	m := jsonpgz.FindSubmatch(body)
	if m == nil {
		return nil, fmt.Errorf("fund %s: no JSONP wrapper", code)
	}
	var payload struct {
		FundCode string `json:"fundcode"`
		Name     string `json:"name"`
		NetValue string `json:"dwjz"`   // last published
		Estimate string `json:"gsz"`    // live estimate
		Percent  string `json:"gszzl"`  // estimated change percent
		Time     string `json:"gztime"` // "2006-01-02 15:04"
	}
	if err := json.Unmarshal(m[1], &payload); err != nil {
		return nil, fmt.Errorf("fund %s: %w", code, err)
	}

	price, err := strconv.ParseFloat(payload.Estimate, 64)
	if err != nil {
		return nil, fmt.Errorf("fund %s: estimate field: %w", code, err)
	}
	if price <= 0 {
		return nil, fmt.Errorf("fund %s: invalid estimate %.4f", code, price)
	}
	change, _ := strconv.ParseFloat(payload.Percent, 64)
	netValue, _ := strconv.ParseFloat(payload.NetValue, 64)

	timeStr := payload.Time
	if timeStr == "" {
		timeStr = time.Now().Format("15:04:05")
	}
	return &Fund{
		Code:     code,
		Name:     payload.Name,
		Price:    price,
		Change:   change,
		NetValue: netValue,
		TimeStr:  timeStr,
		Source:   "fundgz",
	}, nil
}
