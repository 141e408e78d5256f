package quotes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
)

var defaultHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Accept":          "application/json, text/plain, */*",
	"Accept-Language": "zh-CN,zh;q=0.9,en;q=0.8",
}

// getBody performs one GET and returns the raw body. Callers own parsing;
// this helper only normalizes transport failures.
func getBody(ctx context.Context, client *http.Client, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range defaultHeaders {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// quotedPayload extracts the first double-quoted segment from the
// hq-style responses sina and tencent serve.
var quotedPayload = regexp.MustCompile(`"([^"]+)"`)

func firstQuoted(body []byte) (string, bool) {
	m := quotedPayload.FindSubmatch(body)
	if m == nil {
		return "", false
	}
	return string(m[1]), true
}
