package series

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/hashicorp/go-retryablehttp"
)

// ControlAggregates are the Avg() and Stdev() of the control field computed by the host
type ControlAggregates struct {
	Avg   float64 `json:"avg"`
	Stdev float64 `json:"stdev"`
}

// DataPage is one page of the host hypercube
type DataPage struct {
	Matrix        [][]Cell           `json:"qMatrix"`
	DimensionTags []string           `json:"qTags,omitempty"`
	Control       *ControlAggregates `json:"control,omitempty"`
}

// Fetcher loads data pages from a host URL or a local file
type Fetcher struct {
	client  *retryablehttp.Client
	headers map[string]string
}

// NewFetcher creates a Fetcher, retries only apply to http sources
func NewFetcher(timeout time.Duration, retries int, headers map[string]string) *Fetcher {
	client := retryablehttp.NewClient()
	client.HTTPClient.Timeout = timeout
	client.RetryWaitMin = 1 * time.Second
	client.RetryWaitMax = 16 * time.Second
	client.RetryMax = retries
	client.Logger = leveledLogger{}

	return &Fetcher{
		client:  client,
		headers: headers,
	}
}

// Fetch loads a data page from source
func (f *Fetcher) Fetch(ctx context.Context, source string) (*DataPage, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return f.fetchURL(ctx, source)
	}

	body, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("read data page %s: %w", source, err)
	}
	return DecodePage(body)
}

func (f *Fetcher) fetchURL(ctx context.Context, url string) (*DataPage, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "process-control-monitor")
	for k, v := range f.headers {
		req.Header.Add(k, v)
	}

	resp, err := f.client.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("fetch data page %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch data page %s: response status code %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read data page %s: %w", url, err)
	}
	return DecodePage(body)
}

// DecodePage decodes a JSON data page
func DecodePage(body []byte) (*DataPage, error) {
	var page DataPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decode data page: %w", err)
	}
	return &page, nil
}

// leveledLogger routes retryablehttp logs to apex log
type leveledLogger struct{}

func fields(keysAndValues []interface{}) log.Fields {
	f := log.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		f[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return f
}

func (leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	log.WithFields(fields(keysAndValues)).Error(msg)
}

func (leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	log.WithFields(fields(keysAndValues)).Debug(msg)
}

func (leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	log.WithFields(fields(keysAndValues)).Debug(msg)
}

func (leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	log.WithFields(fields(keysAndValues)).Warn(msg)
}
