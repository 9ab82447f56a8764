package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const defaultTimeout = 30 * time.Second

// HTTPClient talks to the KPI service over HTTP. Every call carries a
// bounded timeout; expiry surfaces as an error the caller treats as
// "data unavailable".
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) PUE(ctx context.Context, siteName string) (*PUEResponse, error) {
	var out PUEResponse
	if err := c.postJSON(ctx, "/pue", map[string]any{"site_name": siteName}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) CI(ctx context.Context, req CIRequest) (*CIResponse, error) {
	body := map[string]any{
		"lat":   req.Lat,
		"lon":   req.Lon,
		"pue":   req.PUE,
		"start": req.Start.UTC().Format(time.RFC3339),
		"end":   req.End.UTC().Format(time.RFC3339),
	}
	if req.EnergyWh != nil {
		body["energy_wh"] = *req.EnergyWh
	}
	var out CIResponse
	if err := c.postJSON(ctx, "/ci", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) CFP(ctx context.Context, ciG, pue, energyWh float64) (*CFPResponse, error) {
	q := url.Values{}
	q.Set("ci_g", strconv.FormatFloat(ciG, 'f', -1, 64))
	q.Set("pue", strconv.FormatFloat(pue, 'f', -1, 64))
	q.Set("energy_wh", strconv.FormatFloat(energyWh, 'f', -1, 64))

	var out CFPResponse
	if err := c.getJSON(ctx, "/cfp?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) postJSON(ctx context.Context, path string, payload any, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *HTTPClient) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("kpi service %s: status %d", req.URL.Path, resp.StatusCode)
	}
	return json.Unmarshal(body, out)
}
