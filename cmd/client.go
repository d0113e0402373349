package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/pagesim/sim"
	"github.com/inference-sim/pagesim/sim/fleet"
)

// Client drives a running pagesim server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: time.Minute},
	}
}

// AccessRecord captures one /access-all round trip.
type AccessRecord struct {
	Index        int                           `json:"index"`
	Page         sim.Page                      `json:"page"`
	Status       string                        `json:"status"` // "ok", "error"
	ErrorMessage string                        `json:"errorMessage,omitempty"`
	SendTimeUs   int64                         `json:"sendTimeUs"`
	LatencyUs    int64                         `json:"latencyUs"`
	Results      map[string]fleet.AccessReport `json:"results,omitempty"`
}

// do posts body (when non-nil) to path and decodes the response into out.
// Non-2xx responses are returned as errors carrying the server's message.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal error: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("request creation error: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP error: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read error: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		var e errorResponse
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return fmt.Errorf("HTTP %d (%s): %s", resp.StatusCode, e.Kind, e.Error)
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(data))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode error: %w", err)
	}
	return nil
}

// TrainAll submits sequences to /train-all.
func (c *Client) TrainAll(ctx context.Context, sequences [][]sim.Page, workloadType string, reset bool) (*fleet.TrainAllResult, error) {
	var out fleet.TrainAllResult
	req := trainAllRequest{Sequences: sequences, WorkloadType: workloadType, ResetAccumulated: reset}
	if err := c.do(ctx, http.MethodPost, "/train-all", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Reset resets every family on the server to frameCount frames.
func (c *Client) Reset(ctx context.Context, frameCount int) error {
	return c.do(ctx, http.MethodPost, "/reset", frameCountRequest{FrameCount: frameCount}, nil)
}

// Access sends one page to /access-all. Transport and server failures are
// recorded on the returned record rather than returned.
func (c *Client) Access(ctx context.Context, index int, page sim.Page) *AccessRecord {
	record := &AccessRecord{Index: index, Page: page, Status: "ok"}
	start := time.Now()
	record.SendTimeUs = start.UnixMicro()

	req := accessRequest{ProcessID: page.ProcessID, PageNumber: page.Number}
	if err := c.do(ctx, http.MethodPost, "/access-all", req, &record.Results); err != nil {
		record.Status = "error"
		record.ErrorMessage = err.Error()
	}
	record.LatencyUs = time.Since(start).Microseconds()
	return record
}

// Recorder collects access records from concurrent replays.
type Recorder struct {
	mu      sync.Mutex
	records []AccessRecord
}

// Record appends one access record.
func (r *Recorder) Record(rec *AccessRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, *rec)
	if rec.Status != "ok" {
		logrus.Debugf("access %d (%s) failed: %s", rec.Index, rec.Page, rec.ErrorMessage)
	}
}

// Records returns a copy of all records.
func (r *Recorder) Records() []AccessRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]AccessRecord(nil), r.records...)
}

// ReplaySummary aggregates a replay.
type ReplaySummary struct {
	Accesses      int            `json:"accesses"`
	Errors        int            `json:"errors"`
	MeanLatencyUs float64        `json:"meanLatencyUs"`
	Hits          map[string]int `json:"hits"`
}

// Summary tallies the records per family.
func (r *Recorder) Summary() ReplaySummary {
	recs := r.Records()
	s := ReplaySummary{Accesses: len(recs), Hits: make(map[string]int)}
	var total int64
	for _, rec := range recs {
		total += rec.LatencyUs
		if rec.Status != "ok" {
			s.Errors++
			continue
		}
		for family, rep := range rec.Results {
			if rep.Result.Hit {
				s.Hits[family]++
			}
		}
	}
	if len(recs) > 0 {
		s.MeanLatencyUs = float64(total) / float64(len(recs))
	}
	return s
}
