// Package fetch downloads call transcripts from the call platform API.
package fetch

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// Config holds connection settings for the call platform.
type Config struct {
	BaseURL   string
	AuthToken string
	Cookie    string
	OutputDir string
	Delay     time.Duration
}

// Stats summarizes a fetch run.
type Stats struct {
	Fetched int
	Skipped int
	Failed  int
}

// Client fetches chat histories by call ID and writes them out as plain-text
// transcripts, one file per call.
type Client struct {
	httpClient *http.Client
	cfg        Config
}

// NewClient creates a transcript fetch client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "transcripts"
	}
	if cfg.Delay == 0 {
		cfg.Delay = 500 * time.Millisecond
	}

	if err := os.MkdirAll(cfg.OutputDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// FetchAll downloads transcripts for every call ID in the CSV file. Calls
// whose transcript file already exists are skipped, so re-running after an
// interruption only fetches what is missing. Individual fetch failures are
// logged and counted, not fatal.
func (c *Client) FetchAll(ctx context.Context, csvPath string) (Stats, error) {
	callIDs, err := readCallIDs(csvPath)
	if err != nil {
		return Stats{}, err
	}

	slog.Info("Fetching transcripts", "call_count", len(callIDs), "output_dir", c.cfg.OutputDir)

	var stats Stats
	for i, callID := range callIDs {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		path := filepath.Join(c.cfg.OutputDir, callID+".txt")
		if _, err := os.Stat(path); err == nil {
			slog.Debug("Transcript already exists, skipping", "call_id", callID)
			stats.Skipped++
			continue
		}

		transcript, err := c.fetchTranscript(ctx, callID)
		if err != nil {
			slog.Warn("Failed to fetch transcript", "call_id", callID, "error", err)
			stats.Failed++
			continue
		}

		if err := writeFileAtomic(path, []byte(transcript)); err != nil {
			slog.Warn("Failed to save transcript", "call_id", callID, "error", err)
			stats.Failed++
			continue
		}

		stats.Fetched++
		slog.Info("Saved transcript",
			"call_id", callID,
			"progress", fmt.Sprintf("%d/%d", i+1, len(callIDs)))

		// Pace requests so we don't hammer the platform.
		if i < len(callIDs)-1 {
			select {
			case <-ctx.Done():
				return stats, ctx.Err()
			case <-time.After(c.cfg.Delay):
			}
		}
	}

	return stats, nil
}

// fetchTranscript retrieves and formats the chat history for one call.
func (c *Client) fetchTranscript(ctx context.Context, callID string) (string, error) {
	endpoint := fmt.Sprintf("%s/api/v1/history/chat?chatId=%s", c.cfg.BaseURL, url.QueryEscape(callID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.AuthToken)
	} else if c.cfg.Cookie != "" {
		req.Header.Set("Cookie", c.cfg.Cookie)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d for call %s", resp.StatusCode, callID)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var payload struct {
		Chat *chatHistory `json:"chat"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if payload.Chat == nil || len(payload.Chat.Messages) == 0 {
		return "", fmt.Errorf("no chat data for call %s", callID)
	}

	return formatTranscript(payload.Chat, callID), nil
}

// readCallIDs extracts the callId column from the CSV export.
func readCallIDs(csvPath string) ([]string, error) {
	f, err := os.Open(csvPath) // #nosec G304 -- user-supplied input file
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	idColumn := -1
	for i, name := range header {
		if name == "callId" {
			idColumn = i
			break
		}
	}
	if idColumn < 0 {
		return nil, fmt.Errorf("CSV file has no callId column")
	}

	var callIDs []string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		if idColumn < len(record) && record[idColumn] != "" {
			callIDs = append(callIDs, record[idColumn])
		}
	}

	return callIDs, nil
}

// writeFileAtomic writes via a temp file and rename so an interrupted fetch
// never leaves a truncated transcript that a later run would skip.
func writeFileAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
