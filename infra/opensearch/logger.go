package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mstgnz/goesewa/provider"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

// ErrLoggingDisabled is returned by searches when OpenSearch logging is off
var ErrLoggingDisabled = errors.New("logging is disabled")

// ExchangeLog is the document stored for every gateway exchange
type ExchangeLog struct {
	Timestamp  time.Time      `json:"timestamp"`
	Flow       string         `json:"flow"`
	Operation  string         `json:"operation"`
	Method     string         `json:"method"`
	URL        string         `json:"url"`
	RequestID  string         `json:"request_id,omitempty"`
	StatusCode int            `json:"status_code,omitempty"`
	DurationMs int64          `json:"duration_ms"`
	Request    map[string]any `json:"request,omitempty"`
	Response   map[string]any `json:"response,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// NewExchangeLog converts an exchange into its stored form. Payloads are
// sanitized again so callers that build an Exchange by hand stay safe.
func NewExchangeLog(ex provider.Exchange) ExchangeLog {
	timestamp := ex.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}
	return ExchangeLog{
		Timestamp:  timestamp,
		Flow:       string(ex.Flow),
		Operation:  ex.Operation,
		Method:     ex.Method,
		URL:        ex.URL,
		RequestID:  ex.RequestID,
		StatusCode: ex.StatusCode,
		DurationMs: ex.Duration.Milliseconds(),
		Request:    provider.SanitizeForLog(ex.Request),
		Response:   provider.SanitizeForLog(ex.Response),
		Error:      ex.Error,
	}
}

// Logger ships exchanges and system events to OpenSearch
type Logger struct {
	client *Client
}

var _ provider.ExchangeRecorder = (*Logger)(nil)

// NewLogger creates a new OpenSearch logger
func NewLogger(client *Client) *Logger {
	return &Logger{
		client: client,
	}
}

// RecordExchange indexes ex into the exchange index of its flow
func (l *Logger) RecordExchange(ctx context.Context, ex provider.Exchange) error {
	if !l.client.IsEnabled() {
		return nil
	}
	if ex.Flow == "" {
		return fmt.Errorf("exchange has no flow")
	}
	return l.index(ctx, l.client.GetLogIndexName(ex.Flow), NewExchangeLog(ex))
}

// LogSystemEvent indexes a structured system log entry
func (l *Logger) LogSystemEvent(ctx context.Context, entry any) error {
	if !l.client.IsEnabled() {
		return nil
	}
	return l.index(ctx, systemIndexName, entry)
}

func (l *Logger) index(ctx context.Context, indexName string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal log: %w", err)
	}

	req := opensearchapi.IndexRequest{
		Index: indexName,
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, l.client.GetClient())
	if err != nil {
		return fmt.Errorf("failed to index log: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("opensearch index error: %s", res.String())
	}
	return nil
}

// PurgeOlderThan deletes exchange and system documents older than days and
// returns how many were removed
func (l *Logger) PurgeOlderThan(ctx context.Context, days int) (int, error) {
	if !l.client.IsEnabled() {
		return 0, ErrLoggingDisabled
	}
	if days <= 0 {
		return 0, fmt.Errorf("retention must be at least one day, got %d", days)
	}

	query := map[string]any{
		"query": map[string]any{
			"range": map[string]any{
				"timestamp": map[string]any{"lt": fmt.Sprintf("now-%dd", days)},
			},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal query: %w", err)
	}

	req := opensearchapi.DeleteByQueryRequest{
		Index: []string{
			l.client.GetLogIndexName(provider.FlowEpay),
			l.client.GetLogIndexName(provider.FlowTokenPay),
			systemIndexName,
		},
		Body:      bytes.NewReader(body),
		Conflicts: "proceed",
	}
	res, err := req.Do(ctx, l.client.GetClient())
	if err != nil {
		return 0, fmt.Errorf("delete by query failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, fmt.Errorf("opensearch delete error: %s", res.String())
	}

	var result struct {
		Deleted int `json:"deleted"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("failed to decode delete response: %w", err)
	}
	return result.Deleted, nil
}

// SearchExchanges runs query against the exchange index of flow, newest first
func (l *Logger) SearchExchanges(ctx context.Context, flow provider.Flow, query map[string]any, size int) ([]ExchangeLog, error) {
	if !l.client.IsEnabled() {
		return nil, ErrLoggingDisabled
	}
	if size <= 0 || size > 100 {
		size = 100
	}

	searchQuery := map[string]any{
		"query": query,
		"sort": []map[string]any{
			{"timestamp": map[string]string{"order": "desc"}},
		},
		"size": size,
	}
	queryJSON, err := json.Marshal(searchQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	req := opensearchapi.SearchRequest{
		Index: []string{l.client.GetLogIndexName(flow)},
		Body:  bytes.NewReader(queryJSON),
	}
	res, err := req.Do(ctx, l.client.GetClient())
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("opensearch search error: %s", res.String())
	}

	var result struct {
		Hits struct {
			Hits []struct {
				Source ExchangeLog `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode search results: %w", err)
	}

	logs := make([]ExchangeLog, len(result.Hits.Hits))
	for i, hit := range result.Hits.Hits {
		logs[i] = hit.Source
	}
	return logs, nil
}

// GetTransactionLogs returns every exchange of one transaction uuid or TokenPay request id
func (l *Logger) GetTransactionLogs(ctx context.Context, flow provider.Flow, requestID string) ([]ExchangeLog, error) {
	query := map[string]any{
		"term": map[string]any{
			"request_id": requestID,
		},
	}
	return l.SearchExchanges(ctx, flow, query, 100)
}

// GetRecentErrors returns failed exchanges of the last hours
func (l *Logger) GetRecentErrors(ctx context.Context, flow provider.Flow, hours int) ([]ExchangeLog, error) {
	query := map[string]any{
		"bool": map[string]any{
			"must": []map[string]any{
				{"range": map[string]any{"timestamp": map[string]any{"gte": fmt.Sprintf("now-%dh", hours)}}},
				{"exists": map[string]any{"field": "error"}},
			},
		},
	}
	return l.SearchExchanges(ctx, flow, query, 100)
}
