package opensearch

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/mstgnz/goesewa/infra/config"
	"github.com/mstgnz/goesewa/provider"
	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

const (
	indexPrefix     = "goesewa-"
	systemIndexName = indexPrefix + "system-logs"
)

// Client wraps the OpenSearch client
type Client struct {
	client *opensearch.Client
	config *config.AppConfig
}

// NewClient creates a new OpenSearch client and makes sure the log indices exist
func NewClient(cfg *config.AppConfig) (*Client, error) {
	opensearchConfig := opensearch.Config{
		Addresses: []string{cfg.OpenSearchURL},
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: !cfg.IsProduction(),
			},
		},
		MaxRetries:    3,
		RetryOnStatus: []int{502, 503, 504, 429},
		RetryBackoff: func(i int) time.Duration {
			return time.Duration(i) * 100 * time.Millisecond
		},
	}

	if cfg.OpenSearchUser != "" && cfg.OpenSearchPass != "" {
		opensearchConfig.Username = cfg.OpenSearchUser
		opensearchConfig.Password = cfg.OpenSearchPass
	}

	client, err := opensearch.NewClient(opensearchConfig)
	if err != nil {
		return nil, err
	}

	osClient := &Client{
		client: client,
		config: cfg,
	}

	if cfg.EnableLogging {
		if err := osClient.setupIndices(context.Background()); err != nil {
			log.Printf("Warning: Failed to setup OpenSearch indices: %v", err)
		}
	}

	return osClient, nil
}

// GetClient returns the underlying OpenSearch client
func (c *Client) GetClient() *opensearch.Client {
	return c.client
}

// setupIndices creates one exchange index per flow plus the system index
func (c *Client) setupIndices(ctx context.Context) error {
	indices := []struct {
		name    string
		mapping string
	}{
		{c.GetLogIndexName(provider.FlowEpay), exchangeMapping},
		{c.GetLogIndexName(provider.FlowTokenPay), exchangeMapping},
		{systemIndexName, systemMapping},
	}

	var failed []string
	for _, idx := range indices {
		if err := c.createIndexIfNotExists(ctx, idx.name, idx.mapping); err != nil {
			log.Printf("Error preparing index %s: %v", idx.name, err)
			failed = append(failed, idx.name)
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("failed to prepare indices: %s", strings.Join(failed, ", "))
	}
	return nil
}

func (c *Client) createIndexIfNotExists(ctx context.Context, name, mapping string) error {
	exists, err := c.indexExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	req := opensearchapi.IndicesCreateRequest{
		Index: name,
		Body:  strings.NewReader(mapping),
	}
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index creation error: %s", res.String())
	}
	return nil
}

func (c *Client) indexExists(ctx context.Context, name string) (bool, error) {
	req := opensearchapi.IndicesExistsRequest{
		Index: []string{name},
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return false, err
	}
	defer res.Body.Close()

	return res.StatusCode == http.StatusOK, nil
}

// GetLogIndexName returns the exchange index of a flow
func (c *Client) GetLogIndexName(flow provider.Flow) string {
	return indexPrefix + string(flow) + "-logs"
}

// IsEnabled returns whether OpenSearch logging is enabled
func (c *Client) IsEnabled() bool {
	return c.config.EnableLogging
}

const exchangeMapping = `{
	"mappings": {
		"properties": {
			"timestamp":   {"type": "date", "format": "strict_date_optional_time||epoch_millis"},
			"flow":        {"type": "keyword"},
			"operation":   {"type": "keyword"},
			"method":      {"type": "keyword"},
			"url":         {"type": "keyword"},
			"request_id":  {"type": "keyword"},
			"status_code": {"type": "integer"},
			"duration_ms": {"type": "long"},
			"request":     {"type": "object", "enabled": false},
			"response":    {"type": "object", "enabled": false},
			"error":       {"type": "text"}
		}
	},
	"settings": {
		"number_of_shards": 1,
		"number_of_replicas": 0
	}
}`

const systemMapping = `{
	"mappings": {
		"properties": {
			"timestamp":   {"type": "date", "format": "strict_date_optional_time||epoch_millis"},
			"level":       {"type": "keyword"},
			"message":     {"type": "text"},
			"component":   {"type": "keyword"},
			"merchant":    {"type": "keyword"},
			"flow":        {"type": "keyword"},
			"request_id":  {"type": "keyword"},
			"error":       {"type": "text"},
			"environment": {"type": "keyword"},
			"service":     {"type": "keyword"}
		}
	},
	"settings": {
		"number_of_shards": 1,
		"number_of_replicas": 0
	}
}`
