package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/xhad/qafilter/internal/models"
	"github.com/xhad/qafilter/internal/types"
	"github.com/xhad/qafilter/pkg/dataset"
	"golang.org/x/time/rate"
)

// maxPageSize is the largest page the datasets-server rows endpoint serves.
const maxPageSize = 100

type HubConfig struct {
	Endpoint   string
	Dataset    string
	Config     string
	Split      string
	Token      string
	PageSize   int
	MaxRows    int     // 0 loads the whole split
	RateLimit  float64 // requests per second
	Timeout    time.Duration
	OnProgress func(loaded, total int)
}

// HubLoader pages through a dataset split using the Hugging Face
// datasets-server rows API.
type HubLoader struct {
	config  HubConfig
	client  *http.Client
	limiter *rate.Limiter
	baseURL *url.URL
}

type rowsResponse struct {
	Features []struct {
		FeatureIdx int    `json:"feature_idx"`
		Name       string `json:"name"`
	} `json:"features"`
	Rows []struct {
		RowIdx int            `json:"row_idx"`
		Row    map[string]any `json:"row"`
	} `json:"rows"`
	NumRowsTotal int `json:"num_rows_total"`
}

func NewHubWithConfig(config HubConfig) (*HubLoader, error) {
	if config.Endpoint == "" {
		config.Endpoint = "https://datasets-server.huggingface.co"
	}
	if config.Split == "" {
		config.Split = "train"
	}
	if config.Config == "" {
		config.Config = "default"
	}
	if config.PageSize <= 0 || config.PageSize > maxPageSize {
		config.PageSize = maxPageSize
	}
	if config.RateLimit == 0 {
		config.RateLimit = 5
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Dataset == "" {
		return nil, fmt.Errorf("dataset name is required")
	}

	baseURL, err := url.Parse(config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()

	return &HubLoader{
		config: config,
		client: &http.Client{
			Timeout:   config.Timeout,
			Transport: gzhttp.Transport(transport),
		},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		baseURL: baseURL,
	}, nil
}

// Load fetches every page of the split. Any failed request aborts the load.
func (l *HubLoader) Load(ctx context.Context) (types.Dataset, error) {
	var (
		columns []string
		records []models.Record
		total   = -1
	)

	for offset := 0; total < 0 || offset < total; {
		length := l.config.PageSize
		if l.config.MaxRows > 0 && offset+length > l.config.MaxRows {
			length = l.config.MaxRows - offset
		}
		if length <= 0 {
			break
		}

		if err := l.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		page, err := l.fetchPage(ctx, offset, length)
		if err != nil {
			return nil, err
		}

		if total < 0 {
			for _, f := range page.Features {
				columns = append(columns, f.Name)
			}
			total = page.NumRowsTotal
			if l.config.MaxRows > 0 && l.config.MaxRows < total {
				total = l.config.MaxRows
			}
			records = make([]models.Record, 0, total)
		}

		for _, row := range page.Rows {
			records = append(records, models.Record(row.Row))
		}
		offset += len(page.Rows)

		if l.config.OnProgress != nil {
			l.config.OnProgress(len(records), total)
		}

		if len(page.Rows) == 0 {
			break
		}
	}

	return dataset.New(columns, records), nil
}

func (l *HubLoader) fetchPage(ctx context.Context, offset, length int) (*rowsResponse, error) {
	u := l.baseURL.JoinPath("rows")
	q := u.Query()
	q.Set("dataset", l.config.Dataset)
	q.Set("config", l.config.Config)
	q.Set("split", l.config.Split)
	q.Set("offset", strconv.Itoa(offset))
	q.Set("length", strconv.Itoa(length))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if l.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+l.config.Token)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("received status code %d for offset %d: %s", resp.StatusCode, offset, body)
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()

	var page rowsResponse
	if err := dec.Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode rows page at offset %d: %w", offset, err)
	}
	return &page, nil
}
