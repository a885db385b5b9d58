package warehouse

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"github.com/thatamjad/cf-ai-amjad/pkg/adapter"
	"github.com/thatamjad/cf-ai-amjad/pkg/tool"
	"github.com/urfave/cli/v3"
)

const (
	defaultResultRows = 100
	maxResultRows     = 1000
)

// service holds the query client and in-memory results shared by the
// warehouse tools
type service struct {
	project     string
	scanLimitMB int64

	bq adapter.BigQuery

	mu      sync.Mutex
	results map[string][]map[string]any
}

func (s *service) init(ctx context.Context, client *tool.Client) (bool, error) {
	if s.bq != nil {
		return true, nil
	}

	if client.BigQuery != nil {
		s.bq = client.BigQuery
		return true, nil
	}

	// The warehouse tools are optional and stay disabled without a project
	if s.project == "" {
		return false, nil
	}

	bq, err := adapter.NewBigQuery(ctx, s.project)
	if err != nil {
		return false, goerr.Wrap(err, "failed to create BigQuery client")
	}
	s.bq = bq
	return true, nil
}

func (s *service) store(jobID string, rows []map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[jobID] = rows
}

func (s *service) load(jobID string) ([]map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.results[jobID]
	return rows, ok
}

// New returns the warehouse tools backed by a shared query client
func New() []tool.Tool {
	svc := &service{
		scanLimitMB: 1024,
		results:     make(map[string][]map[string]any),
	}
	return []tool.Tool{
		&queryTool{svc: svc},
		&resultTool{svc: svc},
	}
}

type queryTool struct {
	svc *service
}

func (t *queryTool) Spec() *tool.Spec {
	return &tool.Spec{
		Name: "warehouse_query",
		Description: fmt.Sprintf(
			"Execute an analytics SQL query with automatic dry-run validation. The query is rejected if it would scan more than %d MB. Results are stored under the returned job_id for later retrieval with warehouse_results.",
			t.svc.scanLimitMB,
		),
		Parameters: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"query": {
					Type:        "string",
					Description: "SQL query to execute",
				},
			},
			Required: []string{"query"},
		},
		RateLimit: &tool.RateLimit{MaxCalls: 10, Window: time.Minute},
		Timeout:   2 * time.Minute,
	}
}

func (t *queryTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	query, _ := args["query"].(string)

	bytesProcessed, err := t.svc.bq.DryRun(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(err, "query validation failed")
	}

	scanLimitBytes := t.svc.scanLimitMB * 1024 * 1024
	if bytesProcessed > scanLimitBytes {
		return nil, goerr.New(
			fmt.Sprintf(
				"query would scan %.2f MB, which exceeds the limit of %d MB. Refine the query to reduce data scanned (e.g., add date filters, limit columns, or use partitioned tables)",
				float64(bytesProcessed)/1024/1024,
				t.svc.scanLimitMB,
			),
		)
	}

	jobID, err := t.svc.bq.Query(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(err, "query execution failed")
	}

	rows, err := t.svc.bq.GetQueryResult(ctx, jobID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to retrieve query results", goerr.V("job_id", jobID))
	}

	t.svc.store(jobID, rows)

	return map[string]any{
		"job_id":        jobID,
		"rows_returned": len(rows),
	}, nil
}

func (t *queryTool) Init(ctx context.Context, client *tool.Client) (bool, error) {
	return t.svc.init(ctx, client)
}

func (t *queryTool) Prompt(ctx context.Context) string {
	return "### Analytics Queries\n\nUse `warehouse_query` to run SQL against the analytics warehouse, then page through large results with `warehouse_results`."
}

func (t *queryTool) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "warehouse-project",
			Usage:       "Google Cloud project ID for analytics queries",
			Sources:     cli.EnvVars("AGENT_WAREHOUSE_PROJECT"),
			Destination: &t.svc.project,
		},
		&cli.IntFlag{
			Name:        "warehouse-scan-limit-mb",
			Usage:       "Maximum scan size in MB allowed by dry-run validation",
			Value:       1024,
			Sources:     cli.EnvVars("AGENT_WAREHOUSE_SCAN_LIMIT_MB"),
			Destination: &t.svc.scanLimitMB,
		},
	}
}

type resultTool struct {
	svc *service
}

func (t *resultTool) Spec() *tool.Spec {
	return &tool.Spec{
		Name:        "warehouse_results",
		Description: "Get rows from a previously executed warehouse query with pagination support",
		Parameters: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"job_id": {
					Type:        "string",
					Description: "Job ID returned from warehouse_query",
				},
				"limit": {
					Type:        "integer",
					Description: fmt.Sprintf("Maximum number of rows to return (default: %d, max: %d)", defaultResultRows, maxResultRows),
					Minimum:     floatPtr(1),
					Maximum:     floatPtr(maxResultRows),
				},
				"offset": {
					Type:        "integer",
					Description: "Number of rows to skip for pagination (default: 0)",
					Minimum:     floatPtr(0),
				},
			},
			Required: []string{"job_id"},
		},
	}
}

func (t *resultTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	jobID, _ := args["job_id"].(string)

	rows, ok := t.svc.load(jobID)
	if !ok {
		return nil, goerr.New("unknown job ID", goerr.V("job_id", jobID))
	}

	limit := int(intArg(args, "limit", defaultResultRows))
	offset := int(intArg(args, "offset", 0))

	if offset >= len(rows) {
		return map[string]any{
			"rows":       []map[string]any{},
			"total_rows": len(rows),
			"offset":     offset,
		}, nil
	}

	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}

	return map[string]any{
		"rows":       rows[offset:end],
		"total_rows": len(rows),
		"offset":     offset,
	}, nil
}

func (t *resultTool) Init(ctx context.Context, client *tool.Client) (bool, error) {
	return t.svc.init(ctx, client)
}

func (t *resultTool) Prompt(ctx context.Context) string { return "" }

func (t *resultTool) Flags() []cli.Flag { return nil }

func floatPtr(v float64) *float64 { return &v }

func intArg(args map[string]any, name string, fallback int64) int64 {
	switch v := args[name].(type) {
	case float64:
		return int64(v)
	case int:
		return int64(v)
	case int64:
		return v
	default:
		return fallback
	}
}
