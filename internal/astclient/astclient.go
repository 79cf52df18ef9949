// Package astclient wraps the remote AST-extraction gRPC service behind
// a circuit breaker and converts its responses into ontology entities,
// grounded on ast_grpc_client.py and ast_result_consumer.py. The actual
// AST parser (per-language source analysis) is an out-of-scope external
// collaborator (spec.md section 1); this package owns only the
// transport, resilience, and result-shape adaptation around it.
package astclient

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/R3E-Network/graphctl/infrastructure/config"
	"github.com/R3E-Network/graphctl/infrastructure/resilience"
	"github.com/R3E-Network/graphctl/internal/ontology"
)

// FunctionInfo describes one function discovered in a source file.
type FunctionInfo struct {
	Name       string `json:"name"`
	Exported   bool   `json:"exported"`
	Parameters int    `json:"parameters"`
}

// HTTPCallInfo describes one outbound HTTP call site discovered in a
// source file.
type HTTPCallInfo struct {
	Method   string `json:"method"`
	PathHint string `json:"path_hint"`
}

// RemoteASTResult is the AST service's per-file response shape.
type RemoteASTResult struct {
	FilePath     string         `json:"file_path"`
	Language     string         `json:"language"`
	PackageName  string         `json:"package_name"`
	Functions    []FunctionInfo `json:"functions"`
	Imports      []string       `json:"imports"`
	HTTPCalls    []HTTPCallInfo `json:"http_calls"`
	ServiceHints []string       `json:"service_hints"`
	HTTPHandlers []string       `json:"http_handlers"`
	SourceType   string         `json:"source_type"`
}

// DeserializeResult parses one raw AST-service response.
func DeserializeResult(raw []byte) (RemoteASTResult, error) {
	var result RemoteASTResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return RemoteASTResult{}, fmt.Errorf("deserialize AST result: %w", err)
	}
	if result.SourceType == "" {
		result.SourceType = "source_code"
	}
	return result, nil
}

// deriveServiceID takes a file path's parent directory name as the
// service id, falling back to the file's basename without extension,
// matching ast_result_consumer.py's _derive_service_id.
func deriveServiceID(filePath string) string {
	normalized := strings.ReplaceAll(filePath, "\\", "/")
	parts := strings.Split(normalized, "/")
	if len(parts) >= 2 {
		return parts[len(parts)-2]
	}
	base := parts[len(parts)-1]
	return strings.TrimSuffix(base, path.Ext(base))
}

func detectFramework(result RemoteASTResult) string {
	for _, hint := range result.ServiceHints {
		switch hint {
		case "http-server":
			return "net/http"
		case "grpc-server":
			return "grpc"
		}
	}
	return "unknown"
}

// ExtractionResult mirrors ServiceExtractionResult: the ontology
// entities derived from one RemoteASTResult.
type ExtractionResult struct {
	Services []*ontology.ServiceNode
	Calls    []*ontology.CallsEdge
}

// ConvertToExtractionModels adapts one AST-service result into ontology
// entities for the tenant that owns it.
func ConvertToExtractionModels(result RemoteASTResult, tenantID string) ExtractionResult {
	serviceID := deriveServiceID(result.FilePath)
	isServer := len(result.ServiceHints) > 0 || len(result.HTTPHandlers) > 0

	var out ExtractionResult
	if isServer {
		name := result.PackageName
		if name == "" {
			name = serviceID
		}
		out.Services = append(out.Services, &ontology.ServiceNode{
			ID:        serviceID,
			Name:      name,
			Language:  result.Language,
			Framework: detectFramework(result),
			TenantID_: tenantID,
		})
	}

	for _, call := range result.HTTPCalls {
		target := call.PathHint
		if target == "" {
			target = "unknown"
		}
		out.Calls = append(out.Calls, &ontology.CallsEdge{
			SourceServiceID: serviceID,
			TargetServiceID: target,
			Protocol:        "http",
			TenantID_:       tenantID,
		})
	}
	return out
}

// FileRequest is one (path, content) pair sent to the AST service.
type FileRequest struct {
	Path    string
	Content string
}

// Transport is the minimal gRPC client surface Client depends on,
// matching ast_grpc_client.py's ASTTransport protocol; production code
// implements it against the generated gRPC stub
// (google.golang.org/grpc), tests implement it with a fake.
type Transport interface {
	SendBatch(ctx context.Context, requests []FileRequest) ([]RemoteASTResult, error)
}

// Config configures a Client. Timeout is set by the caller (no
// AST_GRPC_TIMEOUT env var is read); a zero value falls back to
// infrastructure/config's ASTClient default.
type Config struct {
	Endpoint string
	Timeout  time.Duration
}

// Client wraps Transport with a circuit breaker so a degraded AST
// service fails fast rather than hanging or cascading failures; the
// ingestion pipeline then dead-letters the batch and reports the run as
// degraded instead of parsing it locally.
type Client struct {
	cfg       Config
	transport Transport
	breaker   *resilience.CircuitBreaker
}

// NewClient builds a Client. A nil transport is valid at construction
// time (e.g. before the gRPC connection is dialed) but ExtractBatch
// returns an error if invoked before one is set.
func NewClient(cfg Config, transport Transport, breaker *resilience.CircuitBreaker) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = config.GetDefaultTimeouts().ASTClient
	}
	return &Client{cfg: cfg, transport: transport, breaker: breaker}
}

// IsAvailable reports whether the client has an endpoint configured and
// its circuit breaker is not open.
func (c *Client) IsAvailable() bool {
	return c.cfg.Endpoint != "" && c.breaker.State() != resilience.StateOpen
}

// ExtractBatch sends files to the remote AST service and deserializes
// each response, short-circuiting via the breaker when the service is
// degraded.
func (c *Client) ExtractBatch(ctx context.Context, files []FileRequest) ([]RemoteASTResult, error) {
	if len(files) == 0 {
		return nil, nil
	}
	if c.transport == nil {
		return nil, fmt.Errorf("no transport configured for gRPC endpoint %s", c.cfg.Endpoint)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var results []RemoteASTResult
	err := c.breaker.Execute(callCtx, func() error {
		r, err := c.transport.SendBatch(callCtx, files)
		if err != nil {
			return err
		}
		results = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
