package nodes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/flowdeck/flowdeck/pkg/models"
	"github.com/flowdeck/flowdeck/pkg/template"
)

const defaultAPITimeout = 30 * time.Second

// APIHandler performs an outbound HTTP call. The URL and body are rendered
// through the template engine so they can reference upstream outputs.
type APIHandler struct {
	client *http.Client
}

func NewAPIHandler() *APIHandler {
	return &APIHandler{client: &http.Client{Timeout: defaultAPITimeout}}
}

func (h *APIHandler) Type() models.NodeType {
	return models.NodeTypeAPI
}

func (h *APIHandler) ResultKey() string {
	return "apiResult"
}

func (h *APIHandler) Execute(ctx context.Context, _ *models.Workflow, node *models.WorkflowNode, execCtx *models.ExecutionContext) (*models.NodeExecutionResult, error) {
	started := time.Now()

	rawURL := configString(node.Config, "url")
	if rawURL == "" {
		return nil, errors.New("api node requires a 'url'")
	}

	rendered, err := template.RenderWithContext(rawURL, execCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to render url: %w", err)
	}

	url, ok := rendered.(string)
	if !ok {
		return nil, fmt.Errorf("rendered url is not a string: %v", rendered)
	}

	method := strings.ToUpper(configString(node.Config, "method"))
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader

	if body := configString(node.Config, "body"); body != "" {
		renderedBody, err := template.RenderWithContext(body, execCtx)
		if err != nil {
			return nil, fmt.Errorf("failed to render body: %w", err)
		}

		switch b := renderedBody.(type) {
		case string:
			bodyReader = strings.NewReader(b)
		default:
			data, err := json.Marshal(b)
			if err != nil {
				return nil, fmt.Errorf("failed to encode body: %w", err)
			}

			bodyReader = strings.NewReader(string(data))
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}

	if headers, ok := node.Config["headers"].(map[string]any); ok {
		for key, value := range headers {
			if str, ok := value.(string); ok {
				req.Header.Set(key, str)
			}
		}
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	output := map[string]any{
		"status_code": resp.StatusCode,
		"url":         url,
		"method":      method,
	}

	var jsonBody any
	if err := json.Unmarshal(data, &jsonBody); err == nil {
		output["body"] = jsonBody
	} else {
		output["body"] = string(data)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("api call returned status %d", resp.StatusCode)
	}

	return successResult(node.ID, started, output), nil
}
