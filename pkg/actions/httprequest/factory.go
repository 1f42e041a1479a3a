package httprequest

import (
	"context"

	"github.com/veilstream/conduit/pkg/protocol"
)

// ActionFactory creates api_call actions.
type ActionFactory struct{}

func NewActionFactory() *ActionFactory {
	return &ActionFactory{}
}

func (f *ActionFactory) Create(_ context.Context, config map[string]any) (protocol.Action, error) {
	return NewAction(config)
}

func (f *ActionFactory) ID() string {
	return "api_call"
}

func (f *ActionFactory) Name() string {
	return "API Call"
}

func (f *ActionFactory) Description() string {
	return "Performs an HTTP request to a specified URL with optional headers and body."
}

func (f *ActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "The URL to send the request to. Supports $variable substitution.",
				"examples": []string{
					"https://api.example.com/users",
					"https://api.example.com/users/$user_id",
				},
			},
			"method": map[string]any{
				"type":        "string",
				"description": "HTTP method to use",
				"default":     "GET",
				"enum":        []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS"},
			},
			"headers": map[string]any{
				"type":        "object",
				"description": "HTTP headers to include. Values support $variable substitution.",
				"additionalProperties": map[string]any{
					"type": "string",
				},
			},
			"body": map[string]any{
				"type":        "string",
				"description": "Request body content. Supports $variable substitution.",
			},
			"timeout_seconds": map[string]any{
				"type":        "integer",
				"description": "Request timeout in seconds",
				"default":     defaultTimeoutSeconds,
				"minimum":     1,
			},
		},
		"required": []string{"url"},
	}
}
