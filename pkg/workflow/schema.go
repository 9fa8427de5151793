package workflow

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/flowdeck/flowdeck/pkg/models"
)

// configSchemas pins the required configuration shape per node type. Types
// absent from the map accept any configuration.
var configSchemas = map[models.NodeType]string{
	models.NodeTypeAPI: `{
		"type": "object",
		"required": ["url"],
		"properties": {
			"url":     {"type": "string", "minLength": 1},
			"method":  {"type": "string", "enum": ["GET", "POST", "PUT", "PATCH", "DELETE", "HEAD"]},
			"headers": {"type": "object"},
			"body":    {"type": "string"}
		}
	}`,
	models.NodeTypeDelay: `{
		"type": "object",
		"required": ["duration_ms"],
		"properties": {
			"duration_ms": {"type": "number", "exclusiveMinimum": 0}
		}
	}`,
	models.NodeTypeLoop: `{
		"type": "object",
		"required": ["loop"],
		"properties": {
			"loop": {
				"type": "object",
				"required": ["type"],
				"properties": {
					"type":          {"type": "string", "enum": ["for-each", "while", "for", "do-while"]},
					"maxIterations": {"type": "number", "minimum": 0}
				}
			}
		}
	}`,
	models.NodeTypeTransform: `{
		"type": "object",
		"anyOf": [
			{"required": ["expression"]},
			{"required": ["mapping"]}
		],
		"properties": {
			"expression": {"type": "string", "minLength": 1},
			"mapping":    {"type": "object"}
		}
	}`,
	models.NodeTypeParallel: `{
		"type": "object",
		"required": ["tasks"],
		"properties": {
			"tasks":           {"type": "array", "minItems": 1},
			"max_concurrency": {"type": "number", "minimum": 1}
		}
	}`,
	models.NodeTypeCustom: `{
		"type": "object",
		"required": ["handler"],
		"properties": {
			"handler": {"type": "string", "minLength": 1}
		}
	}`,
	models.NodeTypePlugin: `{
		"type": "object",
		"required": ["plugin"],
		"properties": {
			"plugin": {"type": "string", "minLength": 1}
		}
	}`,
}

var compiledSchemas = func() map[models.NodeType]*gojsonschema.Schema {
	compiled := make(map[models.NodeType]*gojsonschema.Schema, len(configSchemas))

	for nodeType, raw := range configSchemas {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
		if err != nil {
			panic(fmt.Sprintf("invalid config schema for node type %s: %v", nodeType, err))
		}

		compiled[nodeType] = schema
	}

	return compiled
}()

func (v *Validator) validateNodeConfig(node *models.WorkflowNode, result *models.ValidationResult) {
	schema, ok := compiledSchemas[node.Type]
	if !ok {
		return
	}

	config := node.Config
	if config == nil {
		config = map[string]any{}
	}

	report, err := schema.Validate(gojsonschema.NewGoLoader(config))
	if err != nil {
		result.AddError(models.ValidationErrorConfiguration,
			fmt.Sprintf("node %q config could not be validated: %v", node.ID, err), node.ID, "config")

		return
	}

	for _, violation := range report.Errors() {
		result.AddError(models.ValidationErrorConfiguration,
			fmt.Sprintf("node %q config: %s", node.ID, violation.String()), node.ID, violation.Field())
	}
}
