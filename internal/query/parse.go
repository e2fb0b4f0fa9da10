package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/chartgenie/chartgenie/pkg/models"
)

// replySchema is the shape a reasoning reply must have: a text answer or
// a chart type with a config object.
const replySchema = `{
  "type": "object",
  "required": ["type"],
  "anyOf": [
    {
      "properties": {
        "type": {"enum": ["text"]},
        "answer": {"type": "string", "minLength": 1}
      },
      "required": ["answer"]
    },
    {
      "properties": {
        "type": {"enum": ["viz"]},
        "chartType": {"enum": ["bar", "line", "scatter", "treemap", "heatmap", "gantt", "map"]},
        "config": {"type": "object"}
      },
      "required": ["chartType", "config"]
    }
  ]
}`

var (
	replyLoader = gojsonschema.NewStringLoader(replySchema)

	fencePattern  = regexp.MustCompile("(?i)```(?:json)?\\s*")
	objectPattern = regexp.MustCompile(`\{[\s\S]*"type"[\s\S]*\}`)

	// Display keys reasoning models tend to emit, mapped to config keys.
	configAliases = map[string]string{
		"xAxisLabel": "x_label",
		"yAxisLabel": "y_label",
		"xLabel":     "x_label",
		"yLabel":     "y_label",
		"mapType":    "map_type",
	}
)

// reply is a validated reasoning answer.
type reply struct {
	Type      models.ResultType `json:"type"`
	Answer    string            `json:"answer"`
	ChartType models.ChartType  `json:"chartType"`
	Config    json.RawMessage   `json:"config"`
}

// parseReply extracts a reply from raw model output. It tries the text
// as-is, then with code fences removed, then the outermost object that
// mentions "type".
func parseReply(content string) (*reply, error) {
	raw := strings.TrimSpace(content)
	cleaned := strings.TrimSpace(fencePattern.ReplaceAllString(raw, ""))
	candidates := []string{raw, cleaned}
	if m := objectPattern.FindString(cleaned); m != "" {
		candidates = append(candidates, m)
	}

	var lastErr error
	for _, c := range candidates {
		r, err := decodeReply(c)
		if err == nil {
			return r, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("unparseable reasoning reply: %w", lastErr)
}

func decodeReply(text string) (*reply, error) {
	if !json.Valid([]byte(text)) {
		return nil, errors.New("not a JSON document")
	}
	result, err := gojsonschema.Validate(replyLoader, gojsonschema.NewStringLoader(text))
	if err != nil {
		return nil, fmt.Errorf("validate reply: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("reply does not match schema: %s", strings.Join(msgs, "; "))
	}
	var r reply
	if err := json.Unmarshal([]byte(text), &r); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	return &r, nil
}

// chartConfig decodes the reply's config and checks every column
// binding against the schema.
func (r *reply) chartConfig(s models.Schema) (models.ChartConfig, error) {
	raw, err := normalizeConfig(r.Config)
	if err != nil {
		return nil, err
	}
	cfg, err := models.DecodeChartConfig(r.ChartType, raw)
	if err != nil {
		return nil, err
	}
	if missing := models.UnknownColumns(cfg, s); len(missing) > 0 {
		return nil, fmt.Errorf("reply references unknown columns: %s", strings.Join(missing, ", "))
	}
	return cfg, nil
}

func normalizeConfig(raw json.RawMessage) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	for from, to := range configAliases {
		v, ok := fields[from]
		if !ok {
			continue
		}
		delete(fields, from)
		if _, taken := fields[to]; !taken {
			fields[to] = v
		}
	}
	return json.Marshal(fields)
}
