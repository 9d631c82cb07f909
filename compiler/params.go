package compiler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mohitkumar/dagforge/model"
	"github.com/oliveagle/jsonpath"
)

var tokenPattern = regexp.MustCompile("{(.*?)}")

func paramScope(wf *model.Workflow, t *model.Task) map[string]any {
	return map[string]any{
		"workflow": map[string]any{
			"id":          wf.Id,
			"name":        wf.Name,
			"description": wf.Description,
			"schedule":    wf.Schedule,
		},
		"task": map[string]any{
			"name": t.Name,
		},
	}
}

// resolveParams replaces {$.path} tokens inside string values with the value
// found at that path in scope. Other values are copied as they are.
func resolveParams(scope map[string]any, params map[string]any) (map[string]any, error) {
	output := make(map[string]any, len(params))
	for k, v := range params {
		resolved, err := resolveValue(scope, v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		output[k] = resolved
	}
	return output, nil
}

func resolveValue(scope map[string]any, v any) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		return resolveParams(scope, val)
	case []any:
		out := make([]any, 0, len(val))
		for _, item := range val {
			resolved, err := resolveValue(scope, item)
			if err != nil {
				return nil, err
			}
			out = append(out, resolved)
		}
		return out, nil
	case string:
		return resolveString(scope, val)
	default:
		return v, nil
	}
}

func resolveString(scope map[string]any, s string) (string, error) {
	tokens := tokenPattern.FindAllString(s, -1)
	for _, token := range tokens {
		path := strings.TrimSuffix(strings.TrimPrefix(token, "{"), "}")
		if !strings.HasPrefix(path, "$") {
			continue
		}
		value, err := jsonpath.JsonPathLookup(scope, path)
		if err != nil {
			return "", fmt.Errorf("cannot resolve %s: %w", token, err)
		}
		s = strings.ReplaceAll(s, token, fmt.Sprintf("%v", value))
	}
	return s, nil
}
