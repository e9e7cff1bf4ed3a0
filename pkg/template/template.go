// Package template resolves {{path.to.value}} placeholders in node
// configuration against the outputs accumulated during a graph walk.
package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Reserved scope aliases alongside node ids.
const (
	TriggerAlias   = "trigger" // Originating trigger payload
	VariablesAlias = "vars"    // Workflow variables
)

// ErrUnresolvedPath is returned in strict mode when a placeholder path does
// not resolve against the scope.
var ErrUnresolvedPath = errors.New("unresolved template path")

var placeholderPattern = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// Resolver substitutes placeholders in config values. A config string that is
// exactly one placeholder resolves to the referenced value's native type;
// placeholders embedded in larger strings are stringified in place. By default
// unresolvable paths become empty strings so a missing upstream field does not
// fail the step; Strict turns them into errors instead.
type Resolver struct {
	Strict bool
}

func NewResolver() *Resolver {
	return &Resolver{}
}

// ResolveConfig returns a copy of config with every string value resolved
// against the scope. Non-string values pass through unchanged apart from
// recursion into nested maps and slices.
func (r *Resolver) ResolveConfig(config map[string]any, scope map[string]any) (map[string]any, error) {
	if config == nil {
		return nil, nil
	}

	resolved := make(map[string]any, len(config))

	for key, value := range config {
		out, err := r.resolveValue(value, scope)
		if err != nil {
			return nil, fmt.Errorf("config key %q: %w", key, err)
		}

		resolved[key] = out
	}

	return resolved, nil
}

func (r *Resolver) resolveValue(value any, scope map[string]any) (any, error) {
	switch v := value.(type) {
	case string:
		return r.resolveString(v, scope)
	case map[string]any:
		return r.ResolveConfig(v, scope)
	case []any:
		out := make([]any, len(v))

		for i, item := range v {
			resolved, err := r.resolveValue(item, scope)
			if err != nil {
				return nil, err
			}

			out[i] = resolved
		}

		return out, nil
	default:
		return value, nil
	}
}

func (r *Resolver) resolveString(s string, scope map[string]any) (any, error) {
	// A string that is exactly one placeholder keeps the native type of the
	// resolved value instead of stringifying it.
	if match := placeholderPattern.FindStringSubmatch(s); match != nil && match[0] == s {
		value, found := Lookup(scope, match[1])
		if !found {
			if r.Strict {
				return nil, fmt.Errorf("%w: %s", ErrUnresolvedPath, match[1])
			}

			return "", nil
		}

		return value, nil
	}

	var unresolved error

	result := placeholderPattern.ReplaceAllStringFunc(s, func(placeholder string) string {
		path := placeholderPattern.FindStringSubmatch(placeholder)[1]

		value, found := Lookup(scope, path)
		if !found {
			if r.Strict && unresolved == nil {
				unresolved = fmt.Errorf("%w: %s", ErrUnresolvedPath, path)
			}

			return ""
		}

		return Stringify(value)
	})

	if unresolved != nil {
		return nil, unresolved
	}

	return result, nil
}

// Lookup navigates a dotted path through nested maps and slices. Numeric
// segments index into slices.
func Lookup(scope map[string]any, path string) (any, bool) {
	segments := strings.Split(path, ".")

	var current any = scope

	for _, segment := range segments {
		switch node := current.(type) {
		case map[string]any:
			value, ok := node[segment]
			if !ok {
				return nil, false
			}

			current = value
		case []any:
			index, err := strconv.Atoi(segment)
			if err != nil || index < 0 || index >= len(node) {
				return nil, false
			}

			current = node[index]
		default:
			return nil, false
		}
	}

	return current, true
}

// Stringify renders a resolved value for interpolation inside a larger
// string. Maps and slices render as JSON.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}

		return string(encoded)
	}
}
