package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// expandEnv resolves environment references in an agentnet config file
// before viper sees it, so secrets and per-host values stay out of the file:
//
//	embedding:
//	  apiKey: ${OPENAI_API_KEY}
//	toolServer:
//	  baseURL: ${AGENTNET_TOOL_SERVER:-https://server.smithery.ai}
//	  headers:
//	    X-Team: ${AGENTNET_TEAM}
//	ranking:
//	  kChunks: ${AGENTNET_K_CHUNKS:-20}
//
// Only values are expanded; mapping keys such as header names are left as
// written. An unquoted reference that expands to a number or bool is retyped
// so kChunks decodes as an int. Unset references without a fallback expand
// to "" and are reported as "NAME (key.path)" for the loader to warn about.
func expandEnv(raw []byte) (string, []string, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return "", nil, fmt.Errorf("parse config: %w", err)
	}

	missing := make(map[string]struct{})
	walk(&root, "", missing)

	expanded, err := yaml.Marshal(&root)
	if err != nil {
		return "", nil, fmt.Errorf("encode expanded config: %w", err)
	}
	return string(expanded), sortedKeys(missing), nil
}

// walk expands scalars under node; path is the dotted config key of node.
func walk(node *yaml.Node, path string, missing map[string]struct{}) {
	switch node.Kind {
	case yaml.DocumentNode:
		for _, child := range node.Content {
			walk(child, path, missing)
		}
	case yaml.SequenceNode:
		for i, child := range node.Content {
			walk(child, fmt.Sprintf("%s[%d]", path, i), missing)
		}
	case yaml.MappingNode:
		for i := 1; i < len(node.Content); i += 2 {
			walk(node.Content[i], joinKey(path, node.Content[i-1].Value), missing)
		}
	case yaml.AliasNode:
		if node.Alias != nil {
			walk(node.Alias, path, missing)
		}
	case yaml.ScalarNode:
		substituteScalar(node, path, missing)
	}
}

func joinKey(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func substituteScalar(node *yaml.Node, path string, missing map[string]struct{}) {
	if node.Tag != "" && node.Tag != "!!str" {
		return
	}
	if !strings.Contains(node.Value, "$") {
		return
	}

	value := os.Expand(node.Value, func(ref string) string {
		val, ok := lookupRef(ref)
		if !ok {
			missing[fmt.Sprintf("%s (%s)", ref, path)] = struct{}{}
		}
		return val
	})
	if value == node.Value {
		return
	}

	// quoted scalars stay strings
	if node.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle) != 0 {
		node.Tag = "!!str"
		node.Value = value
		return
	}
	node.Tag, node.Value = retag(value)
}

// lookupRef resolves NAME or NAME:-fallback. An empty variable counts as
// unset only when a fallback is given.
func lookupRef(ref string) (string, bool) {
	name, fallback, hasFallback := strings.Cut(ref, ":-")
	if val, ok := os.LookupEnv(name); ok && (val != "" || !hasFallback) {
		return val, true
	}
	if hasFallback {
		return fallback, true
	}
	return "", false
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// retag re-types an unquoted scalar after substitution so "${PORT}" decodes
// as an int when PORT holds digits.
func retag(value string) (string, string) {
	if strings.TrimSpace(value) == "" {
		return "!!str", value
	}

	var parsed any
	if err := yaml.Unmarshal([]byte(value), &parsed); err != nil {
		return "!!str", value
	}

	switch v := parsed.(type) {
	case nil:
		return "!!null", "null"
	case bool:
		return "!!bool", strconv.FormatBool(v)
	case int:
		return "!!int", strconv.Itoa(v)
	case float64:
		return "!!float", strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return "!!str", value
	}
}
