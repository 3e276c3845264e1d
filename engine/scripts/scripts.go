// Package scripts embeds the JavaScript operations evaluated inside the
// editor page. Every operation file holds a single function expression;
// Build prepends the shared utilities and applies the function to its
// JSON-encoded arguments, yielding one self-contained expression whose
// completion value is {success, ...} or {success: false, error: {code,
// message}}.
package scripts

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
)

//go:embed ops/*.js utils/*.js
var files embed.FS

var utilFiles = []string{
	"utils/common.js",
	"utils/blocks.js",
}

func utils() (string, error) {
	var sb strings.Builder
	for _, name := range utilFiles {
		data, err := files.ReadFile(name)
		if err != nil {
			return "", fmt.Errorf("missing script utility %s: %w", name, err)
		}
		sb.Write(data)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// Build assembles the complete expression for an operation. Args are
// JSON-encoded and passed positionally to the operation function.
func Build(name string, args ...any) (string, error) {
	op, err := files.ReadFile("ops/" + name + ".js")
	if err != nil {
		return "", fmt.Errorf("unknown script operation %q: %w", name, err)
	}
	shared, err := utils()
	if err != nil {
		return "", err
	}

	encoded := make([]string, 0, len(args))
	for _, arg := range args {
		data, err := json.Marshal(arg)
		if err != nil {
			return "", fmt.Errorf("failed to encode script arg for %q: %w", name, err)
		}
		encoded = append(encoded, string(data))
	}

	return fmt.Sprintf("%s\n(%s)(%s)", shared, strings.TrimSpace(string(op)), strings.Join(encoded, ", ")), nil
}
