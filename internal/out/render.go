package out

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ggonzalez94/btcops/internal/config"
	"github.com/ggonzalez94/btcops/internal/model"
)

// leadingKeys are printed before the remaining keys in plain output.
var leadingKeys = []string{"success", "changed"}

func Render(w io.Writer, env model.Envelope, settings config.Settings) error {
	data := normalizeValue(env.Data)
	if len(settings.SelectFields) > 0 {
		data = project(data, settings.SelectFields)
	}

	if settings.ResultsOnly {
		if settings.OutputMode == "json" {
			return encodeJSON(w, data)
		}
		return renderPlain(w, data)
	}

	if settings.OutputMode == "json" {
		env.Data = data
		return encodeJSON(w, env)
	}

	plain := map[string]any{
		"success": env.Success,
		"command": env.Meta.Command,
		"dry_run": env.Meta.DryRun,
	}
	if env.Meta.Network != "" {
		plain["network"] = env.Meta.Network
	}
	if m, ok := data.(map[string]any); ok {
		for k, v := range m {
			plain[k] = v
		}
	}
	if env.Error != nil {
		plain["error"] = env.Error.Message
		plain["error_type"] = env.Error.Type
		if env.Error.Action != "" {
			plain["action"] = env.Error.Action
		}
		for k, v := range env.Error.Inputs {
			plain["input."+k] = v
		}
	}
	return renderPlain(w, plain)
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderPlain(w io.Writer, data any) error {
	switch t := data.(type) {
	case nil:
		_, err := fmt.Fprintln(w, "null")
		return err
	case map[string]any:
		_, err := fmt.Fprintln(w, toLine(t))
		return err
	default:
		buf, err := json.Marshal(t)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(buf))
		return err
	}
}

func project(data any, fields []string) any {
	m, ok := data.(map[string]any)
	if !ok {
		return data
	}
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := m[f]; ok {
			out[f] = v
		}
	}
	return out
}

func normalizeValue(v any) any {
	buf, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(buf, &out); err != nil {
		return v
	}
	return out
}

func toLine(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		if !isLeading(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(m))
	for _, k := range leadingKeys {
		if v, ok := m[k]; ok {
			parts = append(parts, formatPair(k, v))
		}
	}
	for _, k := range keys {
		parts = append(parts, formatPair(k, m[k]))
	}
	return strings.Join(parts, " ")
}

func formatPair(k string, v any) string {
	switch t := v.(type) {
	case string:
		if t == "" || strings.ContainsAny(t, " \t\"=") {
			return fmt.Sprintf("%s=%q", k, t)
		}
		return k + "=" + t
	case map[string]any, []any:
		buf, _ := json.Marshal(t)
		return k + "=" + string(buf)
	default:
		return fmt.Sprintf("%s=%v", k, t)
	}
}

func isLeading(k string) bool {
	for _, l := range leadingKeys {
		if l == k {
			return true
		}
	}
	return false
}
