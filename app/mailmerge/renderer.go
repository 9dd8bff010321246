package mailmerge

import (
	"regexp"
	"sort"

	"github.com/matbaogit/WFAHub-sub000/models"
)

// placeholder matches {{ key }} or {key}. Keys cannot contain braces or newlines.
var placeholder = regexp.MustCompile(`\{\{\s*([^{}\n]+?)\s*\}\}|\{([^{}\n]+)\}`)

// Render substitutes placeholders in template with values from data.
// data is keyed by canonical name and placeholder keys are canonicalized
// before lookup. A placeholder whose key has no value stays in the output
// exactly as written.
func Render(template string, data map[string]string) string {
	if template == "" {
		return template
	}
	return placeholder.ReplaceAllStringFunc(template, func(match string) string {
		key := Canonicalize(placeholderKey(match))
		if key == "" {
			return match
		}
		if v, ok := data[key]; ok {
			return v
		}
		return match
	})
}

// Variables lists the canonical keys referenced by templates in order of first use
func Variables(templates ...string) []string {
	seen := map[string]bool{}
	var keys []string
	for _, tpl := range templates {
		for _, m := range placeholder.FindAllStringSubmatch(tpl, -1) {
			raw := m[1]
			if raw == "" {
				raw = m[2]
			}
			key := Canonicalize(raw)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			keys = append(keys, key)
		}
	}
	return keys
}

// UnknownVariables returns the referenced keys that are not in available
func UnknownVariables(available []string, templates ...string) []string {
	known := make(map[string]bool, len(available)+2)
	known[FieldEmail] = true
	known[FieldName] = true
	for _, k := range available {
		known[k] = true
	}

	var unknown []string
	for _, k := range Variables(templates...) {
		if !known[k] {
			unknown = append(unknown, k)
		}
	}
	return unknown
}

// MergeData builds the substitution map of one recipient: its custom data
// overlaid with the email address and, when present, the display name.
func MergeData(custom models.CustomData, email string, name *string) map[string]string {
	data := custom.Map()
	data[FieldEmail] = email
	if name != nil {
		data[FieldName] = *name
	}
	return data
}

func placeholderKey(match string) string {
	m := placeholder.FindStringSubmatch(match)
	if m == nil {
		return ""
	}
	if m[1] != "" {
		return m[1]
	}
	return m[2]
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
