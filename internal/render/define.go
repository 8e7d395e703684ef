// internal/render/define.go
package render

import (
	"encoding/json"
	"sort"
	"strings"
)

// ReplaceDefine substitutes every define key found in doc with its value.
// Values holding a JSON string literal are unquoted first, so a define of
// `"production"` inserts production. Longer keys are replaced first so a key
// never clobbers a longer key it is a prefix of.
func ReplaceDefine(doc string, define map[string]string) string {
	if len(define) == 0 {
		return doc
	}
	keys := make([]string, 0, len(define))
	for k := range define {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	pairs := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		pairs = append(pairs, k, defineValue(define[k]))
	}
	return strings.NewReplacer(pairs...).Replace(doc)
}

func defineValue(v string) string {
	var s string
	if strings.HasPrefix(v, `"`) && json.Unmarshal([]byte(v), &s) == nil {
		return s
	}
	return v
}
