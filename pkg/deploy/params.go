package deploy

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Parameters are module parameters keyed by module id then parameter name,
// the shape of an Ignition parameters file.
type Parameters map[string]map[string]string

// LoadParameters reads an Ignition style JSON parameters file. Non-string
// values are kept in their JSON text form.
func LoadParameters(path string) (Parameters, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading parameters %s: %w", path, err)
	}

	var raw map[string]map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("error decoding parameters %s: %w", path, err)
	}

	p := make(Parameters, len(raw))
	for module, vals := range raw {
		p[module] = make(map[string]string, len(vals))
		for k, v := range vals {
			var s string
			if err := json.Unmarshal(v, &s); err == nil {
				p[module][k] = s
				continue
			}
			p[module][k] = strings.TrimSpace(string(v))
		}
	}
	return p, nil
}

// ParseParams parses name=value pairs as given on the command line.
func ParseParams(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected name=value", kv)
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}

// Set merges vals into the parameters of module, overriding existing ones.
func (p Parameters) Set(module string, vals map[string]string) Parameters {
	if p == nil {
		p = make(Parameters)
	}
	if len(vals) == 0 {
		return p
	}
	if p[module] == nil {
		p[module] = make(map[string]string, len(vals))
	}
	for k, v := range vals {
		p[module][k] = v
	}
	return p
}

// Get returns the named parameter of module.
func (p Parameters) Get(module, name string) (string, bool) {
	if p == nil {
		return "", false
	}
	v, ok := p[module][name]
	return v, ok
}
