package config

import (
	"github.com/goccy/go-yaml"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// PatchField overrides a single dotted JSON path (e.g. "jit.tier_threshold_n1")
// on cfg without a full unmarshal/remarshal of every field — the same
// targeted-write use case gjson/sjson serve for config-diffing tools, used
// here so a single CLI flag can override one nested option.
func PatchField(cfg Config, path string, value any) (Config, error) {
	asYAML, err := Marshal(cfg)
	if err != nil {
		return Config{}, err
	}
	asJSON, err := yaml.YAMLToJSON(asYAML)
	if err != nil {
		return Config{}, err
	}
	patched, err := sjson.SetBytes(asJSON, path, value)
	if err != nil {
		return Config{}, err
	}
	patchedYAML, err := yaml.JSONToYAML(patched)
	if err != nil {
		return Config{}, err
	}
	return Load(patchedYAML)
}

// ReadField reads a single dotted JSON path out of cfg without unmarshaling
// the whole struct, for quick introspection (e.g. a CLI "config get" command).
func ReadField(cfg Config, path string) (gjson.Result, error) {
	asYAML, err := Marshal(cfg)
	if err != nil {
		return gjson.Result{}, err
	}
	asJSON, err := yaml.YAMLToJSON(asYAML)
	if err != nil {
		return gjson.Result{}, err
	}
	return gjson.GetBytes(asJSON, path), nil
}
