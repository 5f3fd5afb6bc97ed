package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// SearchParams are the arguments of tg_search.
type SearchParams struct {
	Pattern      string `json:"pattern"`
	Path         string `json:"path,omitempty"`
	IgnoreCase   bool   `json:"ignore_case,omitempty"`
	FixedStrings bool   `json:"fixed_strings,omitempty"`
	Invert       bool   `json:"invert,omitempty"`
	WordRegexp   bool   `json:"word_regexp,omitempty"`
	MaxCount     int    `json:"max_count,omitempty"`
	Context      int    `json:"context,omitempty"`
	Glob         string `json:"glob,omitempty"`
	TypeFilter   string `json:"type_filter,omitempty"`
	Count        bool   `json:"count,omitempty"`
}

// ASTSearchParams are the arguments of tg_ast_search.
type ASTSearchParams struct {
	Pattern string `json:"pattern"`
	Lang    string `json:"lang"`
	Path    string `json:"path,omitempty"`
}

// ClassifyParams are the arguments of tg_classify_logs.
type ClassifyParams struct {
	FilePath string `json:"file_path"`
}

// decodeParams unmarshals raw into dst and returns a warning for every key
// dst does not declare. Unknown keys are ignored rather than rejected.
func decodeParams(raw json.RawMessage, dst interface{}) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	known := jsonFieldNames(dst)

	var warnings []string
	for key := range fields {
		if _, ok := known[key]; !ok {
			warnings = append(warnings, fmt.Sprintf("unknown parameter %q ignored", key))
		}
	}
	sort.Strings(warnings)
	return warnings, nil
}

func jsonFieldNames(v interface{}) map[string]struct{} {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	names := make(map[string]struct{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		name, _, _ := strings.Cut(tag, ",")
		if name != "" && name != "-" {
			names[name] = struct{}{}
		}
	}
	return names
}

func (p *SearchParams) validate() error {
	if p.Pattern == "" {
		return errors.New("pattern is required")
	}
	if p.MaxCount < 0 {
		return fmt.Errorf("max_count must be >= 0, got %d", p.MaxCount)
	}
	if p.Context < 0 {
		return fmt.Errorf("context must be >= 0, got %d", p.Context)
	}
	if p.Path == "" {
		p.Path = DefaultSearchPath
	}
	return nil
}

func (p *ASTSearchParams) validate() error {
	if p.Pattern == "" {
		return errors.New("pattern is required")
	}
	if strings.TrimSpace(p.Lang) == "" {
		return errors.New("lang is required")
	}
	if p.Path == "" {
		p.Path = DefaultSearchPath
	}
	return nil
}

func (p *ClassifyParams) validate() error {
	if p.FilePath == "" {
		return errors.New("file_path is required")
	}
	return nil
}
