// Package resources loads the redirect and scriptlet resources that are
// injected into the engine. Malformed input is always reported as an error
// value, never a panic.
package resources

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/adblock-dashboard/internal/models"
)

// ResourcesError reports a resources.json payload that could not be used
type ResourcesError struct {
	Index  int // -1 when the payload as a whole is invalid
	Reason string
}

func (e *ResourcesError) Error() string {
	if e.Index < 0 {
		return "invalid resources: " + e.Reason
	}
	return fmt.Sprintf("invalid resource #%d: %s", e.Index, e.Reason)
}

type rawResource struct {
	Name    string          `json:"name"`
	Aliases []string        `json:"aliases"`
	Kind    json.RawMessage `json:"kind"`
	Content string          `json:"content"`
}

// Parse decodes a resources.json array
func Parse(jsonText string) ([]models.Resource, error) {
	dec := json.NewDecoder(strings.NewReader(jsonText))
	dec.DisallowUnknownFields()

	var raw []rawResource
	if err := dec.Decode(&raw); err != nil {
		return nil, &ResourcesError{Index: -1, Reason: err.Error()}
	}
	if dec.More() {
		return nil, &ResourcesError{Index: -1, Reason: "trailing data after resource list"}
	}

	out := make([]models.Resource, 0, len(raw))
	for i, r := range raw {
		if strings.TrimSpace(r.Name) == "" {
			return nil, &ResourcesError{Index: i, Reason: "missing name"}
		}
		kind, err := parseKind(r.Kind)
		if err != nil {
			return nil, &ResourcesError{Index: i, Reason: err.Error()}
		}
		if _, err := base64.StdEncoding.DecodeString(r.Content); err != nil {
			return nil, &ResourcesError{Index: i, Reason: "content is not valid base64"}
		}
		out = append(out, models.Resource{
			Name:    r.Name,
			Aliases: r.Aliases,
			Kind:    kind,
			Content: r.Content,
		})
	}
	return out, nil
}

// parseKind accepts "template" or {"mime": "type/subtype"}
func parseKind(raw json.RawMessage) (models.ResourceKind, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return models.ResourceKind{}, errors.New("missing kind")
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s != "template" {
			return models.ResourceKind{}, fmt.Errorf("unknown kind %q", s)
		}
		return models.ResourceKind{Template: true}, nil
	}

	var m struct {
		Mime string `json:"mime"`
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return models.ResourceKind{}, fmt.Errorf("invalid kind: %w", err)
	}
	if !strings.Contains(m.Mime, "/") {
		return models.ResourceKind{}, fmt.Errorf("invalid mime type %q", m.Mime)
	}
	return models.ResourceKind{Mime: m.Mime}, nil
}
