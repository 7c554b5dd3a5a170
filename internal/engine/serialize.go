package engine

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bnema/adblock-dashboard/internal/models"
)

// Format selects the serialization of an engine
type Format string

const (
	// FormatDat is a gzip compressed gob snapshot that Deserialize can load back
	FormatDat Format = "dat"
	// FormatJSON is a WebKit content blocker rule list
	FormatJSON Format = "json"
)

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatDat, "":
		return FormatDat, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown export format %q (want dat or json)", s)
}

// Filename is the default download name for the format
func (f Format) Filename() string {
	if f == FormatJSON {
		return "content-blocker.json"
	}
	return "rs-ABPFilterParserData.dat"
}

const snapshotVersion = 2

type snapshot struct {
	Version   int
	Filters   []string
	Metadata  models.ListMetadata
	Resources []models.Resource
}

// Serialize encodes the engine in the given format
func (e *Engine) Serialize(format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		rules := e.contentBlocking
		if rules == nil {
			rules = []models.WebKitRule{}
		}
		return json.MarshalIndent(rules, "", "  ")
	case FormatDat:
		snap := snapshot{Version: snapshotVersion, Metadata: e.metadata, Resources: e.resources}
		for _, f := range e.filters {
			snap.Filters = append(snap.Filters, f.Raw)
		}

		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if err := gob.NewEncoder(zw).Encode(snap); err != nil {
			return nil, fmt.Errorf("encode engine: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("compress engine: %w", err)
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("unknown export format %q", format)
}

// Deserialize loads an engine written with FormatDat
func Deserialize(data []byte, maxRules int) (*Engine, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decompress engine: %w", err)
	}
	defer zr.Close()

	var snap snapshot
	if err := gob.NewDecoder(zr).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode engine: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported engine snapshot version %d", snap.Version)
	}

	set, err := NewFilterSet(strings.Join(snap.Filters, "\n"))
	if err != nil {
		return nil, err
	}
	e, err := FromFilterSet(set, maxRules)
	if err != nil {
		return nil, err
	}
	e.metadata = snap.Metadata
	e.UseResources(snap.Resources)
	return e, nil
}
