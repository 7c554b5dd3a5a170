package models

import "fmt"

// ExpiresUnit is the unit of a list's "! Expires:" header
type ExpiresUnit string

const (
	ExpiresDays  ExpiresUnit = "days"
	ExpiresHours ExpiresUnit = "hours"
)

// Expires is the advertised update interval of a filter list
type Expires struct {
	Value int
	Unit  ExpiresUnit
}

func (e Expires) String() string {
	return fmt.Sprintf("%d %s", e.Value, e.Unit)
}

// ListMetadata holds the descriptive header fields of a filter list
type ListMetadata struct {
	Title    string
	Homepage string
	Expires  *Expires
	Redirect string
}

// IsEmpty returns true if the list declared no metadata
func (m ListMetadata) IsEmpty() bool {
	return m.Title == "" && m.Homepage == "" && m.Expires == nil && m.Redirect == ""
}

// ResourceKind describes how a resource's content is used
type ResourceKind struct {
	Template bool   // scriptlet template with {{1}}.. placeholders
	Mime     string // redirect resource content type
}

func (k ResourceKind) String() string {
	if k.Template {
		return "template"
	}
	return k.Mime
}

// Resource is a redirect or scriptlet resource loaded from resources.json
type Resource struct {
	Name    string
	Aliases []string
	Kind    ResourceKind
	Content string // base64 encoded
}
