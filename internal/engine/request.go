package engine

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/bnema/adblock-dashboard/internal/models"
	"github.com/bnema/adblock-dashboard/internal/parser"
	"golang.org/x/net/publicsuffix"
)

// RequestError is returned when a network query cannot be turned into a Request
type RequestError struct {
	Field  string // url or source_url
	Reason string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Request is a network request checked against the engine
type Request struct {
	URL            string
	Hostname       string
	SourceHostname string
	Type           string // request type as typed by the user
	ResourceType   string // WebKit resource type it maps to
	ThirdParty     bool
}

// NewRequest validates and normalizes a request. The source URL may be empty;
// an empty or unknown request type is treated as "other".
func NewRequest(rawURL, sourceURL, requestType string) (Request, error) {
	host, err := hostname(rawURL)
	if err != nil {
		return Request{}, &RequestError{Field: "url", Reason: err.Error()}
	}

	var sourceHost string
	if strings.TrimSpace(sourceURL) != "" {
		sourceHost, err = hostname(sourceURL)
		if err != nil {
			return Request{}, &RequestError{Field: "source_url", Reason: err.Error()}
		}
	}

	typ := strings.ToLower(strings.TrimSpace(requestType))
	if typ == "" {
		typ = "other"
	}
	rt := parser.MapResourceType(typ)
	if rt == "" {
		rt = models.ResourceRaw
	}

	return Request{
		URL:            strings.TrimSpace(rawURL),
		Hostname:       host,
		SourceHostname: sourceHost,
		Type:           typ,
		ResourceType:   rt,
		ThirdParty:     sourceHost != "" && registrableDomain(host) != registrableDomain(sourceHost),
	}, nil
}

func hostname(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme == "" {
		return "", fmt.Errorf("missing scheme in %q", raw)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("hostname parsing failed for %q", raw)
	}
	return host, nil
}

// registrableDomain returns eTLD+1, falling back to the host itself for
// IPs, localhost and bare suffixes
func registrableDomain(host string) string {
	d, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return d
}

// matchesDomain reports whether host is domain or one of its subdomains
func matchesDomain(host, domain string) bool {
	domain = strings.ToLower(strings.TrimPrefix(domain, "*"))
	domain = strings.TrimPrefix(domain, ".")
	if host == "" || domain == "" {
		return false
	}
	return host == domain || strings.HasSuffix(host, "."+domain)
}
