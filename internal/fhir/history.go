package fhir

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"consentsync/pkg/platform/sentinel"
)

const (
	resourceType = "Consent"
	markerParam  = "_changeIdMarker"
	countParam   = "_count"
)

// Entry is one consent change observed in the history feed.
type Entry struct {
	ResourceID   string
	Version      string
	Method       string
	LastModified string
}

// HistoryPage is one page of the history feed. NextCursor is the marker for
// the following page, present even when Entries is empty.
type HistoryPage struct {
	NextCursor int64
	Entries    []Entry
}

type bundle struct {
	Link []struct {
		Relation string `json:"relation"`
		URL      string `json:"url"`
	} `json:"link"`
	Entry []bundleEntry `json:"entry"`
}

type bundleEntry struct {
	FullURL string `json:"fullUrl"`
	Request struct {
		Method string `json:"method"`
	} `json:"request"`
	Response struct {
		Location     string `json:"location"`
		LastModified string `json:"lastModified"`
	} `json:"response"`
}

// ParseHistory decodes a history bundle. A missing or non-numeric next marker
// and any consent entry without a usable id or version fail the whole page.
func ParseHistory(body []byte) (HistoryPage, error) {
	var b bundle
	if err := json.Unmarshal(body, &b); err != nil {
		return HistoryPage{}, fmt.Errorf("%w: history bundle: %v", sentinel.ErrMalformed, err)
	}
	if len(b.Link) == 0 {
		return HistoryPage{}, fmt.Errorf("%w: history bundle has no pagination link", sentinel.ErrMalformed)
	}
	next, err := parseMarker(b.Link[0].URL)
	if err != nil {
		return HistoryPage{}, err
	}

	page := HistoryPage{NextCursor: next}
	for i, e := range b.Entry {
		if !isConsent(e.FullURL) {
			continue
		}
		entry, err := parseEntry(e)
		if err != nil {
			return HistoryPage{}, fmt.Errorf("entry %d: %w", i, err)
		}
		page.Entries = append(page.Entries, entry)
	}
	return page, nil
}

func parseMarker(link string) (int64, error) {
	u, err := url.Parse(link)
	if err != nil {
		return 0, fmt.Errorf("%w: pagination link %q: %v", sentinel.ErrMalformed, link, err)
	}
	raw := u.Query().Get(markerParam)
	if raw == "" {
		return 0, fmt.Errorf("%w: pagination link has no %s", sentinel.ErrMalformed, markerParam)
	}
	marker, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not numeric", sentinel.ErrMalformed, markerParam, raw)
	}
	return marker, nil
}

func isConsent(fullURL string) bool {
	_, ok := segmentAfter(fullURL, resourceType)
	return ok
}

// parseEntry reads the id from "…/Consent/<id>" and the version from
// "…/Consent/<id>/_history/<version>".
func parseEntry(e bundleEntry) (Entry, error) {
	id, ok := segmentAfter(e.FullURL, resourceType)
	if !ok || id == "" {
		return Entry{}, fmt.Errorf("%w: no resource id in fullUrl %q", sentinel.ErrMalformed, e.FullURL)
	}
	version, ok := segmentAfter(e.Response.Location, "_history")
	if !ok || version == "" {
		return Entry{}, fmt.Errorf("%w: no version in location %q", sentinel.ErrMalformed, e.Response.Location)
	}
	if n, err := strconv.Atoi(version); err != nil || n < 1 {
		return Entry{}, fmt.Errorf("%w: version %q of %s is not a positive integer", sentinel.ErrMalformed, version, id)
	}
	return Entry{
		ResourceID:   id,
		Version:      version,
		Method:       strings.ToUpper(e.Request.Method),
		LastModified: e.Response.LastModified,
	}, nil
}

// segmentAfter returns the path segment following marker. ok is false when
// marker is not a segment of ref.
func segmentAfter(ref, marker string) (string, bool) {
	if u, err := url.Parse(ref); err == nil && u.Path != "" {
		ref = u.Path
	}
	parts := strings.Split(ref, "/")
	for i, p := range parts {
		if p != marker {
			continue
		}
		if i+1 < len(parts) {
			return parts[i+1], true
		}
		return "", true
	}
	return "", false
}
