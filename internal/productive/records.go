package productive

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/studiometa/productive-tools-sub004/internal/cache"
)

const (
	searchPageSize = 20
	listPageSize   = 200
	// maxListPages stops a runaway sync.
	maxListPages = 500
)

type resource struct {
	ID            string                     `json:"id"`
	Type          string                     `json:"type"`
	Attributes    map[string]any             `json:"attributes"`
	Relationships map[string]json.RawMessage `json:"relationships"`
}

type document struct {
	Data []resource `json:"data"`
	Meta struct {
		TotalPages int `json:"total_pages"`
	} `json:"meta"`
}

// ownerFilter is the filter used to scope a search to one parent.
func ownerFilter(kind cache.Kind) string {
	switch kind {
	case cache.KindProject:
		return "filter[company_id]"
	case cache.KindService, cache.KindTask:
		return "filter[project_id]"
	}
	return ""
}

// Search returns records of kind matching query, optionally under ownerID.
func (c *Client) Search(ctx context.Context, kind cache.Kind, query, ownerID string) ([]cache.Record, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", cache.ErrUnknownKind, kind)
	}
	params := map[string]string{
		"filter[query]": strings.TrimSpace(query),
		"page[size]":    strconv.Itoa(searchPageSize),
	}
	if f := ownerFilter(kind); f != "" && ownerID != "" {
		params[f] = ownerID
	}

	doc, err := c.fetchDocument(ctx, kind.Endpoint(), params)
	if err != nil {
		return nil, err
	}
	return toRecords(kind, doc.Data), nil
}

// List pages through every record of kind.
func (c *Client) List(ctx context.Context, kind cache.Kind) ([]cache.Record, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", cache.ErrUnknownKind, kind)
	}

	var out []cache.Record
	for page := 1; page <= maxListPages; page++ {
		doc, err := c.fetchDocument(ctx, kind.Endpoint(), map[string]string{
			"page[number]": strconv.Itoa(page),
			"page[size]":   strconv.Itoa(listPageSize),
		})
		if err != nil {
			return nil, fmt.Errorf("list %s page %d: %w", kind, page, err)
		}
		out = append(out, toRecords(kind, doc.Data)...)
		if page >= doc.Meta.TotalPages || len(doc.Data) == 0 {
			break
		}
	}
	c.logger.Debug("listed records", zap.String("kind", kind.String()), zap.Int("records", len(out)))
	return out, nil
}

func (c *Client) fetchDocument(ctx context.Context, endpoint string, params map[string]string) (document, error) {
	raw, err := c.Fetch(ctx, endpoint, params)
	if err != nil {
		return document{}, err
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return document{}, fmt.Errorf("failed to parse %s response: %w", endpoint, err)
	}
	return doc, nil
}

func toRecords(kind cache.Kind, data []resource) []cache.Record {
	out := make([]cache.Record, 0, len(data))
	for _, res := range data {
		if res.ID == "" {
			continue
		}
		out = append(out, toRecord(kind, res))
	}
	return out
}

// toRecord maps one JSON:API resource to the cached shape of its kind.
func toRecord(kind cache.Kind, res resource) cache.Record {
	r := cache.Record{ID: res.ID, Kind: kind}
	switch kind {
	case cache.KindProject:
		r.Label = attr(res, "name")
		r.SearchFields = nonEmpty(attr(res, "project_number"))
		r.OwnerID = relationID(res, "company")
	case cache.KindPerson:
		r.Label = strings.TrimSpace(attr(res, "first_name") + " " + attr(res, "last_name"))
		r.SearchFields = nonEmpty(attr(res, "email"))
	case cache.KindService:
		r.Label = attr(res, "name")
		r.OwnerID = relationID(res, "project")
		if r.OwnerID == "" {
			r.OwnerID = relationID(res, "deal")
		}
	case cache.KindCompany:
		r.Label = attr(res, "name")
		r.SearchFields = nonEmpty(attr(res, "company_code"))
	case cache.KindTask:
		r.Label = attr(res, "title")
		r.OwnerID = relationID(res, "project")
	}
	return r
}

func attr(res resource, name string) string {
	switch v := res.Attributes[name].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func relationID(res resource, name string) string {
	raw, ok := res.Relationships[name]
	if !ok {
		return ""
	}
	var rel struct {
		Data *struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &rel); err != nil || rel.Data == nil {
		return ""
	}
	return rel.Data.ID
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
