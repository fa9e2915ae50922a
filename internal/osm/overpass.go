package osm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/paulmach/orb"

	"github.com/cityhex/cityhex/internal/cache"
)

type overpassPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type overpassMember struct {
	Type     string          `json:"type"`
	Ref      int64           `json:"ref"`
	Role     string          `json:"role"`
	Geometry []overpassPoint `json:"geometry"`
}

type overpassElement struct {
	Type    string            `json:"type"`
	ID      int64             `json:"id"`
	Tags    map[string]string `json:"tags"`
	Members []overpassMember  `json:"members"`
}

type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

// Relation is an administrative boundary relation with its assembled
// geometry in GeoJSON (lon, lat) order.
type Relation struct {
	ID       int64
	Tags     map[string]string
	Geometry orb.Geometry
}

func (r Relation) Name() string       { return r.Tags["name"] }
func (r Relation) AdminLevel() string { return r.Tags["admin_level"] }

// AdminQuery builds the Overpass QL query for administrative relations whose
// name matches name. A non-empty country scopes the search to that country's
// area.
func AdminQuery(name, country string, timeout int) string {
	if timeout <= 0 {
		timeout = 60
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[out:json][timeout:%d];\n", timeout)
	if country != "" {
		fmt.Fprintf(&b, "area[\"name\"=\"%s\"][\"boundary\"=\"administrative\"][\"admin_level\"=\"2\"]->.scope;\n", quoteQL(country))
		fmt.Fprintf(&b, "relation[\"boundary\"=\"administrative\"][\"name\"~\"%s\"](area.scope);\n", quoteQL(regexp.QuoteMeta(name)))
	} else {
		fmt.Fprintf(&b, "relation[\"boundary\"=\"administrative\"][\"name\"~\"%s\"];\n", quoteQL(regexp.QuoteMeta(name)))
	}
	b.WriteString("out geom;")
	return b.String()
}

func quoteQL(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

// AdminBoundaries returns every matching relation that has usable geometry.
func (c *Client) AdminBoundaries(ctx context.Context, name, country string) ([]Relation, error) {
	endpoint := c.OverpassURL
	if endpoint == "" {
		endpoint = DefaultOverpassURL
	}
	query := AdminQuery(name, country, c.OverpassTimeout)

	body, err := c.fetch(ctx, "overpass", cache.Key("overpass", endpoint+"\n"+query),
		c.postForm(endpoint, url.Values{"data": {query}}))
	if err != nil {
		return nil, err
	}

	var resp overpassResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed decoding overpass response: %w", err)
	}

	var out []Relation
	for _, el := range resp.Elements {
		if el.Type != "relation" {
			continue
		}
		g, err := el.geometry()
		if err != nil {
			c.Log.Debug().Int64("relation", el.ID).Err(err).Msg("skipping relation")
			continue
		}
		out = append(out, Relation{ID: el.ID, Tags: el.Tags, Geometry: g})
	}
	return out, nil
}

func (el overpassElement) geometry() (orb.Geometry, error) {
	var outer, inner []orb.LineString
	for _, m := range el.Members {
		if m.Type != "way" || len(m.Geometry) < 2 {
			continue
		}
		ls := make(orb.LineString, len(m.Geometry))
		for i, p := range m.Geometry {
			ls[i] = orb.Point{p.Lon, p.Lat}
		}
		switch m.Role {
		case "inner":
			inner = append(inner, ls)
		case "outer", "":
			outer = append(outer, ls)
		}
	}
	return Assemble(outer, inner)
}
