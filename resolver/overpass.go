package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/rotblauer/catdrive/common"
	"github.com/rotblauer/catdrive/params"
	"github.com/rotblauer/catdrive/types/sample"
	"github.com/tidwall/gjson"
)

// Overpass resolves speed limits from the maxspeed tags of OpenStreetMap ways
// near a fix.
type Overpass struct {
	config *params.OverpassConfig
	client *http.Client
	logger *slog.Logger
}

func NewOverpass(config *params.OverpassConfig) *Overpass {
	if config == nil {
		config = params.DefaultOverpassConfig()
	}
	return &Overpass{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: slog.With("resolver", "overpass"),
	}
}

// Query builds the Overpass QL query for ways with a maxspeed tag
// within radius meters of c.
func (o *Overpass) Query(c sample.Coordinate, radius float64) string {
	settings := "[out:json]"
	if secs := int(o.config.Timeout.Seconds()); secs > 0 {
		settings += fmt.Sprintf("[timeout:%d]", secs)
	}
	return fmt.Sprintf("%s;way(around:%s,%s,%s)[maxspeed];out tags;",
		settings,
		strconv.FormatFloat(radius, 'f', 0, 64),
		strconv.FormatFloat(c.Lat(), 'f', 7, 64),
		strconv.FormatFloat(c.Lon(), 'f', 7, 64))
}

// Radius is the search radius for a fix of the given accuracy.
func (o *Overpass) Radius(accuracy float64) float64 {
	if !common.IsFinite(accuracy) {
		return o.config.MaxRadius
	}
	return common.Clamp(accuracy, o.config.MinRadius, o.config.MaxRadius)
}

func (o *Overpass) ResolveSpeedLimit(ctx context.Context, c sample.Coordinate, accuracy float64) (float64, bool, error) {
	query := o.Query(c, o.Radius(accuracy))
	req, err := http.NewRequest(http.MethodPost, o.config.Endpoint,
		strings.NewReader(url.Values{"data": {query}}.Encode()))
	if err != nil {
		return 0, false, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	body, err := do(ctx, o.client, req)
	if err != nil {
		return 0, false, fmt.Errorf("overpass: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return 0, false, fmt.Errorf("overpass: %w", ErrMalformedResponse)
	}
	elements := gjson.GetBytes(body, "elements")
	if !elements.IsArray() {
		return 0, false, fmt.Errorf("overpass: %w: no elements", ErrMalformedResponse)
	}
	var tags []string
	for _, v := range gjson.GetBytes(body, "elements.#.tags.maxspeed").Array() {
		tags = append(tags, v.String())
	}
	kmh, ok := pickMaxSpeed(tags)
	o.logger.Debug("Resolved speed limit", "lat", c.Lat(), "lng", c.Lon(),
		"ways", len(tags), "kmh", kmh, "ok", ok)
	return kmh, ok, nil
}

// pickMaxSpeed settles on one limit among the ways around a fix.
// The most common value wins; ties go to the lower limit.
func pickMaxSpeed(tags []string) (float64, bool) {
	counts := map[float64]int{}
	for _, tag := range tags {
		if kmh, ok := ParseMaxSpeed(tag); ok {
			counts[kmh]++
		}
	}
	if len(counts) == 0 {
		return 0, false
	}
	limits := make([]float64, 0, len(counts))
	for k := range counts {
		limits = append(limits, k)
	}
	sort.Slice(limits, func(i, j int) bool {
		if counts[limits[i]] != counts[limits[j]] {
			return counts[limits[i]] > counts[limits[j]]
		}
		return limits[i] < limits[j]
	})
	return limits[0], true
}

// zoneLimits maps implicit maxspeed zone codes to km/h.
// Zones without a general limit (DE:motorway) are absent.
var zoneLimits = map[string]float64{
	"fr:urban":        50,
	"fr:rural":        80,
	"fr:motorway":     130,
	"fr:zone30":       30,
	"de:urban":        50,
	"de:rural":        100,
	"de:zone30":       30,
	"de:bicycle_road": 30,
	"gb:nsl_single":   common.MphToKmh(60),
	"gb:nsl_dual":     common.MphToKmh(70),
	"gb:motorway":     common.MphToKmh(70),
}

var units = []struct {
	suffix string
	toKmh  func(float64) float64
}{
	{"mph", common.MphToKmh},
	{"knots", common.KnotsToKmh},
	{"km/h", func(v float64) float64 { return v }},
	{"kmh", func(v float64) float64 { return v }},
}

// ParseMaxSpeed reads an OpenStreetMap maxspeed tag value as km/h.
// It understands bare numbers, "mph" and "knots" units, and a few zone codes.
// "none", "signals" and anything it cannot read are absent.
func ParseMaxSpeed(tag string) (kmh float64, ok bool) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	// Multiple values, eg. "50;30" for lanes or conditions. The first is the general limit.
	if i := strings.IndexByte(tag, ';'); i >= 0 {
		tag = strings.TrimSpace(tag[:i])
	}
	if v, ok := zoneLimits[tag]; ok {
		return v, true
	}

	convert := func(v float64) float64 { return v }
	for _, unit := range units {
		if strings.HasSuffix(tag, unit.suffix) {
			tag = strings.TrimSpace(strings.TrimSuffix(tag, unit.suffix))
			convert = unit.toKmh
			break
		}
	}
	v, err := strconv.ParseFloat(tag, 64)
	if err != nil || !common.IsFinite(v) || v <= 0 {
		return 0, false
	}
	return convert(v), true
}
