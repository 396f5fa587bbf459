package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/hostkb/internal/apperr"
)

const (
	earthRadiusKm = 6371.0088
	milesPerKm    = 0.621371
)

// Distance computes great-circle distances, optionally starting from a
// property's stored coordinates.
type Distance struct {
	props PropertyFinder
}

// NewDistance creates the distance tool. props may be nil, in which case
// only explicit coordinates are accepted.
func NewDistance(props PropertyFinder) *Distance {
	return &Distance{props: props}
}

var distanceTool = mcp.NewTool("distance",
	mcp.WithDescription("Compute the straight-line distance between a property (or a coordinate pair) and a destination."),
	mcp.WithNumber("from_property_id", mcp.Description("Start from this property's location")),
	mcp.WithNumber("from_lat", mcp.Description("Start latitude, when no property is given")),
	mcp.WithNumber("from_lon", mcp.Description("Start longitude, when no property is given")),
	mcp.WithNumber("to_lat", mcp.Required(), mcp.Description("Destination latitude")),
	mcp.WithNumber("to_lon", mcp.Required(), mcp.Description("Destination longitude")),
	mcp.WithString("unit", mcp.Description("Distance unit (default km)"), mcp.Enum("km", "mi")),
)

func (d *Distance) Definition() mcp.Tool { return distanceTool }

type distanceArgs struct {
	FromPropertyID *wholeNumber `json:"from_property_id"`
	FromLat        *float64     `json:"from_lat"`
	FromLon        *float64     `json:"from_lon"`
	ToLat          *float64     `json:"to_lat"`
	ToLon          *float64     `json:"to_lon"`
	Unit           string       `json:"unit"`
}

func (d *Distance) Invoke(ctx context.Context, raw json.RawMessage) (string, error) {
	var args distanceArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	if args.ToLat == nil || args.ToLon == nil {
		return "", apperr.Validation("to_lat", "to_lat and to_lon are required")
	}
	if err := checkCoordinate(*args.ToLat, *args.ToLon); err != nil {
		return "", err
	}
	switch args.Unit {
	case "":
		args.Unit = "km"
	case "km", "mi":
	default:
		return "", apperr.Validation("unit", "must be km or mi")
	}

	from, label, err := d.origin(ctx, args)
	if err != nil {
		return "", err
	}

	dist := Haversine(from[0], from[1], *args.ToLat, *args.ToLon)
	if args.Unit == "mi" {
		dist *= milesPerKm
	}
	return fmt.Sprintf("Distance from %s to (%.5f, %.5f): %.2f %s", label, *args.ToLat, *args.ToLon, dist, args.Unit), nil
}

// origin resolves the start point: explicit coordinates, an explicit
// property, or the property in scope.
func (d *Distance) origin(ctx context.Context, args distanceArgs) ([2]float64, string, error) {
	if args.FromLat != nil || args.FromLon != nil {
		if args.FromLat == nil || args.FromLon == nil {
			return [2]float64{}, "", apperr.Validation("from_lat", "from_lat and from_lon must be given together")
		}
		if err := checkCoordinate(*args.FromLat, *args.FromLon); err != nil {
			return [2]float64{}, "", err
		}
		return [2]float64{*args.FromLat, *args.FromLon}, fmt.Sprintf("(%.5f, %.5f)", *args.FromLat, *args.FromLon), nil
	}

	id := ScopeFrom(ctx).PropertyID
	if args.FromPropertyID != nil {
		v := int64(*args.FromPropertyID)
		id = &v
	}
	if id == nil {
		return [2]float64{}, "", apperr.Validation("from_property_id", "a start property or coordinates are required")
	}
	if d.props == nil {
		return [2]float64{}, "", apperr.Validation("from_property_id", "property directory is not available")
	}
	prop, err := findOwned(ctx, d.props, *id)
	if err != nil {
		return [2]float64{}, "", err
	}
	if !prop.HasLocation() {
		return [2]float64{}, "", fmt.Errorf("property %d has no coordinates", prop.ID)
	}
	return [2]float64{*prop.Latitude, *prop.Longitude}, prop.Name, nil
}

func checkCoordinate(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return apperr.Validation("latitude", "must be between -90 and 90")
	}
	if lon < -180 || lon > 180 {
		return apperr.Validation("longitude", "must be between -180 and 180")
	}
	return nil
}

// Haversine returns the great-circle distance in kilometres.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}
