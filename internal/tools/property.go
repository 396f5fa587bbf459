package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/hostkb/internal/apperr"
	"github.com/ziadkadry99/hostkb/internal/properties"
)

// PropertyFinder reads the property directory; *properties.Store satisfies it.
type PropertyFinder interface {
	Get(ctx context.Context, id int64) (*properties.Property, error)
}

// PropertyLookup returns the directory entry of a property.
type PropertyLookup struct {
	props PropertyFinder
}

// NewPropertyLookup creates the property_lookup tool.
func NewPropertyLookup(props PropertyFinder) *PropertyLookup {
	return &PropertyLookup{props: props}
}

var propertyLookupTool = mcp.NewTool("property_lookup",
	mcp.WithDescription("Get the details of a property: address, capacity, nightly rate, check-in and check-out times."),
	mcp.WithNumber("property_id",
		mcp.Required(),
		mcp.Description("Numeric id of the property"),
	),
)

func (p *PropertyLookup) Definition() mcp.Tool { return propertyLookupTool }

type propertyLookupArgs struct {
	PropertyID wholeNumber `json:"property_id"`
}

func (p *PropertyLookup) Invoke(ctx context.Context, raw json.RawMessage) (string, error) {
	var args propertyLookupArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	if args.PropertyID <= 0 {
		return "", apperr.Validation("property_id", "is required")
	}

	prop, err := findOwned(ctx, p.props, int64(args.PropertyID))
	if err != nil {
		return "", err
	}
	return formatProperty(prop), nil
}

// findOwned loads a property and hides it when it belongs to another owner
// than the one in scope.
func findOwned(ctx context.Context, props PropertyFinder, id int64) (*properties.Property, error) {
	prop, err := props.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if owner := ScopeFrom(ctx).OwnerID; owner != "" && prop.OwnerID != owner {
		return nil, apperr.NotFound("property", id)
	}
	return prop, nil
}

func formatProperty(p *properties.Property) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Property %d: %s\n", p.ID, p.Name)
	if addr := strings.TrimSpace(strings.Join(nonEmpty(p.Address, p.City), ", ")); addr != "" {
		fmt.Fprintf(&sb, "Address: %s\n", addr)
	}
	if p.HasLocation() {
		fmt.Fprintf(&sb, "Coordinates: %.5f, %.5f\n", *p.Latitude, *p.Longitude)
	}
	if p.Bedrooms > 0 {
		fmt.Fprintf(&sb, "Bedrooms: %d\n", p.Bedrooms)
	}
	if p.MaxGuests > 0 {
		fmt.Fprintf(&sb, "Max guests: %d\n", p.MaxGuests)
	}
	if p.NightlyRate > 0 {
		fmt.Fprintf(&sb, "Nightly rate: %.2f %s\n", p.NightlyRate, p.Currency)
	}
	if p.CheckIn != "" {
		fmt.Fprintf(&sb, "Check-in: %s\n", p.CheckIn)
	}
	if p.CheckOut != "" {
		fmt.Fprintf(&sb, "Check-out: %s\n", p.CheckOut)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func nonEmpty(ss ...string) []string {
	var out []string
	for _, s := range ss {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
