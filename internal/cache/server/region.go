package server

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/pkg/errors"

	"github.com/tbourn/chatsync/internal/domain"
)

// ErrAreaMissing reports that the world a region refers to no longer exists.
var ErrAreaMissing = errors.New("server: region area no longer exists")

// AreaResolver checks that a world referenced by a region still exists. It
// returns an error wrapping ErrAreaMissing when it does not; any other error
// aborts loading.
type AreaResolver interface {
	CheckArea(world string) error
}

// AreaFunc adapts a function to AreaResolver.
type AreaFunc func(world string) error

// CheckArea calls f.
func (f AreaFunc) CheckArea(world string) error { return f(world) }

// Region is a named axis-aligned box between two corners of one world.
type Region struct {
	Name      string       `json:"name"`
	World     string       `json:"world"`
	Primary   domain.Point `json:"primary"`
	Secondary domain.Point `json:"secondary"`
}

// Contains reports whether p lies inside the box, borders included.
func (r Region) Contains(p domain.Point) bool {
	if p.World != r.World {
		return false
	}
	in := func(v, a, b float64) bool { return v >= math.Min(a, b) && v <= math.Max(a, b) }
	return in(p.X, r.Primary.X, r.Secondary.X) &&
		in(p.Y, r.Primary.Y, r.Secondary.Y) &&
		in(p.Z, r.Primary.Z, r.Secondary.Z)
}

func decodeRegion(raw json.RawMessage, areas AreaResolver) (Region, error) {
	var r Region
	if err := json.Unmarshal(raw, &r); err != nil {
		return r, errors.Wrap(err, "decode region")
	}
	if strings.TrimSpace(r.Name) == "" || r.World == "" {
		return r, errors.Errorf("region %q: name and world are required", r.Name)
	}
	if areas != nil {
		if err := areas.CheckArea(r.World); err != nil {
			return r, errors.Wrapf(err, "region %q", r.Name)
		}
	}
	return r, nil
}
