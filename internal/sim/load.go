package sim

import (
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/mini-rodalies-3d/railsim/internal/chance"
	"github.com/mini-rodalies-3d/railsim/internal/control"
	"github.com/mini-rodalies-3d/railsim/internal/network"
	"github.com/mini-rodalies-3d/railsim/internal/train"
	"github.com/mini-rodalies-3d/railsim/internal/transit"
)

// LoadAgencies reads one network layout per path and builds an agency for
// each. Every agency draws from its own random source derived from seed so
// that systems running in parallel stay reproducible.
func LoadAgencies(paths []string, seed uint64, opts control.Options) ([]*control.Agency, error) {
	var agencies []*control.Agency
	for _, path := range paths {
		n, layout, err := network.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		o := opts
		o.Rand = chance.New(seed + uint64(n.System()))
		a, err := AgencyFromLayout(n, layout, o)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		agencies = append(agencies, a)
	}
	return agencies, nil
}

// AgencyFromLayout creates the layout's trains and an agency running every
// line served by a station of the network
func AgencyFromLayout(n *network.Network, layout *network.Layout, opts control.Options) (*control.Agency, error) {
	trains := make([]*train.Train, 0, len(layout.Trains))
	for _, tl := range layout.Trains {
		line, err := transit.ParseLine(n.System(), tl.Line)
		if err != nil {
			return nil, fmt.Errorf("train %d: %w", tl.ID, err)
		}
		service := transit.Local
		if tl.Service != "" {
			if service, err = transit.ParseServiceType(tl.Service); err != nil {
				return nil, fmt.Errorf("train %d: %w", tl.ID, err)
			}
		}
		trains = append(trains, train.New(n, tl.ID, line, service, tl.Headsign, tl.Direction))
	}

	lines := lo.Uniq(lo.FlatMap(n.Stations(), func(st *network.Station, _ int) []transit.TrainLine { return st.Lines() }))
	slices.SortFunc(lines, func(a, b transit.TrainLine) int { return strings.Compare(a.Key(), b.Key()) })
	return control.New(n, lines, trains, opts), nil
}
