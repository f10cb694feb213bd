package geo

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// RegionStore is the subset of the store needed to persist reference geography.
type RegionStore interface {
	UpsertState(ctx context.Context, name, abbr string) (int64, error)
	UpsertCounty(ctx context.Context, stateID int64, name string) (int64, error)
}

// SeedFile is the YAML layout for reference geography.
type SeedFile struct {
	States []SeedState `yaml:"states"`
}

// SeedState is one state entry in a seed file.
type SeedState struct {
	Name         string   `yaml:"name"`
	Abbreviation string   `yaml:"abbreviation"`
	Counties     []string `yaml:"counties"`
}

// SeedResult summarizes what a seed load touched.
type SeedResult struct {
	States   int
	Counties int
}

// LoadSeed reads a YAML seed file and upserts its states and counties.
func LoadSeed(ctx context.Context, store RegionStore, path string) (SeedResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SeedResult{}, eris.Wrapf(err, "geo: read seed file %s", path)
	}
	return applySeed(ctx, store, data)
}

func applySeed(ctx context.Context, store RegionStore, data []byte) (SeedResult, error) {
	log := zap.L().With(zap.String("component", "geo.seed"))

	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return SeedResult{}, eris.Wrap(err, "geo: parse seed file")
	}

	var res SeedResult
	for _, st := range seed.States {
		abbr := CanonicalStateAbbr(st.Abbreviation)
		if abbr == "" {
			return res, eris.Errorf("geo: invalid state abbreviation %q", st.Abbreviation)
		}

		stateID, err := store.UpsertState(ctx, st.Name, abbr)
		if err != nil {
			return res, eris.Wrapf(err, "geo: seed state %s", abbr)
		}
		res.States++

		for _, county := range st.Counties {
			name := CanonicalCountyName(county)
			if name == "" {
				continue
			}
			if _, err := store.UpsertCounty(ctx, stateID, name); err != nil {
				return res, eris.Wrapf(err, "geo: seed county %s, %s", name, abbr)
			}
			res.Counties++
		}

		log.Debug("seeded state",
			zap.String("state", abbr),
			zap.Int("counties", len(st.Counties)),
		)
	}

	log.Info("seed load complete",
		zap.Int("states", res.States),
		zap.Int("counties", res.Counties),
	)
	return res, nil
}
