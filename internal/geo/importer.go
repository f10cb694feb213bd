package geo

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
)

// ImportResult summarizes a county spreadsheet import.
type ImportResult struct {
	States   int
	Counties int
	Skipped  int
}

// ImportCountiesXLSX loads reference geography from a spreadsheet with
// "State", "Abbreviation", and "County" columns (header row required,
// column order free). Rows with an unknown or malformed state are skipped.
func ImportCountiesXLSX(ctx context.Context, store RegionStore, path string) (ImportResult, error) {
	log := zap.L().With(zap.String("component", "geo.import"))

	f, err := xlsx.OpenFile(path)
	if err != nil {
		return ImportResult{}, eris.Wrapf(err, "geo: open spreadsheet %s", path)
	}
	if len(f.Sheets) == 0 {
		return ImportResult{}, eris.Errorf("geo: spreadsheet %s has no sheets", path)
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return ImportResult{}, eris.Errorf("geo: spreadsheet %s is empty", path)
	}

	stateCol, abbrCol, countyCol := -1, -1, -1
	for j, cell := range sheet.Rows[0].Cells {
		switch strings.ToLower(strings.TrimSpace(cell.String())) {
		case "state":
			stateCol = j
		case "abbreviation", "abbr", "state_abbr":
			abbrCol = j
		case "county", "county_name":
			countyCol = j
		}
	}
	if stateCol < 0 || abbrCol < 0 || countyCol < 0 {
		return ImportResult{}, eris.Errorf("geo: spreadsheet %s missing State/Abbreviation/County headers", path)
	}

	var res ImportResult
	stateIDs := make(map[string]int64)

	for i, row := range sheet.Rows {
		if i == 0 {
			continue
		}
		if ctx.Err() != nil {
			return res, eris.Wrap(ctx.Err(), "geo: import cancelled")
		}

		cellAt := func(j int) string {
			if j < len(row.Cells) {
				return strings.TrimSpace(row.Cells[j].String())
			}
			return ""
		}

		abbr := CanonicalStateAbbr(cellAt(abbrCol))
		county := CanonicalCountyName(cellAt(countyCol))
		if abbr == "" || county == "" {
			res.Skipped++
			log.Debug("skipping malformed row", zap.Int("row", i+1))
			continue
		}

		stateID, ok := stateIDs[abbr]
		if !ok {
			stateID, err = store.UpsertState(ctx, cellAt(stateCol), abbr)
			if err != nil {
				return res, eris.Wrapf(err, "geo: import state %s", abbr)
			}
			stateIDs[abbr] = stateID
			res.States++
		}

		if _, err := store.UpsertCounty(ctx, stateID, county); err != nil {
			return res, eris.Wrapf(err, "geo: import county %s, %s", county, abbr)
		}
		res.Counties++
	}

	log.Info("spreadsheet import complete",
		zap.String("path", path),
		zap.Int("states", res.States),
		zap.Int("counties", res.Counties),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}
