package geo

import (
	"archive/zip"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"
)

// CountyShapefileURL is the Census Bureau TIGER/Line county boundary set.
const CountyShapefileURL = "https://www2.census.gov/geo/tiger/TIGER2024/COUNTY/tl_2024_us_county.zip"

// CountyBoundary is one county polygon from the TIGER shapefile.
type CountyBoundary struct {
	StateAbbr string
	Name      string

	rings [][]float64 // flat XY coords per ring
	minX  float64
	minY  float64
	maxX  float64
	maxY  float64
}

// BoundaryIndex answers point-in-county lookups from TIGER county polygons.
type BoundaryIndex struct {
	counties []CountyBoundary
}

// DownloadCountyShapefile fetches and extracts the TIGER county ZIP,
// returning the path to the .shp file. An already-downloaded ZIP is reused.
func DownloadCountyShapefile(ctx context.Context, destDir string) (string, error) {
	log := zap.L().With(zap.String("component", "geo.boundaries"))

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", eris.Wrap(err, "geo: create dest dir")
	}

	parts := strings.Split(CountyShapefileURL, "/")
	zipName := parts[len(parts)-1]
	zipPath := filepath.Join(destDir, zipName)

	if info, err := os.Stat(zipPath); err == nil && info.Size() > 0 {
		log.Debug("zip already exists, skipping download", zap.String("path", zipPath))
	} else {
		log.Info("downloading county shapefile", zap.String("url", CountyShapefileURL))
		if err := downloadFile(ctx, CountyShapefileURL, zipPath); err != nil {
			return "", eris.Wrap(err, "geo: download county shapefile")
		}
	}

	extractDir := filepath.Join(destDir, strings.TrimSuffix(zipName, ".zip"))
	if err := os.MkdirAll(extractDir, 0o755); err != nil {
		return "", eris.Wrap(err, "geo: create extract dir")
	}
	if err := extractZIP(zipPath, extractDir); err != nil {
		return "", eris.Wrap(err, "geo: extract county ZIP")
	}

	return findFileByExt(extractDir, ".shp")
}

// LoadBoundaries reads county polygons from a TIGER county shapefile.
func LoadBoundaries(shpPath string) (*BoundaryIndex, error) {
	log := zap.L().With(zap.String("component", "geo.boundaries"))

	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	stateFPIdx := fieldIndex(reader, "STATEFP")
	nameIdx := fieldIndex(reader, "NAME")
	if stateFPIdx < 0 || nameIdx < 0 {
		return nil, eris.New("geo: required shapefile fields (STATEFP, NAME) not found")
	}

	idx := &BoundaryIndex{}
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok || len(poly.Points) == 0 {
			skipped++
			continue
		}

		abbr, ok := StateAbbrForFIPS(strings.TrimSpace(reader.Attribute(stateFPIdx)))
		if !ok {
			skipped++
			continue
		}

		cb := CountyBoundary{
			StateAbbr: abbr,
			Name:      CanonicalCountyName(strings.TrimRight(reader.Attribute(nameIdx), "\x00")),
			rings:     polygonRings(poly),
			minX:      poly.Box.MinX,
			minY:      poly.Box.MinY,
			maxX:      poly.Box.MaxX,
			maxY:      poly.Box.MaxY,
		}
		if len(cb.rings) == 0 {
			skipped++
			continue
		}
		idx.counties = append(idx.counties, cb)
	}

	log.Info("county boundaries loaded",
		zap.Int("counties", len(idx.counties)),
		zap.Int("skipped", skipped),
	)
	return idx, nil
}

// Locate returns the county containing the coordinate, or nil if no county
// polygon contains it.
func (b *BoundaryIndex) Locate(lat, lng float64) *CountyBoundary {
	p := geom.Coord{lng, lat}
	for i := range b.counties {
		c := &b.counties[i]
		if lng < c.minX || lng > c.maxX || lat < c.minY || lat > c.maxY {
			continue
		}
		for _, ring := range c.rings {
			if xy.IsPointInRing(geom.XY, p, ring) {
				return c
			}
		}
	}
	return nil
}

// Len returns the number of indexed counties.
func (b *BoundaryIndex) Len() int {
	return len(b.counties)
}

// polygonRings flattens each part of a shapefile polygon into XY coords.
func polygonRings(p *shp.Polygon) [][]float64 {
	rings := make([][]float64, 0, p.NumParts)
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if end-start < 3 {
			continue
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		rings = append(rings, flat)
	}
	return rings
}

func downloadFile(ctx context.Context, url, dest string) error {
	client := &http.Client{Timeout: 10 * time.Minute}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return eris.Wrap(err, "build request")
	}

	resp, err := client.Do(req)
	if err != nil {
		return eris.Wrap(err, "download")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("download returned status %d", resp.StatusCode)
	}

	f, err := os.Create(dest)
	if err != nil {
		return eris.Wrap(err, "create file")
	}
	defer f.Close() //nolint:errcheck

	if _, err := io.Copy(f, resp.Body); err != nil {
		return eris.Wrap(err, "write file")
	}
	return nil
}

func extractZIP(zipPath, destDir string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return eris.Wrap(err, "open zip")
	}
	defer r.Close() //nolint:errcheck

	for _, f := range r.File {
		// Guard against zip-slip paths.
		dest := filepath.Join(destDir, filepath.Base(f.Name))

		rc, err := f.Open()
		if err != nil {
			return eris.Wrapf(err, "open zip entry %s", f.Name)
		}

		out, err := os.Create(dest)
		if err != nil {
			rc.Close() //nolint:errcheck
			return eris.Wrapf(err, "create %s", dest)
		}

		_, err = io.Copy(out, rc)
		rc.Close()  //nolint:errcheck
		out.Close() //nolint:errcheck
		if err != nil {
			return eris.Wrapf(err, "extract %s", f.Name)
		}
	}
	return nil
}

func findFileByExt(dir, ext string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", eris.Wrap(err, "read directory")
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ext) {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", eris.Errorf("no %s file found in %s", ext, dir)
}

func fieldIndex(reader *shp.Reader, name string) int {
	for i, f := range reader.Fields() {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), name) {
			return i
		}
	}
	return -1
}
