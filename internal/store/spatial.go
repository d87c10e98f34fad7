package store

import (
	"math"
	"sort"
	"time"

	"github.com/dhconnelly/rtreego"
	"github.com/google/uuid"

	"github.com/pkordes/markerwatch/internal/domain"
)

const (
	dimensions  = 2
	minChildren = 25
	maxChildren = 50
	tolerance   = 1e-7
)

// spatialItem wraps a marker position for R-tree indexing.
type spatialItem struct {
	id   uuid.UUID
	rect *rtreego.Rect
}

func (si *spatialItem) Bounds() *rtreego.Rect {
	return si.rect
}

func newTree() *rtreego.Rtree {
	return rtreego.NewTree(dimensions, minChildren, maxChildren)
}

func newSpatialItem(m domain.Marker) *spatialItem {
	p := rtreego.Point{m.Latitude, m.Longitude}
	return &spatialItem{id: m.ID, rect: p.ToRect(tolerance)}
}

// Nearby returns the markers active at now within radiusKm of center,
// nearest first. A non-positive radius yields an empty result.
func (s *Store) Nearby(center domain.Location, radiusKm float64, now time.Time) ([]domain.Marker, error) {
	if err := center.Validate(); err != nil {
		return nil, err
	}
	out := []domain.Marker{}
	if radiusKm <= 0 {
		return out, nil
	}

	bounds, err := searchBounds(center, radiusKm)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	dist := make(map[uuid.UUID]float64)
	for _, hit := range s.tree.SearchIntersect(bounds) {
		e, ok := s.byID[hit.(*spatialItem).id]
		if !ok || !domain.IsActive(e.marker, now) {
			continue
		}
		d := center.DistanceKm(e.marker.Location())
		if d > radiusKm {
			continue
		}
		dist[e.marker.ID] = d
		out = append(out, e.marker)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return dist[out[i].ID] < dist[out[j].ID]
	})
	return out, nil
}

// searchBounds returns a lat/lon box that contains every point within
// radiusKm of center. A circle reaching a pole or crossing the antimeridian
// gets the full longitude range.
func searchBounds(center domain.Location, radiusKm float64) (*rtreego.Rect, error) {
	d := radiusKm / domain.EarthRadiusKm // angular radius, radians
	dLat := d * 180 / math.Pi
	minLat := math.Max(-90, center.Latitude-dLat)
	maxLat := math.Min(90, center.Latitude+dLat)

	minLon, maxLon := -180.0, 180.0
	if center.Latitude+dLat < 90 && center.Latitude-dLat > -90 {
		// Widest longitude offset of the circle, reached away from the
		// centre's parallel.
		ratio := math.Sin(d) / math.Cos(center.Latitude*math.Pi/180)
		if ratio < 1 {
			dLon := math.Asin(ratio) * 180 / math.Pi
			if center.Longitude-dLon >= -180 && center.Longitude+dLon <= 180 {
				minLon, maxLon = center.Longitude-dLon, center.Longitude+dLon
			}
		}
	}

	return rtreego.NewRect(
		rtreego.Point{minLat - tolerance, minLon - tolerance},
		[]float64{maxLat - minLat + 2*tolerance, maxLon - minLon + 2*tolerance},
	)
}
