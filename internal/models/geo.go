package models

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

const (
	earthRadiusKm = 6371.0
	kmPerDegree   = 111.32

	// GeoCellSize is the edge of a geo cell in degrees
	GeoCellSize = 0.5

	maxCoveringCells = 36
)

// CityCenter is a known city center used when a provider gives no venue coordinates
type CityCenter struct {
	Name      string
	Country   string
	Region    string
	Latitude  float64
	Longitude float64
	Timezone  string
}

var cityCenters = map[string]CityCenter{
	"mumbai":        {"Mumbai", "IN", "Maharashtra", 19.0760, 72.8777, "Asia/Kolkata"},
	"pune":          {"Pune", "IN", "Maharashtra", 18.5204, 73.8567, "Asia/Kolkata"},
	"delhi":         {"Delhi", "IN", "Delhi", 28.6139, 77.2090, "Asia/Kolkata"},
	"new delhi":     {"New Delhi", "IN", "Delhi", 28.6139, 77.2090, "Asia/Kolkata"},
	"bangalore":     {"Bangalore", "IN", "Karnataka", 12.9716, 77.5946, "Asia/Kolkata"},
	"bengaluru":     {"Bengaluru", "IN", "Karnataka", 12.9716, 77.5946, "Asia/Kolkata"},
	"hyderabad":     {"Hyderabad", "IN", "Telangana", 17.3850, 78.4867, "Asia/Kolkata"},
	"chennai":       {"Chennai", "IN", "Tamil Nadu", 13.0827, 80.2707, "Asia/Kolkata"},
	"kolkata":       {"Kolkata", "IN", "West Bengal", 22.5726, 88.3639, "Asia/Kolkata"},
	"goa":           {"Goa", "IN", "Goa", 15.4909, 73.8278, "Asia/Kolkata"},
	"new york":      {"New York", "US", "New York", 40.7128, -74.0060, "America/New_York"},
	"los angeles":   {"Los Angeles", "US", "California", 34.0522, -118.2437, "America/Los_Angeles"},
	"san francisco": {"San Francisco", "US", "California", 37.7749, -122.4194, "America/Los_Angeles"},
	"seattle":       {"Seattle", "US", "Washington", 47.6062, -122.3321, "America/Los_Angeles"},
	"chicago":       {"Chicago", "US", "Illinois", 41.8781, -87.6298, "America/Chicago"},
	"austin":        {"Austin", "US", "Texas", 30.2672, -97.7431, "America/Chicago"},
	"london":        {"London", "GB", "England", 51.5074, -0.1278, "Europe/London"},
	"toronto":       {"Toronto", "CA", "Ontario", 43.6532, -79.3832, "America/Toronto"},
	"sydney":        {"Sydney", "AU", "New South Wales", -33.8688, 151.2093, "Australia/Sydney"},
}

// LookupCityCenter returns the known center of a city, matched case-insensitively
func LookupCityCenter(city string) (CityCenter, bool) {
	c, ok := cityCenters[NormalizeCity(city)]
	return c, ok
}

// CitiesInCountry lists known cities of a country, optionally narrowed to a region
func CitiesInCountry(country, region string) []CityCenter {
	var out []CityCenter
	seen := make(map[string]bool)
	for _, c := range cityCenters {
		if !strings.EqualFold(c.Country, country) {
			continue
		}
		if region != "" && !strings.EqualFold(c.Region, region) {
			continue
		}
		if seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// NearestCityCenter returns the known city closest to a point, if one lies
// within maxKm
func NearestCityCenter(lat, lng, maxKm float64) (CityCenter, bool) {
	var (
		best     CityCenter
		bestDist = math.MaxFloat64
	)
	for _, c := range cityCenters {
		d := HaversineKm(lat, lng, c.Latitude, c.Longitude)
		if d < bestDist || d == bestDist && c.Name < best.Name {
			best, bestDist = c, d
		}
	}
	return best, bestDist <= maxKm
}

// HaversineKm returns the great-circle distance between two points in kilometers
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLng := (lng2 - lng1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}

// OffsetPoint moves a point distanceKm along bearing (radians from north)
// using an equirectangular approximation, adequate for a few kilometers
func OffsetPoint(lat, lng, distanceKm, bearing float64) (float64, float64) {
	dLat := distanceKm * math.Cos(bearing) / kmPerDegree
	cosLat := math.Cos(lat * math.Pi / 180)
	if cosLat < 1e-6 {
		cosLat = 1e-6
	}
	dLng := distanceKm * math.Sin(bearing) / (kmPerDegree * cosLat)
	return lat + dLat, lng + dLng
}

func geoCell(v float64) int {
	return int(math.Floor(v / GeoCellSize))
}

// GenerateGeoCellKey returns the GSI key of the cell containing a point
func GenerateGeoCellKey(lat, lng float64) string {
	return fmt.Sprintf("GEO#%d#%d", geoCell(lat), geoCell(lng))
}

// GeoCellsCovering returns the cell keys intersecting the bounding box of a
// circle. The result is capped so very large radii degrade to the cells
// nearest the center rather than scanning half the planet.
func GeoCellsCovering(lat, lng, radiusKm float64) []string {
	if radiusKm < 0 {
		radiusKm = 0
	}
	dLat := radiusKm / kmPerDegree
	cosLat := math.Cos(lat * math.Pi / 180)
	if cosLat < 0.01 {
		cosLat = 0.01
	}
	dLng := radiusKm / (kmPerDegree * cosLat)

	minLat, maxLat := geoCell(lat-dLat), geoCell(lat+dLat)
	minLng, maxLng := geoCell(lng-dLng), geoCell(lng+dLng)

	centerLat, centerLng := geoCell(lat), geoCell(lng)
	span := int(math.Sqrt(maxCoveringCells)) / 2
	if maxLat-minLat+1 > 2*span+1 {
		minLat, maxLat = centerLat-span, centerLat+span
	}
	if maxLng-minLng+1 > 2*span+1 {
		minLng, maxLng = centerLng-span, centerLng+span
	}

	var keys []string
	for la := minLat; la <= maxLat; la++ {
		for lo := minLng; lo <= maxLng; lo++ {
			keys = append(keys, fmt.Sprintf("GEO#%d#%d", la, lo))
		}
	}
	return keys
}
