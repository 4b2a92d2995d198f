package geocode

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed centroids.yaml
var centroidsYAML []byte

// Centroid is a representative coordinate for a region, used only as a
// location-bias hint.
type Centroid struct {
	Name string  `yaml:"name"`
	Lat  float64 `yaml:"lat"`
	Lon  float64 `yaml:"lon"`
}

// UserLocation renders the centroid as the "lat,lon" bias parameter.
func (c Centroid) UserLocation() string {
	return fmt.Sprintf("%.4f,%.4f", c.Lat, c.Lon)
}

type centroidTable struct {
	County   Centroid            `yaml:"county"`
	Stations map[string]Centroid `yaml:"stations"`
	Areas    map[string]Centroid `yaml:"areas"`
}

var centroids = mustLoadCentroids()

func mustLoadCentroids() centroidTable {
	var t centroidTable
	if err := yaml.Unmarshal(centroidsYAML, &t); err != nil {
		panic(fmt.Sprintf("geocode: parse embedded centroids: %v", err))
	}
	return t
}

// BiasCentroid resolves the location-bias centroid for a lookup. Precedence
// is county default, then station region, then area; the area override wins
// over the station when both match. Area matching is case-insensitive on the
// trimmed text.
func BiasCentroid(station, area string) Centroid {
	c := centroids.County

	if station != "" {
		if sc, ok := centroids.Stations[strings.ToUpper(strings.TrimSpace(station))]; ok {
			c = sc
		}
	}

	if area != "" {
		key := strings.ToUpper(strings.TrimSpace(area))
		if ac, ok := centroids.Areas[key]; ok {
			c = ac
		}
	}

	return c
}
