// Package media builds region-aware delivery URLs for class images.
//
// Each image key is served from the CDN closest to the viewer, then from the
// remaining regions' CDNs, and finally straight from the viewer region's S3 bucket.
package media

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ViewerCountryHeader is set by CloudFront to the viewer's ISO country code.
const ViewerCountryHeader = "CloudFront-Viewer-Country"

//go:embed default_regions.yaml
var defaultRegions []byte

type Region struct {
	Name      string   `yaml:"name"`
	Bucket    string   `yaml:"bucket"`
	CDNHost   string   `yaml:"cdn_host"`
	Countries []string `yaml:"countries"`
}

type Config struct {
	DefaultRegion string   `yaml:"default_region"`
	Regions       []Region `yaml:"regions"`
}

type Resolver struct {
	regions   []Region
	byCountry map[string]int
	fallback  int
}

// LoadConfig reads a region config from path, or the built-in one when path is empty.
func LoadConfig(path string) (Config, error) {
	raw := defaultRegions
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read media config: %w", err)
		}
		raw = b
	}
	return ParseConfig(raw)
}

func ParseConfig(raw []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse media config: %w", err)
	}
	if len(cfg.Regions) == 0 {
		return Config{}, fmt.Errorf("media config: no regions")
	}
	return cfg, nil
}

func NewResolver(cfg Config) (*Resolver, error) {
	r := &Resolver{regions: cfg.Regions, byCountry: map[string]int{}, fallback: -1}
	for i, reg := range cfg.Regions {
		if reg.Name == "" || reg.CDNHost == "" || reg.Bucket == "" {
			return nil, fmt.Errorf("media region %d: name, bucket and cdn_host are required", i)
		}
		for _, cc := range reg.Countries {
			r.byCountry[strings.ToUpper(cc)] = i
		}
		if reg.Name == cfg.DefaultRegion {
			r.fallback = i
		}
	}
	if r.fallback < 0 {
		if cfg.DefaultRegion != "" {
			return nil, fmt.Errorf("media default region %q is not configured", cfg.DefaultRegion)
		}
		r.fallback = 0
	}
	return r, nil
}

// RegionFor maps a viewer country code to a configured region name.
func (r *Resolver) RegionFor(country string) string {
	return r.regions[r.index(country)].Name
}

func (r *Resolver) index(country string) int {
	if i, ok := r.byCountry[strings.ToUpper(strings.TrimSpace(country))]; ok {
		return i
	}
	return r.fallback
}

// URLs returns the ordered fallback URLs for an image key.
func (r *Resolver) URLs(key, country string) []string {
	key = strings.TrimLeft(key, "/")
	if key == "" {
		return nil
	}
	path := (&url.URL{Path: "/" + key}).EscapedPath()

	primary := r.index(country)
	out := make([]string, 0, len(r.regions)+1)
	out = append(out, "https://"+r.regions[primary].CDNHost+path)
	for i, reg := range r.regions {
		if i != primary {
			out = append(out, "https://"+reg.CDNHost+path)
		}
	}
	origin := r.regions[primary]
	out = append(out, fmt.Sprintf("https://%s.s3.%s.amazonaws.com%s", origin.Bucket, origin.Name, path))
	return out
}
