package web

import (
	"fmt"
	"time"

	"github.com/couchcryptid/river-gage-etl/internal/domain"
	"github.com/couchcryptid/river-gage-etl/internal/registry"
)

// staleAfter is how old a latest reading can be before the page flags it.
// Upstream gages report at least hourly, so a day of silence means the gage
// or the batch is broken.
const staleAfter = 24 * time.Hour

// GageView is one gage as the dashboard renders it.
type GageView struct {
	ID        string
	Name      string
	Latest    string
	Staleness string
	Image     string
	PageURL   string
}

// RiverView is one river section with its gages in registry order.
type RiverView struct {
	River string
	Gages []GageView
}

// PageData is the model behind the region page template.
type PageData struct {
	Title   string
	Region  string
	Regions []string
	Rivers  []RiverView
}

// LatestReader returns the most recent stored reading for a gage.
type LatestReader interface {
	Latest(g domain.Gage) domain.Reading
}

// buildPage assembles the view model for one region, or for every gage when
// region is empty.
func buildPage(reg *registry.Registry, latest LatestReader, region string) PageData {
	gages := reg.All()
	title := "All Rivers"
	if region != "" {
		gages = reg.ByRegion(region)
		title = region
	}

	groups := registry.Rivers(gages)
	rivers := make([]RiverView, 0, len(groups))
	for _, grp := range groups {
		rv := RiverView{River: grp.River}
		for _, g := range grp.Gages {
			rv.Gages = append(rv.Gages, buildGageView(g, latest.Latest(g)))
		}
		rivers = append(rivers, rv)
	}

	return PageData{
		Title:   title,
		Region:  region,
		Regions: reg.Regions(),
		Rivers:  rivers,
	}
}

func buildGageView(g domain.Gage, r domain.Reading) GageView {
	v := GageView{
		ID:      g.ID,
		Name:    g.Menu,
		Image:   "/images/" + g.ImageFile(),
		PageURL: g.PageURL(),
	}
	if v.Name == "" {
		v.Name = g.Location
	}

	if !r.Known {
		v.Latest = "N/A"
		return v
	}

	v.Latest = fmt.Sprintf("%s %s", domain.FormatValue(r.Value, g.Units), g.Units)
	if age := r.Age(); age > staleAfter {
		v.Staleness = fmt.Sprintf("data is %d hours old", int(age.Hours()))
	}
	return v
}
