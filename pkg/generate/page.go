package generate

import (
	"fmt"

	"github.com/railbookingdate/traindays/pkg/routes"
	"github.com/railbookingdate/traindays/pkg/site"
	"github.com/railbookingdate/traindays/pkg/templating"
)

// RoutePage is the data handed to the route page template.
type RoutePage struct {
	Title       string
	Description string
	Keywords    string
	Canonical   string
	RelRoot     string
	Stylesheet  string

	AnalyticsID   string
	AdsenseClient string

	StationA string
	StationB string
	Trains   []routes.TrainRecord

	StructuredData ItemList

	Nav    templating.BlockData
	Footer templating.BlockData
}

// ItemList is the schema.org ItemList embedded as JSON-LD.
type ItemList struct {
	Context         string     `json:"@context"`
	Type            string     `json:"@type"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	ItemListElement []ListItem `json:"itemListElement"`
}

// ListItem is one train in the ItemList.
type ListItem struct {
	Type     string  `json:"@type"`
	Position int     `json:"position"`
	Item     Service `json:"item"`
}

// Service describes a train service.
type Service struct {
	Type        string `json:"@type"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// newRoutePage builds the template data of a route group.
func newRoutePage(cfg *site.Config, group routes.RouteGroup) RoutePage {
	a, b := group.Key.A, group.Key.B
	relPath := cfg.TrainPagePath(group.Filename())
	relRoot := site.RelRoot(relPath)

	description := fmt.Sprintf("List of trains between %s and %s. Get train numbers, names, and schedules. "+
		"Calculate your booking date for IRCTC 60 days advance reservation.", a, b)

	items := make([]ListItem, len(group.Trains))
	for i, train := range group.Trains {
		items[i] = ListItem{
			Type:     "ListItem",
			Position: i + 1,
			Item: Service{
				Type:        "Service",
				Name:        fmt.Sprintf("%s (%s)", train.Name, train.Number),
				Description: fmt.Sprintf("Train from %s to %s", a, b),
			},
		}
	}

	return RoutePage{
		Title:       fmt.Sprintf("Trains between %s and %s | Trains from %s to %s", a, b, a, b),
		Description: description,
		Keywords: fmt.Sprintf("trains between %s and %s, trains from %s to %s, %s to %s trains, "+
			"IRCTC booking date calculator, Indian Railways", a, b, a, b, a, b),
		Canonical:     cfg.CanonicalURL(relPath),
		RelRoot:       relRoot,
		Stylesheet:    cfg.Stylesheet,
		AnalyticsID:   cfg.AnalyticsID,
		AdsenseClient: cfg.AdsenseClient,
		StationA:      a,
		StationB:      b,
		Trains:        group.Trains,
		StructuredData: ItemList{
			Context:         "https://schema.org",
			Type:            "ItemList",
			Name:            fmt.Sprintf("Trains between %s and %s", a, b),
			Description:     description,
			ItemListElement: items,
		},
		Nav:    templating.NavigationData(cfg, relRoot),
		Footer: templating.FooterData(cfg, relRoot),
	}
}
