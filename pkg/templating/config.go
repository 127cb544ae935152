package templating

// TemplateConfig holds all configuration options for the templating engine.
type TemplateConfig struct {
	// TemplateDir is an optional directory of "*.tmpl.html" and "*.part.html"
	// files. Files there override the embedded templates of the same name.
	TemplateDir string `json:"template_dir"`

	// RoutePageTemplate is the full template used for a route page.
	RoutePageTemplate string `json:"route_page_template"`

	// NavigationBlock is the block that replaces navigation markup.
	NavigationBlock string `json:"navigation_block"`

	// FooterBlock is the block that replaces footer markup.
	FooterBlock string `json:"footer_block"`

	// CanonicalBlock renders the canonical link tag from a URL.
	CanonicalBlock string `json:"canonical_block"`

	// StylesheetBlock renders a stylesheet link tag from an href.
	StylesheetBlock string `json:"stylesheet_block"`
}

// DefaultConfig returns a TemplateConfig using only the embedded templates.
func DefaultConfig() *TemplateConfig {
	return &TemplateConfig{
		TemplateDir:       "",
		RoutePageTemplate: "train_route.tmpl.html",
		NavigationBlock:   "navigation",
		FooterBlock:       "footer",
		CanonicalBlock:    "canonical",
		StylesheetBlock:   "stylesheet",
	}
}
