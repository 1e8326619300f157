// Package countries is the static registry of supported countries and their
// disclosure sources.
package countries

import (
	"os"
	"strings"
)

type SourceType string

const (
	SourceWeb SourceType = "web"
)

type Source struct {
	Name        string     `json:"name"`
	URL         string     `json:"url"`
	Type        SourceType `json:"type"`
	Description string     `json:"description"`
}

type Country struct {
	Code    string   `json:"code"`
	Name    string   `json:"name"`
	Region  string   `json:"region"`
	Enabled bool     `json:"enabled"`
	Sources []Source `json:"sources"`
	// Scraper names the scraper implementation registered for this country.
	Scraper string `json:"scraper"`

	envKey string
}

// SourceName is the name of the primary source, recorded on every trade.
func (c Country) SourceName() string {
	if len(c.Sources) == 0 {
		return c.Name
	}
	return c.Sources[0].Name
}

func (c Country) clone() Country {
	c.Sources = append([]Source(nil), c.Sources...)
	return c
}

// EnableVar is the environment variable that switches the country off when
// set to "false".
func (c Country) EnableVar() string {
	return "ENABLE_" + c.envKey + "_SCRAPER"
}

var definitions = []Country{
	{
		Code: "usa", Name: "United States", Region: "North America", Scraper: "usa", envKey: "USA",
		Sources: []Source{
			{Name: "Capitol Trades", URL: "https://www.capitoltrades.com/trades", Type: SourceWeb, Description: "Stock trades by US Congress members"},
		},
	},
	{
		Code: "germany", Name: "Deutschland", Region: "Europe", Scraper: "germany", envKey: "GERMANY",
		Sources: []Source{
			{Name: "Bundestag Abgeordnete", URL: "https://www.bundestag.de/abgeordnete", Type: SourceWeb, Description: "Bundestag members financial disclosures"},
		},
	},
	{
		Code: "uk", Name: "United Kingdom", Region: "Europe", Scraper: "uk", envKey: "UK",
		Sources: []Source{
			{Name: "UK Parliament Register", URL: "https://www.parliament.uk/mps-lords-and-offices/standards-and-financial-interests/parliamentary-commissioner-for-standards/registers-of-interests/register-of-members-financial-interests/", Type: SourceWeb, Description: "UK Parliament Register of Members' Financial Interests"},
			{Name: "TheyWorkForYou", URL: "https://www.theyworkforyou.com/", Type: SourceWeb, Description: "Alternative source for UK MP data"},
		},
	},
	{
		Code: "france", Name: "France", Region: "Europe", Scraper: "stub", envKey: "FRANCE",
		Sources: []Source{
			{Name: "Assemblée Nationale", URL: "https://www2.assemblee-nationale.fr/deputies/list/alphabetical-order", Type: SourceWeb, Description: "French National Assembly member disclosures"},
		},
	},
	{
		Code: "italy", Name: "Italy", Region: "Europe", Scraper: "stub", envKey: "ITALY",
		Sources: []Source{
			{Name: "Camera dei Deputati", URL: "https://www.camera.it/leg19/1", Type: SourceWeb, Description: "Italian Chamber of Deputies member disclosures"},
		},
	},
	{
		Code: "spain", Name: "Spain", Region: "Europe", Scraper: "stub", envKey: "SPAIN",
		Sources: []Source{
			{Name: "Congreso de los Diputados", URL: "https://www.congreso.es/busqueda-de-diputados", Type: SourceWeb, Description: "Spanish Congress member disclosures"},
		},
	},
	{
		Code: "russia", Name: "Russia", Region: "Europe/Asia", Scraper: "russia", envKey: "RUSSIA",
		Sources: []Source{
			{Name: "State Duma", URL: "http://duma.gov.ru/en/", Type: SourceWeb, Description: "Russian State Duma member declarations"},
			{Name: "Declarator", URL: "https://declarator.org/", Type: SourceWeb, Description: "Independent database of Russian officials' declarations"},
		},
	},
	{
		Code: "china", Name: "China", Region: "Asia", Scraper: "stub", envKey: "CHINA",
		Sources: []Source{
			{Name: "NPC Disclosures", URL: "http://www.npc.gov.cn/", Type: SourceWeb, Description: "National People's Congress disclosures (limited public data)"},
		},
	},
	{
		Code: "japan", Name: "Japan", Region: "Asia", Scraper: "stub", envKey: "JAPAN",
		Sources: []Source{
			{Name: "House of Representatives", URL: "https://www.shugiin.go.jp/internet/index.nsf/html/index.htm", Type: SourceWeb, Description: "Japanese Diet member asset disclosures"},
		},
	},
	{
		Code: "india", Name: "India", Region: "Asia", Scraper: "stub", envKey: "INDIA",
		Sources: []Source{
			{Name: "Lok Sabha", URL: "https://loksabha.nic.in/", Type: SourceWeb, Description: "Indian Parliament member assets and liabilities"},
		},
	},
	{
		Code: "southKorea", Name: "South Korea", Region: "Asia", Scraper: "stub", envKey: "SOUTH_KOREA",
		Sources: []Source{
			{Name: "National Assembly", URL: "https://www.assembly.go.kr/portal/main/main.do", Type: SourceWeb, Description: "Korean National Assembly member disclosures"},
		},
	},
	{
		Code: "indonesia", Name: "Indonesia", Region: "Asia", Scraper: "stub", envKey: "INDONESIA",
		Sources: []Source{
			{Name: "DPR RI", URL: "https://www.dpr.go.id/", Type: SourceWeb, Description: "Indonesian House of Representatives member data"},
		},
	},
	{
		Code: "nigeria", Name: "Nigeria", Region: "Africa", Scraper: "stub", envKey: "NIGERIA",
		Sources: []Source{
			{Name: "National Assembly", URL: "https://nass.gov.ng/", Type: SourceWeb, Description: "Nigerian National Assembly member disclosures"},
		},
	},
	{
		Code: "southAfrica", Name: "South Africa", Region: "Africa", Scraper: "stub", envKey: "SOUTH_AFRICA",
		Sources: []Source{
			{Name: "Parliament of South Africa", URL: "https://www.parliament.gov.za/", Type: SourceWeb, Description: "South African Parliament member interests"},
		},
	},
	{
		Code: "egypt", Name: "Egypt", Region: "Africa", Scraper: "stub", envKey: "EGYPT",
		Sources: []Source{
			{Name: "House of Representatives", URL: "https://www.parliament.gov.eg/", Type: SourceWeb, Description: "Egyptian Parliament member information"},
		},
	},
	{
		Code: "kenya", Name: "Kenya", Region: "Africa", Scraper: "stub", envKey: "KENYA",
		Sources: []Source{
			{Name: "Parliament of Kenya", URL: "http://www.parliament.go.ke/", Type: SourceWeb, Description: "Kenyan Parliament member declarations"},
		},
	},
	{
		Code: "ghana", Name: "Ghana", Region: "Africa", Scraper: "stub", envKey: "GHANA",
		Sources: []Source{
			{Name: "Parliament of Ghana", URL: "https://www.parliament.gh/", Type: SourceWeb, Description: "Ghanaian Parliament member disclosures"},
		},
	},
	{
		Code: "turkey", Name: "Türkiye", Region: "Middle East", Scraper: "stub", envKey: "TURKEY",
		Sources: []Source{
			{Name: "TBMM", URL: "https://www.tbmm.gov.tr/", Type: SourceWeb, Description: "Turkish Grand National Assembly member information"},
		},
	},
}

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

type Registry struct {
	countries []Country
	byCode    map[string]int
}

// Load builds the registry, resolving each country's enabled flag through
// lookup. A country is enabled unless its variable is exactly "false".
func Load(lookup LookupFunc) *Registry {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	r := &Registry{
		countries: make([]Country, len(definitions)),
		byCode:    make(map[string]int, len(definitions)),
	}
	for i, c := range definitions {
		c = c.clone()
		v, ok := lookup(c.EnableVar())
		c.Enabled = !ok || strings.TrimSpace(v) != "false"

		r.countries[i] = c
		r.byCode[strings.ToLower(c.Code)] = i
	}
	return r
}

// All returns every country in configuration order.
func (r *Registry) All() []Country {
	out := make([]Country, len(r.countries))
	for i, c := range r.countries {
		out[i] = c.clone()
	}
	return out
}

func (r *Registry) Enabled() []Country {
	var out []Country
	for _, c := range r.countries {
		if c.Enabled {
			out = append(out, c.clone())
		}
	}
	return out
}

// Get looks a country up by code, case insensitively.
func (r *Registry) Get(code string) (Country, bool) {
	i, ok := r.byCode[strings.ToLower(strings.TrimSpace(code))]
	if !ok {
		return Country{}, false
	}
	return r.countries[i].clone(), true
}

// ByRegion returns the enabled countries of a region.
func (r *Registry) ByRegion(region string) []Country {
	var out []Country
	for _, c := range r.countries {
		if c.Enabled && strings.EqualFold(c.Region, region) {
			out = append(out, c.clone())
		}
	}
	return out
}

// Regions lists distinct regions in first-seen order.
func (r *Registry) Regions() []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range r.countries {
		if !seen[c.Region] {
			seen[c.Region] = true
			out = append(out, c.Region)
		}
	}
	return out
}
