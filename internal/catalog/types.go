package catalog

// Page selects a window of a list endpoint.
type Page struct {
	Limit  int
	Offset int
}

// DefaultPage is the window used when a caller passes the zero Page.
var DefaultPage = Page{Limit: defaultLimit, Offset: 0}

func (p Page) normalized() Page {
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// CardStub is one entry of a list response. Href points at the card resource.
type CardStub struct {
	Href string `json:"href"`
	Name string `json:"name"`
}

// ID returns the card id encoded in Href.
func (s CardStub) ID() string {
	return IDFromAPIURL(s.Href)
}

// Raw API response types (internal)

type rawList struct {
	Count    int        `json:"count"`
	Next     string     `json:"next"`
	Previous string     `json:"previous"`
	Results  []CardStub `json:"results"`
}

type rawRef struct {
	Href string `json:"href"`
	Name string `json:"name"`
}

type rawVariation struct {
	Href   string `json:"href"`
	Rarity rawRef `json:"rarity"`
}

type rawCard struct {
	Href       string         `json:"href"`
	UUID       string         `json:"uuid"`
	IngameID   string         `json:"ingameId"`
	Name       string         `json:"name"`
	Info       string         `json:"info"`
	Strength   int            `json:"strength"`
	Patch      string         `json:"patch"`
	Group      rawRef         `json:"group"`
	Faction    rawRef         `json:"faction"`
	Variations []rawVariation `json:"variations"`
}
