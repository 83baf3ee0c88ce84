package state

// Result slots, one per research worker. Each worker owns exactly one slot
// and overwrites it wholesale; nothing else writes to it.

// ProfileData is the structured company profile.
type ProfileData struct {
	CompanyName  TrustedValue  `json:"company_name"`
	Ticker       *TrustedValue `json:"ticker,omitempty"`
	Website      *TrustedValue `json:"website,omitempty"`
	Industry     *TrustedValue `json:"industry,omitempty"`
	Sector       *TrustedValue `json:"sector,omitempty"`
	Founded      *TrustedValue `json:"founded,omitempty"`
	Headquarters *TrustedValue `json:"headquarters,omitempty"`
	Employees    *TrustedValue `json:"employees,omitempty"`
	Description  *TrustedValue `json:"description,omitempty"`
	Products     []string      `json:"products,omitempty"`
	KeyPeople    []Person      `json:"key_people,omitempty"`
}

type Person struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// FinancialData holds extracted financial metrics.
type FinancialData struct {
	FiscalYear       TrustedValue            `json:"fiscal_year"`
	Revenue          *TrustedValue           `json:"revenue,omitempty"`
	NetIncome        *TrustedValue           `json:"net_income,omitempty"`
	TotalAssets      *TrustedValue           `json:"total_assets,omitempty"`
	TotalLiabilities *TrustedValue           `json:"total_liabilities,omitempty"`
	KeyMetrics       map[string]TrustedValue `json:"key_metrics,omitempty"`
	FinancialHealth  *TrustedValue           `json:"financial_health,omitempty"`
	GrowthRates      map[string]TrustedValue `json:"growth_rates,omitempty"`
	Risks            []string                `json:"risks,omitempty"`
}

// NewsArticle is one article in the news slot.
type NewsArticle struct {
	Date         string  `json:"date"`
	Title        string  `json:"title"`
	Summary      string  `json:"summary"`
	Source       Source  `json:"source"`
	Category     string  `json:"category,omitempty"`
	Significance float64 `json:"significance_score,omitempty"`
}

// NewsData is the news worker's output.
type NewsData struct {
	Articles      []NewsArticle     `json:"articles"`
	TotalArticles int               `json:"total_articles"`
	DateRange     map[string]string `json:"date_range,omitempty"`
	Categories    map[string]int    `json:"categories,omitempty"`
}

// SentimentData is the sentiment worker's output.
type SentimentData struct {
	Overall       TrustedValue       `json:"overall_sentiment"`
	Score         float64            `json:"sentiment_score"` // -1..1
	Distribution  map[string]float64 `json:"sentiment_distribution,omitempty"`
	Themes        []string           `json:"themes,omitempty"`
	NoiseFiltered int                `json:"noise_filtered,omitempty"`
}

// Competitor is one identified rival.
type Competitor struct {
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	MarketPosition string `json:"market_position,omitempty"`
	Reasoning      string `json:"reasoning,omitempty"`
}

// CompetitiveData is the competitive worker's output.
type CompetitiveData struct {
	Competitors  []Competitor        `json:"competitors"`
	MarketSize   *TrustedValue       `json:"market_size,omitempty"`
	MarketTrends []string            `json:"market_trends,omitempty"`
	SWOT         map[string][]string `json:"swot,omitempty"`
	Positioning  string              `json:"positioning,omitempty"`
}
