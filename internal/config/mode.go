package config

import "inquest/internal/state"

// ModeKnobs controls research depth per worker. Fast trades coverage for
// latency; deep is exhaustive.
type ModeKnobs struct {
	ProfileMaxSources int

	FinancialYearsBack   int
	FinancialDetailed    bool
	FinancialMaxSections int

	NewsMonthsBack  int
	NewsMaxArticles int

	SentimentSampleSize int

	CompetitiveMaxCompetitors int
	CompetitiveDetailedSWOT   bool

	SynthesisMultiPass     bool
	SynthesisMaxIterations int
}

var fastKnobs = ModeKnobs{
	ProfileMaxSources:         2,
	FinancialYearsBack:        1,
	FinancialMaxSections:      3,
	NewsMonthsBack:            6,
	NewsMaxArticles:           20,
	SentimentSampleSize:       50,
	CompetitiveMaxCompetitors: 5,
	SynthesisMaxIterations:    1,
}

var deepKnobs = ModeKnobs{
	ProfileMaxSources:         10,
	FinancialYearsBack:        5,
	FinancialDetailed:         true,
	FinancialMaxSections:      10,
	NewsMonthsBack:            36,
	NewsMaxArticles:           100,
	SentimentSampleSize:       500,
	CompetitiveMaxCompetitors: 15,
	CompetitiveDetailedSWOT:   true,
	SynthesisMultiPass:        true,
	SynthesisMaxIterations:    3,
}

// KnobsFor returns the knobs for a research mode; unknown modes get deep.
func KnobsFor(mode state.Mode) ModeKnobs {
	if mode == state.ModeFast {
		return fastKnobs
	}
	return deepKnobs
}
