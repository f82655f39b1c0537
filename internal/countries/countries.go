// Package countries is the flag/country Question Provider: the dataset and
// distractor-selection strategy the game engine draws rounds from. It is a
// small, swappable reference implementation behind a narrow interface, not
// the engine's concern.
package countries

import (
	"math/rand/v2"
)

// Difficulty tiers, matching a room's settings.difficulty domain.
const (
	Easy   = "easy"
	Medium = "medium"
	Hard   = "hard"
	Expert = "expert"
)

// QuestionCount returns the number of rounds a game at this difficulty
// runs.
func QuestionCount(difficulty string) int {
	switch difficulty {
	case Easy:
		return 15
	case Medium:
		return 20
	case Hard:
		return 25
	case Expert:
		return 30
	default:
		return 15
	}
}

// Country is one entry of the flag dataset.
type Country struct {
	Name   string `json:"name"`
	Flag   string `json:"flag"`
	Code   string `json:"code"`
	Region string `json:"region"`
}

// Question is the provider's output: the correct country plus a four-way
// shuffle of options including it.
type Question struct {
	CurrentCountry Country
	Options        []Country
}

// pool groups the reference dataset by difficulty tier. Higher tiers
// include the lower tiers' countries plus additional, less commonly known
// ones, so usedCountries accumulated at an easier tier still makes sense if
// settings change between games.
var pool = map[string][]Country{
	Easy: {
		{Name: "United States", Flag: "🇺🇸", Code: "US", Region: "Americas"},
		{Name: "United Kingdom", Flag: "🇬🇧", Code: "GB", Region: "Europe"},
		{Name: "France", Flag: "🇫🇷", Code: "FR", Region: "Europe"},
		{Name: "Germany", Flag: "🇩🇪", Code: "DE", Region: "Europe"},
		{Name: "Japan", Flag: "🇯🇵", Code: "JP", Region: "Asia"},
		{Name: "Canada", Flag: "🇨🇦", Code: "CA", Region: "Americas"},
		{Name: "Brazil", Flag: "🇧🇷", Code: "BR", Region: "Americas"},
		{Name: "Italy", Flag: "🇮🇹", Code: "IT", Region: "Europe"},
		{Name: "Spain", Flag: "🇪🇸", Code: "ES", Region: "Europe"},
		{Name: "China", Flag: "🇨🇳", Code: "CN", Region: "Asia"},
		{Name: "Australia", Flag: "🇦🇺", Code: "AU", Region: "Oceania"},
		{Name: "India", Flag: "🇮🇳", Code: "IN", Region: "Asia"},
		{Name: "Mexico", Flag: "🇲🇽", Code: "MX", Region: "Americas"},
		{Name: "Russia", Flag: "🇷🇺", Code: "RU", Region: "Europe"},
		{Name: "South Korea", Flag: "🇰🇷", Code: "KR", Region: "Asia"},
		{Name: "Egypt", Flag: "🇪🇬", Code: "EG", Region: "Africa"},
	},
	Medium: {
		{Name: "Sweden", Flag: "🇸🇪", Code: "SE", Region: "Europe"},
		{Name: "Norway", Flag: "🇳🇴", Code: "NO", Region: "Europe"},
		{Name: "Poland", Flag: "🇵🇱", Code: "PL", Region: "Europe"},
		{Name: "Netherlands", Flag: "🇳🇱", Code: "NL", Region: "Europe"},
		{Name: "Greece", Flag: "🇬🇷", Code: "GR", Region: "Europe"},
		{Name: "Turkey", Flag: "🇹🇷", Code: "TR", Region: "Asia"},
		{Name: "Argentina", Flag: "🇦🇷", Code: "AR", Region: "Americas"},
		{Name: "Thailand", Flag: "🇹🇭", Code: "TH", Region: "Asia"},
		{Name: "Vietnam", Flag: "🇻🇳", Code: "VN", Region: "Asia"},
		{Name: "Nigeria", Flag: "🇳🇬", Code: "NG", Region: "Africa"},
		{Name: "Kenya", Flag: "🇰🇪", Code: "KE", Region: "Africa"},
		{Name: "Portugal", Flag: "🇵🇹", Code: "PT", Region: "Europe"},
		{Name: "Switzerland", Flag: "🇨🇭", Code: "CH", Region: "Europe"},
		{Name: "Austria", Flag: "🇦🇹", Code: "AT", Region: "Europe"},
		{Name: "Indonesia", Flag: "🇮🇩", Code: "ID", Region: "Asia"},
		{Name: "Chile", Flag: "🇨🇱", Code: "CL", Region: "Americas"},
	},
	Hard: {
		{Name: "Uruguay", Flag: "🇺🇾", Code: "UY", Region: "Americas"},
		{Name: "Finland", Flag: "🇫🇮", Code: "FI", Region: "Europe"},
		{Name: "Denmark", Flag: "🇩🇰", Code: "DK", Region: "Europe"},
		{Name: "Croatia", Flag: "🇭🇷", Code: "HR", Region: "Europe"},
		{Name: "Morocco", Flag: "🇲🇦", Code: "MA", Region: "Africa"},
		{Name: "Ghana", Flag: "🇬🇭", Code: "GH", Region: "Africa"},
		{Name: "Peru", Flag: "🇵🇪", Code: "PE", Region: "Americas"},
		{Name: "Colombia", Flag: "🇨🇴", Code: "CO", Region: "Americas"},
		{Name: "Philippines", Flag: "🇵🇭", Code: "PH", Region: "Asia"},
		{Name: "Malaysia", Flag: "🇲🇾", Code: "MY", Region: "Asia"},
		{Name: "Ukraine", Flag: "🇺🇦", Code: "UA", Region: "Europe"},
		{Name: "Romania", Flag: "🇷🇴", Code: "RO", Region: "Europe"},
		{Name: "Hungary", Flag: "🇭🇺", Code: "HU", Region: "Europe"},
		{Name: "Iceland", Flag: "🇮🇸", Code: "IS", Region: "Europe"},
		{Name: "New Zealand", Flag: "🇳🇿", Code: "NZ", Region: "Oceania"},
		{Name: "Israel", Flag: "🇮🇱", Code: "IL", Region: "Asia"},
	},
	Expert: {
		{Name: "Bhutan", Flag: "🇧🇹", Code: "BT", Region: "Asia"},
		{Name: "Suriname", Flag: "🇸🇷", Code: "SR", Region: "Americas"},
		{Name: "Eswatini", Flag: "🇸🇿", Code: "SZ", Region: "Africa"},
		{Name: "Moldova", Flag: "🇲🇩", Code: "MD", Region: "Europe"},
		{Name: "Djibouti", Flag: "🇩🇯", Code: "DJ", Region: "Africa"},
		{Name: "Kiribati", Flag: "🇰🇮", Code: "KI", Region: "Oceania"},
		{Name: "Tajikistan", Flag: "🇹🇯", Code: "TJ", Region: "Asia"},
		{Name: "Lesotho", Flag: "🇱🇸", Code: "LS", Region: "Africa"},
		{Name: "Timor-Leste", Flag: "🇹🇱", Code: "TL", Region: "Asia"},
		{Name: "Comoros", Flag: "🇰🇲", Code: "KM", Region: "Africa"},
		{Name: "Palau", Flag: "🇵🇼", Code: "PW", Region: "Oceania"},
		{Name: "San Marino", Flag: "🇸🇲", Code: "SM", Region: "Europe"},
		{Name: "Nauru", Flag: "🇳🇷", Code: "NR", Region: "Oceania"},
		{Name: "Andorra", Flag: "🇦🇩", Code: "AD", Region: "Europe"},
		{Name: "Brunei", Flag: "🇧🇳", Code: "BN", Region: "Asia"},
		{Name: "Malawi", Flag: "🇲🇼", Code: "MW", Region: "Africa"},
	},
}

// poolFor returns the cumulative set of countries available at a
// difficulty: easy is just the easy tier, expert is all four tiers pooled,
// so that harder games draw from a strictly larger population.
func poolFor(difficulty string) []Country {
	tiers := []string{Easy}
	switch difficulty {
	case Medium:
		tiers = []string{Easy, Medium}
	case Hard:
		tiers = []string{Easy, Medium, Hard}
	case Expert:
		tiers = []string{Easy, Medium, Hard, Expert}
	}
	var all []Country
	for _, t := range tiers {
		all = append(all, pool[t]...)
	}
	return all
}

// Provider selects the next question. NextQuestion returns (nil, false)
// when the pool at this difficulty is exhausted by usedCountries.
type Provider struct{}

// NewProvider constructs the reference Question Provider.
func NewProvider() *Provider { return &Provider{} }

// NextQuestion implements the documented provider contract: given a
// difficulty and the set of country codes already used this game, return
// the next question, or (nil, false) if the pool is exhausted.
func (p *Provider) NextQuestion(difficulty string, used map[string]bool) (*Question, bool) {
	all := poolFor(difficulty)

	var remaining []Country
	for _, c := range all {
		if !used[c.Code] {
			remaining = append(remaining, c)
		}
	}
	if len(remaining) == 0 {
		return nil, false
	}

	correct := remaining[rand.IntN(len(remaining))]
	options := buildOptions(correct, all)
	return &Question{CurrentCountry: correct, Options: options}, true
}

// buildOptions returns a 4-element shuffle containing correct, preferring
// same-region distractors before falling back to any other country.
func buildOptions(correct Country, all []Country) []Country {
	var sameRegion, other []Country
	for _, c := range all {
		if c.Code == correct.Code {
			continue
		}
		if c.Region == correct.Region {
			sameRegion = append(sameRegion, c)
		} else {
			other = append(other, c)
		}
	}
	rand.Shuffle(len(sameRegion), func(i, j int) { sameRegion[i], sameRegion[j] = sameRegion[j], sameRegion[i] })
	rand.Shuffle(len(other), func(i, j int) { other[i], other[j] = other[j], other[i] })

	options := []Country{correct}
	for _, c := range sameRegion {
		if len(options) == 4 {
			break
		}
		options = append(options, c)
	}
	for _, c := range other {
		if len(options) == 4 {
			break
		}
		options = append(options, c)
	}
	rand.Shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })
	return options
}
