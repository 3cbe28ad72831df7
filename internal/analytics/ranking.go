package analytics

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"purchaseflow/internal/core"
)

// TopSize is the length of the ranking shown on the dashboard.
const TopSize = 5

// Outcome distinguishes the three shapes a ranking can take.
type Outcome int

const (
	NoData Outcome = iota
	SingleLeader
	Tie
)

func (o Outcome) String() string {
	switch o {
	case SingleLeader:
		return "single"
	case Tie:
		return "tie"
	default:
		return "no_data"
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(text []byte) error {
	switch string(text) {
	case "single":
		*o = SingleLeader
	case "tie":
		*o = Tie
	case "no_data":
		*o = NoData
	default:
		return fmt.Errorf("unknown outcome %q", text)
	}
	return nil
}

type ProductCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Ranking counts purchases per product. When several products share the
// highest count they are all Leaders and Outcome is Tie.
type Ranking struct {
	Outcome Outcome
	Leaders []string
	Count   int // purchase count of the leaders
	Ranked  []ProductCount
	Top     []ProductCount // first TopSize entries of Ranked
}

// TopProducts ranks the resolved product names of purchases by number of
// occurrences, descending. Equal counts keep first-seen order.
func TopProducts(purchases []core.Purchase, products []core.Product) Ranking {
	if len(purchases) == 0 {
		return Ranking{Outcome: NoData}
	}

	index := make(map[string]int)
	var ranked []ProductCount
	for _, p := range purchases {
		name := p.ResolvedName(products)
		i, ok := index[name]
		if !ok {
			i = len(ranked)
			index[name] = i
			ranked = append(ranked, ProductCount{Name: name})
		}
		ranked[i].Count++
	}
	slices.SortStableFunc(ranked, func(a, b ProductCount) int {
		return cmp.Compare(b.Count, a.Count)
	})

	maxCount := ranked[0].Count
	var leaders []string
	for _, pc := range ranked {
		if pc.Count != maxCount {
			break
		}
		leaders = append(leaders, pc.Name)
	}

	outcome := SingleLeader
	if len(leaders) > 1 {
		outcome = Tie
	}
	return Ranking{
		Outcome: outcome,
		Leaders: leaders,
		Count:   maxCount,
		Ranked:  ranked,
		Top:     ranked[:min(TopSize, len(ranked))],
	}
}

// Title is the leader line of the top-product card.
func (r Ranking) Title() string {
	if r.Outcome == NoData {
		return "—"
	}
	return strings.Join(r.Leaders, " = ")
}

// Caption describes the leader count, or the empty period.
func (r Ranking) Caption() string {
	switch r.Outcome {
	case Tie:
		return fmt.Sprintf("Égalité à %d achat(s)", r.Count)
	case SingleLeader:
		return fmt.Sprintf("%d achat(s)", r.Count)
	default:
		return "Aucun achat sur cette période"
	}
}
