package analytics

import (
	"context"
	"sort"
)

// Momentum thresholds on day-over-day growth.
const (
	SurgeGrowth        = 50
	AcceleratingBase   = 20
	AcceleratingGrowth = 5
	CoolingBase        = 100
	CoolingGrowth      = 2
)

// Label classifies a position by its previous value and its latest growth. The checks run
// in order and the first one met wins.
func Label(prev, growth int64) string {
	switch {
	case growth >= SurgeGrowth:
		return LabelSurge
	case prev < AcceleratingBase && growth > AcceleratingGrowth:
		return LabelAccelerating
	case prev > CoolingBase && growth < CoolingGrowth:
		return LabelCooling
	default:
		return LabelSteady
	}
}

// Momentum labels every position by its growth between the two latest dates. Data keeps
// the non-steady positions, fastest growth first, capped at limit (0 means no cap).
func (e *Engine) Momentum(ctx context.Context, limit int) (MomentumReport, error) {
	latest, prev, err := e.lastTwo(ctx)
	if err != nil {
		return MomentumReport{}, err
	}
	report := MomentumReport{
		Data:         []MomentumItem{},
		Surge:        MomentumGroup{IDs: []string{}},
		Accelerating: MomentumGroup{IDs: []string{}},
		Cooling:      MomentumGroup{IDs: []string{}},
		Date:         nullable(latest),
		PrevDate:     nullable(prev),
	}
	if prev == "" {
		return report, nil
	}

	positions, before, err := e.deltas(ctx, latest, prev)
	if err != nil {
		return MomentumReport{}, err
	}
	for _, p := range positions {
		previous := before[p.Code]
		growth := p.Applicants - previous

		if growth >= SurgeGrowth {
			report.Surge.add(p.Code)
		}
		if previous < AcceleratingBase && growth > AcceleratingGrowth {
			report.Accelerating.add(p.Code)
		}
		if previous > CoolingBase && growth < CoolingGrowth {
			report.Cooling.add(p.Code)
		}

		label := Label(previous, growth)
		if label == LabelSteady {
			continue
		}
		report.Data = append(report.Data, MomentumItem{
			Code: p.Code, Name: p.Name, City: p.City,
			Applicants: p.Applicants, Previous: previous, Growth: growth, Label: label,
		})
	}

	sort.SliceStable(report.Data, func(i, j int) bool {
		if report.Data[i].Growth != report.Data[j].Growth {
			return report.Data[i].Growth > report.Data[j].Growth
		}
		return report.Data[i].Code < report.Data[j].Code
	})
	if limit > 0 && len(report.Data) > limit {
		report.Data = report.Data[:limit]
	}
	return report, nil
}

func (g *MomentumGroup) add(code string) {
	g.IDs = append(g.IDs, code)
	g.Count++
}
