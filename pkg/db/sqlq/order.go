package sqlq

import (
	"sort"

	"github.com/hbgk/gkpulse/pkg/geo"
)

// OrderCities puts 省直 first, then taxonomy cities in canonical order, then anything else
// sorted. Empty and 未知 entries are dropped.
func OrderCities(in []string) []string {
	rank := map[string]int{geo.Province: 0}
	for i, c := range geo.Cities() {
		rank[c] = i + 1
	}
	out := make([]string, 0, len(in))
	for _, c := range in {
		if c == "" || c == geo.Unknown {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, iok := rank[out[i]]
		rj, jok := rank[out[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		}
		return out[i] < out[j]
	})
	return out
}

// OrderDistricts sorts the districts of city in taxonomy order, 其他 and unknown names last.
func OrderDistricts(city string, in []string) []string {
	rank := map[string]int{}
	for i, d := range geo.Districts(city) {
		rank[d] = i
	}
	out := make([]string, 0, len(in))
	for _, d := range in {
		if d != "" {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, iok := rank[out[i]]
		rj, jok := rank[out[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		}
		return out[i] < out[j]
	})
	return out
}
