package waterfall

import (
	"sort"

	"github.com/shopspring/decimal"
)

// allocate splits pool across investors in proportion to weights, never giving investor i
// more than caps[i] (nil caps means uncapped). Shares are rounded down to cents; whatever
// a round could not place because of a cap is spread again over the investors with room.
// Sub-cent residue goes to the largest-weight investor that still has room. The returned
// shares sum to at most pool; the shortfall is what the caps could not absorb.
func allocate(pool decimal.Decimal, weights, caps []decimal.Decimal) []decimal.Decimal {
	shares := make([]decimal.Decimal, len(weights))
	for i := range shares {
		shares[i] = decimal.Zero
	}

	room := func(i int) decimal.Decimal {
		if caps == nil {
			return pool
		}
		return caps[i].Sub(shares[i])
	}

	var active []int
	for i, w := range weights {
		if w.IsPositive() && room(i).IsPositive() {
			active = append(active, i)
		}
	}

	remaining := pool
	for remaining.IsPositive() && len(active) > 0 {
		totalWeight := decimal.Zero
		for _, i := range active {
			totalWeight = totalWeight.Add(weights[i])
		}

		placed := decimal.Zero
		next := active[:0:0]
		for _, i := range active {
			share := remaining.Mul(weights[i]).Div(totalWeight).RoundDown(2)
			if r := room(i); caps != nil && share.GreaterThanOrEqual(r) {
				share = r
			} else {
				next = append(next, i)
			}
			shares[i] = shares[i].Add(share)
			placed = placed.Add(share)
		}
		remaining = remaining.Sub(placed)

		if len(next) == len(active) {
			break
		}
		active = next
	}

	if remaining.IsPositive() && len(active) > 0 {
		byWeight := append([]int(nil), active...)
		sort.SliceStable(byWeight, func(a, b int) bool {
			return weights[byWeight[a]].GreaterThan(weights[byWeight[b]])
		})
		for _, i := range byWeight {
			give := decimal.Min(remaining, room(i))
			shares[i] = shares[i].Add(give)
			remaining = remaining.Sub(give)
			if !remaining.IsPositive() {
				break
			}
		}
	}
	return shares
}

func sum(values []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
