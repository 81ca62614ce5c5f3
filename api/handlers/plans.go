package handlers

import "github.com/dctlabs/dct-backend/api/ton"

// Plan defines a subscription tier: its price and the stake terms credited
// on settlement. Weight and lock duration are a pure function of the plan.
type Plan struct {
	Name       string
	PriceNano  int64
	LockMonths int
	Weight     float64
}

var plans = map[string]Plan{
	"starter": {Name: "starter", PriceNano: 99 * ton.NanotonsPerTON, LockMonths: 3, Weight: 1.0},
	"builder": {Name: "builder", PriceNano: 299 * ton.NanotonsPerTON, LockMonths: 6, Weight: 1.2},
	"pro":     {Name: "pro", PriceNano: 899 * ton.NanotonsPerTON, LockMonths: 12, Weight: 1.5},
	"whale":   {Name: "whale", PriceNano: 2999 * ton.NanotonsPerTON, LockMonths: 12, Weight: 2.0},
}

// PlanByName looks up a subscription plan.
func PlanByName(name string) (Plan, bool) {
	p, ok := plans[name]
	return p, ok
}
