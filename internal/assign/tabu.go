package assign

import (
	"fleetroute/internal/cost"
	"fleetroute/internal/model"
)

// tabuMove is a pair of location indices whose swap is forbidden in
// either order while it sits on the tabu list.
type tabuMove struct{ a, b int }

type tabuList struct {
	moves  []tabuMove
	tenure int
}

func (l *tabuList) push(m tabuMove) {
	l.moves = append(l.moves, m)
	if len(l.moves) > l.tenure {
		l.moves = l.moves[1:]
	}
}

func (l *tabuList) forbidden(a, b int) bool {
	for _, m := range l.moves {
		if (m.a == a && m.b == b) || (m.a == b && m.b == a) {
			return true
		}
	}
	return false
}

// tabuSearch refines a solution by swapping order pairs within a
// single vehicle's route. Capacity is unchanged by a swap, so only the
// duration constraint is rechecked. Returns the best solution found
// and its fleet minutes, or (nil, +Inf) when no move was ever legal.
func tabuSearch(initial model.Routes, times model.Matrix, cfg Config) (model.Routes, float64) {
	if initial == nil {
		return nil, cost.Infeasible
	}
	best := initial.Clone()
	bestCost := cost.FleetMinutes(best, times)
	current := initial.Clone()
	tabu := tabuList{tenure: cfg.TabuTenure}

	for iter := 0; iter < cfg.TabuIterations; iter++ {
		bestVehicle, bestI, bestJ := -1, -1, -1
		bestChange := cost.Infeasible
		var bestMove tabuMove

		for v, route := range current {
			if len(route) < 2 {
				continue
			}
			routeCost := cost.RouteMinutes(route, times)
			for i := 0; i < len(route); i++ {
				for j := i + 1; j < len(route); j++ {
					la, lb := route[i].Location, route[j].Location
					if la == lb || tabu.forbidden(la, lb) {
						continue
					}
					swapped := append([]model.Order(nil), route...)
					swapped[i], swapped[j] = swapped[j], swapped[i]
					swappedCost := cost.RouteMinutes(swapped, times)
					if swappedCost > cfg.MaxRouteMinutes {
						continue
					}
					if change := swappedCost - routeCost; change < bestChange {
						bestChange = change
						bestVehicle, bestI, bestJ = v, i, j
						bestMove = tabuMove{la, lb}
					}
				}
			}
		}

		if bestVehicle < 0 {
			break
		}
		route := current[bestVehicle]
		route[bestI], route[bestJ] = route[bestJ], route[bestI]
		tabu.push(bestMove)

		if c := cost.FleetMinutes(current, times); c < bestCost {
			best = current.Clone()
			bestCost = c
		}
	}
	return best, bestCost
}
