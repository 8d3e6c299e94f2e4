package chain

import "github.com/civicledger/corechain/governance"

// applyEpochRetune runs the epoch-aligned governance retune of spec.md
// §4.11 when state.BlockHeight lands on an epoch boundary: it computes
// rolling inflation against the emission recorded one year of epochs back,
// retunes the subsidy coefficients and the industrial multiplier from this
// epoch's utilization and backlog, then records the current cumulative
// emission for later lookbacks.
func applyEpochRetune(state *State, util governance.Utilization, backlogRatio float64) {
	rollingInflation := governance.RollingInflation(state.EmissionConsumer, state.emissionOneYearAgo().Consumer)

	state.Params.Subsidy = governance.Retune(state.Params.Subsidy, util, rollingInflation, 0)
	state.Params.IndustrialMultiplier = governance.RetuneIndustrialMultiplier(state.Params.IndustrialMultiplier, backlogRatio)

	state.pushEmissionSnapshot()
	state.EpochCounter++

	log.Infof("epoch %d retune: subsidy=%+v industrial_multiplier=%.4f rolling_inflation=%.4f",
		state.EpochCounter, state.Params.Subsidy, state.Params.IndustrialMultiplier, rollingInflation)
}
