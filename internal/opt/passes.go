package opt

import (
	"context"

	"routeopt/internal/logging"
)

// Optimize runs rounds until one makes no improvement, ctx is cancelled or
// maxRounds rounds have run. Odd rounds prefer layer directions. It returns
// the number of rounds that ran. maxRounds <= 0 means no limit.
func (s *Scheduler) Optimize(ctx context.Context, maxRounds int) int {
	ran := 0
	for roundNo := 1; maxRounds <= 0 || roundNo <= maxRounds; roundNo++ {
		if ctx.Err() != nil {
			break
		}
		improved := s.RunRound(ctx, roundNo, roundNo%2 == 1)
		ran++
		if s.LastSummary().Interrupted {
			break
		}
		if !improved {
			s.log.V(logging.DEFAULT).Info("Board did not improve, stopping", "rounds", ran)
			break
		}
	}
	p := s.progress()
	s.log.V(logging.DEFAULT).Info("Optimization finished", "rounds", ran, "vias", p.Vias,
		"traceLength", p.TraceLength, "weightedLength", p.WeightedLength)
	return ran
}
