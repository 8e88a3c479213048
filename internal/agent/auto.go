package agent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// objectiveRotation is the artifact-type order auto mode works through.
// Each completed objective rotates to the next type for the same entity.
var objectiveRotation = []string{
	"name",
	"username",
	"wallet_address",
	"code",
}

// NextObjectives returns the objectives auto mode would queue after the
// current one, for the same entity.
func NextObjectives(current, entity string, limit int) []string {
	currentType := inferObjectiveType(current)
	start := 0
	for i, t := range objectiveRotation {
		if t == currentType {
			start = i + 1
			break
		}
	}

	var out []string
	for i := start; i < len(objectiveRotation) && len(out) < limit; i++ {
		out = append(out, fmt.Sprintf("find %s artifacts around %s", objectiveRotation[i], entity))
	}
	return out
}

// RunAuto runs up to maxObjectives objectives back to back, splitting
// the wall-clock budget evenly. Each objective is archived when it
// closes and its summary written to sessionsDir.
func (a *Agent) RunAuto(ctx context.Context, firstObjective, entity string, maxObjectives int, budget time.Duration, sessionsDir string) error {
	if maxObjectives < 1 {
		maxObjectives = 1
	}

	queue := append([]string{firstObjective}, NextObjectives(firstObjective, entity, maxObjectives-1)...)
	if len(queue) > maxObjectives {
		queue = queue[:maxObjectives]
	}
	perObjective := budget / time.Duration(len(queue))

	for i, objective := range queue {
		if ctx.Err() != nil {
			break
		}

		result, err := a.Run(ctx, objective, entity, perObjective)
		if err != nil {
			return fmt.Errorf("objective %q failed: %w", objective, err)
		}

		remaining := queue[i+1:]
		path, err := WriteSummary(sessionsDir, result, remaining)
		if err != nil {
			a.logger.Warn("Failed to write session summary", zap.Error(err))
		} else {
			a.logger.Info("Session summary written", zap.String("path", path))
		}

		if err := a.CloseObjective(objective); err != nil {
			a.logger.Warn("Failed to archive objective", zap.Error(err))
		}
	}
	return nil
}
