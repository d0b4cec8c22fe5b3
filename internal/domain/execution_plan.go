package domain

// ExecutionPlan is the ordered list of stages one run will execute.
type ExecutionPlan struct {
	RunID  string
	Images []string
	Steps  []ExecutionPlanStep
	Edges  []ExecutionPlanEdge
}

type ExecutionPlanStep struct {
	Stage Stage
}

// ExecutionPlanEdge records that To consumes the output of From.
type ExecutionPlanEdge struct {
	From Stage
	To   Stage
}

// Last returns the final stage of the plan, or "" for an empty plan.
func (p ExecutionPlan) Last() Stage {
	if len(p.Steps) == 0 {
		return ""
	}
	return p.Steps[len(p.Steps)-1].Stage
}
