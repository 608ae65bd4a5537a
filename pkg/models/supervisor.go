package models

// SubGoalStatus is the lifecycle state of a SubGoal. A SubGoal transitions
// only Pending -> InProgress -> (Completed | Failed); once terminal it is
// immutable.
type SubGoalStatus string

const (
	SubGoalPending    SubGoalStatus = "pending"
	SubGoalInProgress SubGoalStatus = "in_progress"
	SubGoalCompleted  SubGoalStatus = "completed"
	SubGoalFailed     SubGoalStatus = "failed"
)

func (s SubGoalStatus) terminal() bool {
	return s == SubGoalCompleted || s == SubGoalFailed
}

// SubGoal is a named, status-tracked unit of work declared by the
// supervisor at planning time. SubGoals are owned by the single
// SupervisorAgent call that created them and are discarded after.
type SubGoal struct {
	ID          string        `json:"id"`
	Description string        `json:"description"`
	Status      SubGoalStatus `json:"status"`
	Result      string        `json:"result,omitempty"`
}

// TaskProgress tracks an ordered sequence of SubGoal plus cached counts.
// completed_count + failed_count <= len(sub_goals) always holds.
type TaskProgress struct {
	goals     []*SubGoal
	byID      map[string]*SubGoal
	completed int
	failed    int
}

// NewTaskProgress builds a TaskProgress from a declared, ordered list of
// sub-goals, all starting Pending.
func NewTaskProgress(declared []SubGoal) *TaskProgress {
	tp := &TaskProgress{byID: make(map[string]*SubGoal, len(declared))}
	for _, d := range declared {
		g := &SubGoal{ID: d.ID, Description: d.Description, Status: SubGoalPending}
		tp.goals = append(tp.goals, g)
		tp.byID[g.ID] = g
	}
	return tp
}

// Goals returns the sub-goals in declared order. The returned slice is a
// defensive copy of the pointers; callers must not mutate goal fields
// directly, only through Transition.
func (tp *TaskProgress) Goals() []SubGoal {
	out := make([]SubGoal, len(tp.goals))
	for i, g := range tp.goals {
		out[i] = *g
	}
	return out
}

// Get returns a copy of the named sub-goal.
func (tp *TaskProgress) Get(id string) (SubGoal, bool) {
	g, ok := tp.byID[id]
	if !ok {
		return SubGoal{}, false
	}
	return *g, true
}

// Transition moves the named sub-goal to a new status, recording result
// text for terminal transitions. It refuses to move a sub-goal out of a
// terminal state (P3: SubGoal status monotonicity).
func (tp *TaskProgress) Transition(id string, status SubGoalStatus, result string) error {
	g, ok := tp.byID[id]
	if !ok {
		return ErrSubGoalNotFound
	}
	if g.Status.terminal() {
		return ErrSubGoalTerminal
	}
	g.Status = status
	if status == SubGoalCompleted || status == SubGoalFailed {
		g.Result = result
		if status == SubGoalCompleted {
			tp.completed++
		} else {
			tp.failed++
		}
	}
	return nil
}

// AllCompleted reports whether every sub-goal is Completed. An empty
// TaskProgress (no declared sub-goals) is vacuously complete.
func (tp *TaskProgress) AllCompleted() bool {
	if len(tp.goals) == 0 {
		return true
	}
	return tp.completed == len(tp.goals)
}

// ProgressRatio returns completed_count / len(sub_goals), or 1.0 when
// there are no sub-goals.
func (tp *TaskProgress) ProgressRatio() float64 {
	if len(tp.goals) == 0 {
		return 1.0
	}
	return float64(tp.completed) / float64(len(tp.goals))
}

// PendingDescriptions lists the description of every sub-goal not yet
// terminal, in declared order.
func (tp *TaskProgress) PendingDescriptions() []string {
	var out []string
	for _, g := range tp.goals {
		if !g.Status.terminal() {
			out = append(out, g.Description)
		}
	}
	return out
}

// DetailedStatus renders a stable, human-readable summary of every
// sub-goal's current status, used as the Timeout partial_result.
func (tp *TaskProgress) DetailedStatus() string {
	out := ""
	for i, g := range tp.goals {
		if i > 0 {
			out += "\n"
		}
		out += string(g.Status) + ": " + g.Description
		if g.Result != "" {
			out += " (" + g.Result + ")"
		}
	}
	return out
}
