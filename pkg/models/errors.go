package models

import "errors"

// Sentinel errors for the AgentDecision and SubGoal invariants.
var (
	errDecisionFinalWithAction       = errors.New("models: decision is_final but action is set")
	errDecisionFinalWithoutAnswer    = errors.New("models: decision is_final but final_answer is empty")
	errDecisionNotFinalWithoutAction = errors.New("models: decision is not final but action is unset")

	// ErrSubGoalTerminal is returned by TaskProgress.Transition when a
	// caller attempts to move a Completed or Failed sub-goal elsewhere.
	ErrSubGoalTerminal = errors.New("models: sub-goal is already in a terminal state")

	// ErrSubGoalNotFound is returned when a transition targets an unknown
	// sub-goal id.
	ErrSubGoalNotFound = errors.New("models: sub-goal not found")
)
