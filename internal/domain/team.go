package domain

// AssignmentMode selects how a team's work is routed.
type AssignmentMode string

const (
	AssignmentManual       AssignmentMode = "manual"
	AssignmentRoundRobin   AssignmentMode = "round_robin"
	AssignmentLoadBalanced AssignmentMode = "load_balanced"
)

// Valid reports whether m is a known mode.
func (m AssignmentMode) Valid() bool {
	switch m {
	case AssignmentManual, AssignmentRoundRobin, AssignmentLoadBalanced:
		return true
	}
	return false
}

// Team groups engineers who share a queue.
type Team struct {
	ID             string         `yaml:"id"`
	Name           string         `yaml:"name"`
	AssignmentMode AssignmentMode `yaml:"assignment_mode"`
	MemberIDs      []string       `yaml:"members"`
}
