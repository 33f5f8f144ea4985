package model

// AssignmentMethod describes how a vehicle acquired its current block
// assignment.
type AssignmentMethod int

const (
	AssignmentUnset AssignmentMethod = iota
	// AssignmentAvlFeed means the assignment came directly from the AVL feed.
	AssignmentAvlFeed
	// AssignmentBlockFeed means an explicit block or route assignment.
	AssignmentBlockFeed
	// AssignmentAuto means the auto assigner matched the vehicle.
	AssignmentAuto
	// AssignmentGrabbed means another vehicle took over an exclusive
	// assignment this vehicle held.
	AssignmentGrabbed
	// AssignmentTerminated means the assignment was forcibly ended, for
	// example after too many bad matches.
	AssignmentTerminated
)

var assignmentMethodNames = map[AssignmentMethod]string{
	AssignmentUnset:      "unset",
	AssignmentAvlFeed:    "avl_feed",
	AssignmentBlockFeed:  "block_feed",
	AssignmentAuto:       "auto",
	AssignmentGrabbed:    "grabbed",
	AssignmentTerminated: "terminated",
}

func (m AssignmentMethod) String() string {
	if s, ok := assignmentMethodNames[m]; ok {
		return s
	}
	return "unknown"
}

// Problematic reports whether the method marks an assignment that was taken
// away for a structural reason and should not be silently re-accepted.
func (m AssignmentMethod) Problematic() bool {
	return m == AssignmentGrabbed || m == AssignmentTerminated
}
