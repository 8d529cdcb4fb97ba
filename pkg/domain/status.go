package domain

// DeriveStatus maps the statuses of an epic's children to the epic's own
// status. An empty sequence or one made only of NEW yields NEW, one made only
// of DONE yields DONE, and anything else yields IN_PROGRESS.
func DeriveStatus(children []Status) Status {
	if len(children) == 0 {
		return StatusNew
	}
	allNew, allDone := true, true
	for _, st := range children {
		if st != StatusNew {
			allNew = false
		}
		if st != StatusDone {
			allDone = false
		}
	}
	switch {
	case allNew:
		return StatusNew
	case allDone:
		return StatusDone
	default:
		return StatusInProgress
	}
}
