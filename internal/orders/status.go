package orders

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusAccepted  Status = "ACCEPTED"
	StatusReady     Status = "READY"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusAccepted: true, StatusCancelled: true},
	StatusAccepted:  {StatusReady: true, StatusCancelled: true},
	StatusReady:     {StatusCompleted: true},
	StatusCompleted: {},
	StatusCancelled: {},
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

// Active reports whether the order still waits on the merchant.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusAccepted
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}
