package status

import (
	"slices"
	"strings"
)

type Status string

const (
	Ordered              Status = "Ordered"
	Shipped              Status = "Shipped"
	Delivered            Status = "Delivered"
	Cancelled            Status = "Cancelled"
	ReturnRequested      Status = "Return Requested"
	DepartedForReturning Status = "Departed For Returning"
	Returned             Status = "Returned"
	ReturnCancelled      Status = "Return Cancelled"
	Refunded             Status = "Refunded"
)

var all = []Status{
	Ordered,
	Shipped,
	Delivered,
	Cancelled,
	ReturnRequested,
	DepartedForReturning,
	Returned,
	ReturnCancelled,
	Refunded,
}

var transitions = map[Status][]Status{
	Ordered:              {Shipped, Cancelled},
	Shipped:              {Delivered},
	Delivered:            {ReturnRequested},
	Cancelled:            {Refunded},
	ReturnRequested:      {DepartedForReturning, ReturnCancelled},
	DepartedForReturning: {Returned, ReturnCancelled},
	Returned:             {Refunded},
	ReturnCancelled:      {},
	Refunded:             {},
}

var descriptions = map[Status]string{
	Ordered:              "Order placed and awaiting dispatch",
	Shipped:              "Handed over to the courier",
	Delivered:            "Delivered to the customer",
	Cancelled:            "Cancelled before dispatch",
	ReturnRequested:      "Customer asked to return the item",
	DepartedForReturning: "Return pickup done, item on its way back",
	Returned:             "Returned item received at the warehouse",
	ReturnCancelled:      "Return was cancelled",
	Refunded:             "Amount refunded to the customer",
}

// All returns every status in graph order.
func All() []Status {
	return slices.Clone(all)
}

// CanTransition reports whether target is a direct successor of current.
// Unknown statuses never transition.
func CanTransition(current, target Status) bool {
	next, ok := transitions[current]
	if !ok {
		return false
	}
	return slices.Contains(next, target)
}

// returnToOrigin holds the edges a carrier may take when a shipment comes back
// to the seller without ever reaching the customer. User and admin actions
// never use them.
var returnToOrigin = map[Status][]Status{
	Shipped: {Returned},
}

// CanReturnToOrigin reports whether a carrier return-to-origin event may move
// current directly to target.
func CanReturnToOrigin(current, target Status) bool {
	return slices.Contains(returnToOrigin[current], target)
}

// Next lists the legal successors of current. The slice is owned by the caller.
func Next(current Status) []Status {
	return slices.Clone(transitions[current])
}

func IsTerminal(s Status) bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

func Valid(s Status) bool {
	_, ok := transitions[s]
	return ok
}

func Describe(s Status) string {
	return descriptions[s]
}

// Parse accepts the canonical spelling as well as case and separator variants
// such as "return_requested" or "RETURN-REQUESTED".
func Parse(v string) (Status, bool) {
	key := normalize(v)
	for _, s := range all {
		if normalize(string(s)) == key {
			return s, true
		}
	}
	return "", false
}

// ReachableFrom returns every status reachable from start, start included.
func ReachableFrom(start Status) []Status {
	if !Valid(start) {
		return nil
	}
	seen := map[Status]bool{start: true}
	queue := []Status{start}
	out := []Status{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, n := range transitions[cur] {
			if seen[n] {
				continue
			}
			seen[n] = true
			out = append(out, n)
			queue = append(queue, n)
		}
	}
	return out
}

func (s Status) String() string { return string(s) }

func normalize(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	r := strings.NewReplacer("_", " ", "-", " ")
	return strings.Join(strings.Fields(r.Replace(v)), " ")
}
