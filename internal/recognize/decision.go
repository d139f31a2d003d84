package recognize

// Decision is the canonical verdict for a single match query. There is no
// middle state: a nearest neighbor below the threshold is rejected no matter
// how close it came.
type Decision int

const (
	Reject Decision = iota
	Accept
)

func (d Decision) String() string {
	if d == Accept {
		return "accept"
	}
	return "reject"
}

// UnknownLabel is reported for rejected queries.
const UnknownLabel = "unknown"

// Decide maps a similarity score to a verdict. Total and monotonic: accept
// iff similarity >= threshold, the boundary itself accepts.
func Decide(similarity, threshold float64) Decision {
	if similarity >= threshold {
		return Accept
	}
	return Reject
}
