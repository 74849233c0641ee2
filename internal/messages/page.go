package messages

const (
	DefaultPageLimit = 30
	MaxPageLimit     = 100
)

type Direction int

const (
	// DirectionLatest returns the newest messages, newest first.
	DirectionLatest Direction = iota
	// DirectionBefore returns messages created strictly before the cursor, newest first.
	DirectionBefore
	// DirectionAfter returns messages created strictly after the cursor, oldest
	// first. Unlike the other directions it is not newest first: these are the
	// limit messages right after the cursor, so clients can walk forward.
	DirectionAfter
)

type ListRequest struct {
	Limit    *int
	BeforeID string
	AfterID  string
}

type Page struct {
	Limit     int
	Direction Direction
	Cursor    string
}

// NormalizePage clamps the limit into [1, MaxPageLimit] and picks the cursor.
// When both BeforeID and AfterID are set, BeforeID wins.
func NormalizePage(req ListRequest) Page {
	limit := DefaultPageLimit
	if req.Limit != nil {
		limit = min(max(*req.Limit, 1), MaxPageLimit)
	}

	switch {
	case req.BeforeID != "":
		return Page{Limit: limit, Direction: DirectionBefore, Cursor: req.BeforeID}
	case req.AfterID != "":
		return Page{Limit: limit, Direction: DirectionAfter, Cursor: req.AfterID}
	}
	return Page{Limit: limit, Direction: DirectionLatest}
}
