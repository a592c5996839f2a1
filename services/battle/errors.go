package battle

import "errors"

// Precondition and conflict errors returned by the coordinator. Controllers
// map these to HTTP status codes; everything else is a store failure and
// surfaces as a 500.
var (
	ErrNotAuthenticated  = errors.New("must be signed in")
	ErrAlreadyQueued     = errors.New("already in queue or battle")
	ErrNotQueuing        = errors.New("not currently in queue")
	ErrNoActiveBattle    = errors.New("no active battle")
	ErrAlreadyJoined     = errors.New("already in this battle session")
	ErrSessionFull       = errors.New("battle session already full")
	ErrResultExists      = errors.New("result already submitted for this session")
	ErrSessionNotFound   = errors.New("battle session not found")
	ErrInvalidBattleType = errors.New("invalid battle type")
)
