package battle_constants

import "time"

// Battle types supported by the matchmaking queue
const (
	BattleType1v1  = "1v1"
	BattleType2v2  = "2v2"
	BattleTypeRace = "race"
	BattleTypeCoop = "coop"
)

// Session status values
const (
	SessionWaiting    = "waiting"
	SessionInProgress = "in_progress"
	SessionCompleted  = "completed"
	SessionCancelled  = "cancelled"
)

// Team labels. Binary for 1v1/race; 2v2/coop joiners balance between them.
const (
	TeamA = "team_a"
	TeamB = "team_b"
)

// Client-local queue status values
const (
	QueueIdle      = "idle"
	QueueQueuing   = "queuing"
	QueueMatched   = "matched"
	QueueInBattle  = "in_battle"
	QueueCompleted = "completed"
)

// Delay between a match being found and the battle starting.
// Purely client-facing, lets the "match found" screen play out.
const MatchedToBattleDelay = 2 * time.Second

const DefaultXPAwarded = 100

// How many results the battle history endpoint returns
const BattleHistoryLimit = 20

// MinParticipants returns the participant count needed to start a battle
func MinParticipants(battleType string) int {
	switch battleType {
	case BattleType2v2:
		return 4
	case BattleTypeCoop:
		return 2
	case BattleType1v1, BattleTypeRace:
		fallthrough
	default:
		return 2
	}
}

// MaxParticipants returns the participant cap for a battle type
func MaxParticipants(battleType string) int {
	switch battleType {
	case BattleType2v2, BattleTypeCoop:
		return 4
	case BattleType1v1, BattleTypeRace:
		fallthrough
	default:
		return 2
	}
}

// IsValidBattleType reports whether the client sent a known battle type
func IsValidBattleType(battleType string) bool {
	switch battleType {
	case BattleType1v1, BattleType2v2, BattleTypeRace, BattleTypeCoop:
		return true
	}
	return false
}
