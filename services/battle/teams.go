package battle

import (
	battle_constants "PawArena/constants/battle"
	models "PawArena/models/postgres"
)

// AssignTeam picks the team for the next joiner given the participants
// already in the session. The first participant always opens team A. For
// two-player types every later joiner is team B. For four-player types the
// joiner lands on the smaller team, ties going to team A, which yields an
// A/B/A/B fill order. Co-op teams are nominal but assigned the same way.
func AssignTeam(existing []*models.BattleParticipant, battleType string) string {
	if len(existing) == 0 {
		return battle_constants.TeamA
	}

	if battle_constants.MaxParticipants(battleType) <= 2 {
		return battle_constants.TeamB
	}

	countA, countB := 0, 0
	for _, p := range existing {
		if p.Team == battle_constants.TeamA {
			countA++
		} else {
			countB++
		}
	}
	if countB < countA {
		return battle_constants.TeamB
	}
	return battle_constants.TeamA
}
