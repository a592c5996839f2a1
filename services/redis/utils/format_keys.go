package utils

/**
 * This file contains utility functions to format the keys and channels for
 * Redis (key, value) pairs. It avoids having to call "fmt.Sprintf(...)"
 * with the same format spec every time, potentially confusing the key format.
 */

import "fmt"

func FormatQueueStateKey(username string) string {
	return fmt.Sprintf("battle:queue:%s", username)
}

func FormatSessionChannel(sessionId string) string {
	return fmt.Sprintf("battle:session:%s", sessionId)
}
