package feed

import "time"

const (
	minReconnectDelay = 1 * time.Second
	maxReconnectDelay = 60 * time.Second
)

// CalculateBackoff is the default reconnect delay after the given number
// of failed attempts: one second, doubling per attempt, at most a minute.
func CalculateBackoff(retryCount int) time.Duration {
	delay := minReconnectDelay
	for i := 0; i < retryCount && delay < maxReconnectDelay; i++ {
		delay *= 2
	}
	return min(delay, maxReconnectDelay)
}
