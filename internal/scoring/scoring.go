package scoring

import (
	"trivia-service/internal/constants"
	"trivia-service/internal/models"
)

const (
	infiniteBasePoints = 100
	streakBonusStep    = 5
)

// IsCorrect applies the exact-match rule. A timed-out answer is never
// correct, whatever happens to be in SelectedAnswer.
func IsCorrect(q *models.Question, a *models.Answer) bool {
	if a.TimedOut || a.SelectedAnswer == "" {
		return false
	}
	return a.SelectedAnswer == q.CorrectAnswer
}

// ServerPoints computes the authoritative score for server-backed modes:
// the base value decays linearly with response time down to half at the
// limit, plus a capped streak bonus.
func ServerPoints(q *models.Question, a *models.Answer, streakBefore int) int {
	if !IsCorrect(q, a) {
		return 0
	}

	points := q.BasePoints
	timeLimitMs := int64(q.TimeLimitSec) * 1000
	if timeLimitMs > 0 {
		timeRatio := float64(a.ResponseTimeMs) / float64(timeLimitMs)
		if timeRatio > 1.0 {
			timeRatio = 1.0
		}
		if timeRatio < 0 {
			timeRatio = 0
		}
		points = int(float64(q.BasePoints) * (1.0 - 0.5*timeRatio))
	}

	return points + streakBonus(streakBefore)
}

// InfinitePoints is the fixed client-side rule for infinite mode.
func InfinitePoints(q *models.Question, a *models.Answer, streakBefore int) int {
	if !IsCorrect(q, a) {
		return 0
	}
	return infiniteBasePoints + streakBonus(streakBefore)
}

func streakBonus(streakBefore int) int {
	if streakBefore > constants.StreakBonusCap {
		streakBefore = constants.StreakBonusCap
	}
	if streakBefore < 0 {
		streakBefore = 0
	}
	return streakBefore * streakBonusStep
}
