package constants

const (
	ModeQuick     = "quick"
	ModeChallenge = "challenge"
	ModeDaily     = "daily"
	ModeInfinite  = "infinite"
)

const (
	SessionStatusInProgress = "in_progress"
	SessionStatusCompleted  = "completed"
	SessionStatusAbandoned  = "abandoned"
)

// Engine states for one question cycle.
const (
	StateLoading        = "loading"
	StateAwaitingAnswer = "awaiting_answer"
	StateShowingResult  = "showing_result"
	StateCompleted      = "completed"
	StateGameOver       = "game_over"
)

const (
	ArchetypeCapital         = "capital"
	ArchetypeFlag            = "flag"
	ArchetypeCurrency        = "currency"
	ArchetypeLanguage        = "language"
	ArchetypePopulationRange = "population_range"
	ArchetypeRegion          = "region"
	ArchetypeAreaRange       = "area_range"
)

const (
	QuickQuestionCount     = 10
	ChallengeQuestionCount = 15
	DailyQuestionCount     = 10
)

// StreakBonusCap bounds the per-answer streak bonus in infinite mode.
const StreakBonusCap = 10
