package models

// SubscriptionTier gates feature access and daily lesson volume
type SubscriptionTier string

const (
	TierFree    SubscriptionTier = "free"
	TierPremium SubscriptionTier = "premium"
)

// Profile holds a learner's mutable account state: the SkillCoin balance,
// rolled-up lesson counters and the current streak.
type Profile struct {
	UserID           string           `json:"user_id"`
	SkillCoins       int              `json:"skill_coins"`
	LessonsCompleted int              `json:"lessons_completed"`
	Streak           int              `json:"streak"`
	LastLessonDay    string           `json:"last_lesson_day,omitempty"` // YYYY-MM-DD
	Tier             SubscriptionTier `json:"tier"`
}

// UsageStats tracks per-day and per-month lesson volume for tier limits
type UsageStats struct {
	Day                string `json:"day"`   // YYYY-MM-DD the daily counter belongs to
	Month              string `json:"month"` // YYYY-MM the monthly counter belongs to
	LessonsToday       int    `json:"lessons_today"`
	LessonsThisMonth   int    `json:"lessons_this_month"`
	CertificatesEarned int    `json:"certificates_earned"`
}
