package etherscan

import (
	"sync"
	"time"
)

// UsageStats holds daily quota usage statistics.
type UsageStats struct {
	TotalCalls      int
	CallsPerHour    int
	DailyLimit      int
	RemainingCalls  int
	UsagePercentage float64
	NextResetAt     time.Time
}

// BudgetTracker tracks upstream calls against the daily API quota. It is
// bookkeeping only: the pacer bounds cadence, the tracker answers "how much
// of today's allowance is left" for health reporting.
type BudgetTracker struct {
	mu            sync.RWMutex
	totalCalls    int
	callsThisHour int
	hourStart     time.Time
	actionCalls   map[string]int
	dailyLimit    int
	resetTime     time.Time
}

// NewBudgetTracker creates a tracker with the given daily quota.
func NewBudgetTracker(dailyLimit int) *BudgetTracker {
	now := time.Now()
	return &BudgetTracker{
		actionCalls: make(map[string]int),
		hourStart:   now,
		dailyLimit:  dailyLimit,
		resetTime:   nextMidnight(now),
	}
}

// RecordCall records one upstream call for quota tracking.
func (bt *BudgetTracker) RecordCall(action string) {
	bt.mu.Lock()
	defer bt.mu.Unlock()

	if time.Now().After(bt.resetTime) {
		bt.resetUnsafe()
	}

	if time.Since(bt.hourStart) >= time.Hour {
		bt.callsThisHour = 0
		bt.hourStart = time.Now()
	}

	bt.totalCalls++
	bt.callsThisHour++
	bt.actionCalls[action]++
}

// GetUsage returns current usage statistics.
func (bt *BudgetTracker) GetUsage() UsageStats {
	bt.mu.RLock()
	defer bt.mu.RUnlock()

	remaining := bt.dailyLimit - bt.totalCalls
	if remaining < 0 {
		remaining = 0
	}

	usagePercentage := 0.0
	if bt.dailyLimit > 0 {
		usagePercentage = float64(bt.totalCalls) / float64(bt.dailyLimit) * 100
	}

	return UsageStats{
		TotalCalls:      bt.totalCalls,
		CallsPerHour:    bt.callsThisHour,
		DailyLimit:      bt.dailyLimit,
		RemainingCalls:  remaining,
		UsagePercentage: usagePercentage,
		NextResetAt:     bt.resetTime,
	}
}

// CanMakeCall checks if a call fits within today's quota.
func (bt *BudgetTracker) CanMakeCall() bool {
	bt.mu.RLock()
	defer bt.mu.RUnlock()
	return bt.dailyLimit == 0 || bt.totalCalls < bt.dailyLimit
}

// Reset resets all usage counters.
func (bt *BudgetTracker) Reset() {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	bt.resetUnsafe()
}

func (bt *BudgetTracker) resetUnsafe() {
	bt.totalCalls = 0
	bt.callsThisHour = 0
	bt.hourStart = time.Now()
	bt.actionCalls = make(map[string]int)
	bt.resetTime = nextMidnight(time.Now())
}

func nextMidnight(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
}
