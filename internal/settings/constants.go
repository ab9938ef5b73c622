package settings

// Runtime setting keys and their defaults.
const (
	// LoyaltyPointsPerUnitKey sets the points granted per whole currency unit
	// spent on games that carry no fixed loyalty award.
	LoyaltyPointsPerUnitKey = "LOYALTY_POINTS_PER_UNIT"
	// DefaultLoyaltyPointsPerUnit is the fallback loyalty rate.
	DefaultLoyaltyPointsPerUnit = 1

	// NotificationRetentionDaysKey controls how long notifications and
	// activity entries are kept. 0 disables cleanup.
	NotificationRetentionDaysKey = "NOTIFICATION_RETENTION_DAYS"
	// DefaultNotificationRetentionDays is the fallback retention window.
	DefaultNotificationRetentionDays = 90
)
