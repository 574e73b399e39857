package cron_config

type Config struct {
	// Heartbeat check, every minute
	CronScheduleHeartbeat string `env:"CRON_SCHEDULE_HEARTBEAT" envDefault:"0 * * * * *"`
	// Expired authorization-code cleanup, every 10 minutes
	CronScheduleAuthRequestCleanup string `env:"CRON_SCHEDULE_AUTH_REQUEST_CLEANUP" envDefault:"0 */10 * * * *"`
	// Stale uid_tracking pruning, daily at 03:00
	CronScheduleUidTrackingPrune string `env:"CRON_SCHEDULE_UID_TRACKING_PRUNE" envDefault:"0 0 3 * * *"`
}
