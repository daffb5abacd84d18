package config

import "time"

const (
	// DefaultPort is the default HTTP server port.
	DefaultPort = "8080"

	// DefaultDatabaseURL is empty; must be provided via flag or environment.
	DefaultDatabaseURL = ""

	// DefaultLogLevel and DefaultLogFormat configure logger.Setup.
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	// DefaultDispatchWorkers is the number of notification workers.
	DefaultDispatchWorkers = 4
	// DefaultDispatchQueue bounds pending notification jobs.
	DefaultDispatchQueue = 256
	// DefaultDispatchTimeout bounds a single notification job.
	DefaultDispatchTimeout = 10 * time.Second

	// DefaultReminderInterval disables the in-process reminder loop.
	DefaultReminderInterval time.Duration = 0

	// DefaultShutdownTimeout bounds graceful shutdown of server and workers.
	DefaultShutdownTimeout = 10 * time.Second
)
