package auth

import "time"

// Clock supplies the current instant. Every expiry comparison in this package
// goes through an injected Clock so tests can cross TTL boundaries without
// sleeping.
type Clock func() time.Time

// SystemClock is the production clock.
func SystemClock() time.Time { return time.Now() }
