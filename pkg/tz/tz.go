// Package tz converts between stored instants and the business timezone (America/Sao_Paulo).
//
// Instants are persisted as UTC. A time.Time always names an instant, whatever its location,
// so conversion never re-reads the wall clock. Client strings without an offset are parsed
// in Location().
package tz

import (
	"sync"
	"time"

	// embedded zone database for minimal containers.
	_ "time/tzdata"
)

const DefaultZone = "America/Sao_Paulo"

var (
	mu  sync.RWMutex
	loc *time.Location
)

// SetZone changes the business timezone. An unknown name keeps the current zone.
func SetZone(name string) error {
	l, err := time.LoadLocation(name)
	if err != nil {
		return err
	}

	mu.Lock()
	loc = l
	mu.Unlock()

	return nil
}

// Location returns the business timezone.
func Location() *time.Location {
	mu.RLock()
	l := loc
	mu.RUnlock()

	if l != nil {
		return l
	}

	l, err := time.LoadLocation(DefaultZone)
	if err != nil {
		// fixed -03:00 when the zone database is unavailable
		return time.FixedZone("BRT", -3*60*60)
	}

	mu.Lock()
	loc = l
	mu.Unlock()

	return l
}

// Now returns the current instant in the business timezone.
func Now() time.Time {
	return time.Now().In(Location())
}

// Local converts t into the business timezone, keeping the instant.
func Local(t time.Time) time.Time {
	return t.In(Location())
}

// UTC normalizes t for persistence.
func UTC(t time.Time) time.Time {
	return t.UTC()
}

// FormatDate renders DD/MM/YYYY in the business timezone.
func FormatDate(t time.Time) string {
	return Local(t).Format("02/01/2006")
}

// FormatShortDate renders DD/MM/YY in the business timezone.
func FormatShortDate(t time.Time) string {
	return Local(t).Format("02/01/06")
}

// FormatDateTime renders DD/MM/YYYY HH:MM in the business timezone.
func FormatDateTime(t time.Time) string {
	return Local(t).Format("02/01/2006 15:04")
}
