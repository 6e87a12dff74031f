package cache

import "time"

// Policy decides whether a stored entry may be served.
type Policy interface {
	Fresh(e Entry) bool
}

// PolicyFunc adapts a function to [Policy].
type PolicyFunc func(Entry) bool

func (f PolicyFunc) Fresh(e Entry) bool { return f(e) }

// NeverExpire serves every stored entry.
func NeverExpire() Policy {
	return PolicyFunc(func(Entry) bool { return true })
}

// Refresh serves nothing, so every lookup refetches and overwrites.
func Refresh() Policy {
	return PolicyFunc(func(Entry) bool { return false })
}

// MaxAge serves entries stored less than d ago. A nil now uses [time.Now].
func MaxAge(d time.Duration, now func() time.Time) Policy {
	if now == nil {
		now = time.Now
	}
	return PolicyFunc(func(e Entry) bool {
		return now().Sub(e.StoredAt) < d
	})
}
