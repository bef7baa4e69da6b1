package sessions

import "time"

// Rolling-expiry parameters. Active sessions are silently renewed to a
// full TTL whenever less than the threshold remains, so continuous use
// never hits a surprise expiry while idle sessions lapse after the TTL.
// Fixed by design; not deployment-configurable.
const (
	// SessionTTL is the lifetime granted at creation and on renewal.
	SessionTTL = 30 * 24 * time.Hour
	// RenewalThreshold is the remaining lifetime below which a
	// validation renews the session instead of just touching it.
	RenewalThreshold = 7 * 24 * time.Hour
)

// Session represents an authenticated device session. The token is
// the bearer credential: it is returned exactly once, at creation, and
// is never logged.
type Session struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	Token        string    `bson:"token" json:"-"`
	UserID       string    `bson:"userId" json:"userId"`
	DeviceName   string    `bson:"deviceName,omitempty" json:"deviceName,omitempty"`
	DeviceType   string    `bson:"deviceType,omitempty" json:"deviceType,omitempty"`
	UserAgent    string    `bson:"userAgent,omitempty" json:"userAgent,omitempty"`
	IPAddress    string    `bson:"ipAddress,omitempty" json:"ipAddress,omitempty"`
	LastActivity time.Time `bson:"lastActivity" json:"lastActivity"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	ExpiresAt    time.Time `bson:"expiresAt" json:"expiresAt"`
}

// Usable reports whether the session is still valid at the given
// instant. Expiry is checked with now >= expiresAt everywhere,
// including the optional sweep.
func (s *Session) Usable(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}
