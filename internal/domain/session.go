package domain

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	MaxSessionIDLen   = 100
	MaxBoardPathLen   = 200
	MaxSessionNameLen = 100
	MaxGoalLen        = 500
	MaxAngle          = 90

	MinRadiusMeters     = 100
	MaxRadiusMeters     = 50_000
	DefaultRadiusMeters = 500
)

var sessionIDPattern = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)

type SessionID string

type SessionStatus string

const (
	StatusActive   SessionStatus = "active"
	StatusInactive SessionStatus = "inactive"
	StatusEnded    SessionStatus = "ended"
)

// Session is the durable description of a collaboration scope.
type Session struct {
	ID           SessionID     `json:"id"`
	Name         string        `json:"name,omitempty"`
	Goal         string        `json:"goal,omitempty"`
	Color        string        `json:"color,omitempty"`
	BoardPath    string        `json:"boardPath"`
	Latitude     *float64      `json:"latitude,omitempty"`
	Longitude    *float64      `json:"longitude,omitempty"`
	Discoverable bool          `json:"discoverable"`
	Permanent    bool          `json:"permanent"`
	CreatedBy    UserID        `json:"createdByUserId,omitempty"`
	Status       SessionStatus `json:"status"`
	CreatedAt    time.Time     `json:"createdAt"`
	LastActivity time.Time     `json:"lastActivity"`
	EndedAt      *time.Time    `json:"endedAt,omitempty"`
}

// DiscoverableSession is a nearby search hit.
type DiscoverableSession struct {
	ID               SessionID `json:"id"`
	Name             string    `json:"name,omitempty"`
	BoardPath        string    `json:"boardPath"`
	Latitude         float64   `json:"latitude"`
	Longitude        float64   `json:"longitude"`
	CreatedAt        time.Time `json:"createdAt"`
	CreatedBy        UserID    `json:"createdByUserId,omitempty"`
	ParticipantCount int       `json:"participantCount"`
	DistanceMeters   float64   `json:"distance"`
	IsActive         bool      `json:"isActive"`
}

func ValidateSessionID(id SessionID) error {
	if len(id) == 0 {
		return Validation("session id cannot be empty")
	}
	if len(id) > MaxSessionIDLen {
		return Validation("session id too long")
	}
	if !sessionIDPattern.MatchString(string(id)) {
		return Validation("session id must be alphanumeric with hyphens only")
	}
	return nil
}

func ValidateSessionName(name string) error {
	if len(name) > MaxSessionNameLen {
		return Validation("session name too long")
	}
	return nil
}

func ValidateCoordinates(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return Validation("latitude must be between -90 and 90")
	}
	if lon < -180 || lon > 180 {
		return Validation("longitude must be between -180 and 180")
	}
	return nil
}

// NormalizeRadius applies the default for zero and checks the allowed range.
func NormalizeRadius(radius float64) (float64, error) {
	if radius == 0 {
		return DefaultRadiusMeters, nil
	}
	if radius < MinRadiusMeters {
		return 0, Validation("radius too small")
	}
	if radius > MaxRadiusMeters {
		return 0, Validation("radius too large")
	}
	return radius, nil
}

// BoardPath identifies a physical wall setup:
// board/layout/size/set,set,.../angle, e.g. kilter/8/25/26,27,28,29/40.
type BoardPath struct {
	Board    string
	LayoutID int
	SizeID   int
	SetIDs   []int
	Angle    int
}

func ParseBoardPath(raw string) (BoardPath, error) {
	if raw == "" {
		return BoardPath{}, Validation("board path cannot be empty")
	}
	if len(raw) > MaxBoardPathLen {
		return BoardPath{}, Validation("board path too long")
	}
	parts := strings.Split(strings.Trim(raw, "/"), "/")
	if len(parts) != 5 {
		return BoardPath{}, Validation("board path must be board/layout/size/sets/angle")
	}

	bp := BoardPath{Board: strings.ToLower(parts[0])}
	if bp.Board == "" || !isLetters(bp.Board) {
		return BoardPath{}, Validation("board name must be letters only")
	}

	var err error
	if bp.LayoutID, err = positiveInt(parts[1]); err != nil {
		return BoardPath{}, Validation("board path layout must be a positive integer")
	}
	if bp.SizeID, err = positiveInt(parts[2]); err != nil {
		return BoardPath{}, Validation("board path size must be a positive integer")
	}
	for _, s := range strings.Split(parts[3], ",") {
		id, err := positiveInt(s)
		if err != nil {
			return BoardPath{}, Validation("board path sets must be comma separated positive integers")
		}
		bp.SetIDs = append(bp.SetIDs, id)
	}
	bp.Angle, err = strconv.Atoi(parts[4])
	if err != nil || bp.Angle < 0 || bp.Angle > MaxAngle {
		return BoardPath{}, Validation("board path angle must be between 0 and %d", MaxAngle)
	}
	return bp, nil
}

func (bp BoardPath) String() string {
	sets := make([]string, len(bp.SetIDs))
	for i, id := range bp.SetIDs {
		sets[i] = strconv.Itoa(id)
	}
	return strings.Join([]string{
		bp.Board,
		strconv.Itoa(bp.LayoutID),
		strconv.Itoa(bp.SizeID),
		strings.Join(sets, ","),
		strconv.Itoa(bp.Angle),
	}, "/")
}

func positiveInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}

func isLetters(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
