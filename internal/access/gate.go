// Package access decides whether a user may use the bot.
package access

import (
	"context"
	"fmt"

	"github.com/studybot/studybot/internal/logger"
)

type Reason int

const (
	ReasonNone Reason = iota
	ReasonBanned
	ReasonNotSubscribed
)

func (r Reason) String() string {
	switch r {
	case ReasonBanned:
		return "banned"
	case ReasonNotSubscribed:
		return "not_subscribed"
	default:
		return "none"
	}
}

// Decision is computed fresh for every request and never stored.
type Decision struct {
	Allowed bool
	Reason  Reason
}

var (
	Allowed         = Decision{Allowed: true}
	DeniedBanned    = Decision{Reason: ReasonBanned}
	DeniedNotMember = Decision{Reason: ReasonNotSubscribed}
)

// BanChecker is the local, cheap half of admission.
type BanChecker interface {
	IsBanned(ctx context.Context, userID int64) (bool, error)
}

// MembershipChecker asks the messaging platform whether the user is in the channel.
type MembershipChecker interface {
	IsMember(ctx context.Context, userID int64) (bool, error)
}

type Gate struct {
	bans    BanChecker
	members MembershipChecker
}

func NewGate(bans BanChecker, members MembershipChecker) *Gate {
	return &Gate{bans: bans, members: members}
}

// Admit runs the ban check and then the membership check. Membership errors
// deny access. A ban-check error is returned so the caller can report it.
func (g *Gate) Admit(ctx context.Context, userID int64) (Decision, error) {
	banned, err := g.bans.IsBanned(ctx, userID)
	if err != nil {
		return Decision{}, fmt.Errorf("ban check failed: %w", err)
	}
	if banned {
		return DeniedBanned, nil
	}

	member, err := g.members.IsMember(ctx, userID)
	if err != nil {
		logger.Warn("Membership check failed, denying access", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		return DeniedNotMember, nil
	}
	if !member {
		return DeniedNotMember, nil
	}

	return Allowed, nil
}
