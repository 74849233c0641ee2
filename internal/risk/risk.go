// Package risk pushes scored region risk updates to subscribed clients.
// Scoring itself happens elsewhere; this package only validates and relays.
package risk

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kgellert/hodatay-groupchat/internal/errs"
	"github.com/kgellert/hodatay-groupchat/internal/ws"
)

const (
	MinScore = 0
	MaxScore = 100
)

var (
	ErrRegionRequired = fmt.Errorf("%w: region is required", errs.ErrValidation)
	ErrInvalidScore   = fmt.Errorf("%w: score must be within [0, 100]", errs.ErrValidation)
)

type Update struct {
	Region         string             `json:"region"`
	DisasterTypeID string             `json:"disaster_type_id"`
	Score          float64            `json:"score"`
	Features       map[string]float64 `json:"features,omitempty"`
	At             time.Time          `json:"at"`
}

type Notifier struct {
	pub ws.Publisher
	now func() time.Time
}

func NewNotifier(pub ws.Publisher) *Notifier {
	return &Notifier{pub: pub, now: time.Now}
}

// Push publishes u as risk:update into the room of its region. A missing
// timestamp is set to now.
func (n *Notifier) Push(ctx context.Context, u Update) error {
	const op = "risk.Notifier.Push"

	u.Region = strings.TrimSpace(u.Region)
	if u.Region == "" {
		return ErrRegionRequired
	}
	if !(u.Score >= MinScore && u.Score <= MaxScore) {
		return ErrInvalidScore
	}
	if u.At.IsZero() {
		u.At = n.now().UTC()
	}

	if err := n.pub.Publish(ctx, ws.RegionRoom(u.Region), ws.EventRiskUpdate, u); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
