package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// NatsNotifier publishes follow events for the notifier worker.
type NatsNotifier struct {
	nc *nats.Conn
}

func NewNatsNotifier(nc *nats.Conn) *NatsNotifier {
	return &NatsNotifier{nc: nc}
}

func (n *NatsNotifier) NotifyFollowed(ctx context.Context, followerID, followedID string) error {
	data, err := json.Marshal(FollowCreatedEvent{
		FollowerID: followerID,
		FollowedID: followedID,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshalling follow event: %w", err)
	}

	msg := &nats.Msg{
		Subject: SubjectFollowCreated,
		Data:    data,
		Header:  nats.Header{},
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(msg.Header))

	if err := n.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publishing %s: %w", SubjectFollowCreated, err)
	}
	slog.Debug("follow event published", "follower_id", followerID, "followed_id", followedID)
	return nil
}

// LogNotifier only logs. It is used when no broker is configured.
type LogNotifier struct{}

func (LogNotifier) NotifyFollowed(_ context.Context, followerID, followedID string) error {
	slog.Info("user followed", "follower_id", followerID, "followed_id", followedID)
	return nil
}
