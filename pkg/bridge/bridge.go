// pkg/bridge/bridge.go
package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/aleka07/twinsync/pkg/hub"
	"github.com/aleka07/twinsync/pkg/model"
)

// Publisher delivers a payload to a broker topic.
type Publisher interface {
	Publish(topic string, payload []byte) error
	Close()
}

// Source is the hub side the bridge listens on.
type Source interface {
	Subscribe() *hub.Subscription
	Unsubscribe(sub *hub.Subscription)
}

// Bridge forwards every broadcast snapshot to the broker as JSON on
// {prefix}/{thingId}/snapshot.
type Bridge struct {
	src   Source
	pub   Publisher
	topic string
	log   logrus.FieldLogger
}

// New returns a bridge for one thing.
func New(src Source, pub Publisher, prefix string, thingID model.ThingID, log logrus.FieldLogger) *Bridge {
	if log == nil {
		log = logrus.StandardLogger()
	}
	topic := Topic(prefix, thingID)
	return &Bridge{src: src, pub: pub, topic: topic, log: log.WithField("topic", topic)}
}

// Topic is where snapshots of thingID are published.
func Topic(prefix string, thingID model.ThingID) string {
	return fmt.Sprintf("%s/%s/snapshot", prefix, thingID)
}

// Run forwards until ctx is done or the subscription is closed. Publish
// failures are logged and the snapshot is skipped.
func (b *Bridge) Run(ctx context.Context) error {
	sub := b.src.Subscribe()
	defer b.src.Unsubscribe(sub)
	b.log.Info("mqtt bridge started")

	for {
		select {
		case <-ctx.Done():
			b.log.Info("mqtt bridge stopped")
			return nil
		case s, ok := <-sub.C:
			if !ok {
				return nil
			}
			payload, err := json.Marshal(s)
			if err != nil {
				b.log.WithError(err).Error("encode snapshot")
				continue
			}
			if err := b.pub.Publish(b.topic, payload); err != nil {
				b.log.WithError(err).Warn("publish snapshot")
			}
		}
	}
}
