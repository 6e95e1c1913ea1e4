package drivers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/arcs-project/arcs-core/internal/config"
	"github.com/arcs-project/arcs-core/internal/crdt"
	"github.com/arcs-project/arcs-core/internal/store"
	"github.com/arcs-project/arcs-core/internal/wire"
)

// NATSDriver propagates deltas between replicas over a NATS subject
// named after the storage key — the "lower level" driver-originated
// message source of spec.md §4.C. It is the one driver where
// RegisterReceiver actually wires up an async subscription, since
// Postgres/Redis are pull-on-demand and NATS is push.
type NATSDriver struct {
	conn   *nats.Conn
	sub    *nats.Subscription
	key    wire.StorageKey
	logger *zap.Logger
}

type natsEnvelope struct {
	Data    json.RawMessage    `json:"data"`
	Version crdt.VersionVector `json:"version"`
}

// NewNATSDriver connects to cfg.URL. It does not subscribe;
// RegisterReceiver subscribes to the subject derived from key so
// driver-originated messages from other replicas reach the receiver.
func NewNATSDriver(cfg config.NATSConfig, key wire.StorageKey, logger *zap.Logger) (*NATSDriver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("nats_driver")

	conn, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("nats: connect: %w", err)
	}
	logger.Info("connected to nats", zap.String("url", cfg.URL))

	return &NATSDriver{conn: conn, key: key, logger: logger}, nil
}

func (d *NATSDriver) Key() wire.StorageKey { return d.key }

func (d *NATSDriver) subject() string {
	return "arcs.delta." + d.key.Protocol + "." + d.key.Location
}

func (d *NATSDriver) RegisterReceiver(receiver store.ReceiverFunc) {
	sub, err := d.conn.Subscribe(d.subject(), func(m *nats.Msg) {
		var env natsEnvelope
		if err := json.Unmarshal(m.Data, &env); err != nil {
			d.logger.Warn("dropping malformed nats delta", zap.Error(err))
			return
		}
		var payload interface{}
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			d.logger.Warn("dropping malformed nats payload", zap.Error(err))
			return
		}
		receiver(payload, env.Version)
	})
	if err != nil {
		d.logger.Error("failed to subscribe", zap.Error(err))
		return
	}
	d.sub = sub
}

func (d *NATSDriver) Send(_ context.Context, data interface{}, version crdt.VersionVector) (bool, error) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return false, fmt.Errorf("nats: marshal: %w", err)
	}
	payload, err := json.Marshal(natsEnvelope{Data: dataJSON, Version: version})
	if err != nil {
		return false, fmt.Errorf("nats: marshal envelope: %w", err)
	}

	if err := d.conn.Publish(d.subject(), payload); err != nil {
		d.logger.Warn("send rejected by nats", zap.Error(err))
		return false, nil
	}
	return true, nil
}

func (d *NATSDriver) Close() error {
	if d.sub != nil {
		_ = d.sub.Unsubscribe()
	}
	d.conn.Close()
	return nil
}
