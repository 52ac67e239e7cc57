package notify

import (
	"encoding/json"
	"time"

	"flickrharvest/pkg/logger"

	"github.com/nats-io/nats.go"
)

// NATSObserver publishes each event as JSON on <prefix>.<kind>
type NATSObserver struct {
	nc     *nats.Conn
	prefix string
	logger logger.Logger
}

// NewNATSObserver connects to url
func NewNATSObserver(url, prefix string, log logger.Logger) (*NATSObserver, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	nlog := log.WithField("component", "nats")

	nc, err := nats.Connect(url,
		nats.Name("flickrharvest"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			nlog.WithField("url", nc.ConnectedUrl()).Info("reconnected to NATS")
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				nlog.WithError(err).Warn("disconnected from NATS")
			}
		}),
	)
	if err != nil {
		return nil, err
	}
	if prefix == "" {
		prefix = "flickrharvest"
	}
	return &NATSObserver{nc: nc, prefix: prefix, logger: nlog}, nil
}

// Subject returns the subject an event kind is published on
func (n *NATSObserver) Subject(kind Kind) string {
	return n.prefix + "." + string(kind)
}

func (n *NATSObserver) Notify(e Event) {
	payload := struct {
		Event
		Records int `json:"records,omitempty"`
	}{Event: e}
	if e.Dataset != nil {
		payload.Records = e.Dataset.Len()
	}

	data, err := json.Marshal(payload)
	if err != nil {
		n.logger.WithError(err).Warn("failed to encode event")
		return
	}
	if err := n.nc.Publish(n.Subject(e.Kind), data); err != nil {
		n.logger.WithError(err).WithField("kind", string(e.Kind)).Warn("failed to publish event")
	}
}

// Close flushes pending messages and closes the connection
func (n *NATSObserver) Close() {
	if err := n.nc.Flush(); err != nil {
		n.logger.WithError(err).Debug("flush before close failed")
	}
	n.nc.Close()
}
