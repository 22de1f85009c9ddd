package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/big"
	"time"

	"chainvault-backend/internal/config"
	"chainvault-backend/internal/metrics"
	"chainvault-backend/internal/models"
	"chainvault-backend/internal/utils"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// NATSTransport carries cross-chain messages over NATS. Each chain's
// orchestrator listens on its own subject; Send publishes to the
// destination chain's subject. Message ids are assigned here so the
// caller can correlate confirmations before the message even leaves.
type NATSTransport struct {
	conn          *nats.Conn
	subjectPrefix string
	localChainID  uint32
	sub           *nats.Subscription
}

// NewNATSTransport connects to the NATS server and returns a transport
// for localChainID
func NewNATSTransport(url, subjectPrefix string, localChainID uint32) (*NATSTransport, error) {
	connectTimeout := 10 * time.Second
	reconnectWait := 5 * time.Second
	if config.AppConfig != nil {
		if config.AppConfig.NATS.Timeout > 0 {
			connectTimeout = time.Duration(config.AppConfig.NATS.Timeout) * time.Second
		}
		if config.AppConfig.NATS.ReconnectWait > 0 {
			reconnectWait = time.Duration(config.AppConfig.NATS.ReconnectWait) * time.Second
		}
	}

	conn, err := nats.Connect(url,
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Printf("NATS disconnected: %v", err)
			metrics.TransportConnectionStatus.Set(0)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("NATS reconnected to %s", nc.ConnectedUrl())
			metrics.TransportConnectionStatus.Set(1)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	metrics.TransportConnectionStatus.Set(1)

	return &NATSTransport{
		conn:          conn,
		subjectPrefix: subjectPrefix,
		localChainID:  localChainID,
	}, nil
}

// GetFee quotes the delivery fee for destChainID from the configured
// network table
func (t *NATSTransport) GetFee(destChainID uint32, msg *models.CrossChainMessage) (*big.Int, error) {
	network, err := config.GetNetworkByChainID(destChainID)
	if err != nil {
		return nil, err
	}
	fee, err := utils.ParseAmount(network.BaseFee)
	if err != nil {
		return nil, fmt.Errorf("invalid base fee for chain %d: %w", destChainID, err)
	}
	return fee, nil
}

// Send assigns the message id, stamps the source chain and publishes to
// the destination chain's subject
func (t *NATSTransport) Send(destChainID uint32, msg *models.CrossChainMessage) (string, error) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	msg.SourceChainID = t.localChainID
	msg.DestChainID = destChainID

	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := t.conn.Publish(t.subjectFor(destChainID), data); err != nil {
		return "", fmt.Errorf("failed to publish message: %w", err)
	}
	return msg.ID, nil
}

// Listen subscribes to this chain's inbound subject and dispatches every
// delivery to handler. Handler errors are logged, not redelivered; the
// sender's reconciliation sweep owns recovery.
func (t *NATSTransport) Listen(handler func(ctx context.Context, msg *models.CrossChainMessage) error) error {
	sub, err := t.conn.Subscribe(t.subjectFor(t.localChainID), func(natsMsg *nats.Msg) {
		var msg models.CrossChainMessage
		if err := json.Unmarshal(natsMsg.Data, &msg); err != nil {
			log.Printf("Failed to parse inbound message on %s: %v", natsMsg.Subject, err)
			metrics.MessagesFailed.WithLabelValues("unknown", "decode_error").Inc()
			return
		}
		if err := handler(context.Background(), &msg); err != nil {
			log.Printf("Inbound message %s (%s) failed: %v", msg.ID, msg.Type, err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", t.subjectFor(t.localChainID), err)
	}
	t.sub = sub
	log.Printf("Listening for cross-chain messages on %s", t.subjectFor(t.localChainID))
	return nil
}

func (t *NATSTransport) subjectFor(chainID uint32) string {
	return fmt.Sprintf("%s.%d.orchestrator.message", t.subjectPrefix, chainID)
}

// Close drains the subscription and closes the connection
func (t *NATSTransport) Close() {
	if t.sub != nil {
		if err := t.sub.Unsubscribe(); err != nil {
			log.Printf("Failed to unsubscribe: %v", err)
		}
	}
	if t.conn != nil {
		t.conn.Close()
	}
	metrics.TransportConnectionStatus.Set(0)
}
