// Package ws provides the WebSocket transport a particle's storage
// proxy uses to post operations and receive model updates, framed as
// wire.ProxyMessage instead of a separate envelope type. Each
// connection holds its own store subscription; there is no shared hub.
package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/arcs-project/arcs-core/internal/crdt"
	"github.com/arcs-project/arcs-core/internal/services"
	"github.com/arcs-project/arcs-core/internal/wire"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
	maxFrameSize = 1 << 20
)

// Handler upgrades HTTP requests to WebSocket and hands each
// connection its own model-update subscription.
type Handler struct {
	storeService *services.StoreService
	upgrader     websocket.Upgrader
	logger       *zap.Logger
}

// NewHandler constructs a Handler serving storeService's operations
// and model updates over upgrader.
func NewHandler(storeService *services.StoreService, upgrader websocket.Upgrader, logger *zap.Logger) *Handler {
	return &Handler{storeService: storeService, upgrader: upgrader, logger: logger.Named("ws")}
}

// client bridges one WebSocket connection to the store's Post/Subscribe
// surface. Unlike a pub/sub hub with many topics, every client sees the
// same container-wide stream: Arcs entities are small enough that
// per-topic filtering isn't worth the complexity it would add here.
type client struct {
	id       uuid.UUID
	conn     *websocket.Conn
	send     chan wire.ProxyMessage
	subID    int
	storeSvc *services.StoreService
	logger   *zap.Logger
	closeOnce sync.Once
}

// HandleWebSocket upgrades c's request and runs the resulting
// connection's read and write pumps until the client disconnects.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade websocket connection", zap.Error(err))
		return
	}

	subID, updates := h.storeService.Subscribe()
	cl := &client{
		id:       uuid.New(),
		conn:     conn,
		send:     make(chan wire.ProxyMessage, 64),
		subID:    subID,
		storeSvc: h.storeService,
		logger:   h.logger,
	}

	h.logger.Info("websocket client connected",
		zap.String("client_id", cl.id.String()),
		zap.Int("subscription_id", subID),
		zap.String("remote_addr", c.Request.RemoteAddr),
	)

	go cl.forwardUpdates(updates)
	go cl.writePump()
	cl.readPump()
}

// forwardUpdates relays the store's broadcast channel into the
// client's own send buffer, dropping updates rather than blocking the
// store's single dispatch goroutine if a client falls behind.
func (c *client) forwardUpdates(updates <-chan wire.ProxyMessage) {
	for msg := range updates {
		select {
		case c.send <- msg:
		default:
			c.logger.Warn("dropping model update, client send buffer full",
				zap.String("client_id", c.id.String()), zap.Int("subscription_id", c.subID))
		}
	}
}

func (c *client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error", zap.String("client_id", c.id.String()), zap.Error(err))
			}
			return
		}

		var msg wire.ProxyMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("dropping malformed client message", zap.String("client_id", c.id.String()), zap.Error(err))
			continue
		}

		c.handleMessage(context.Background(), msg)
	}
}

// handleMessage dispatches an inbound client message to the store.
// Entity identity comes from each operation's own ID field, the same
// field ReferenceModeStore groups operations by, not from the message
// envelope, which only carries a subscriber id used by the store's
// broadcast exclude-self logic.
func (c *client) handleMessage(ctx context.Context, msg wire.ProxyMessage) {
	switch msg.Type {
	case wire.MessageOperations:
		byEntity := make(map[string][]crdt.Operation)
		for _, op := range msg.Operations {
			byEntity[op.ID] = append(byEntity[op.ID], op)
		}
		for entityID, ops := range byEntity {
			if err := c.storeSvc.PostOperations(ctx, entityID, ops); err != nil {
				c.logger.Warn("rejecting operations", zap.String("client_id", c.id.String()), zap.Error(err))
			}
		}

	case wire.MessageSyncRequest:
		if err := c.storeSvc.RequestSync(ctx, c.subID); err != nil {
			c.logger.Warn("sync request failed", zap.String("client_id", c.id.String()), zap.Error(err))
		}

	default:
		c.logger.Warn("unhandled client message type", zap.String("client_id", c.id.String()), zap.Int("type", int(msg.Type)))
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Warn("websocket write error", zap.String("client_id", c.id.String()), zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}
