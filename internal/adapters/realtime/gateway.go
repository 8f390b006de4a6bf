package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/brunomacedo1203/taskcollab/internal/constants"
	"github.com/brunomacedo1203/taskcollab/internal/contextkeys"
	"github.com/brunomacedo1203/taskcollab/internal/core/domain"
	"github.com/brunomacedo1203/taskcollab/internal/core/port"
	"github.com/brunomacedo1203/taskcollab/internal/core/port/usecases_port"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Коды закрытия соединения при отказе в допуске.
const (
	CloseUnauthorized = 4000
	CloseMissingToken = 4001
	CloseInvalidToken = 4002
	CloseInvalidPath  = 4003
)

const backlogTimeout = 5 * time.Second

type GatewayConfig struct {
	Path           string
	AllowedOrigins []string // "*" - любой источник
	ConnectRate    float64  // апгрейдов в секунду, <= 0 - без ограничения
	ConnectBurst   int
	BacklogSize    int
}

// frame - конверт, который получает клиент.
type frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type unreadNotification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	TaskID    string    `json:"taskId"`
	CommentID *string   `json:"commentId"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// Gateway - реестр WebSocket-соединений (userID -> множество соединений)
// и реализация RealtimePusherPort.
type Gateway struct {
	cfg      GatewayConfig
	tokens   port.TokenServicePort
	backlog  usecases_port.ListUnreadNotificationsUseCasePort
	limiter  *rate.Limiter
	upgrader websocket.Upgrader
	logger   port.LoggerPort

	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
	closed  bool
}

var _ port.RealtimePusherPort = (*Gateway)(nil)

// NewGateway создает шлюз. backlog может быть nil - тогда непрочитанные при подключении не отправляются.
func NewGateway(cfg GatewayConfig, tokens port.TokenServicePort, backlog usecases_port.ListUnreadNotificationsUseCasePort, baseLogger port.LoggerPort) *Gateway {
	if cfg.Path == "" {
		cfg.Path = constants.DefaultWSPath
	}
	cfg.Path = "/" + strings.Trim(cfg.Path, "/")
	if cfg.BacklogSize <= 0 {
		cfg.BacklogSize = constants.UnreadBacklogSize
	}

	limit := rate.Inf
	if cfg.ConnectRate > 0 {
		limit = rate.Limit(cfg.ConnectRate)
	}
	burst := cfg.ConnectBurst
	if burst <= 0 {
		burst = 1
	}

	g := &Gateway{
		cfg:     cfg,
		tokens:  tokens,
		backlog: backlog,
		limiter: rate.NewLimiter(limit, burst),
		logger:  baseLogger.WithFields(port.Fields{"component": "RealtimeGateway"}),
		clients: make(map[string]map[*client]struct{}),
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     g.checkOrigin,
	}
	return g
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range g.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(origin, allowed) {
			return true
		}
	}
	g.logger.Warn("WebSocket origin rejected", port.Fields{"origin": origin})
	return false
}

// ServeHTTP принимает соединение. Отказ в допуске - закрытие с кодом 4000-4003.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !g.limiter.Allow() {
		g.logger.Warn("WebSocket connect rate exceeded", port.Fields{"remote_addr": r.RemoteAddr})
		http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Debug("WebSocket upgrade failed", port.Fields{"error": err.Error()})
		return
	}

	if r.URL.Path != g.cfg.Path {
		g.reject(conn, CloseInvalidPath, "invalid path")
		return
	}

	claims, err := g.tokens.ValidateToken(r.Context(), extractToken(r))
	switch {
	case errors.Is(err, domain.ErrTokenMissing):
		g.reject(conn, CloseMissingToken, "missing token")
		return
	case errors.Is(err, domain.ErrTokenInvalid):
		g.reject(conn, CloseInvalidToken, "invalid token")
		return
	case err != nil:
		g.logger.Error("Token verification failed", err, nil)
		g.reject(conn, CloseUnauthorized, "unauthorized")
		return
	}

	c := newClient(conn, claims.UserID, g.logger)
	if !g.register(c) {
		g.reject(conn, websocket.CloseGoingAway, "shutting down")
		return
	}

	go c.writePump()
	go c.readPump(func() { g.unregister(c) })

	if g.backlog != nil {
		// Контекст запроса отменяется после возврата из ServeHTTP.
		ctx := contextkeys.ContextWithLogger(context.WithoutCancel(r.Context()), c.logger)
		go g.pushBacklog(ctx, c)
	}
}

func extractToken(r *http.Request) string {
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token
	}
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func (g *Gateway) reject(conn *websocket.Conn, code int, reason string) {
	g.logger.Debug("Rejecting WebSocket connection", port.Fields{"code": code, "reason": reason})
	msg := websocket.FormatCloseMessage(code, reason)
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		g.logger.Debug("Failed to send close frame", port.Fields{"error": err.Error()})
	}
	conn.Close()
}

func (g *Gateway) register(c *client) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}

	set, found := g.clients[c.userID]
	if !found {
		set = make(map[*client]struct{})
		g.clients[c.userID] = set
	}
	set[c] = struct{}{}

	g.logger.Info("Client connected for user", port.Fields{
		"user_id":                    c.userID,
		"total_connections_for_user": len(set),
	})
	return true
}

// unregister идемпотентен: повторный вызов для уже удаленного клиента ничего не делает.
func (g *Gateway) unregister(c *client) {
	g.mu.Lock()
	defer g.mu.Unlock()

	set, found := g.clients[c.userID]
	if !found {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)

	if len(set) == 0 {
		delete(g.clients, c.userID)
		g.logger.Debug("Last client disconnected for user. User removed.", port.Fields{"user_id": c.userID})
		return
	}
	g.logger.Info("Client disconnected for user", port.Fields{
		"user_id":               c.userID,
		"remaining_connections": len(set),
	})
}

// EmitToUsers сериализует кадр один раз и кладет его в очередь каждого живого
// соединения получателей. Офлайн-пользователи пропускаются.
func (g *Gateway) EmitToUsers(ctx context.Context, event string, payload any, userIDs []string) {
	g.emit(ctx, event, payload, userIDs)
}

// emit возвращает число попыток отправки.
func (g *Gateway) emit(ctx context.Context, event string, payload any, userIDs []string) int {
	emitLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component": "RealtimeGateway.emit",
		"event":     event,
	})

	data, err := json.Marshal(frame{Event: event, Data: payload})
	if err != nil {
		emitLogger.Error("Failed to marshal realtime frame", err, nil)
		return 0
	}

	attempts, delivered := 0, 0
	seen := make(map[string]struct{}, len(userIDs))

	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, userID := range userIDs {
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}

		for c := range g.clients[userID] {
			attempts++
			if c.enqueue(data) {
				delivered++
				continue
			}
			emitLogger.Warn("Client send buffer is full, frame dropped", port.Fields{
				"user_id":       userID,
				"connection_id": c.id,
			})
		}
	}

	emitLogger.Debug("Realtime event dispatched", port.Fields{
		"recipients": len(seen),
		"attempts":   attempts,
		"delivered":  delivered,
	})
	return attempts
}

// sendTo отправляет кадр одному соединению, если оно еще зарегистрировано.
func (g *Gateway) sendTo(c *client, data []byte) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if _, ok := g.clients[c.userID][c]; !ok {
		return false
	}
	return c.enqueue(data)
}

func (g *Gateway) pushBacklog(ctx context.Context, c *client) {
	ctx, cancel := context.WithTimeout(ctx, backlogTimeout)
	defer cancel()

	items, err := g.backlog.Execute(ctx, c.userID, g.cfg.BacklogSize)
	if err != nil {
		c.logger.Error("Failed to load unread backlog", err, nil)
		return
	}

	for _, n := range items {
		data, err := json.Marshal(frame{Event: port.RealtimeNotificationUnread, Data: unreadNotification{
			ID:        n.ID,
			Type:      string(n.Type),
			TaskID:    n.TaskID,
			CommentID: n.CommentID,
			Title:     n.Title,
			Body:      n.Body,
			CreatedAt: n.CreatedAt,
		}})
		if err != nil {
			c.logger.Error("Failed to marshal unread notification", err, port.Fields{"notification_id": n.ID})
			continue
		}
		if !g.sendTo(c, data) {
			c.logger.Warn("Unread backlog push interrupted", port.Fields{"notification_id": n.ID})
			return
		}
	}
	c.logger.Debug("Unread backlog pushed", port.Fields{"count": len(items)})
}

// ConnectionCount - число живых соединений пользователя.
func (g *Gateway) ConnectionCount(userID string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.clients[userID])
}

// Close закрывает все соединения и перестает принимать новые.
func (g *Gateway) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.closed = true
	for userID, set := range g.clients {
		for c := range set {
			close(c.send)
		}
		delete(g.clients, userID)
	}
	g.logger.Info("Realtime gateway closed", nil)
}
