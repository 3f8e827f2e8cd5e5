package chat

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harrison-roh/brain-tumor-classification/tumorapp/constants"
	"github.com/harrison-roh/brain-tumor-classification/tumorapp/metrics"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const writeTimeout = 5 * time.Second

// Payload 이벤트 내용
type Payload struct {
	Message string `json:"message"`
}

// Event 채팅 메시지 (JSON text frame)
type Event struct {
	Event string  `json:"event"`
	Data  Payload `json:"data"`
}

// Config 채팅 설정정보
type Config struct {
	Welcome string
	Replies []string

	// 응답 선택 함수, 기본값은 균등 무작위 선택
	Pick func([]string) string

	// 허용할 Origin host 패턴, "*"는 모두 허용
	OriginPatterns []string

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Hub 채팅 연결 관리
type Hub struct {
	mu     sync.Mutex
	conns  map[string]*websocket.Conn
	closed bool

	welcome string
	replies []string
	pick    func([]string) string
	accept  websocket.AcceptOptions

	logger  *zap.Logger
	metrics *metrics.Metrics
}

// ErrClosed 종료된 Hub
var ErrClosed = errors.New("chat hub closed")

func (h *Hub) add(id string, conn *websocket.Conn) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}
	h.conns[id] = conn
	h.metrics.ChatConnections.Inc()

	return nil
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[id]; ok {
		delete(h.conns, id)
		h.metrics.ChatConnections.Dec()
	}
}

func (h *Hub) send(ctx context.Context, conn *websocket.Conn, message string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	return wsjson.Write(ctx, conn, Event{
		Event: constants.EventResponse,
		Data:  Payload{Message: message},
	})
}

// ServeHTTP websocket 연결 후 메시지마다 고정 응답 중 하나를 전송
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	accept := h.accept
	conn, err := websocket.Accept(w, r, &accept)
	if err != nil {
		h.logger.Debug("accept failed", zap.Error(err))
		return
	}

	id := uuid.New().String()
	logger := h.logger.With(zap.String("conn", id))

	if err := h.add(id, conn); err != nil {
		conn.Close(websocket.StatusGoingAway, err.Error())
		return
	}
	defer h.remove(id)
	defer conn.Close(websocket.StatusInternalError, "")

	logger.Info("client connected", zap.String("event", constants.EventConnect))

	ctx := r.Context()
	if err := h.send(ctx, conn, h.welcome); err != nil {
		logger.Debug("send welcome", zap.Error(err))
		return
	}

	for {
		var ev Event
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			fields := []zap.Field{zap.String("event", constants.EventDisconnect)}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				fields = append(fields, zap.Error(err))
			}
			logger.Info("client disconnected", fields...)
			return
		}

		if ev.Event != constants.EventMessage {
			logger.Debug("ignore event", zap.String("event", ev.Event))
			continue
		}

		h.metrics.ChatMessages.Inc()
		logger.Debug("received message", zap.Int("length", len(ev.Data.Message)))

		if err := h.send(ctx, conn, h.pick(h.replies)); err != nil {
			logger.Debug("send reply", zap.Error(err))
			return
		}
	}
}

// Len 현재 연결 수
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.conns)
}

// Close 모든 연결 종료, 이후 연결은 거부
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for _, conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	var wg sync.WaitGroup
	for _, conn := range conns {
		wg.Add(1)
		go func(conn *websocket.Conn) {
			defer wg.Done()
			conn.Close(websocket.StatusGoingAway, "server shutting down")
		}(conn)
	}
	wg.Wait()

	h.logger.Info("chat hub closed", zap.Int("connections", len(conns)))
}

// New 새로운 채팅 Hub 생성
func New(c Config) (*Hub, error) {
	if c.Welcome == "" {
		c.Welcome = constants.WelcomeMessage
	}
	if len(c.Replies) == 0 {
		c.Replies = constants.ChatReplies
	}
	if c.Pick == nil {
		c.Pick = lo.Sample[string]
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Metrics == nil {
		return nil, errors.New("Empty metrics")
	}

	h := &Hub{
		conns:   make(map[string]*websocket.Conn),
		welcome: c.Welcome,
		replies: append([]string(nil), c.Replies...),
		pick:    c.Pick,
		logger:  c.Logger,
		metrics: c.Metrics,
	}

	if lo.Contains(c.OriginPatterns, "*") {
		h.accept.InsecureSkipVerify = true
	} else {
		h.accept.OriginPatterns = c.OriginPatterns
	}

	return h, nil
}
