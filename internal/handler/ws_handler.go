package handler

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"

	"github.com/yourusername/decoder-api/internal/service"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// WSHandler транслирует события сессии викторины по WebSocket:
// посекундные тики, смену вопроса и завершение попытки.
type WSHandler struct {
	quizService *service.QuizService
	upgrader    gorillaws.Upgrader
}

// NewWSHandler создает обработчик WebSocket. allowedOrigins задает
// браузерные origin, которым разрешено подключение; запросы без
// Origin (не браузерные клиенты) пропускаются всегда.
func NewWSHandler(quizService *service.QuizService, allowedOrigins []string) *WSHandler {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = struct{}{}
	}

	return &WSHandler{
		quizService: quizService,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:    1024,
			WriteBufferSize:   1024,
			EnableCompression: true,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				if _, ok := origins[origin]; ok {
					return true
				}
				log.Printf("WebSocket: rejected unauthorized origin: %s", origin)
				return false
			},
		},
	}
}

// HandleConnection подключает клиента к ленте событий его сессии
// GET /ws/quiz?session=...
func (h *WSHandler) HandleConnection(c *gin.Context) {
	sessionID := c.Query("session")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing session parameter"})
		return
	}

	events, unsubscribe, err := h.quizService.Subscribe(sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		unsubscribe()
		log.Printf("WebSocket: ошибка апгрейда соединения: %v", err)
		return
	}

	go h.writePump(conn, sessionID, events, unsubscribe)
	go h.readPump(conn, sessionID)
}

// writePump пишет события сессии в соединение до закрытия канала
func (h *WSHandler) writePump(conn *gorillaws.Conn, sessionID string, events <-chan service.SessionEvent, unsubscribe func()) {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		unsubscribe()
		conn.Close()
	}()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				conn.WriteControl(gorillaws.CloseMessage,
					gorillaws.FormatCloseMessage(gorillaws.CloseNormalClosure, ""), time.Now().Add(wsWriteTimeout))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(event); err != nil {
				log.Printf("WebSocket: ошибка записи события сессии %s: %v", sessionID, err)
				return
			}
			if event.Type == "finished" {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(gorillaws.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump вычитывает входящие кадры ради обработки close и pong.
// Содержательных сообщений от клиента не ожидается.
func (h *WSHandler) readPump(conn *gorillaws.Conn, sessionID string) {
	conn.SetReadLimit(512)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if gorillaws.IsUnexpectedCloseError(err, gorillaws.CloseNormalClosure, gorillaws.CloseGoingAway) {
				log.Printf("WebSocket: соединение сессии %s закрыто: %v", sessionID, err)
			}
			return
		}
	}
}
