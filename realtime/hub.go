package realtime

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

type Client struct {
	Hub      *Hub
	Conn     *websocket.Conn
	Send     chan []byte
	Topic    Topic
	isClosed bool
	mu       sync.Mutex
}

type publishRequest struct {
	topic   Topic
	message []byte
}

// Hub раздаёт события подписчикам по топикам. Доставка at-most-once без
// буферизации и replay: отключившийся клиент пропускает события и обязан
// пересинхронизироваться полным чтением после переподключения.
//
// Публикации проходят через один цикл Run, поэтому внутри топика клиенты
// получают события строго в порядке публикации (т.е. в порядке коммитов).
type Hub struct {
	Register   chan *Client
	Unregister chan *Client
	publish    chan publishRequest
	topics     map[Topic]map[*Client]bool
}

func NewHub() *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		publish:    make(chan publishRequest, 64),
		topics:     make(map[Topic]map[*Client]bool),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			if _, ok := h.topics[client.Topic]; !ok {
				h.topics[client.Topic] = make(map[*Client]bool)
			}
			h.topics[client.Topic][client] = true
			log.Printf("realtime: client subscribed to %s (%d in topic)", client.Topic, len(h.topics[client.Topic]))

		case client := <-h.Unregister:
			if clients, ok := h.topics[client.Topic]; ok {
				if _, okClient := clients[client]; okClient {
					client.closeSend()
					delete(clients, client)
					if len(clients) == 0 {
						delete(h.topics, client.Topic)
					}
					log.Printf("realtime: client left %s", client.Topic)
				}
			}

		case req := <-h.publish:
			for client := range h.topics[req.topic] {
				client.mu.Lock()
				if client.isClosed {
					client.mu.Unlock()
					continue
				}
				select {
				case client.Send <- req.message:
				default:
					// Медленный подписчик: событие теряется, клиент
					// ресинхронизируется полным чтением.
					log.Printf("realtime: dropping event for slow client in %s", req.topic)
				}
				client.mu.Unlock()
			}
		}
	}
}

// Publish отправляет событие всем подписчикам топика. Вызывается только после
// коммита транзакции, породившей событие.
func (h *Hub) Publish(topic Topic, event Event) {
	message, err := json.Marshal(event)
	if err != nil {
		log.Printf("realtime: failed to marshal event for %s: %v", topic, err)
		return
	}
	h.publish <- publishRequest{topic: topic, message: message}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isClosed {
		close(c.Send)
		c.isClosed = true
	}
}

func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		// Клиенты ничего не шлют по сокету; мутации идут через HTTP.
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("realtime: unexpected close in %s: %v", c.Topic, err)
			}
			break
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Дописываем накопившиеся события тем же фреймом.
			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write(newline)
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var newline = []byte{'\n'}
