package feeds

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/crossarb/internal/market"
)

// ═══════════════════════════════════════════════════════════════════════════════
// DEPTH FEED - WebSocket order book snapshots
// ═══════════════════════════════════════════════════════════════════════════════
//
// Streams depth snapshots from a venue websocket into registered order
// books. One feed per venue; books are registered per symbol. The feed
// reconnects with backoff and keeps the last snapshot until a fresh one
// arrives.
//
// ═══════════════════════════════════════════════════════════════════════════════

// depthMessage is the wire format of one snapshot
type depthMessage struct {
	Symbol string      `json:"symbol"`
	Bids   [][2]string `json:"bids"` // [price, size]
	Asks   [][2]string `json:"asks"`
}

// DepthFeed maintains one websocket connection to a venue depth stream
type DepthFeed struct {
	mu    sync.RWMutex
	url   string
	name  string
	books map[string]*market.OrderBook // symbol -> target book

	conn    *websocket.Conn
	running bool
	stopCh  chan struct{}
}

// NewDepthFeed creates a feed for one venue
func NewDepthFeed(name, url string) *DepthFeed {
	return &DepthFeed{
		name:   name,
		url:    url,
		books:  make(map[string]*market.OrderBook),
		stopCh: make(chan struct{}),
	}
}

// Register routes snapshots for a symbol into the given book
func (f *DepthFeed) Register(symbol string, book *market.OrderBook) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.books[symbol] = book
}

// Start connects and begins streaming. Returns after the first successful
// dial; reconnects happen in the background.
func (f *DepthFeed) Start() error {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return nil
	}
	f.running = true
	f.mu.Unlock()

	if err := f.connect(); err != nil {
		f.mu.Lock()
		f.running = false
		f.mu.Unlock()
		return err
	}

	go f.readLoop()

	log.Info().Str("feed", f.name).Str("url", f.url).Msg("📡 Depth feed connected")
	return nil
}

// Stop closes the connection and stops reconnecting
func (f *DepthFeed) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.running {
		return
	}
	f.running = false
	close(f.stopCh)
	if f.conn != nil {
		f.conn.Close()
	}
}

func (f *DepthFeed) connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(f.url, nil)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()
	return nil
}

func (f *DepthFeed) readLoop() {
	backoff := time.Second

	for {
		select {
		case <-f.stopCh:
			return
		default:
		}

		f.mu.RLock()
		conn := f.conn
		f.mu.RUnlock()

		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-f.stopCh:
				return
			default:
			}

			log.Warn().Err(err).Str("feed", f.name).Msg("Depth feed disconnected, reconnecting")
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			if err := f.connect(); err != nil {
				log.Warn().Err(err).Str("feed", f.name).Msg("Reconnect failed")
			}
			continue
		}
		backoff = time.Second

		f.handleMessage(data)
	}
}

func (f *DepthFeed) handleMessage(data []byte) {
	var msg depthMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Debug().Err(err).Str("feed", f.name).Msg("Unparseable depth message")
		return
	}

	f.mu.RLock()
	book := f.books[msg.Symbol]
	f.mu.RUnlock()
	if book == nil {
		return
	}

	book.ApplySnapshot(parseLevels(msg.Bids), parseLevels(msg.Asks))
}

func parseLevels(raw [][2]string) []market.PriceLevel {
	levels := make([]market.PriceLevel, 0, len(raw))
	for _, entry := range raw {
		price, err := decimal.NewFromString(entry[0])
		if err != nil {
			continue
		}
		size, err := decimal.NewFromString(entry[1])
		if err != nil {
			continue
		}
		levels = append(levels, market.PriceLevel{Price: price, Amount: size})
	}
	return levels
}
