package feeds

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/crossarb/internal/market"
)

// wsServer serves one websocket endpoint that pushes every queued message to
// each connecting client.
func wsServer(t *testing.T, messages []string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, msg := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSnapshotRoutedIntoRegisteredBook(t *testing.T) {
	srv := wsServer(t, []string{
		`{"symbol":"BTC-USD","bids":[["101","2"],["100","1"]],"asks":[["102","3"]]}`,
	})

	book := market.NewOrderBook("BTC-USD")
	feed := NewDepthFeed("testvenue", wsURL(srv))
	feed.Register("BTC-USD", book)

	require.NoError(t, feed.Start())
	defer feed.Stop()

	require.Eventually(t, func() bool {
		return !book.BestBid().IsZero()
	}, 2*time.Second, 10*time.Millisecond)

	assert.True(t, book.BestBid().Equal(decimal.RequireFromString("101")))
	assert.True(t, book.BestAsk().Equal(decimal.RequireFromString("102")))
	assert.Len(t, book.Levels(market.SideBuy), 2)
}

func TestUnregisteredSymbolIgnored(t *testing.T) {
	srv := wsServer(t, []string{
		`{"symbol":"ETH-USD","bids":[["10","1"]],"asks":[["11","1"]]}`,
		`{"symbol":"BTC-USD","bids":[["101","2"]],"asks":[["102","3"]]}`,
	})

	btc := market.NewOrderBook("BTC-USD")
	feed := NewDepthFeed("testvenue", wsURL(srv))
	feed.Register("BTC-USD", btc)

	require.NoError(t, feed.Start())
	defer feed.Stop()

	require.Eventually(t, func() bool {
		return !btc.BestBid().IsZero()
	}, 2*time.Second, 10*time.Millisecond)

	// Only the registered symbol's book was touched.
	assert.True(t, btc.BestBid().Equal(decimal.RequireFromString("101")))
}

func TestMalformedMessagesAreSkipped(t *testing.T) {
	srv := wsServer(t, []string{
		`not json`,
		`{"symbol":"BTC-USD","bids":[["bad","1"],["100","1"]],"asks":[["101","x"],["102","2"]]}`,
	})

	book := market.NewOrderBook("BTC-USD")
	feed := NewDepthFeed("testvenue", wsURL(srv))
	feed.Register("BTC-USD", book)

	require.NoError(t, feed.Start())
	defer feed.Stop()

	require.Eventually(t, func() bool {
		return !book.BestBid().IsZero()
	}, 2*time.Second, 10*time.Millisecond)

	// Unparseable levels dropped, valid ones kept.
	assert.Len(t, book.Levels(market.SideBuy), 1)
	assert.Len(t, book.Levels(market.SideSell), 1)
	assert.True(t, book.BestAsk().Equal(decimal.RequireFromString("102")))
}

func TestStartIsIdempotent(t *testing.T) {
	srv := wsServer(t, nil)

	feed := NewDepthFeed("testvenue", wsURL(srv))
	require.NoError(t, feed.Start())
	defer feed.Stop()

	require.NoError(t, feed.Start(), "second start is a no-op")
}

func TestStartFailsOnUnreachableURL(t *testing.T) {
	feed := NewDepthFeed("testvenue", "ws://127.0.0.1:1/nope")
	assert.Error(t, feed.Start())
}

func TestParseLevels(t *testing.T) {
	levels := parseLevels([][2]string{{"100.5", "2"}, {"bad", "1"}, {"101", "bad"}})
	require.Len(t, levels, 1)
	assert.True(t, levels[0].Price.Equal(decimal.RequireFromString("100.5")))
	assert.True(t, levels[0].Amount.Equal(decimal.RequireFromString("2")))
}
