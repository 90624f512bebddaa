// Package bloomberg implements both market data contracts against a local
// Bloomberg terminal gateway. The gateway multiplexes requests over one TCP
// connection using length-prefixed msgpack frames; requests carry a
// correlation ID so responses can be matched. Unlike the web providers a
// single request covers many securities, so batch operations either succeed
// or fail as a whole.
package bloomberg

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	dialTimeout    = 2 * time.Second
	requestTimeout = 30 * time.Second

	// maxFrameSize caps a response frame; historical requests over many
	// securities stay well under this.
	maxFrameSize = 64 << 20
)

// request is the wire shape sent to the gateway.
type request struct {
	RequestID  string   `msgpack:"request_id"`
	Operation  string   `msgpack:"operation"`
	Securities []string `msgpack:"securities"`
	Fields     []string `msgpack:"fields"`
	StartDate  string   `msgpack:"start_date,omitempty"`
	EndDate    string   `msgpack:"end_date,omitempty"`
}

// row is one security/date observation in a response. Values holds the
// requested field mnemonics.
type row struct {
	Security string             `msgpack:"security"`
	Date     string             `msgpack:"date,omitempty"`
	Values   map[string]float64 `msgpack:"values"`
	Strings  map[string]string  `msgpack:"strings,omitempty"`
}

type response struct {
	RequestID string `msgpack:"request_id"`
	Error     string `msgpack:"error,omitempty"`
	Rows      []row  `msgpack:"rows"`
}

// Client is the low-level gateway client. One connection, guarded by a
// mutex: the gateway processes frames in order, so calls serialize.
type Client struct {
	addr string
	log  zerolog.Logger

	mu   sync.Mutex
	conn net.Conn
}

// NewClient connects to the gateway at addr. The dial happens eagerly so
// construction fails fast when no terminal is running.
func NewClient(addr string, log zerolog.Logger) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("gateway unreachable at %s: %w", addr, err)
	}
	return &Client{
		addr: addr,
		conn: conn,
		log:  log.With().Str("client", "bloomberg").Logger(),
	}, nil
}

// Close implements domain.Closer
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// roundTrip sends one request frame and reads the matching response.
func (c *Client) roundTrip(req request) (*response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		conn, err := net.DialTimeout("tcp", c.addr, dialTimeout)
		if err != nil {
			return nil, fmt.Errorf("gateway unreachable at %s: %w", c.addr, err)
		}
		c.conn = conn
	}

	req.RequestID = uuid.NewString()
	c.log.Debug().
		Str("request_id", req.RequestID).
		Str("operation", req.Operation).
		Int("securities", len(req.Securities)).
		Msg("Sending gateway request")

	if err := c.conn.SetDeadline(time.Now().Add(requestTimeout)); err != nil {
		return nil, err
	}

	if err := writeFrame(c.conn, req); err != nil {
		c.dropConn()
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	var resp response
	if err := readFrame(c.conn, &resp); err != nil {
		c.dropConn()
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.RequestID != req.RequestID {
		c.dropConn()
		return nil, fmt.Errorf("response correlation mismatch: got %s, want %s",
			resp.RequestID, req.RequestID)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("gateway error: %s", resp.Error)
	}
	return &resp, nil
}

// dropConn discards a connection after a framing failure; the next call
// redials.
func (c *Client) dropConn() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func writeFrame(w io.Writer, v any) error {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return err
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

func readFrame(r io.Reader, v any) error {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return err
	}
	size := binary.BigEndian.Uint32(header[:])
	if size > maxFrameSize {
		return fmt.Errorf("frame of %d bytes exceeds limit", size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return err
	}
	return msgpack.Unmarshal(payload, v)
}

// referenceData requests current values of the given field mnemonics for a
// batch of securities. One row per security.
func (c *Client) referenceData(securities, fields []string) ([]row, error) {
	resp, err := c.roundTrip(request{
		Operation:  "ReferenceDataRequest",
		Securities: securities,
		Fields:     fields,
	})
	if err != nil {
		return nil, err
	}
	return resp.Rows, nil
}

// historicalData requests daily values over [start, end]. One row per
// security per date.
func (c *Client) historicalData(securities, fields []string, start, end time.Time) ([]row, error) {
	resp, err := c.roundTrip(request{
		Operation:  "HistoricalDataRequest",
		Securities: securities,
		Fields:     fields,
		StartDate:  start.Format("20060102"),
		EndDate:    end.Format("20060102"),
	})
	if err != nil {
		return nil, err
	}
	return resp.Rows, nil
}
