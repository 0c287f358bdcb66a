// Package eip implements the EtherNet/IP encapsulation layer: session
// registration, SendRRData transactions, and CPF framing over a single
// TCP connection.
package eip

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"tagscan/logging"
)

// DefaultPort is the standard EtherNet/IP explicit messaging port.
const DefaultPort = 44818

// Client holds the TCP connection and registered session for one target.
// A mutex serializes transactions; EtherNet/IP explicit messaging is
// request/response on a single stream.
type Client struct {
	host    string
	port    uint16
	conn    net.Conn
	session uint32
	timeout time.Duration
	mu      sync.Mutex
}

// NewClient creates a client for the given address. The address may be
// "host" or "host:port"; the port defaults to 44818.
func NewClient(address string) *Client {
	host := address
	port := uint16(DefaultPort)
	if h, p, err := net.SplitHostPort(address); err == nil {
		if n, err := strconv.Atoi(p); err == nil && n > 0 && n <= 0xFFFF {
			host = h
			port = uint16(n)
		}
	} else if strings.Contains(address, ":") && !strings.Contains(address, "]") {
		// Malformed host:port falls back to the raw string as host.
		host = address
	}
	return &Client{
		host:    host,
		port:    port,
		timeout: 5 * time.Second,
	}
}

// Addr returns the target address as host:port.
func (e *Client) Addr() string {
	if e == nil {
		return ""
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return net.JoinHostPort(e.host, strconv.Itoa(int(e.port)))
}

// Timeout returns the per-transaction I/O timeout.
func (e *Client) Timeout() time.Duration {
	if e == nil {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timeout
}

// SetTimeout sets the per-transaction I/O timeout.
func (e *Client) SetTimeout(dur time.Duration) {
	if e == nil || dur <= 0 {
		return
	}
	e.mu.Lock()
	e.timeout = dur
	e.mu.Unlock()
}

// Session returns the registered session handle (0 if unregistered).
func (e *Client) Session() uint32 {
	if e == nil {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// IsConnected reports whether the TCP connection is open.
func (e *Client) IsConnected() bool {
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conn != nil
}

// Connect dials the target and registers an EIP session.
func (e *Client) Connect() error {
	if e == nil {
		return fmt.Errorf("Connect: nil client")
	}

	e.mu.Lock()
	connString := net.JoinHostPort(e.host, strconv.Itoa(int(e.port)))
	timeout := e.timeout
	e.mu.Unlock()

	logging.DebugConnect("eip", connString)

	d := net.Dialer{Timeout: timeout}
	conn, err := d.Dial("tcp", connString)
	if err != nil {
		logging.DebugConnectError("eip", connString, err)
		return fmt.Errorf("Connect: dial: %w", err)
	}

	logging.DebugLog("eip", "TCP connection established to %s", connString)

	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetKeepAlive(true)
		_ = tc.SetKeepAlivePeriod(30 * time.Second)
	}

	e.mu.Lock()
	oldConn := e.conn
	oldSession := e.session

	e.conn = conn
	e.session = 0

	session, err := e.registerSession()
	if err != nil {
		e.conn = oldConn
		e.session = oldSession
		e.mu.Unlock()
		_ = conn.Close()
		logging.DebugError("eip", "RegisterSession", err)
		return fmt.Errorf("Connect: register session: %w", err)
	}

	e.session = session
	e.mu.Unlock()

	logging.DebugConnectSuccess("eip", connString, fmt.Sprintf("session=0x%08X", session))

	if oldConn != nil {
		_ = oldConn.Close()
	}
	return nil
}

// Disconnect unregisters the session (best-effort) and closes the
// connection. Safe to call on a nil or already-closed client.
func (e *Client) Disconnect() error {
	if e == nil {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.conn == nil {
		e.session = 0
		return nil
	}

	logging.DebugDisconnect("eip", e.host, "client disconnect requested")

	if e.session != 0 {
		return e.unRegisterSession()
	}

	err := e.conn.Close()
	e.conn = nil
	e.session = 0
	return err
}

// registerSession sends the RegisterSession command (0x65) and returns
// the assigned session handle. Caller holds e.mu.
func (e *Client) registerSession() (uint32, error) {
	if e == nil || e.conn == nil {
		return 0, fmt.Errorf("registerSession: not connected")
	}

	msg := Encap{
		Command: CmdRegisterSession,
		Length:  4,
		Data:    []byte{1, 0, 0, 0}, // protocol version 1, options 0
	}

	resp, err := e.transactEncap(msg)
	if err != nil {
		return 0, fmt.Errorf("registerSession: transaction: %w", err)
	}

	if resp.Status != 0 {
		return 0, fmt.Errorf("registerSession: encapsulation status=0x%08x", resp.Status)
	}
	if resp.SessionHandle == 0 {
		return 0, fmt.Errorf("registerSession: got session handle 0")
	}

	return resp.SessionHandle, nil
}

// unRegisterSession sends UnRegisterSession (0x66) and closes the
// socket. Send errors are returned but the socket is closed regardless.
// Caller holds e.mu.
func (e *Client) unRegisterSession() error {
	if e == nil || e.conn == nil || e.session == 0 {
		return nil
	}

	msg := Encap{
		Command:       CmdUnRegisterSession,
		SessionHandle: e.session,
	}

	_ = e.conn.SetWriteDeadline(time.Now().Add(e.timeout))
	defer e.conn.SetWriteDeadline(time.Time{})

	err := e.sendEncap(msg)

	e.session = 0
	e.conn.Close()
	e.conn = nil

	return err
}

// transactEncap sends one encapsulation frame and reads one response,
// with deadlines on both directions. Caller holds e.mu.
func (e *Client) transactEncap(msg Encap) (*Encap, error) {
	if e == nil || e.conn == nil {
		return nil, fmt.Errorf("transactEncap: not connected")
	}

	_ = e.conn.SetWriteDeadline(time.Now().Add(e.timeout))
	defer e.conn.SetWriteDeadline(time.Time{})
	if err := e.sendEncap(msg); err != nil {
		return nil, fmt.Errorf("transactEncap: send: %w", err)
	}

	_ = e.conn.SetReadDeadline(time.Now().Add(e.timeout))
	defer e.conn.SetReadDeadline(time.Time{})
	resp, err := e.recvEncap()
	if err != nil {
		return nil, fmt.Errorf("transactEncap: recv: %w", err)
	}

	return resp, nil
}

func (e *Client) sendEncap(msg Encap) error {
	if e == nil || e.conn == nil {
		return fmt.Errorf("sendEncap: not connected")
	}
	data := msg.Bytes()
	logging.DebugTX("eip", data)
	_, err := e.conn.Write(data)
	if err != nil {
		logging.DebugError("eip", "sendEncap write", err)
	}
	return err
}

func (e *Client) recvEncap() (*Encap, error) {
	if e == nil || e.conn == nil {
		return nil, fmt.Errorf("recvEncap: not connected")
	}

	header := make([]byte, 24)
	if _, err := io.ReadFull(e.conn, header); err != nil {
		logging.DebugError("eip", "recvEncap read header", err)
		return nil, fmt.Errorf("recvEncap: read header: %w", err)
	}

	payloadLength := binary.LittleEndian.Uint16(header[2:4])
	sessionHandle := binary.LittleEndian.Uint32(header[4:8])

	// 65511 = 65535 minus the 24-byte encapsulation header.
	if payloadLength > 65511 {
		logging.DebugLog("eip", "RX excessive payload length: %d", payloadLength)
		return nil, fmt.Errorf("recvEncap: excessive payload length %d", payloadLength)
	}
	// Session 0 in a response is valid (ListIdentity and friends);
	// otherwise the response must carry our session handle.
	if sessionHandle != 0 && e.session != 0 && sessionHandle != e.session {
		logging.DebugLog("eip", "RX session mismatch: expected 0x%08X, got 0x%08X", e.session, sessionHandle)
		return nil, fmt.Errorf("recvEncap: session mismatch: need 0x%08X, got 0x%08X", e.session, sessionHandle)
	}

	payload := make([]byte, payloadLength)
	if _, err := io.ReadFull(e.conn, payload); err != nil {
		logging.DebugError("eip", "recvEncap read payload", err)
		return nil, fmt.Errorf("recvEncap: read payload: %w", err)
	}

	fullPacket := append(header, payload...)
	logging.DebugRX("eip", fullPacket)

	var ctx [8]byte
	copy(ctx[:], header[12:20])

	return &Encap{
		Command:       binary.LittleEndian.Uint16(header[:2]),
		Length:        payloadLength,
		SessionHandle: sessionHandle,
		Status:        binary.LittleEndian.Uint32(header[8:12]),
		Context:       ctx,
		Options:       binary.LittleEndian.Uint32(header[20:24]),
		Data:          payload,
	}, nil
}

// SendRRData sends an unconnected explicit message and returns the
// parsed CPF response. Requires a registered session.
func (e *Client) SendRRData(packet CommonPacket) (*CommonPacket, error) {
	if e == nil {
		return nil, fmt.Errorf("SendRRData: nil client")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.conn == nil {
		return nil, fmt.Errorf("SendRRData: not connected")
	}
	if e.session == 0 {
		return nil, fmt.Errorf("SendRRData: session handle is 0")
	}

	packetBytes := packet.Bytes()
	if len(packetBytes) == 0 {
		return nil, fmt.Errorf("SendRRData: empty CIP request")
	}

	rrdata := CommandData{Packet: packetBytes}
	rrdataBytes := rrdata.Bytes()

	req := Encap{
		Command:       CmdSendRRData,
		Length:        uint16(len(rrdataBytes)),
		SessionHandle: e.session,
		Data:          rrdataBytes,
	}

	resp, err := e.transactEncap(req)
	if err != nil {
		return nil, fmt.Errorf("SendRRData: %w", err)
	}
	if resp.Status != 0 {
		return nil, fmt.Errorf("SendRRData: encapsulation status=0x%08x", resp.Status)
	}

	cdata, err := ParseCommandData(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("SendRRData: %w", err)
	}

	cpacket, err := ParseCommonPacket(cdata.Packet)
	if err != nil {
		return nil, fmt.Errorf("SendRRData: %w", err)
	}

	return cpacket, nil
}

// SendNop transmits the NOP command (0x00). The target sends no reply;
// a write error indicates the connection is gone.
func (e *Client) SendNop() error {
	if e == nil {
		return fmt.Errorf("SendNop: nil client")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.conn == nil {
		return fmt.Errorf("SendNop: not connected")
	}

	msg := Encap{
		Command:       CmdNop,
		SessionHandle: e.session,
	}

	_ = e.conn.SetWriteDeadline(time.Now().Add(e.timeout))
	defer e.conn.SetWriteDeadline(time.Time{})

	if err := e.sendEncap(msg); err != nil {
		return fmt.Errorf("SendNop: %w", err)
	}

	return nil
}
