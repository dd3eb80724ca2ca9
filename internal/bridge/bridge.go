// Package bridge is the TCP bridge socket (component D): one peer at a
// time, server or client role, with a ring callback fired each time a
// peer attaches and a recv callback fired per received chunk.
package bridge

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/daedaluz/fdev/poll"
	"golang.org/x/sys/unix"

	"github.com/behrlich/me56ps2-gadget/internal/errs"
	"github.com/behrlich/me56ps2-gadget/internal/logging"
)

// recvPollInterval is the bounded-wait poll the receive activity uses
// to notice a disconnect promptly without busy-looping
// (original_source/tcp_sock.cpp's 100ms select timeout).
const recvPollInterval = 100 * time.Millisecond

const recvChunkSize = 64

// RingCallback fires once per peer attachment: on each accepted peer
// that fills the empty connection slot, and on each successful Connect.
type RingCallback func()

// RecvCallback fires once per chunk received from the connected peer.
type RecvCallback func(data []byte)

// DisconnectCallback fires whenever the active peer connection is torn
// down, whether by peer EOF, a recv/send error, or an explicit Disconnect.
type DisconnectCallback func()

// Socket is a single-peer TCP bridge: a server listens and accepts
// connections one at a time (closing any second concurrent peer), a
// client dials on Connect. Either role exposes Send/IsConnected once a
// peer is attached; received bytes are delivered through the recv
// callback.
type Socket struct {
	log      *logging.Logger
	isServer bool
	sockAddr unix.SockaddrInet4

	serverFd int

	commFd atomic.Int64 // 0 means "not connected"

	mu           sync.Mutex
	ringCb       RingCallback
	recvCb       RecvCallback
	disconnectCb DisconnectCallback

	stop chan struct{}
	wg   sync.WaitGroup
}

// New builds a bridge socket bound to ip:port. For a server role this
// creates, binds and listens on the socket immediately; Start then
// spawns the accept loop. For a client role, the socket is created
// lazily by Connect.
func New(log *logging.Logger, isServer bool, ip string, port uint16) (*Socket, error) {
	addr, err := parseIPv4(ip)
	if err != nil {
		return nil, errs.Socket("bridge.New", err)
	}

	s := &Socket{
		log:      log.Named("tcp_sock: "),
		isServer: isServer,
		sockAddr: unix.SockaddrInet4{Port: int(port), Addr: addr},
		stop:     make(chan struct{}),
	}

	if isServer {
		fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
		if err != nil {
			return nil, errs.Socket("bridge.New: socket", err)
		}
		if err := unix.Bind(fd, &s.sockAddr); err != nil {
			unix.Close(fd)
			return nil, errs.Socket("bridge.New: bind", err)
		}
		if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
			unix.Close(fd)
			return nil, errs.Socket("bridge.New: listen", err)
		}
		s.serverFd = fd
	}

	return s, nil
}

func parseIPv4(ip string) ([4]byte, error) {
	var out [4]byte
	var a, b, c, d int
	n, err := fmt.Sscanf(ip, "%d.%d.%d.%d", &a, &b, &c, &d)
	if err != nil || n != 4 {
		return out, fmt.Errorf("invalid IPv4 address %q", ip)
	}
	out = [4]byte{byte(a), byte(b), byte(c), byte(d)}
	return out, nil
}

// SetRingCallback registers the callback fired on each peer attachment.
func (s *Socket) SetRingCallback(f RingCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ringCb = f
}

// SetRecvCallback registers the callback fired per received chunk.
func (s *Socket) SetRecvCallback(f RecvCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recvCb = f
}

// SetDisconnectCallback registers the callback fired when the peer
// connection is torn down.
func (s *Socket) SetDisconnectCallback(f DisconnectCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnectCb = f
}

// Start begins the server accept loop. Only valid for a server socket.
func (s *Socket) Start() error {
	if !s.isServer {
		return errs.Usage("bridge.Start", "Start is server-only; clients use Connect")
	}
	s.log.Debug("start listen_thread")
	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

func (s *Socket) acceptLoop() {
	defer s.wg.Done()
	for {
		clientFd, _, err := unix.Accept(s.serverFd)
		if err != nil {
			select {
			case <-s.stop:
				return
			default:
			}
			s.log.Printf("accept(): %v", err)
			return
		}
		s.log.Debug("client connected")

		if s.commFd.CompareAndSwap(0, int64(clientFd)) {
			s.fireRing()
			s.wg.Add(1)
			go s.recvLoop()
		} else {
			unix.Close(clientFd)
		}
	}
}

// Connect dials the configured address. Only valid for a client
// socket. Returns false (without panicking) on a failed dial, matching
// the original's bool-returning connect().
func (s *Socket) Connect() bool {
	if s.isServer {
		return false
	}
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		s.log.Debugf("socket(): %v", err)
		return false
	}
	if err := unix.Connect(fd, &s.sockAddr); err != nil {
		s.log.Debugf("connect(): %v", err)
		unix.Close(fd)
		return false
	}

	s.commFd.Store(int64(fd))
	s.fireRing()
	s.wg.Add(1)
	go s.recvLoop()
	return true
}

func (s *Socket) fireRing() {
	s.mu.Lock()
	cb := s.ringCb
	s.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (s *Socket) recvLoop() {
	defer s.wg.Done()
	s.log.Debug("start recv_thread")

	fd := int(s.commFd.Load())
	buf := make([]byte, recvChunkSize)

	for {
		if err := poll.WaitInput(fd, recvPollInterval); err != nil {
			if !s.IsConnected() {
				return
			}
			continue
		}

		n, err := unix.Read(fd, buf)
		if err != nil {
			s.log.Printf("recv(): %v", err)
			s.disconnectFd(fd)
			return
		}
		if n == 0 {
			s.log.Debug("connection closed")
			s.disconnectFd(fd)
			return
		}

		s.mu.Lock()
		cb := s.recvCb
		s.mu.Unlock()
		if cb != nil {
			cp := append([]byte(nil), buf[:n]...)
			cb(cp)
		}
	}
}

// IsConnected reports whether a peer is currently attached.
func (s *Socket) IsConnected() bool {
	return s.commFd.Load() != 0
}

// Disconnect closes the current peer connection, if any.
func (s *Socket) Disconnect() {
	fd := int(s.commFd.Load())
	if fd == 0 {
		return
	}
	s.disconnectFd(fd)
}

func (s *Socket) disconnectFd(fd int) {
	if s.commFd.CompareAndSwap(int64(fd), 0) {
		unix.Close(fd)
		s.mu.Lock()
		cb := s.disconnectCb
		s.mu.Unlock()
		if cb != nil {
			cb()
		}
	}
}

// Send writes the full buffer best-effort: short writes are retried,
// write errors abort the send, are logged and tear down the peer
// connection. MSG_NOSIGNAL keeps a dropped peer from raising SIGPIPE.
func (s *Socket) Send(data []byte) {
	fd := int(s.commFd.Load())
	if fd == 0 {
		s.log.Printf("socket closed")
		return
	}
	sent := 0
	for sent < len(data) {
		n, err := unix.SendmsgN(fd, data[sent:], nil, nil, unix.MSG_NOSIGNAL)
		if err != nil {
			s.log.Printf("send(): %v", err)
			s.disconnectFd(fd)
			return
		}
		sent += n
	}
}

// Close tears down the listener (if server) and the active peer
// connection, waiting for background goroutines to exit.
func (s *Socket) Close() error {
	close(s.stop)
	if s.isServer && s.serverFd != 0 {
		// close alone does not wake a blocked accept(); shutdown does.
		unix.Shutdown(s.serverFd, unix.SHUT_RDWR)
		unix.Close(s.serverFd)
	}
	s.Disconnect()
	s.wg.Wait()
	return nil
}
