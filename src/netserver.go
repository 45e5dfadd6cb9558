package mrf49xa

/*------------------------------------------------------------------
 *
 * Purpose:   	Host link over TCP, announced with DNS-SD.
 *
 * Description:	There is only one radio, so only one client is served
 *		at a time.  Later connections wait in the listen backlog
 *		until the current one goes away.
 *
 *		Most people have typed in enough IP addresses and ports
 *		by now, and would rather just pick the radio from a list,
 *		so the port is announced on the local network.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/brutella/dnssd"
)

const DNS_SD_SERVICE = "_mrf49xa._tcp"

// NetServer accepts clients and hands each one to Serve.
type NetServer struct {
	Port int

	// DNSSDName is the announced instance name.  Empty picks one from the
	// host name; "-" turns announcement off.
	DNSSDName string

	// Serve runs one client to completion.
	Serve func(ctx context.Context, conn net.Conn) error
}

// DNSSDDefaultName is the instance name used when none is configured.
func DNSSDDefaultName() string {
	var host, err = os.Hostname()
	if err != nil || host == "" {
		return "MRF49XA"
	}
	return "MRF49XA on " + host
}

// ListenAndServe runs until ctx is done.
func (s *NetServer) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	var ln, err = lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", s.Port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", s.Port, err)
	}

	return s.serve(ctx, ln)
}

func (s *NetServer) serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var port = ln.Addr().(*net.TCPAddr).Port
	logger.Info("listening for TCP clients", "port", port)

	if s.DNSSDName != "-" {
		s.announce(ctx, port)
	}

	for {
		var conn, err = ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		logger.Info("client connected", "remote", conn.RemoteAddr())

		var serveErr = s.Serve(ctx, conn)
		conn.Close()

		if serveErr != nil {
			logger.Warn("client session ended", "remote", conn.RemoteAddr(), "err", serveErr)
		} else {
			logger.Info("client disconnected", "remote", conn.RemoteAddr())
		}
	}
}

func (s *NetServer) announce(ctx context.Context, port int) {
	var name = s.DNSSDName
	if name == "" {
		name = DNSSDDefaultName()
	}

	var cfg = dnssd.Config{ //nolint:exhaustruct
		Name: name,
		Type: DNS_SD_SERVICE,
		Port: port,
	}

	var sv, svErr = dnssd.NewService(cfg)
	if svErr != nil {
		logger.Error("DNS-SD: failed to create service", "err", svErr)
		return
	}

	var rp, rpErr = dnssd.NewResponder()
	if rpErr != nil {
		logger.Error("DNS-SD: failed to create responder", "err", rpErr)
		return
	}

	if _, err := rp.Add(sv); err != nil {
		logger.Error("DNS-SD: failed to add service", "err", err)
		return
	}

	logger.Info("DNS-SD: announcing", "port", port, "name", name)

	go func() {
		var err = rp.Respond(ctx)
		if err != nil && ctx.Err() == nil {
			logger.Error("DNS-SD: responder error", "err", err)
		}
	}()
}
