// Package server exposes the sandbox over TCP for remote testing: each
// request invokes one protocol operation on a fresh connection with every
// loaded plugin attached.
package server

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	anetserver "github.com/andrei-cloud/anet/server"
	"github.com/andrei-cloud/go_protoop/internal/errorcodes"
	"github.com/andrei-cloud/go_protoop/internal/logging"
	"github.com/andrei-cloud/go_protoop/internal/plugins"
	"github.com/andrei-cloud/go_protoop/pkg/protoop"
	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"
)

// logAdapter implements anet.Logger using zerolog.
type logAdapter struct{}

// Server wraps the anet TCP server and the plugin manager.
type Server struct {
	address       string
	srv           *anetserver.Server
	managerHolder atomic.Value // stores *plugins.Manager
	activeConns   int32
}

func (l logAdapter) Print(v ...any) {
	log.Info().Msg(fmt.Sprint(v...))
}

func (l logAdapter) Printf(format string, v ...any) {
	log.Info().Msgf(format, v...)
}

func (l logAdapter) Infof(format string, v ...any) {
	log.Info().Msgf(format, v...)
}

func (l logAdapter) Warnf(format string, v ...any) {
	log.Warn().Msgf(format, v...)
}

func (l logAdapter) Errorf(format string, v ...any) {
	log.Error().Msgf(format, v...)
}

// NewServer configures and returns the harness server.
func NewServer(address string, pm *plugins.Manager) (*Server, error) {
	cfg := &anetserver.ServerConfig{
		MaxConns:        100,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     0 * time.Second, // disable idle connection closure.
		ShutdownTimeout: 5 * time.Second,
		Logger:          logAdapter{},
	}

	s := &Server{address: address}
	s.managerHolder.Store(pm)

	handler := anetserver.HandlerFunc(s.handle)
	srv, err := anetserver.NewServer(address, handler, cfg)
	if err != nil {
		return nil, fmt.Errorf("server setup failed: %w", err)
	}
	s.srv = srv

	return s, nil
}

// Start begins listening for connections.
func (s *Server) Start() error {
	log.Info().Str("address", s.address).Msg("server started")
	return s.srv.Start()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	return s.srv.Stop()
}

// SetManager swaps in a new plugin manager atomically and closes the old one.
func (s *Server) SetManager(pm *plugins.Manager) {
	old, ok := s.managerHolder.Load().(*plugins.Manager)
	s.managerHolder.Store(pm)
	if !ok || old == pm {
		return
	}

	if err := old.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close old plugin manager")
	}
}

func (s *Server) manager() (*plugins.Manager, error) {
	pm, ok := s.managerHolder.Load().(*plugins.Manager)
	if !ok || pm == nil {
		return nil, errors.New("plugin manager load failed")
	}

	return pm, nil
}

func (s *Server) handle(conn *anetserver.ServerConn, data []byte) ([]byte, error) {
	client := conn.Conn.RemoteAddr().String()
	atomic.AddInt32(&s.activeConns, 1)
	defer atomic.AddInt32(&s.activeConns, -1)

	return s.process(client, data), nil
}

// process executes one request and returns the encoded response. Failures
// are reported inside the response.
func (s *Server) process(client string, data []byte) []byte {
	start := time.Now()
	active := int(atomic.LoadInt32(&s.activeConns))

	resp, name := s.execute(client, data, active)

	logging.LogResponse(client, name, resp.Result.String(), resp.Error, time.Since(start), active)

	out, err := sonic.Marshal(resp)
	if err != nil {
		log.Error().Err(err).Str("client_ip", client).Msg("failed to encode response")
		return []byte(`{"error":"` + errorcodes.ErrMalformedRequest.CodeOnly() + `"}`)
	}

	return out
}

func (s *Server) execute(client string, data []byte, active int) (Response, string) {
	op, inputs, nouts, err := decodeRequest(data)
	if err != nil {
		log.Warn().
			Str("event", "malformed_request").
			Str("client_ip", client).
			Err(err).
			Msg("rejecting request")
		return failure(err), ""
	}

	args := make([]string, len(inputs))
	for i, v := range inputs {
		args[i] = v.String()
	}
	logging.LogRequest(client, op.String(), args, nouts, active)

	pm, err := s.manager()
	if err != nil {
		return failure(err), op.String()
	}

	c, err := pm.NewConn(context.Background())
	if err != nil {
		return failure(err), op.String()
	}
	defer func() {
		if err := c.Close(); err != nil {
			log.Error().Err(err).Str("cnx", c.ID().String()).Msg("failed to close connection")
		}
	}()

	outs := make([]protoop.Value, nouts)
	res, err := c.Invoke(op, inputs, outs)
	if err != nil {
		return failure(err), op.String()
	}

	resp := Response{Result: encodeValue(res)}
	for _, v := range outs {
		resp.Outputs = append(resp.Outputs, encodeValue(v))
	}

	return resp, op.String()
}

func failure(err error) Response {
	code := errorcodes.Code(err)
	if code == "" {
		code = errorcodes.ErrPluginFault.CodeOnly()
	}

	return Response{
		Result:   encodeValue(protoop.Value{}),
		Error:    code,
		Message:  err.Error(),
		Contract: errorcodes.IsContractViolation(err),
	}
}

// String renders the argument for logs.
func (a Argument) String() string {
	if len(a.Value) == 0 {
		return a.Kind
	}

	return a.Kind + "(" + string(a.Value) + ")"
}
