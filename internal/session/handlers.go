package session

import (
	"github.com/blockproxy/blockproxy/internal/config"
	"github.com/blockproxy/blockproxy/internal/packet"
	"github.com/blockproxy/blockproxy/internal/packet/chat"
)

// handleHandshakePhase processes the single packet expected while in
// Handshake: the Handshake packet itself. Any other id or a malformed
// payload closes the session.
func (s *Session) handleHandshakePhase(frame packet.Frame) error {
	if frame.ID != 0 {
		s.mu.Lock()
		s.setState(Closed)
		s.mu.Unlock()
		return nil
	}

	hs, err := packet.DecodeHandshake(frame.Payload)
	if err != nil {
		s.mu.Lock()
		s.setState(Closed)
		s.mu.Unlock()
		s.logf(config.LogConnection, "malformed handshake: %v", err)
		return nil
	}

	s.mu.Lock()
	s.handshake = &hs
	switch hs.NextState {
	case packet.ProtoStatus:
		s.setState(Status)
	case packet.ProtoLogin:
		s.setState(Login)
	default:
		s.setState(Closed)
	}
	enteredLogin := hs.NextState == packet.ProtoLogin
	s.mu.Unlock()

	if enteredLogin {
		s.routeLogin()
	}

	return nil
}

// handleStatusPhase processes status-request and ping packets.
func (s *Session) handleStatusPhase(frame packet.Frame) error {
	switch frame.ID {
	case packet.StatusRequestID:
		s.mu.Lock()
		pending := s.pendingDisconnect
		s.pendingDisconnect = nil
		s.mu.Unlock()

		if pending != nil {
			s.disconnectAndClose(chat.Plain(*pending))
			return nil
		}
		return s.replyStatus()

	case packet.PingID:
		ts, err := packet.DecodePing(frame.Payload)
		if err != nil {
			s.mu.Lock()
			s.setState(Closed)
			s.mu.Unlock()
			return nil
		}
		return s.writeClient(packet.Encode(packet.PingID, packet.EncodePong(ts)))
	}
	return nil
}

func (s *Session) replyStatus() error {
	description := config.DefaultStatusDescription
	s.mu.Lock()
	hs := s.handshake
	s.mu.Unlock()
	if hs != nil {
		if ep := s.cfg.FindEndpoint(hs.ServerAddress); ep != nil && ep.MOTD != nil {
			description = *ep.MOTD
		}
	}

	body, err := packet.EncodeStatusResponse(packet.StatusResponse{
		VersionName:     config.ProtocolName,
		ProtocolVersion: config.ProtocolVersion,
		MaxPlayers:      20,
		OnlinePlayers:   0,
		Description:     chat.Plain(description),
		EnforcesSecure:  false,
	})
	if err != nil {
		return err
	}
	return s.writeClient(packet.Encode(packet.StatusResponseID, body))
}

// handleLoginPhase ignores packets received while in Login. The routing
// decision is made by routeLogin (below), which handleHandshakePhase
// calls as soon as the session enters Login and which always moves the
// session on to Forward, Status or Closed before returning.
func (s *Session) handleLoginPhase(_ packet.Frame) error {
	return nil
}

// routeLogin performs the routing decision for a session that just
// transitioned into Login. It is invoked immediately after the
// Handshake handler sets state to Login, while the same chunk is being
// processed. It takes mu separately for each read and update, and holds
// no lock while dialing or writing the disconnect.
func (s *Session) routeLogin() {
	s.mu.Lock()
	hs := s.handshake
	s.mu.Unlock()
	if hs == nil {
		s.disconnectAndClose(chat.Plain(config.DefaultDisconnectMessage))
		return
	}

	ep := s.cfg.FindEndpoint(hs.ServerAddress)
	if ep == nil {
		s.disconnectAndClose(chat.Plain(config.DefaultDisconnectMessage))
		return
	}

	if ep.Origin == nil {
		msg := config.DefaultDisconnectMessage
		if ep.Message != nil {
			msg = *ep.Message
		}
		s.disconnectAndClose(chat.Plain(msg))
		return
	}

	backendConn, err := s.dial(*ep.Origin, backendDialTimeout)
	if err != nil {
		s.logf(config.LogConnection, "dial backend %s: %v", *ep.Origin, err)
		msg := config.DefaultBadGatewayMessage
		s.mu.Lock()
		s.pendingDisconnect = &msg
		s.setState(Status)
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	s.backendAddr = *ep.Origin
	s.backendConn = backendConn
	s.setState(Forward)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.SessionForwarded()
	}
}
