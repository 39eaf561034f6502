package handlers

import "roomify/service/chat"

// RegisterAll wires every inbound event handler into the server's
// dispatcher. Called once at boot.
func RegisterAll(s *chat.Server) {
	d := s.Disp()
	d.Register(JoinHandler{})
	d.Register(LeaveHandler{})
	d.Register(SendHandler{})
	d.Register(EditHandler{})
	d.Register(DeleteHandler{})
	d.Register(TypingHandler{})
	d.Register(StopTypingHandler{})
	d.Register(ReadHandler{})
}
