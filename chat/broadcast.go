// File: chat/broadcast.go
// Author: robn <robn@despairlabs.com>
// License: Apache-2.0

package chat

// broadcast fans the payload out to every live peer except the sender: one
// independent write request per destination, payload copied per request so
// each completion stands alone. One destination failing to take a
// submission affects no other destination. Copying is a deliberate
// simplicity trade; a shared refcounted buffer would save the copies but
// complicate request ownership.
func (s *Server) broadcast(sender int, payload []byte) {
	for _, fd := range s.reg.Others(sender) {
		if err := s.sub.Write(fd, payload); err != nil {
			s.log.Error().Int("fd", fd).Err(err).Msg("write submit failed")
			s.disconnect(fd)
		}
	}
}
