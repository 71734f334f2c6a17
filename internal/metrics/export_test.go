package metrics

import "net/http"

func (s *Server) Handler() http.Handler { return s.server.Handler }
