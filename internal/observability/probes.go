package observability

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/render"
)

// readinessResponse is the body of the readiness probe. Kubernetes only reads
// the status code; the body is for humans.
type readinessResponse struct {
	Ready  bool              `json:"ready"`
	Status map[string]string `json:"status"`
}

func (s *Server) liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readiness runs every checker in parallel under the configured timeout.
func (s *Server) readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Timeout)
	defer cancel()

	resp := readinessResponse{Ready: true, Status: make(map[string]string, len(s.checkers))}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, checker := range s.checkers {
		wg.Add(1)
		go func(c Checker) {
			defer wg.Done()

			err := c.Check(ctx)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				s.logger.Warn("health probe failed",
					slog.String("component", c.Name()),
					slog.String("error", err.Error()),
				)
				resp.Status[c.Name()] = "down: " + err.Error()
				resp.Ready = false
				return
			}
			resp.Status[c.Name()] = "up"
		}(checker)
	}
	wg.Wait()

	if resp.Ready {
		render.Status(r, http.StatusOK)
	} else {
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, resp)
}
