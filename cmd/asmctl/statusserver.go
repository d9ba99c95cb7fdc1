package main

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// opStatus is the shared state a status server exposes: which operation is
// in flight, since when, and how it ended. withProgress updates it so
// "asmctl ... --status-addr" callers can poll a long install/fetch from
// another process.
var opStatus = struct {
	mu        sync.Mutex
	label     string
	running   bool
	startedAt time.Time
	lastErr   error
}{}

func statusStarted(label string) {
	opStatus.mu.Lock()
	defer opStatus.mu.Unlock()
	opStatus.label = label
	opStatus.running = true
	opStatus.startedAt = time.Now()
	opStatus.lastErr = nil
}

func statusFinished(err error) {
	opStatus.mu.Lock()
	defer opStatus.mu.Unlock()
	opStatus.running = false
	opStatus.lastErr = err
}

// startStatusServer serves /healthz and /status on addr until the returned
// stop func is called, grounded on the teacher's /api/v1/health REST
// endpoint pattern in cmd/cli/main.go, generalized from miner-session
// health to ASM operation progress.
func startStatusServer(addr string) (stop func(), err error) {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/status", func(c *gin.Context) {
		opStatus.mu.Lock()
		defer opStatus.mu.Unlock()
		resp := gin.H{
			"label":   opStatus.label,
			"running": opStatus.running,
		}
		if !opStatus.startedAt.IsZero() {
			resp["started_at"] = opStatus.startedAt
		}
		if opStatus.lastErr != nil {
			resp["last_error"] = opStatus.lastErr.Error()
		}
		c.JSON(http.StatusOK, resp)
	})

	srv := &http.Server{Addr: addr, Handler: r}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop = func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
	return stop, nil
}
