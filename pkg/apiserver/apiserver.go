// Package apiserver exposes the control and query operations of the
// engine over HTTP.
package apiserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gopkg.in/tomb.v2"

	"github.com/crowdsecurity/go-cs-lib/trace"

	"github.com/sentinelhq/sentinel/pkg/apiserver/controllers"
	v1 "github.com/sentinelhq/sentinel/pkg/apiserver/controllers/v1"
	"github.com/sentinelhq/sentinel/pkg/csconfig"
)

type APIServer struct {
	URL            string
	router         *gin.Engine
	controller     *controllers.Controller
	httpServer     *http.Server
	serveTomb      tomb.Tomb

	mu   sync.Mutex
	addr net.Addr
}

// NewServer builds the router. accessLogger receives one line per request.
func NewServer(config *csconfig.APICfg, eng v1.Engine, highPortMode bool, accessLogger *log.Logger) (*APIServer, error) {
	if accessLogger == nil {
		accessLogger = log.StandardLogger()
	}

	if accessLogger.GetLevel() < log.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.ForwardedByClientIP = false

	gin.DefaultErrorWriter = accessLogger.WriterLevel(log.ErrorLevel)
	gin.DefaultWriter = accessLogger.Writer()

	router.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		line := fmt.Sprintf("%s %s %s -> %d in %s (%d bytes) ua=%q",
			param.ClientIP, param.Method, param.Path,
			param.StatusCode, param.Latency, param.BodySize,
			param.Request.UserAgent())

		if param.ErrorMessage != "" {
			line += " err=" + param.ErrorMessage
		}

		return line + "\n"
	}))

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"message": "no route for " + c.Request.Method + " " + c.Request.URL.Path})
	})

	apiLogger := accessLogger.WithField("component", "api")

	router.Use(Recovery(apiLogger))

	controller := &controllers.Controller{
		Engine:       eng,
		Router:       router,
		HighPortMode: highPortMode,
		AllowControl: config.AllowControl == nil || *config.AllowControl,
		Log:          apiLogger,
	}

	if err := controller.Init(); err != nil {
		return nil, fmt.Errorf("controller init: %w", err)
	}

	return &APIServer{
		URL:        config.ListenURI,
		router:     router,
		controller: controller,
	}, nil
}

func (s *APIServer) Router() *gin.Engine {
	return s.router
}

// Addr is the bound address once Run has signalled readiness.
func (s *APIServer) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.addr
}

// Run blocks until the server is shut down. apiReady receives true once
// the socket is bound, false if binding failed.
func (s *APIServer) Run(apiReady chan bool) error {
	defer trace.CatchPanic("sentinel/api")

	s.httpServer = &http.Server{
		Addr:              s.URL,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.serveTomb.Go(func() error {
		return s.listenAndServe(apiReady)
	})

	if err := s.serveTomb.Wait(); err != nil {
		return fmt.Errorf("api server stopped: %w", err)
	}

	return nil
}

func (s *APIServer) listenAndServe(apiReady chan bool) error {
	listener, err := net.Listen("tcp", s.URL)
	if err != nil {
		apiReady <- false
		return fmt.Errorf("listening on %s: %w", s.URL, err)
	}

	s.mu.Lock()
	s.addr = listener.Addr()
	s.mu.Unlock()

	log.Infof("API listening on %s", listener.Addr())

	serverError := make(chan error, 1)

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverError <- err
		}
	}()

	apiReady <- true

	select {
	case err := <-serverError:
		return err
	case <-s.serveTomb.Dying():
		log.Info("stopping API server")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Errorf("api shutdown: %s", err)
		}
	}

	return nil
}

func (s *APIServer) Shutdown() error {
	s.serveTomb.Kill(nil)

	if err := s.serveTomb.Wait(); err != nil {
		return fmt.Errorf("api server: %w", err)
	}

	return nil
}
