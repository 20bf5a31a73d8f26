package controllers

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	v1 "github.com/sentinelhq/sentinel/pkg/apiserver/controllers/v1"
)

type Controller struct {
	Engine       v1.Engine
	Router       *gin.Engine
	HighPortMode bool
	// AllowControl exposes start, stop and clear.
	AllowControl bool
	Log          *log.Entry

	HandlerV1 *v1.Controller
}

func (c *Controller) Init() error {
	c.HandlerV1 = v1.New(c.Engine, c.HighPortMode, c.Log)
	c.NewV1()

	return nil
}

func (c *Controller) NewV1() {
	health := v1.NewHealthController(c.Engine)

	c.Router.GET("/health", health.GetHealth)
	c.Router.HEAD("/health", health.GetHealth)
	c.Router.GET("/health/ready", gin.WrapH(v1.NewReadinessHandler(c.Engine)))

	groupV1 := c.Router.Group("/v1")
	groupV1.Use(v1.PrometheusMiddleware())
	groupV1.Use(gzip.Gzip(gzip.DefaultCompression))

	groupV1.GET("/status", c.HandlerV1.GetStatus)
	groupV1.GET("/stats", c.HandlerV1.GetStatistics)

	groupV1.GET("/attacks", c.HandlerV1.ListAttacks)
	groupV1.GET("/attacks/:id", c.HandlerV1.GetAttack)
	groupV1.DELETE("/attacks/:id", c.HandlerV1.DeleteAttack)
	groupV1.GET("/export", c.HandlerV1.Export)

	groupV1.GET("/alerts", c.HandlerV1.ListAlerts)
	groupV1.POST("/alerts/:id/ack", c.HandlerV1.AcknowledgeAlert)

	groupV1.GET("/ips", c.HandlerV1.ListIPs)
	groupV1.GET("/ips/:ip", c.HandlerV1.GetIP)

	if !c.AllowControl {
		return
	}

	control := groupV1.Group("/control")
	control.POST("/start", c.HandlerV1.StartHoneypot)
	control.POST("/stop", c.HandlerV1.StopHoneypot)
	control.POST("/clear", c.HandlerV1.ClearAll)
}
