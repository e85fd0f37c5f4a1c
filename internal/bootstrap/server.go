package bootstrap

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pratamalabs/domaindesk/internal/config"
)

func newServer(cfg *config.Config, router *gin.Engine) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}
