package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/easybot/easybot/pkg/blob"
	"github.com/easybot/easybot/pkg/config"
	"github.com/easybot/easybot/pkg/handler"
	"github.com/easybot/easybot/pkg/service"
	"github.com/easybot/easybot/pkg/utils"
)

type Server struct {
	ginEngine *gin.Engine
	cfg       *config.AppConfig
	logger    *slog.Logger
	port      int
}

func NewServer(cfg *config.AppConfig, database *gorm.DB, store blob.Store) *Server {
	ginEngine := gin.New()
	ginEngine.Use(gin.Recovery())

	// CORS middleware: the chat widget is a script tag on arbitrary
	// customer sites, so any origin may call the API. No credentials
	// are ever involved.
	ginEngine.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")
		c.Header("Access-Control-Expose-Headers", "X-Conversation-Id")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	server := &Server{
		ginEngine: ginEngine,
		cfg:       cfg,
		logger:    utils.GetLogger(),
	}
	server.SetupRoutes(database, store)
	return server
}

func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host(), s.cfg.Port())
	srv := &http.Server{Addr: addr, Handler: s.ginEngine}

	// Attempt to listen first; if the port is occupied return
	// immediately.
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}
	if tcpAddr, ok := ln.Addr().(*net.TCPAddr); ok {
		s.port = tcpAddr.Port
	}
	s.logger.Info("server listening", "addr", ln.Addr().String())

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve(ln)
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	default:
	}
	return nil
}

func (s *Server) SetupRoutes(database *gorm.DB, store blob.Store) {
	modelService := service.NewModelService(s.cfg)
	agentService := service.NewAgentService(database)
	conversationService := service.NewConversationService(database)
	knowledgeService := service.NewKnowledgeService(database, store)
	documentService := service.NewDocumentService(database, store, modelService)
	chatService := service.NewChatService(database, s.cfg, agentService, conversationService, knowledgeService, modelService)
	analyticsService := service.NewAnalyticsService(database)
	clusteringService := service.NewClusteringService(database, s.cfg, modelService)

	api := s.ginEngine.Group("/api/v1")

	handler.NewChatHandler(chatService).RegisterRoutes(api)
	handler.NewConversationHandler(conversationService).RegisterRoutes(api)
	handler.NewAnalyticsHandler(analyticsService, clusteringService).RegisterRoutes(api)
	handler.NewAgentHandler(agentService).RegisterRoutes(api)
	handler.NewKnowledgeHandler(knowledgeService, documentService).RegisterRoutes(api)
}
