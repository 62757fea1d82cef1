package ws

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/GamjaUnni/nicecatch-backend/internal/config"
	"github.com/GamjaUnni/nicecatch-backend/internal/events"
	"github.com/GamjaUnni/nicecatch-backend/internal/metrics"
	"github.com/GamjaUnni/nicecatch-backend/internal/relay"
	"github.com/GamjaUnni/nicecatch-backend/internal/room"
	"github.com/GamjaUnni/nicecatch-backend/internal/session"
)

// Server wires the fiber app, the hub and the room registry together.
type Server struct {
	app      *fiber.App
	hub      *Hub
	registry *room.Registry
	dispatch *relay.Dispatcher
	cfg      *config.Config
	log      *zap.SugaredLogger
}

func NewServer(cfg *config.Config, registry *room.Registry, log *zap.SugaredLogger) *Server {
	hub := NewHub(log, cfg.EnablePrometheus)
	s := &Server{
		hub:      hub,
		registry: registry,
		dispatch: relay.NewDispatcher(hub, log),
		cfg:      cfg,
		log:      log,
	}

	app := fiber.New()
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: "GET,POST",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	if cfg.EnablePrometheus {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	app.Get("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(s.handleWS))

	s.app = app
	return s
}

func (s *Server) Listen(addr string) error { return s.app.Listen(addr) }
func (s *Server) Shutdown() error          { return s.app.Shutdown() }

// handleWS runs for the lifetime of one websocket connection: it registers
// the client, pumps inbound frames through the session, and cleans up the
// registry and hub when the peer goes away.
func (s *Server) handleWS(conn *websocket.Conn) {
	connID := uuid.NewString()
	client := NewClient(connID, conn)
	s.hub.Register(client)

	sess := session.New(connID, s.registry, s.dispatch, s.log)
	s.log.Infow("user connected", "conn", connID)

	go client.writePump()
	defer func() {
		sess.Disconnect()
		s.hub.Unregister(connID)
		s.log.Infow("user disconnected", "conn", connID)
	}()

	conn.SetReadLimit(maxFrameBytes)
	_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	for {
		mt, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
		if mt != websocket.TextMessage {
			continue
		}

		env, err := events.DecodeInbound(raw)
		if err != nil {
			if errors.Is(err, events.ErrUnknownEvent) {
				s.log.Warnw("unknown event", "conn", connID, "err", err)
			} else {
				s.log.Warnw("malformed frame", "conn", connID, "err", err)
			}
			continue
		}
		if s.cfg.EnablePrometheus {
			metrics.EventsTotal.WithLabelValues(string(env.Event)).Inc()
		}
		sess.Handle(env)
	}
}
