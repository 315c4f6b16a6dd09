package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/victornm/quizwire/internal/domain"
	"github.com/victornm/quizwire/internal/errors"
	"github.com/victornm/quizwire/internal/event"
	"github.com/victornm/quizwire/internal/game"
	"github.com/victornm/quizwire/internal/handler"
	"github.com/victornm/quizwire/internal/leaderboard"
	"github.com/victornm/quizwire/internal/store"
	"github.com/victornm/quizwire/internal/telemetry"
)

type Config struct {
	TCP struct {
		Port int32
	}

	// Ops is the HTTP sidecar surface: metrics, pprof, leaderboard.
	Ops struct {
		Port int32
	}

	Store struct {
		// Backend selects "xml" (default) or "postgres".
		Backend string

		XML struct {
			Dir string
		}

		Postgres struct {
			Addr string
			User string
			Pass string
			Name string
		}
	}

	Redis struct {
		Enabled     bool
		Leaderboard struct {
			Addrs  []string
			Pass   string
			Prefix string
		}
	}

	Game struct {
		PollInterval time.Duration
		StartPause   time.Duration
		ResultPause  time.Duration
		QuestionGap  time.Duration
	}
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		store    store.Store
		postgres *pgxpool.Pool
		redis    redis.UniversalClient
	}

	service struct {
		session     *game.Session
		scheduler   *game.Scheduler
		handler     *handler.Handler
		leaderboard *leaderboard.Service
	}

	questions []domain.Question

	http   *http.Server
	lis    net.Listener
	cancel context.CancelFunc
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus()
	telemetry.Monitor(s.eb)

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	if err := s.loadData(); err != nil {
		return nil, fmt.Errorf("server: load data: %w", err)
	}

	s.initService()
	s.initOps()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initStore(); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	return nil
}

func (s *Server) initStore() error {
	switch s.c.Store.Backend {
	case "", "xml":
		s.infra.store = store.NewXML(s.c.Store.XML.Dir)
		return nil

	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		pg := s.c.Store.Postgres
		cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s", pg.User, pg.Pass, pg.Addr, pg.Name))
		if err != nil {
			return err
		}

		db, err := pgxpool.NewWithConfig(ctx, cc)
		if err != nil {
			return err
		}

		if err := db.Ping(ctx); err != nil {
			return err
		}

		s.infra.postgres = db
		s.infra.store = store.NewPostgres(db)
		return nil

	default:
		return fmt.Errorf("unknown backend %q", s.c.Store.Backend)
	}
}

func (s *Server) initRedis() error {
	if !s.c.Redis.Enabled {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    s.c.Redis.Leaderboard.Addrs,
		Password: s.c.Redis.Leaderboard.Pass,
	})

	if err := telemetry.MonitorRedis(r); err != nil {
		return err
	}

	if err := r.Ping(ctx).Err(); err != nil {
		return err
	}

	s.infra.redis = r
	return nil
}

// loadData boots the question set and the profile collection. No
// questions is fatal; a broken user store degrades to an empty set.
func (s *Server) loadData() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	qs, err := s.infra.store.LoadQuestions(ctx)
	if err != nil {
		return fmt.Errorf("load questions: %w", err)
	}
	s.questions = qs

	n, err := s.infra.store.LoadUsers(ctx)
	if err != nil {
		slog.WarnContext(ctx, "server: load users failed, starting with empty user set", "error", err)
	}

	slog.InfoContext(ctx, "server: data loaded", "questions", len(qs), "users", n)
	return nil
}

func (s *Server) initService() {
	s.service.session = game.NewSession()

	s.service.scheduler = game.NewScheduler(game.SchedulerConfig{
		Session:      s.service.session,
		Store:        s.infra.store,
		EventBus:     s.eb,
		Questions:    s.questions,
		PollInterval: s.c.Game.PollInterval,
		StartPause:   s.c.Game.StartPause,
		ResultPause:  s.c.Game.ResultPause,
		QuestionGap:  s.c.Game.QuestionGap,
	})

	s.service.handler = handler.New(handler.Config{
		Session:  s.service.session,
		Store:    s.infra.store,
		EventBus: s.eb,
	})

	if s.infra.redis != nil {
		s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
			EventBus: s.eb,
			Redis:    s.infra.redis,
			Prefix:   s.c.Redis.Leaderboard.Prefix,
		})
	}
}

func (s *Server) initOps() {
	e := gin.New()
	e.Use(gin.Recovery())
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.GET("/leaderboard", s.getLeaderboard)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.Ops.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) getLeaderboard(c *gin.Context) {
	if s.service.leaderboard == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "leaderboard is not enabled"})
		return
	}

	entries, err := s.service.leaderboard.Top(c.Request.Context(), 10)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Convert(err).Code == errors.CodeNotFound {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": errors.Convert(err).Message})
		return
	}

	c.JSON(http.StatusOK, entries)
}

func (s *Server) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.TCP.Port))
	if err != nil {
		slog.ErrorContext(ctx, "server: listen failed", "error", err)
		panic(err)
	}
	s.lis = lis

	var eg errgroup.Group

	eg.Go(func() error {
		s.service.scheduler.Run(ctx)
		return nil
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: quiz game server listening on port %d", s.c.TCP.Port),
			"questions", len(s.questions))
		return s.acceptLoop(ctx)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: ops HTTP listening on port %d", s.c.Ops.Port))
		if err := s.http.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

// acceptLoop runs one handler goroutine per accepted connection,
// thread-per-connection style.
func (s *Server) acceptLoop(ctx context.Context) error {
	for {
		conn, err := s.lis.Accept()
		if err != nil {
			if stderrors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		go s.service.handler.Handle(ctx, conn)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.cancel != nil {
		s.cancel()
	}
	if s.lis != nil {
		_ = s.lis.Close()
	}
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.eb.Stop()

	if s.infra.redis != nil {
		_ = s.infra.redis.Close()
	}
	if s.infra.postgres != nil {
		s.infra.postgres.Close()
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
