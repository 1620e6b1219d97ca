package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"CollabBoard/internal/canvas"
	"CollabBoard/internal/client"
	"CollabBoard/internal/config"
	"CollabBoard/internal/logging"
	boardnet "CollabBoard/internal/net"
	"CollabBoard/internal/room"
	"CollabBoard/internal/storage"
)

const browseTimeout = 3 * time.Second

func main() {
	os.Exit(run(os.Args[1:]))
}

// run returns the process exit code once every deferred cleanup has run.
func run(args []string) int {
	cfg, fs, err := config.Parse("collabboard", args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	args = fs.Args()
	switch {
	case len(args) > 0 && strings.HasPrefix(args[0], boardnet.Scheme):
		err = runClient(ctx, cfg, args[0], logger)
	case len(args) > 0 && args[0] == "browse":
		err = runBrowse(ctx)
	default:
		err = runHost(ctx, cfg, logger)
	}
	if err != nil {
		logger.Error("exiting", zap.Error(err))
		return 1
	}
	return 0
}

func openStore(ctx context.Context, cfg config.Config) (storage.Store, error) {
	switch cfg.Store {
	case config.StoreRedis:
		return storage.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPrefix)
	case config.StoreMemory:
		return storage.NewMemoryStore(), nil
	default:
		return storage.NewFileStore(cfg.DataDir, cfg.Compress)
	}
}

func runHost(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	logger.Info("starting as host", zap.String("addr", cfg.Addr), zap.String("store", cfg.Store))
	store, err := openStore(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "opening store")
	}
	defer store.Close()

	limits := cfg.Protocol.Limits()
	hub := boardnet.NewHub(limits, logger)
	rooms := room.NewRegistry(room.Options{
		Limits:   limits,
		Palette:  cfg.Palette,
		Fallback: cfg.FallbackColor,
		Store:    store,
		Out:      hub,
		Logger:   logger,
	})
	hub.Attach(rooms)
	size := canvas.Size{Width: cfg.Client.CanvasWidth, Height: cfg.Client.CanvasHeight}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return errors.Wrapf(err, "listening on %s", cfg.Addr)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	srv := &http.Server{Handler: boardnet.NewMux(hub, rooms, size, logger), ReadHeaderTimeout: 10 * time.Second}

	if cfg.Advertise {
		mdnsServer, err := boardnet.Advertise(port, room.NormalizeRoomID(cfg.Room))
		if err != nil {
			logger.Warn("mDNS advertising failed", zap.Error(err))
		} else {
			defer mdnsServer.Shutdown()
		}
	}

	ip, err := boardnet.OutgoingIP()
	if err != nil {
		logger.Warn("could not find a LAN address", zap.Error(err))
		ip = "127.0.0.1"
	}
	link := boardnet.ShareLink(ip, port, room.NormalizeRoomID(cfg.Room))
	logger.Info("board is live", zap.String("link", link))
	fmt.Println(link)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()

	select {
	case err = <-serveErr:
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = srv.Shutdown(shutdownCtx)
	}
	hub.Close()
	rooms.Close()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func runClient(ctx context.Context, cfg config.Config, link string, logger *zap.Logger) error {
	addr, roomID, err := boardnet.ParseLink(link)
	if err != nil {
		return err
	}
	if roomID == "" {
		roomID = cfg.Room
	}
	logger.Info("starting as client", zap.String("host", addr), logging.Room(roomID))

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	c, err := client.Dial(dialCtx, boardnet.WebsocketURL(addr), client.Options{
		Room:            roomID,
		Name:            cfg.Name,
		Size:            canvas.Size{Width: cfg.Client.CanvasWidth, Height: cfg.Client.CanvasHeight},
		PartialInterval: cfg.Client.PartialInterval,
		CursorTTL:       cfg.Client.CursorTTL,
		MinMotion:       cfg.Protocol.MinMotion,
		MaxPoints:       cfg.Protocol.MaxPoints,
		Logger:          logger,
	})
	if err != nil {
		return err
	}
	defer c.Close()
	fs, err := c.Join(dialCtx)
	if err != nil {
		return err
	}
	logger.Info("synced", logging.User(fs.SelfID), zap.String("color", fs.SelfColor),
		zap.Int("users", len(fs.Users)), zap.Int("operations", len(fs.Operations)))

	if cfg.Export != "" {
		if err := c.Export(cfg.Export); err != nil {
			return err
		}
		logger.Info("exported", zap.String("path", cfg.Export))
		return nil
	}

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.Done():
			return errors.New("host closed the connection")
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			rtt, err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Warn("ping failed", zap.Error(err))
				continue
			}
			logger.Debug("ping", zap.Duration("rtt", rtt), zap.Int("users", len(c.Users())),
				zap.Int("operations", len(c.Engine().Log())))
		}
	}
}

func runBrowse(ctx context.Context) error {
	hosts, err := boardnet.Browse(ctx, browseTimeout)
	if err != nil {
		return err
	}
	if len(hosts) == 0 {
		fmt.Println("no boards found")
		return nil
	}
	for _, h := range hosts {
		host, port, _ := net.SplitHostPort(h.Addr)
		p, _ := strconv.Atoi(port)
		fmt.Printf("%s\t%s\n", h.Name, boardnet.ShareLink(host, p, h.Room))
	}
	return nil
}
