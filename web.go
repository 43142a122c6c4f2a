package main

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/kottz/spektrum/internal/catalogue"
	"github.com/kottz/spektrum/internal/idgen"
	"github.com/kottz/spektrum/internal/playback"
	"github.com/kottz/spektrum/internal/protocol"
	"github.com/kottz/spektrum/internal/registry"
)

const timeout time.Duration = 10 * time.Second

func securityHeaders(cfg *Config, w http.ResponseWriter) {
	w.Header().Set("Cross-Origin-Embedder-Policy", "require-corp")
	w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
	w.Header().Set("Cross-Origin-Resource-Policy", "same-site")
	w.Header().Set("Permissions-Policy", "geolocation=(), midi=(), sync-xhr=(), microphone=(), camera=(), magnetometer=(), gyroscope=(), fullscreen=(), payment=()")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'self'")

	if cfg.scheme() == "https" {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
	}
}

func realIP(r *http.Request) string {
	host, port, _ := net.SplitHostPort(r.RemoteAddr)
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	} else if ip := r.Header.Get("X-Real-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	}
	if net.ParseIP(host) != nil && strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		return host + ":" + port
	}
	return host
}

func serveVersion(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("spektrum v" + releaseVersion + "\n"))
	}
}

func serveHealthCheck(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)
		_, _ = w.Write([]byte("Ok\n"))
	}
}

func serveRobots(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		data := `User-agent: *
Disallow: /`

		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		securityHeaders(cfg, w)

		_, _ = w.Write([]byte(data))
	}
}

func serveHomePage(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		securityHeaders(cfg, w)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"service": "spektrum",
			"version": releaseVersion,
		})
	}
}

type createLobbyRequest struct {
	QuestionSet   string `json:"question_set"`
	RoundDuration int64  `json:"round_duration"`
}

type createLobbyResponse struct {
	LobbyID  string `json:"lobby_id"`
	AdminID  string `json:"admin_id"`
	JoinCode string `json:"join_code"`
}

// serveCreateLobby handles POST /api/lobbies: the HTTP-side half of lobby
// creation (spec.md §4.3), handing back the join code and admin id the
// caller then presents over the WebSocket as a JoinLobby frame.
func serveCreateLobby(cfg *Config, reg *registry.Registry) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(cfg, w)

		var req createLobbyRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}
		}

		duration := cfg.roundDuration
		if req.RoundDuration > 0 {
			if req.RoundDuration < 10 {
				http.Error(w, "round_duration must be at least 10 seconds", http.StatusBadRequest)
				return
			}
			duration = time.Duration(req.RoundDuration) * time.Second
		}

		lobbyID, adminID, joinCode := reg.Create(duration)

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(createLobbyResponse{
			LobbyID:  lobbyID.String(),
			AdminID:  adminID.String(),
			JoinCode: joinCode,
		})
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// serveWebSocket upgrades the connection and hands it to the protocol
// adapter, which owns the session for as long as the connection lives.
// Modeled on partybox's serveWSForManager: the handler itself does
// nothing but upgrade and dispatch.
func serveWebSocket(adapter *protocol.Adapter) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		adapter.Serve(conn)
	}
}

// serveJoinCodeQR renders a PNG QR code for the join URL of the lobby
// named by :code, for an admin to display to players. Modeled directly
// on partybox's qrHandler.
func serveJoinCodeQR(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		code := ps.ByName("code")
		if code == "" {
			http.Error(w, "missing join code", http.StatusBadRequest)
			return
		}

		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		url := scheme + "://" + r.Host + cfg.prefix + "/join/" + code

		const qrSize = 320
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}

func newPlaybackPlayer(cfg *Config) playback.Player {
	if !cfg.playbackEnabled {
		return playback.NoOp{}
	}
	return &playback.HTTPStub{
		BaseURL:      cfg.playbackBaseURL,
		ClientID:     cfg.playbackClient,
		ClientSecret: cfg.playbackSecret,
		DeviceID:     cfg.playbackDevice,
	}
}

func ServePage(ctx context.Context, cfg *Config, args []string) error {
	logger := newLogger(cfg)

	cat, err := catalogue.Load(cfg.cataloguePath)
	if err != nil {
		return err
	}
	catalogueSize := "unknown"
	if info, statErr := os.Stat(cfg.cataloguePath); statErr == nil {
		catalogueSize = humanReadableSize(info.Size())
	}
	logger.Info("loaded catalogue", "questions", len(cat.Questions), "sets", len(cat.Sets), "size", catalogueSize)

	clock := idgen.SystemClock{}
	reg := registry.New(cat, clock, cfg.sessionIdle)
	defer reg.Close()

	adapter := &protocol.Adapter{
		Registry:   reg,
		Playback:   newPlaybackPlayer(cfg),
		Clock:      clock,
		SendBuffer: 8,
	}

	mux := httprouter.New()

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Handler:           mux,
		IdleTimeout:       10 * time.Minute,
		ReadTimeout:       timeout,
		ReadHeaderTimeout: timeout,
		WriteTimeout:      timeout,
	}

	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, i any) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
	}

	cfg.prefix = strings.TrimSuffix(cfg.prefix, "/")

	mux.GET(cfg.prefix+"/", serveHomePage(cfg))
	mux.GET(cfg.prefix+"/healthz", serveHealthCheck(cfg))
	mux.GET(cfg.prefix+"/robots.txt", serveRobots(cfg))
	mux.GET(cfg.prefix+"/version", serveVersion(cfg))

	mux.POST(cfg.prefix+"/api/lobbies", serveCreateLobby(cfg, reg))
	mux.GET(cfg.prefix+"/ws", serveWebSocket(adapter))
	mux.GET(cfg.prefix+"/api/lobbies/:code/qr", serveJoinCodeQR(cfg))

	if cfg.profile {
		registerProfileHandlers(cfg, mux)
	}

	go func() {
		var err error
		if cfg.tlsKey != "" && cfg.tlsCert != "" {
			logger.Info("listening", "url", cfg.scheme()+"://"+srv.Addr+cfg.prefix+"/")
			err = srv.ListenAndServeTLS(cfg.tlsCert, cfg.tlsKey)
		} else {
			logger.Info("listening", "url", cfg.scheme()+"://"+srv.Addr+cfg.prefix+"/")
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server exited", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	return nil
}
