package main

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"internship-engine/internal/httpapi"
	"internship-engine/internal/logging"
	"internship-engine/internal/poll"
)

const shutdownTokenEnv = "INTERNSHIP_SHUTDOWN_TOKEN"

type ServeCmd struct {
	NoPoll bool `help:"Serve the API without the background poller" name:"no-poll"`
}

func (c *ServeCmd) Run(g *Globals) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.config()
	poller := &poll.Poller{
		Runner: a.runner,
		Config: a.config,
		Log:    logging.Component(a.log, "poll"),
	}

	mux := httpapi.NewMux(httpapi.Deps{
		Sink:        a.sink,
		Hub:         a.hub,
		Poller:      poller,
		CfgVal:      a.cfgVal,
		UserCfgPath: a.cfgPath,
		LoadCfg:     a.loadCfg,
		Metrics:     promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
		Log:         logging.Component(a.log, "http"),
	})

	token := os.Getenv(shutdownTokenEnv)
	if token == "" {
		if token, err = randomToken(16); err != nil {
			return err
		}
	}

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.App.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	httpLog := logging.Component(a.log, "http")
	srv := &http.Server{
		Handler:           httpapi.Chain(mux, httpapi.RequestID, httpapi.Recover(httpLog), httpapi.AccessLog(httpLog), httpapi.Cors),
		ReadHeaderTimeout: 5 * time.Second,
	}
	mux.HandleFunc("/shutdown", shutdownHandler(token, srv))

	a.log.Info("engine listening", "url", "http://"+addr, "config", a.cfgPath, "store", cfg.Storage.Backend)
	// the desktop shell reads this line to learn the token
	fmt.Printf("SHUTDOWN_TOKEN=%s\n", token)

	closed := srvDone(srv)
	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	grp.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	if !c.NoPoll {
		grp.Go(func() error {
			poller.Loop(gctx)
			return nil
		})
	}

	// Shutdown via /shutdown closes the listener without cancelling ctx.
	grp.Go(func() error {
		select {
		case <-gctx.Done():
		case <-closed:
			stop()
		}
		return nil
	})

	err = grp.Wait()
	poller.Wait()
	a.log.Info("engine stopped")
	return err
}

// srvDone is closed once srv has been shut down.
func srvDone(srv *http.Server) <-chan struct{} {
	ch := make(chan struct{})
	var once sync.Once
	srv.RegisterOnShutdown(func() { once.Do(func() { close(ch) }) })
	return ch
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func shutdownHandler(token string, srv *http.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !httpapi.IsLoopback(r) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		got := r.Header.Get("X-Shutdown-Token")
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		// Respond immediately, then shutdown asynchronously
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("shutting down\n"))

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}
}
