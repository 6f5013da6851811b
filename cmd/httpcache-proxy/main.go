// Command httpcache-proxy runs httpcache as a standalone reverse-proxy
// cache in front of an origin server.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/always-cache/httpcache"
	"github.com/always-cache/httpcache/store"
)

var (
	configFlag       string
	originFlag       string
	portFlag         int
	providerFlag     string
	dbFlag           string
	allowReloadFlag  bool
	cacheQueriesFlag bool
	debugFlag        bool
	verbosityFlag    bool
)

func init() {
	flag.StringVar(&configFlag, "config", "", "Path to YAML config file (rules, scrub list, provider)")
	flag.StringVar(&originFlag, "origin", "", "Origin URL to proxy to (overrides config)")
	flag.IntVar(&portFlag, "port", 8080, "Port to listen on")
	flag.StringVar(&providerFlag, "provider", "memory", "Storage provider: memory or sqlite")
	flag.StringVar(&dbFlag, "db", "cache.db", "SQLite database file (ignored for the memory provider)")
	flag.BoolVar(&allowReloadFlag, "allow-reload", false, "Let client Cache-Control: no-cache force a fresh fetch")
	flag.BoolVar(&cacheQueriesFlag, "cache-queries", false, "Cache requests carrying a query string")
	flag.BoolVar(&debugFlag, "debug", false, "Mount /debug/purge/<key> and /debug/keys")
	flag.BoolVar(&verbosityFlag, "vv", false, "Verbosity: trace logging")
}

func main() {
	flag.Parse()

	logLevel := zerolog.InfoLevel
	if verbosityFlag {
		logLevel = zerolog.TraceLevel
	}
	log.Logger = log.Level(logLevel).Output(zerolog.ConsoleWriter{Out: os.Stdout})

	cfg := httpcache.Config{
		CacheQueries: cacheQueriesFlag,
		AllowReload:  allowReloadFlag,
	}
	origin := originFlag
	provider := providerFlag
	db := dbFlag

	if configFlag != "" {
		fc, err := getConfig(configFlag)
		if err != nil {
			log.Fatal().Err(err).Msg("could not read config file")
		}
		rules, err := fc.buildRuleSet()
		if err != nil {
			log.Fatal().Err(err).Msg("invalid rules in config file")
		}
		cfg.Rules = rules
		cfg.Scrub = fc.Scrub
		cfg.PrivateHeaders = fc.PrivateHeaders
		if fc.CacheQueries {
			cfg.CacheQueries = true
		}
		if fc.AllowReload {
			cfg.AllowReload = true
		}
		if interval, err := fc.updateInterval(); err != nil {
			log.Fatal().Err(err).Msg("invalid updateInterval in config file")
		} else {
			cfg.UpdateInterval = interval
		}
		if origin == "" {
			origin = fc.Origin
		}
		if fc.Provider != "" {
			provider = fc.Provider
		}
		if fc.DB != "" {
			db = fc.DB
		}
	}

	if origin == "" {
		log.Fatal().Msg("please specify -origin or origin: in the config file")
	}
	originURL, err := url.Parse(origin)
	if err != nil {
		log.Fatal().Err(err).Msg("could not parse origin URL")
	}

	switch provider {
	case "memory":
		cfg.Store = store.NewMemStore()
	case "sqlite":
		s, err := store.NewSQLiteStore(db)
		if err != nil {
			log.Fatal().Err(err).Str("db", db).Msg("could not open sqlite store")
		}
		cfg.Store = s
	default:
		log.Fatal().Str("provider", provider).Msg("unsupported storage provider")
	}

	cfg.Logger = &log.Logger

	cache, err := httpcache.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("could not construct cache")
	}

	backend := httputil.NewSingleHostReverseProxy(originURL)
	handler := cache.Middleware(backend)

	if debugFlag {
		if lister, ok := cfg.Store.(store.KeyLister); ok {
			handler = mountDebugRoutes(handler, cfg.Store, lister)
		} else {
			log.Warn().Msg("-debug set but storage provider does not support key enumeration")
		}
	}

	log.Info().Int("port", portFlag).Str("origin", originURL.String()).Msg("listening")
	if err := http.ListenAndServe(fmt.Sprintf(":%d", portFlag), handler); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

// mountDebugRoutes wraps handler with a chi router exposing admin-only
// key enumeration and purge endpoints ahead of the caching hot path.
func mountDebugRoutes(handler http.Handler, s store.Store, lister store.KeyLister) http.Handler {
	r := chi.NewRouter()
	r.Get("/debug/keys", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		lister.Keys(func(key string) bool {
			fmt.Fprintln(w, key)
			return true
		})
	})
	r.Delete("/debug/purge/*", func(w http.ResponseWriter, req *http.Request) {
		key := chi.URLParam(req, "*")
		if err := s.Remove(key); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		handler.ServeHTTP(w, req)
	})
	return r
}
