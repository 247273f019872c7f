package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/agentrt"
	"github.com/hupe1980/agentrt/agents"
	"github.com/hupe1980/agentrt/config"
	"github.com/hupe1980/agentrt/core"
	"github.com/hupe1980/agentrt/index"
	"github.com/hupe1980/agentrt/logging"
	"github.com/hupe1980/agentrt/model"
	anthropicmodel "github.com/hupe1980/agentrt/model/anthropic"
	openaimodel "github.com/hupe1980/agentrt/model/openai"
	"github.com/hupe1980/agentrt/tool"
)

// app is the runtime plus the services the CLI wires around it.
type app struct {
	rt      *agentrt.Runtime
	store   *index.Store
	metrics *http.Server
	logger  logging.Logger

	mu      sync.Mutex
	caps    map[string]core.Capability
	closers []func(context.Context) error
}

func (cli *CLI) newApp() (*app, error) {
	cfg := cli.cfg
	a := &app{logger: cli.logger, caps: map[string]core.Capability{}}

	llm, err := newModel(cfg.Model)
	if err != nil {
		return nil, err
	}

	var reg *prometheus.Registry
	if cfg.Metrics.Addr != "" {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	rt, err := agentrt.New(func(o *agentrt.Options) {
		o.Paths = cfg.Modules.Paths
		o.BridgeCapacity = cfg.Bridge.Capacity
		o.SandboxRoot = cfg.Sandbox.Root
		o.CancelGrace = cfg.Manager.CancelGrace
		o.Logger = cfg.Logger()
		if reg != nil {
			o.Registerer = reg
		}
	})
	if err != nil {
		return nil, err
	}
	a.rt = rt
	a.closers = append(a.closers, rt.Close)

	if err := agents.RegisterAll(rt.Registry(), func(o *agents.Options) {
		o.Model = llm
		o.DemoUseModel = cfg.Model.Provider != "mock"
	}); err != nil {
		_ = a.Close()
		return nil, err
	}

	if reg != nil {
		a.serveMetrics(cfg.Metrics.Addr, reg)
	}
	return a, nil
}

func (a *app) serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	a.metrics = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("cli.metrics.serve_failed", "addr", addr, "error", err.Error())
		}
	}()
	a.closers = append(a.closers, a.metrics.Shutdown)
	a.logger.Info("cli.metrics.listening", "addr", addr)
}

// indexStore opens the configured index store on first use.
func (a *app) indexStore(cfg *config.Config) (*index.Store, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.store != nil {
		return a.store, nil
	}
	s, err := openStore(cfg, a.logger)
	if err != nil {
		return nil, err
	}
	a.store = s
	return s, nil
}

func openStore(cfg *config.Config, logger logging.Logger) (*index.Store, error) {
	return index.NewStore(func(o *index.Options) {
		o.PersistPath = cfg.Index.PersistPath
		o.Logger = logging.With(logger, "component", "index")
		if cfg.Index.Embedding == "openai" {
			key := cfg.Model.APIKey
			if key == "" {
				key = os.Getenv("OPENAI_API_KEY")
			}
			o.Embedding = index.OpenAIEmbedding(key)
		}
	})
}

// capability resolves an index name to a cached retriever. The same value is
// returned for repeated lookups so it can be attached to several agents.
func (a *app) capability(cfg *config.Config) func(name string) (core.Capability, error) {
	return func(name string) (core.Capability, error) {
		a.mu.Lock()
		if c, ok := a.caps[name]; ok {
			a.mu.Unlock()
			return c, nil
		}
		a.mu.Unlock()

		store, err := a.indexStore(cfg)
		if err != nil {
			return nil, err
		}
		idx, err := store.Get(name)
		if err != nil {
			return nil, err
		}
		r, err := index.NewRetriever(idx)
		if err != nil {
			return nil, err
		}
		c := tool.NewCached(r)

		a.mu.Lock()
		defer a.mu.Unlock()
		if existing, ok := a.caps[name]; ok {
			return existing, nil
		}
		a.caps[name] = c
		return c, nil
	}
}

// Close shuts the runtime and the metrics server down.
func (a *app) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	return errors.Join(errs...)
}

func newModel(cfg config.ModelConfig) (model.Model, error) {
	switch cfg.Provider {
	case "mock":
		return model.NewMockModel("mock", "mock"), nil
	case "openai":
		return openaimodel.NewModel(func(o *openaimodel.Options) {
			if cfg.Name != "" {
				o.Model = cfg.Name
			}
			o.Temperature = cfg.Temperature
			o.MaxCompletionTokens = cfg.MaxTokens
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
		}), nil
	case "anthropic":
		return anthropicmodel.NewModel(func(o *anthropicmodel.Options) {
			if cfg.Name != "" {
				o.Model = anthropicsdk.Model(cfg.Name)
			}
			o.Temperature = cfg.Temperature
			o.MaxTokens = cfg.MaxTokens
			o.APIKey = cfg.APIKey
		}), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}
