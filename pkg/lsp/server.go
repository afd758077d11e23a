/*
Package lsp implements the Razor language server.

	   editor
	     |  jrpc2, LSP framing
	     v
	+----------+   open/change/close   +-----------------+
	|  Server  | --------------------> | project.Manager |
	+----------+                       +-----------------+
	  |  |  |                                   |
	  |  |  |  snapshot reads                   | events
	  |  |  +------------------+                v
	  |  |                     |        +---------------+
	  |  +--> hover, tokens,   |        |  buffer pump  | --> razor/updateCSharpBuffer
	  |       code actions     |        +---------------+     razor/updateHtmlBuffer
	  |            |           |                              textDocument/publishDiagnostics
	  |            v           v
	  |     C# service    mapping service
	  |     (delegated back to the editor)
	  v
	config + tag helper manifests + file watcher
*/
package lsp

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/gorazor/pkg/codeaction"
	"github.com/walteh/gorazor/pkg/config"
	"github.com/walteh/gorazor/pkg/csharp"
	"github.com/walteh/gorazor/pkg/editremap"
	"github.com/walteh/gorazor/pkg/hover"
	"github.com/walteh/gorazor/pkg/lsp/protocol"
	"github.com/walteh/gorazor/pkg/mapping"
	"github.com/walteh/gorazor/pkg/project"
	"github.com/walteh/gorazor/pkg/razor"
	"github.com/walteh/gorazor/pkg/razor/taghelper"
	"github.com/walteh/gorazor/pkg/semtok"
)

const serverName = "gorazor"

var Version = "dev"

type Options struct {
	// Fs holds the workspace, its config and its tag helper manifests. Defaults to the OS.
	Fs afero.Fs
	// Legend defaults to semtok.DefaultLegend.
	Legend *semtok.Legend
	// CSharp answers questions about generated C#. When nil they are delegated to the client.
	CSharp csharp.Service
	// Watch follows Razor files and manifests on disk once the client is initialized.
	Watch bool
}

// services are rebuilt whenever the configuration or the callback client changes.
type services struct {
	tokens   *semtok.Provider
	hover    *hover.Service
	actions  *codeaction.Service
	remapper *editremap.Remapper
}

type Server struct {
	id        string
	opts      Options
	fs        afero.Fs
	legend    *semtok.Legend
	mapping   *mapping.Service
	manifests *taghelper.Cache
	manager   *project.Manager
	sub       *project.Subscription
	pumpDone  chan struct{}

	mu             sync.RWMutex
	cfg            *config.Config
	svc            *services
	callbackClient protocol.Client
	watcher        *project.Watcher
	stopWatch      context.CancelFunc

	shutdown atomic.Bool
}

var _ protocol.Server = (*Server)(nil)

// NewServer starts the project manager and the buffer pump. Documents opened before Initialize
// are published as unsupported.
func NewServer(ctx context.Context, opts Options) *Server {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Legend == nil {
		opts.Legend = semtok.DefaultLegend()
	}

	s := &Server{
		id:        xid.New().String(),
		opts:      opts,
		fs:        opts.Fs,
		legend:    opts.Legend,
		mapping:   mapping.NewService(),
		manifests: taghelper.NewCache(),
		manager:   project.NewManager(ctx, nil),
		cfg:       config.Default(),
		pumpDone:  make(chan struct{}),
	}
	s.rebuildLocked()

	s.sub = s.manager.Subscribe(64)
	go s.pump(ctx, s.sub)

	return s
}

func (s *Server) SetCallbackClient(client protocol.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbackClient = client
	s.rebuildLocked()
}

func (s *Server) Manager() *project.Manager {
	return s.manager
}

func (s *Server) client() protocol.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.callbackClient
}

func (s *Server) config() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *Server) services() *services {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.svc
}

func (s *Server) rebuildLocked() {
	var cs csharp.Service
	switch {
	case s.opts.CSharp != nil:
		cs = s.opts.CSharp
	case s.callbackClient != nil:
		cs = csharp.NewDelegated(s.callbackClient)
	}

	remapper := editremap.New(s.mapping, s.cfg.GroupPolicy())
	s.svc = &services{
		tokens:   semtok.NewProvider(s.legend, s.mapping, cs),
		hover:    hover.NewService(s.mapping, cs),
		actions:  codeaction.NewService(s.mapping, cs, remapper),
		remapper: remapper,
	}
}

func (s *Server) Initialize(ctx context.Context, params *protocol.InitializeParams) (*protocol.InitializeResult, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("root", string(params.RootURI)).Str("server_id", s.id).Msg("initializing server")

	loaded := false
	if params.RootURI != "" {
		if err := s.loadProject(ctx, params.RootURI.Path()); err != nil {
			logger.Warn().Err(err).Msg("using the default configuration")
		} else {
			loaded = true
		}
	}
	if !loaded {
		if err := s.manager.SetEngine(ctx, razor.NewEngine(s.config().EngineOptions(nil))); err != nil {
			return nil, errors.Errorf("starting engine: %w", err)
		}
	}

	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: protocol.TextDocumentSyncOptions{
				OpenClose: true,
				Change:    protocol.SyncIncremental,
			},
			HoverProvider:      true,
			CodeActionProvider: true,
			SemanticTokensProvider: &protocol.SemanticTokensOptions{
				Legend: s.legend.ToLSP(),
				Range:  true,
			},
		},
		ServerInfo: &protocol.ServerInfo{Name: serverName, Version: Version},
	}, nil
}

// loadProject reads the configuration under root and switches every document to the engine it
// describes.
func (s *Server) loadProject(ctx context.Context, root string) error {
	cfg, err := config.Load(ctx, s.fs, root)
	if err != nil {
		return err
	}

	s.manifests.Invalidate(root)
	engine := cfg.Engine(ctx, s.fs, s.manifests)

	s.mu.Lock()
	s.cfg = cfg
	s.rebuildLocked()
	s.mu.Unlock()

	return s.manager.SetEngine(ctx, engine)
}

func (s *Server) Initialized(ctx context.Context, params *protocol.InitializedParams) error {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Msg("server initialized")

	cfg := s.config()
	if !s.opts.Watch || cfg.Root == "" {
		return nil
	}

	watcher, err := project.NewWatcher(s.fs, cfg.Root, s.manager, project.WatcherOptions{
		IsManifest: func(path string) bool {
			c := s.config()
			return c.IsManifest(path) || c.IsConfigFile(path)
		},
		OnManifestChange: func(ctx context.Context) {
			if err := s.loadProject(ctx, cfg.Root); err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Msg("reloading project")
			}
		},
	})
	if err != nil {
		return errors.Errorf("watching workspace: %w", err)
	}
	if err := watcher.Load(ctx); err != nil {
		logger.Warn().Err(err).Msg("loading workspace documents")
	}

	// the request context ends with the request
	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Lock()
	s.watcher = watcher
	s.stopWatch = cancel
	s.mu.Unlock()

	go func() {
		if err := watcher.Run(watchCtx); err != nil {
			zerolog.Ctx(watchCtx).Error().Err(err).Msg("file watcher stopped")
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	zerolog.Ctx(ctx).Debug().Msg("shutting down")
	s.shutdown.Store(true)

	s.mu.Lock()
	watcher, stop := s.watcher, s.stopWatch
	s.watcher, s.stopWatch = nil, nil
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	if watcher != nil {
		return watcher.Close()
	}
	return nil
}

// Exit stops the buffer pump and the project manager. It returns once nothing more will be pushed
// to the client.
func (s *Server) Exit(ctx context.Context) error {
	s.sub.Close()
	<-s.pumpDone
	s.manager.Close()
	return nil
}

// ready rejects requests after shutdown.
func (s *Server) ready() error {
	if s.shutdown.Load() {
		return protocol.ShutdownError
	}
	return nil
}
