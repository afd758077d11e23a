package serve_lsp

import (
	"context"
	"io"
	"net"
	"os"

	"github.com/creachadair/jrpc2"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/gorazor/pkg/lsp"
	"github.com/walteh/gorazor/pkg/lsp/protocol"
)

type Handler struct {
	watch  bool
	socket string
}

func NewServeLSPCommand() *cobra.Command {
	me := &Handler{}

	cmd := &cobra.Command{
		Use:   "serve-lsp",
		Short: "start the language server",
	}

	cmd.Flags().BoolVar(&me.watch, "watch", true, "follow razor files and tag helper manifests on disk")
	cmd.Flags().StringVar(&me.socket, "socket", "", "serve one client on a unix socket instead of stdio")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return me.Run(cmd.Context())
	}

	return cmd
}

type RPCLogger struct{}

func (me *RPCLogger) LogRequest(ctx context.Context, req *jrpc2.Request) {
	zerolog.Ctx(ctx).Debug().Str("rpc_id", req.ID()).Str("rpc_method", req.Method()).Msg("client request")
}

func (me *RPCLogger) LogResponse(ctx context.Context, res *jrpc2.Response) {
	evt := zerolog.Ctx(ctx).Debug().Str("rpc_id", res.ID())
	if err := res.Error(); err != nil {
		evt = evt.Err(err)
	}
	evt.Msg("server response")
}

func (me *Handler) Run(ctx context.Context) error {
	r, w, closer, err := me.connect(ctx)
	if err != nil {
		return err
	}
	defer closer()

	server := lsp.NewServer(ctx, lsp.Options{Fs: afero.NewOsFs(), Watch: me.watch})

	opts := &jrpc2.ServerOptions{
		RPCLog: protocol.NewMultiRPCLogger(&RPCLogger{}),
	}

	instance := protocol.NewServerInstance(ctx, server, opts)
	server.SetCallbackClient(instance.Client())

	if err := instance.StartAndWait(r, w); err != nil {
		return errors.Errorf("error running language server: %w", err)
	}

	return server.Exit(ctx)
}

// connect picks the transport. With a socket the first client to connect is served and the
// listener is closed.
func (me *Handler) connect(ctx context.Context) (io.Reader, io.WriteCloser, func(), error) {
	if me.socket == "" {
		return os.Stdin, os.Stdout, func() {}, nil
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "unix", me.socket)
	if err != nil {
		return nil, nil, nil, errors.Errorf("listening on %s: %w", me.socket, err)
	}
	defer ln.Close()

	zerolog.Ctx(ctx).Info().Str("socket", me.socket).Msg("waiting for a client")

	conn, err := ln.Accept()
	if err != nil {
		return nil, nil, nil, errors.Errorf("accepting client: %w", err)
	}
	return conn, conn, func() { conn.Close() }, nil
}
