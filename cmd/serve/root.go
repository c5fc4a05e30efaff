package serve

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	cmdUtil "github.com/ValentinKolb/relay/cmd/util"
	"github.com/ValentinKolb/relay/rpc/common"
	"github.com/ValentinKolb/relay/rpc/server"
	"github.com/ValentinKolb/relay/rpc/sockerr"
	"github.com/ValentinKolb/relay/rpc/transport/unix"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	Logger = logger.GetLogger(common.LoggerCLI)

	ServeCmd = &cobra.Command{
		Use:     "serve",
		Short:   "Run the relay instance",
		Long:    `Run the relay instance in the foreground. The instance listens on the configured Unix socket and executes the commands forwarded by other relay processes. The configuration can be set via command line flags or environment variables. The format of the environment variables is RELAY_<flag> (e.g. RELAY_BUFFER_SIZE=8192)`,
		Args:    cobra.NoArgs,
		PreRunE: processConfig,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInstance(cmd.Context(), "")
		},
	}

	StartCmd = &cobra.Command{
		Use:   "start [args...]",
		Short: "Activate the running instance or become it",
		Long: `Forward the arguments to the running relay instance. If no instance is running, this process becomes the instance and handles its own start command first.
Accepts the same flags as serve.`,
		PreRunE: processConfig,
		RunE:    runStart,
	}
)

func init() {
	for _, cmd := range []*cobra.Command{ServeCmd, StartCmd} {
		key := "buffer-size"
		cmd.Flags().Int(key, common.DefaultBufferSize, cmdUtil.WrapString("Size in bytes of the buffer used to read from a connection"))

		key = "max-message-size"
		cmd.Flags().Int(key, 0, cmdUtil.WrapString("Connections sending more bytes than this are dropped (0 = unlimited)"))

		key = "read-timeout"
		cmd.Flags().Int64(key, 0, cmdUtil.WrapString("Connections that do not finish their message within this many seconds are dropped (0 = no timeout)"))

		key = "strict-accept"
		cmd.Flags().Bool(key, false, cmdUtil.WrapString("Report failures to accept a connection to the event loop instead of only logging them"))

		key = "socket-permissions"
		cmd.Flags().String(key, "", cmdUtil.WrapString("Octal file mode of the socket file (e.g. 0600). Empty keeps the default of the process umask"))
	}
}

var serveConfig = &common.ServerConfig{}

// processConfig reads the server configuration from the command line flags and environment variables
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	conf, err := cmdUtil.GetServerConfig()
	if err != nil {
		return err
	}
	*serveConfig = *conf

	return nil
}

// runStart forwards the start command if an instance is running, otherwise it becomes the instance
func runStart(cmd *cobra.Command, args []string) error {
	message := strings.Join(append([]string{cmd.Root().Name(), cmd.Name()}, args...), " ")

	c, err := cmdUtil.NewClient()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	reply, err := c.Send(ctx, message)
	switch {
	case err == nil:
		fmt.Println(reply)
		return nil
	case !sockerr.IsNotFound(err):
		return err
	}

	Logger.Infof("no instance running at %s, starting one", serveConfig.Endpoint)
	return runInstance(ctx, message)
}

// runInstance binds the socket and handles events until stopped.
// A non-empty initial message is handled before the first event.
func runInstance(ctx context.Context, initial string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// never take over the socket of a live instance
	c, err := cmdUtil.NewClient()
	if err != nil {
		return err
	}
	switch err := c.Ping(ctx); {
	case err == nil:
		return fmt.Errorf("an instance is already running at %s", serveConfig.Endpoint)
	case !sockerr.IsNotFound(err):
		return fmt.Errorf("failed to check for an instance at %s: %w", serveConfig.Endpoint, err)
	}

	inst := &instance{startedAt: time.Now(), version: cmdUtil.Version}

	srv, err := server.BindWithState(*serveConfig, unix.NewServerConnector(), inst)
	if err != nil {
		return err
	}
	inst.server = srv
	defer srv.Close()

	fmt.Printf("relay instance listening on %s\n", srv.Addr())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		return srv.Close()
	})

	g.Go(func() error {
		if initial != "" {
			fmt.Println(handle(inst, initial).text)
		}
		return eventLoop(ctx, srv, stop)
	})

	return g.Wait()
}

// eventLoop handles events until the server is closed or a stop command arrives
func eventLoop(ctx context.Context, srv *server.Server[*instance], stop context.CancelFunc) error {
	for {
		event, err := srv.Accept(ctx)
		if err != nil {
			var acceptErr *server.AcceptError
			switch {
			case errors.Is(err, server.ErrServerClosed), errors.Is(err, context.Canceled):
				return nil
			case errors.As(err, &acceptErr):
				Logger.Warningf("failed to accept connection: %v", acceptErr.Err)
				continue
			default:
				return err
			}
		}

		message := event.TakeMessage()
		Logger.Debugf("event %d: %q", event.ID(), message)

		r := handle(event.State(), message)
		if err := event.Reply(r.text); sockerr.IsSocketClosed(err) {
			Logger.Debugf("client of event %d did not wait for the reply", event.ID())
		} else if err != nil {
			Logger.Warningf("failed to reply to event %d: %v", event.ID(), err)
		}

		if r.stop {
			Logger.Infof("stop requested by event %d", event.ID())
			stop()
			return nil
		}
	}
}
