package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/ValentinKolb/relay/cmd/control"
	"github.com/ValentinKolb/relay/cmd/send"
	"github.com/ValentinKolb/relay/cmd/serve"
	"github.com/ValentinKolb/relay/cmd/util"
	"github.com/ValentinKolb/relay/lib/forward"
	"github.com/ValentinKolb/relay/rpc/sockerr"
	"github.com/spf13/cobra"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "relay",
		Short: "single-instance command relay",
		Long: fmt.Sprintf(`relay (v%s)

Keeps a single running instance per socket. Invocations of a forwarded
subcommand are sent to the running instance over a local socket instead
of starting a second one.`, util.Version),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := util.BindCommandFlags(cmd); err != nil {
				return err
			}
			return util.InitLogging()
		},
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of relay",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("relay v%s\n", util.Version)
		},
	}
)

// Execute adds all child commands to the root command and sets flags appropriately.
// Forwarded subcommands are sent to a running instance before any flag parsing.
func Execute() {
	util.InitConfig()
	// the level is set again once flags are parsed
	_ = util.InitLogging()

	done, err := intercept(context.Background(), os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if done {
		return
	}

	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// intercept forwards the process arguments to a running instance if the
// subcommand is a forwarded one. It reports whether the invocation is done.
// Invocations that carry flags of the subcommand are left to cobra, which
// parses them before sending.
func intercept(ctx context.Context, args []string) (bool, error) {
	if hasCommandFlags(args) {
		return false, nil
	}

	c, err := util.NewClient()
	if err != nil {
		// invalid configuration is reported by cobra
		return false, nil
	}

	res := forward.Intercept(ctx, c, args, util.GetForwardCommands())
	switch {
	case !res.Forwarded:
		return false, nil
	case res.Err == nil:
		fmt.Println(res.Reply)
		return true, nil
	case sockerr.IsNotFound(res.Err):
		util.Logger.Debugf("no instance at %s, running %q locally", c.Endpoint(), args[1])
		return false, nil
	default:
		return true, res.Err
	}
}

// hasCommandFlags reports whether the arguments after the subcommand name
// a help flag or any flag the subcommand understands
func hasCommandFlags(args []string) bool {
	if len(args) < 3 {
		return false
	}

	sub, _, err := RootCmd.Find(args[1:2])
	if err != nil {
		sub = RootCmd
	}

	for _, name := range forward.FlagNames(args[2:]) {
		if name == "help" || name == "h" || hasFlag(sub, name) {
			return true
		}
	}
	return false
}

func hasFlag(cmd *cobra.Command, name string) bool {
	if len(name) == 1 {
		return cmd.Flags().ShorthandLookup(name) != nil || cmd.InheritedFlags().ShorthandLookup(name) != nil
	}
	return cmd.Flags().Lookup(name) != nil || cmd.InheritedFlags().Lookup(name) != nil
}

func init() {
	util.SetupConnectionFlags(RootCmd)

	RootCmd.AddCommand(versionCmd)
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(serve.StartCmd)
	RootCmd.AddCommand(send.SendCmd)
	RootCmd.AddCommand(control.Commands()...)
}
