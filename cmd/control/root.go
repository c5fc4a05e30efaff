package control

import (
	"fmt"
	"strings"

	cmdUtil "github.com/ValentinKolb/relay/cmd/util"
	"github.com/ValentinKolb/relay/rpc/sockerr"
	"github.com/spf13/cobra"
)

var (
	PingCmd = &cobra.Command{
		Use:   "ping",
		Short: "Check whether an instance is running",
		Args:  cobra.NoArgs,
		RunE:  forward,
	}

	EchoCmd = &cobra.Command{
		Use:   "echo [text...]",
		Short: "Let the running instance echo the text",
		RunE:  forward,
	}

	StatsCmd = &cobra.Command{
		Use:   "stats [prometheus|histograms]",
		Short: "Print the statistics of the running instance",
		Long:  `Print the statistics of the running instance. With the argument "prometheus" the counters are printed in Prometheus text format, with "histograms" the message size and framing time distributions.`,
		Args:  cobra.MaximumNArgs(1),
		RunE:  forward,
	}

	StopCmd = &cobra.Command{
		Use:   "stop",
		Short: "Stop the running instance",
		Args:  cobra.NoArgs,
		RunE:  forward,
	}
)

// Commands returns all control commands
func Commands() []*cobra.Command {
	return []*cobra.Command{PingCmd, EchoCmd, StatsCmd, StopCmd}
}

// forward sends the command line to the running instance and prints the reply.
// It is reached when the invocation carries flags (e.g. --endpoint) that
// have to be parsed before sending, or when the command is not in the
// forward set.
func forward(cmd *cobra.Command, args []string) error {
	c, err := cmdUtil.NewClient()
	if err != nil {
		return err
	}

	message := strings.Join(append([]string{cmd.Root().Name(), cmd.Name()}, args...), " ")
	reply, err := c.Send(cmd.Context(), message)
	if sockerr.IsNotFound(err) {
		return fmt.Errorf("no instance running at %s", c.Endpoint())
	} else if err != nil {
		return err
	}

	fmt.Println(reply)
	return nil
}
