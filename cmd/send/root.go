package send

import (
	"fmt"
	"strings"

	cmdUtil "github.com/ValentinKolb/relay/cmd/util"
	"github.com/spf13/cobra"
)

var SendCmd = &cobra.Command{
	Use:   "send [text...]",
	Short: "Send raw text to the running instance",
	Long: `Send the arguments joined by spaces as one message to the running instance and print its reply.
The text is sent as is, so the instance sees it without a program name in front.`,
	RunE: run,
}

func init() {
	key := "no-reply"
	SendCmd.Flags().Bool(key, false, cmdUtil.WrapString("Do not wait for a reply"))
}

func run(cmd *cobra.Command, args []string) error {
	c, err := cmdUtil.NewClient()
	if err != nil {
		return err
	}

	message := strings.Join(args, " ")

	if noReply, _ := cmd.Flags().GetBool("no-reply"); noReply {
		return c.Notify(cmd.Context(), message)
	}

	reply, err := c.Send(cmd.Context(), message)
	if err != nil {
		return err
	}
	fmt.Println(reply)
	return nil
}
