package serve

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/relay/rpc/server"
)

// instance is the state shared with every event of the running instance
type instance struct {
	startedAt   time.Time
	version     string
	activations atomic.Uint64
	server      *server.Server[*instance]
}

// reply is the handler's answer to one command
type reply struct {
	text string
	stop bool
}

// handle executes one forwarded command line in the running instance.
// The first field is the program name of the forwarding process and is ignored.
func handle(inst *instance, message string) reply {
	fields := strings.Fields(message)
	if len(fields) < 2 {
		return reply{text: "unknown command: " + strings.TrimSpace(message)}
	}

	command, args := fields[1], fields[2:]
	switch command {
	case "ping":
		return reply{text: "pong"}
	case "echo":
		return reply{text: strings.Join(args, " ")}
	case "start":
		inst.activations.Add(1)
		return reply{text: "activated: " + strings.Join(args, " ")}
	case "stats":
		return reply{text: stats(inst, args)}
	case "stop":
		return reply{text: "stopping", stop: true}
	default:
		return reply{text: "unknown command: " + command}
	}
}

func stats(inst *instance, args []string) string {
	if inst.server == nil {
		return "no statistics available"
	}

	if len(args) > 0 {
		var sb strings.Builder
		switch args[0] {
		case "prometheus":
			inst.server.WritePrometheus(&sb)
		case "histograms":
			inst.server.WriteHistograms(&sb)
		default:
			return "unknown stats format: " + args[0]
		}
		return sb.String()
	}

	var sb strings.Builder
	sb.WriteString(inst.server.Stats().String())
	sb.WriteString("\nINSTANCE\n")
	sb.WriteString(fmt.Sprintf("  %-22s: %s\n", "Version", inst.version))
	sb.WriteString(fmt.Sprintf("  %-22s: %s\n", "Uptime", time.Since(inst.startedAt).Round(time.Second)))
	sb.WriteString(fmt.Sprintf("  %-22s: %d\n", "Activations", inst.activations.Load()))
	return sb.String()
}
