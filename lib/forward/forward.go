package forward

import (
	"context"
	"sort"
	"strings"
)

// CommandSet is the set of subcommands that are sent to a running instance
type CommandSet map[string]struct{}

// NewCommandSet creates a set from the given subcommand names
func NewCommandSet(commands ...string) CommandSet {
	set := make(CommandSet, len(commands))
	for _, command := range commands {
		set[command] = struct{}{}
	}
	return set
}

// ParseCommandSet parses a comma-separated list such as "start,stop"
func ParseCommandSet(list string) CommandSet {
	set := make(CommandSet)
	for _, command := range strings.Split(list, ",") {
		if command = strings.TrimSpace(command); command != "" {
			set[command] = struct{}{}
		}
	}
	return set
}

// Contains reports whether command is in the set
func (s CommandSet) Contains(command string) bool {
	_, ok := s[command]
	return ok
}

// String returns the sorted, comma-separated commands
func (s CommandSet) String() string {
	commands := make([]string, 0, len(s))
	for command := range s {
		commands = append(commands, command)
	}
	sort.Strings(commands)
	return strings.Join(commands, ",")
}

// --------------------------------------------------------------------------
// Decide
// --------------------------------------------------------------------------

// Decision is the outcome of Decide. If Forward is set, Message is the text
// to send; otherwise Args are the unmodified arguments to run locally.
type Decision struct {
	Forward bool
	Message string
	Args    []string
}

// Decide inspects a process argument vector (args[0] is the program name,
// args[1] the subcommand). If the subcommand is in commands, all arguments
// joined by single spaces are to be forwarded. Decide performs no I/O.
func Decide(args []string, commands CommandSet) Decision {
	if len(args) < 2 || !commands.Contains(args[1]) {
		return Decision{Args: args}
	}
	return Decision{Forward: true, Message: strings.Join(args, " ")}
}

// --------------------------------------------------------------------------
// Intercept
// --------------------------------------------------------------------------

// Sender delivers a message to the running instance (implemented by *client.Client)
type Sender interface {
	Send(ctx context.Context, message string) (string, error)
}

// Result is the outcome of Intercept
type Result struct {
	// Forwarded is set if the arguments were sent to the instance (successfully or not)
	Forwarded bool
	// Reply is the instance's reply
	Reply string
	// Err is the send error, if any
	Err error
	// Args are the arguments to run locally when nothing was forwarded
	Args []string
}

// Intercept applies Decide and, if the arguments are to be forwarded, sends them.
func Intercept(ctx context.Context, sender Sender, args []string, commands CommandSet) Result {
	decision := Decide(args, commands)
	if !decision.Forward {
		return Result{Args: decision.Args}
	}

	reply, err := sender.Send(ctx, decision.Message)
	return Result{
		Forwarded: true,
		Reply:     reply,
		Err:       err,
		Args:      args,
	}
}

// --------------------------------------------------------------------------
// Flags
// --------------------------------------------------------------------------

// FlagNames returns the names of the flags in args without dashes or values
// ("--endpoint=/x" -> "endpoint", "-h" -> "h"). Combined short flags are
// split into single letters. Scanning stops at a "--" terminator.
func FlagNames(args []string) []string {
	var names []string
	for _, arg := range args {
		switch {
		case arg == "--":
			return names
		case strings.HasPrefix(arg, "--") && len(arg) > 2:
			name, _, _ := strings.Cut(arg[2:], "=")
			names = append(names, name)
		case strings.HasPrefix(arg, "-") && len(arg) > 1:
			short, _, _ := strings.Cut(arg[1:], "=")
			for _, r := range short {
				names = append(names, string(r))
			}
		}
	}
	return names
}
