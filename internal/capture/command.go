package capture

import "strings"

// netshBinary is the Windows trace facility front end
const netshBinary = "netsh"

// Command is one netsh invocation. String renders the literal command line
// used in shell mode; Args keeps the tokens for direct execution.
type Command struct {
	Name string
	Args []string
}

// String renders the command line with arguments substituted verbatim
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// StartCommand returns `netsh trace start capture=yes tracefile=<output> maxSize=<maxsize>`
func StartCommand(req Request) Command {
	return Command{
		Name: netshBinary,
		Args: []string{
			"trace", "start",
			"capture=yes",
			"tracefile=" + req.OutputPath,
			"maxSize=" + req.MaxSizeMB,
		},
	}
}

// StopCommand returns `netsh trace stop`
func StopCommand() Command {
	return Command{Name: netshBinary, Args: []string{"trace", "stop"}}
}

// StatusCommand returns `netsh trace show status`
func StatusCommand() Command {
	return Command{Name: netshBinary, Args: []string{"trace", "show", "status"}}
}
