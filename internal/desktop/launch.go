package desktop

import (
	"fmt"
	"os/exec"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
)

// Launch starts the program the entry describes and detaches from it.
// The entries the daemon launches come from system data directories, so
// no executable-bit or trust check is applied.
func (e *Entry) Launch() error {
	return launch(e.Exec, e.Path)
}

// LaunchDeclaredAction starts one of the entry's declared actions.
func (e *Entry) LaunchDeclaredAction(id string) error {
	action := e.FindAction(id)
	if action == nil {
		return fmt.Errorf("desktop entry %s declares no action %q", e.Path, id)
	}
	return launch(action.Exec, e.Path)
}

func launch(execLine, origin string) error {
	argv := parseExec(execLine)
	if len(argv) == 0 {
		return fmt.Errorf("desktop entry %s has an empty Exec line", origin)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch %s: %w", argv[0], err)
	}

	log.Debug().Str("component", "desktop").Str("exec", argv[0]).Int("pid", cmd.Process.Pid).Msg("launched")

	// The child outlives the daemon; don't hold on to it.
	return cmd.Process.Release()
}

// parseExec splits an Exec line into argv, honoring double quotes and
// dropping the %-field codes the daemon has no data for.
func parseExec(line string) []string {
	var argv []string
	var cur strings.Builder
	inQuote := false
	escaped := false
	flush := func() {
		if cur.Len() > 0 {
			argv = append(argv, cur.String())
			cur.Reset()
		}
	}
	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"':
			inQuote = !inQuote
		case r == ' ' && !inQuote:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()

	out := argv[:0]
	for _, arg := range argv {
		if len(arg) == 2 && arg[0] == '%' {
			switch arg[1] {
			case 'f', 'F', 'u', 'U', 'i', 'c', 'k':
				continue
			}
		}
		out = append(out, arg)
	}
	return out
}
