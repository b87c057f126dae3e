package shell

import (
	"io"
	"os"

	"github.com/ValentinKolb/tKV/cmd/util"
	"github.com/ValentinKolb/tKV/lib/host"
	"github.com/ValentinKolb/tKV/lib/tie"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var log = logger.GetLogger("host")

// ShellCmd runs the line interpreter on stdin
var ShellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start the interactive shell",
	Long: util.WrapString(`Reads lines from stdin and executes them.
Use ztie -d KIND -f FILE NAME to tie a store to a hash and zuntie NAME to release it.
If --file is given the store is tied under --name before the first line is read.`),
	Args: cobra.NoArgs,
	RunE: runShell,
}

func init() {
	cobra.OnInitialize(util.InitConfig)
	util.SetupTieFlags(ShellCmd, "h")
}

func runShell(cmd *cobra.Command, _ []string) error {
	conf, err := util.Setup(cmd)
	if err != nil {
		return err
	}
	log.Debugf("shell configuration:%s", conf)

	in := host.NewInterpreter(cmd.OutOrStdout(), cmd.ErrOrStderr())
	defer func() {
		if err := in.Close(); err != nil {
			log.Errorf("untie on exit: %v", err)
		}
	}()

	if conf.File != "" {
		kind, err := tie.ParseKind(conf.Backend)
		if err != nil {
			return err
		}
		if err := in.Binder().Tie(conf.Name, kind, conf.File); err != nil {
			return err
		}
	}

	if isTerminal(cmd.InOrStdin()) {
		in.Prompt = "tkv% "
	}

	status, err := in.Run(cmd.Context(), cmd.InOrStdin())
	if err != nil {
		return err
	}
	if status != 0 {
		return &util.ExitError{Code: status}
	}
	return nil
}

// isTerminal reports whether r is a file attached to a terminal
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
