package host

import (
	"errors"
	"strings"

	"github.com/ValentinKolb/tKV/lib/tie"
	"github.com/spf13/cobra"
)

// --------------------------------------------------------------------------
// ztie / zuntie
// --------------------------------------------------------------------------

// newZtieCmd builds the ztie builtin: ztie -d KIND -f FILE NAME
func (in *Interpreter) newZtieCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ztie -d KIND -f FILE NAME",
		Short: "Tie a store file to a hash parameter",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, _ := cmd.Flags().GetString("backend")
			file, _ := cmd.Flags().GetString("file")

			if !cmd.Flags().Changed("backend") {
				return errors.New("you must pass `-d db/gdbm' to ztie")
			}
			if !cmd.Flags().Changed("file") {
				return errors.New("you must pass `-f' with a filename to ztie")
			}

			err := in.binder.Tie(args[0], tie.Kind(strings.ToLower(kind)), file)
			switch {
			case err == nil:
				return nil
			case errors.Is(err, tie.ErrConfig):
				return errors.New("unsupported backend " + kind + ", must be one of " + strings.Join(tie.KindNames(), ", "))
			case errors.Is(err, tie.ErrAlreadyTied):
				return errors.New("something is already ztied and this implementation is flawed")
			case errors.Is(err, tie.ErrParamCreate):
				return errors.New("cannot create the requested parameter name")
			case errors.Is(err, tie.ErrStoreOpen):
				return errors.New("error opening database file " + file)
			default:
				return err
			}
		},
	}
	cmd.Flags().StringP("backend", "d", "", "backend kind ("+strings.Join(tie.KindNames(), ", ")+")")
	cmd.Flags().StringP("file", "f", "", "store file (a directory for db/pebble)")
	return cmd
}

// newZuntieCmd builds the zuntie builtin: zuntie NAME
func (in *Interpreter) newZuntieCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "zuntie NAME",
		Short: "Untie a hash parameter and close its store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := in.binder.Untie(args[0])
			var tieErr *tie.Error
			switch {
			case err == nil:
				return nil
			case errors.Is(err, tie.ErrNotTied):
				return errors.New("nothing is ztied")
			case errors.Is(err, tie.ErrNameMismatch):
				return errors.New(args[0] + " is not ztied")
			case errors.As(err, &tieErr) && tieErr.Code == tie.CodeStoreClose:
				return errors.New("error closing database file " + tieErr.Path)
			default:
				return err
			}
		},
	}
}

// runCobra executes a builtin command with args and reports errors as "name: message"
func (in *Interpreter) runCobra(cmd *cobra.Command, args []string) int {
	cmd.SetArgs(args)
	cmd.SetOut(in.out)
	cmd.SetErr(in.errOut)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	if err := cmd.Execute(); err != nil {
		in.warn(cmd.Name(), err.Error())
		return 1
	}
	return 0
}
