package kv

import (
	"errors"

	"github.com/ValentinKolb/tKV/cmd/util"
	"github.com/ValentinKolb/tKV/lib/host"
	"github.com/ValentinKolb/tKV/lib/store"
	"github.com/ValentinKolb/tKV/lib/tie"
	"github.com/spf13/cobra"
)

var (
	binder    *tie.Binder
	tiedStore store.IStore

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:   "kv",
		Short: "Perform one-shot operations on a store file",
		Long: util.WrapString(`Every kv command ties the store given by --backend and --file,
performs one operation and unties the store again.`),
		PersistentPreRunE:  tieStore,
		PersistentPostRunE: untieStore,
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	util.SetupTieFlags(KeyValueCommands, "kv")

	// Add subcommands
	KeyValueCommands.AddCommand(setCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(delCmd)
	KeyValueCommands.AddCommand(hasCmd)
	KeyValueCommands.AddCommand(keysCmd)
	KeyValueCommands.AddCommand(infoCmd)
}

// tieStore opens the configured store for the duration of one command
func tieStore(cmd *cobra.Command, _ []string) error {
	conf, err := util.Setup(cmd)
	if err != nil {
		return err
	}
	if conf.File == "" {
		return errors.New("--file is required")
	}
	kind, err := tie.ParseKind(conf.Backend)
	if err != nil {
		return err
	}

	// a previous command that failed never reached untieStore
	if binder != nil {
		_ = binder.Close()
	}

	binder = tie.NewBinder(host.NewNamespace())
	if err := binder.Tie(conf.Name, kind, conf.File); err != nil {
		return err
	}
	tiedStore = binder.Store()
	return nil
}

// untieStore closes the store opened by tieStore
func untieStore(_ *cobra.Command, _ []string) error {
	if binder == nil {
		return nil
	}
	defer func() {
		binder = nil
		tiedStore = nil
	}()
	return binder.Close()
}
