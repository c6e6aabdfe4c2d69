package main

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/abquickfix/fixengine/store"
)

// storeBackend is a pflag.Value restricting --backend to the store
// implementations the engine actually ships.
type storeBackend string

func (b *storeBackend) String() string { return string(*b) }
func (b *storeBackend) Type() string   { return "backend" }
func (b *storeBackend) Set(v string) error {
	switch v {
	case "memory", "postgres", "mysql":
		*b = storeBackend(v)
		return nil
	default:
		return fmt.Errorf("must be one of memory, postgres, mysql")
	}
}

func newStoreInspectCmd() *cobra.Command {
	var dsn, session string
	backend := storeBackend("memory")

	cmd := &cobra.Command{
		Use:   "store-inspect",
		Short: "Print a session's stored sequence numbers and message count",
		RunE: func(cmd *cobra.Command, args []string) error {
			if session == "" {
				return fmt.Errorf("fixctl store-inspect: --session is required")
			}

			var st store.MessageStore
			var err error
			switch backend {
			case "postgres":
				st, err = store.NewPostgresStore(dsn)
			case "mysql":
				st, err = store.NewMySQLStore(dsn)
			default:
				st = store.NewMemStore()
			}
			if err != nil {
				return err
			}
			defer st.Close()

			senderSeq, err := st.NextSenderSeqNum(session)
			if err != nil {
				return err
			}
			targetSeq, err := st.NextTargetSeqNum(session)
			if err != nil {
				return err
			}
			records, err := st.MessagesInRange(session, 1, 0)
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Session", "NextSenderSeq", "NextTargetSeq", "StoredMessages"})
			table.Append([]string{session, fmt.Sprint(senderSeq), fmt.Sprint(targetSeq), fmt.Sprint(len(records))})
			table.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", "", "data source name for the postgres/mysql backend")
	cmd.Flags().Var(&backend, "backend", "store backend: memory, postgres, mysql")
	cmd.Flags().StringVar(&session, "session", "", "canonical SessionID string to inspect")
	return cmd
}

var _ pflag.Value = (*storeBackend)(nil)
