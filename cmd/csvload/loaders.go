package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/csvload/internal/store"
	"github.com/JonMunkholm/csvload/internal/store/memstore"
	"github.com/JonMunkholm/csvload/internal/web"
)

func newLoadersCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "loaders",
		Short: "List the registered file loaders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Listing never touches storage.
			reg, err := a.registry(store.Memory(memstore.New()))
			if err != nil {
				return err
			}

			infos := make([]web.LoaderInfo, 0, reg.Len())
			for _, key := range reg.Keys() {
				f, _ := reg.Get(key)
				infos = append(infos, web.Describe(f))
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(infos)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tLOADERS\tHEADER\tDELIMITER\tCARRY")
			for _, info := range infos {
				fmt.Fprintf(tw, "%s\t%s\t%t\t%q\t%t\n",
					info.Key, strings.Join(info.Loaders, " > "), info.Header, info.Delimiter, info.CarryBindings)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}
