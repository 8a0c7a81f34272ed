// Command braveflea-dump opens a Frontier ODB database file and prints a
// structured dump of its root table, recursively resolving nested
// sub-tables. It accepts exactly one argument, the path to the file, and
// exits non-zero if the file cannot be opened and loaded. A nested table,
// string or blob that fails to resolve during the dump is logged as a
// warning and skipped; it does not change the exit status.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tedhoward/braveflea/heap"
	"github.com/tedhoward/braveflea/odb"
)

var log = logrus.New()

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "braveflea-dump <path>",
		Short: "Dump a Frontier ODB database file as a structured tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				log.SetLevel(logrus.DebugLevel)
			}
			return runDump(args[0])
		},
		SilenceUsage: true,
	}
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose diagnostics")
	return cmd
}

func runDump(path string) error {
	log.WithField("path", path).Debug("opening database")

	store, err := odb.Open(path)
	if err != nil {
		log.WithError(err).Error("failed to open database")
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			log.WithError(cerr).Warn("failed to close database")
		}
	}()

	fmt.Printf("script: %q\n", store.ScriptString())
	fmt.Printf("flags: disabled=%v popup-disabled=%v big-window=%v\n",
		store.FlagDisabled(), store.PopupDisabled(), store.BigWindow())
	fmt.Println("root:")

	dumpTable(store.Heap(), store.RootTable(), 1)
	return nil
}

func dumpTable(h *heap.Heap, table *odb.Table, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, key := range table.SortedKeys() {
		node, ok := table.Get(key)
		if !ok {
			continue
		}
		switch node.Value.Kind {
		case odb.KindTable:
			fmt.Printf("%s%s: <table>\n", indent, key)
			child, err := table.ResolveTable(h, key)
			if err != nil {
				log.WithError(err).WithField("key", key).Warn("failed to resolve sub-table")
				continue
			}
			dumpTable(h, child, depth+1)
		case odb.KindString:
			s, err := table.ResolveString(h, key)
			if err != nil {
				log.WithError(err).WithField("key", key).Warn("failed to resolve string")
				continue
			}
			fmt.Printf("%s%s: %q\n", indent, key, s)
		case odb.KindBytes:
			b, err := table.ResolveBytes(h, key)
			if err != nil {
				log.WithError(err).WithField("key", key).Warn("failed to resolve bytes")
				continue
			}
			fmt.Printf("%s%s: <%d bytes>\n", indent, key, len(b))
		default:
			fmt.Printf("%s%s: %s\n", indent, key, formatScalar(node.Value))
		}
	}
}

func formatScalar(v odb.ValueRecord) string {
	switch v.Kind {
	case odb.KindNone:
		return "<none>"
	case odb.KindChar:
		return fmt.Sprintf("%q", rune(v.Char))
	case odb.KindInt:
		return fmt.Sprintf("%d", v.Int)
	case odb.KindBool:
		return fmt.Sprintf("%v", v.Bool)
	case odb.KindDate:
		return fmt.Sprintf("%d (classic-Mac epoch seconds)", v.Date)
	case odb.KindFloat:
		return fmt.Sprintf("%g", v.Float)
	case odb.KindExternal:
		return fmt.Sprintf("<external @%d>", v.Address)
	default:
		return "<unresolved>"
	}
}
