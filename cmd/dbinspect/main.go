// Command dbinspect prints the structure of a muscle database file: page
// accounting, the table catalog, and the shape of every table's tree.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/s4hubhamp/muscle"
)

func main() {
	dbPath := flag.String("db", "", "database file to inspect")
	validate := flag.Bool("validate", false, "run structural validation and report the result")
	dump := flag.Bool("dump", false, "dump every tree page")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: dbinspect -db <file> [-validate] [-dump]")
		os.Exit(2)
	}

	db, err := muscle.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	m := db.Metadata()
	fmt.Printf("%s: %d pages (%d free), %d tables\n", *dbPath, m.TotalPages, m.FreePages, len(m.Tables))

	for _, name := range db.ListTables() {
		t, err := db.GetTable(name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "table %s: %v\n", name, err)
			os.Exit(1)
		}
		tree := db.OpenTree(t.RootPage, t.KeyType())
		st, err := tree.Stats()
		if err != nil {
			fmt.Fprintf(os.Stderr, "table %s: %v\n", name, err)
			os.Exit(1)
		}
		fmt.Printf("  %s: root=%d height=%d cells=%d (%d leaf pages, %d internal)\n",
			name, t.RootPage, st.Height, st.Cells, st.LeafPages, st.InternalPages)
	}

	if *dump {
		if err := db.Dump(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "dump: %v\n", err)
			os.Exit(1)
		}
	}

	if *validate {
		if err := db.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("validation ok")
	}
}
