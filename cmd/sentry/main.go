// X1-Sentry: account validation harness for Solana-style security
// patterns.
//
// Sentry runs a catalog of exploit scenarios against paired vulnerable
// and secure instruction definitions and reports whether each call ended
// the way the pattern predicts. Outcomes can be journaled for drift
// detection across runs, and scenario baselines can be persisted to a
// BadgerDB store and snapshotted.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fortiblox/X1-Sentry/pkg/harness"
	"github.com/fortiblox/X1-Sentry/pkg/journal"
	"github.com/fortiblox/X1-Sentry/pkg/statestore"
)

// Version information
var (
	Version   = "0.1.0"
	GitCommit = "dev"
)

// Configuration flags
var (
	dataDir     = flag.String("data-dir", "", "Data directory for journal and baselines (empty = no persistence)")
	pattern     = flag.String("pattern", "", "Run only scenarios of this pattern family")
	listOnly    = flag.Bool("list", false, "List scenarios and exit")
	snapshot    = flag.Bool("snapshot", false, "Write a baseline snapshot after the run (requires -data-dir)")
	verbose     = flag.Bool("verbose", false, "Print handler logs for each call")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("X1-Sentry %s (%s)\n", Version, GitCommit)
		os.Exit(0)
	}

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	scenarios := Catalog()
	if *pattern != "" {
		var filtered []Scenario
		for _, s := range scenarios {
			if s.Pattern == *pattern {
				filtered = append(filtered, s)
			}
		}
		if len(filtered) == 0 {
			log.Fatalf("no scenarios for pattern %q (available: %s)", *pattern, patternList(scenarios))
		}
		scenarios = filtered
	}

	if *listOnly {
		for _, s := range scenarios {
			fmt.Println(s.Name)
		}
		return
	}

	log.Printf("Starting X1-Sentry %s, %d scenarios", Version, len(scenarios))

	var jrn *journal.Journal
	var store *statestore.Badger
	if *dataDir != "" {
		var err error
		jrn, err = journal.Open(journal.Config{Path: filepath.Join(*dataDir, "journal.db")})
		if err != nil {
			log.Fatalf("Failed to open journal: %v", err)
		}
		defer jrn.Close()

		store, err = statestore.OpenBadger(statestore.DefaultBadgerConfig(filepath.Join(*dataDir, "baselines")))
		if err != nil {
			log.Fatalf("Failed to open baseline store: %v", err)
		}
		defer store.Close()
	}

	failed := 0
	skipped := 0
	for _, s := range scenarios {
		ins, accounts, data, err := s.Build()
		if err != nil {
			log.Printf("SKIP %s: %v", s.Name, err)
			skipped++
			continue
		}

		out := harness.Process(ins, accounts, data)

		// Completed calls commit their final accounts to the store.
		if store != nil && out.Success {
			if err := statestore.CommitOutcome(store, out); err != nil {
				log.Fatalf("Failed to commit outcome: %v", err)
			}
		}

		if jrn != nil {
			if _, err := jrn.Append(journal.FromOutcome(s.Name, ins.Name, out)); err != nil {
				log.Fatalf("Failed to journal outcome: %v", err)
			}
		}

		ok := out.Success == s.WantSuccess && out.Code == s.WantCode
		status := "PASS"
		if !ok {
			status = "FAIL"
			failed++
		}

		detail := "completed"
		if !out.Success {
			detail = fmt.Sprintf("rejected in %s with %s", out.Phase, out.Code)
		}
		log.Printf("%s %-45s %s [%s]", status, s.Name, detail, ins.Name)
		if *verbose {
			for _, line := range out.Logs {
				log.Printf("     | %s", line)
			}
		}
		if !ok {
			log.Printf("     want success=%v code=%s, got success=%v code=%s",
				s.WantSuccess, s.WantCode, out.Success, out.Code)
		}
	}

	if jrn != nil {
		log.Printf("Journaled %d outcomes total", jrn.Count())
	}
	if store != nil && *snapshot {
		path := filepath.Join(*dataDir, statestore.SnapshotFilename(store.Revision()))
		if err := statestore.WriteSnapshot(store, path); err != nil {
			log.Fatalf("Failed to write snapshot: %v", err)
		}
		log.Printf("Wrote baseline snapshot %s", path)
	}

	summary := fmt.Sprintf("%d passed, %d failed", len(scenarios)-failed-skipped, failed)
	if skipped > 0 {
		summary += fmt.Sprintf(", %d skipped", skipped)
	}
	log.Printf("Run complete: %s", summary)
	if failed > 0 {
		os.Exit(1)
	}
}

// patternList returns the distinct pattern families in catalog order.
func patternList(scenarios []Scenario) string {
	seen := make(map[string]bool)
	var names []string
	for _, s := range scenarios {
		if !seen[s.Pattern] {
			seen[s.Pattern] = true
			names = append(names, s.Pattern)
		}
	}
	return strings.Join(names, ", ")
}
