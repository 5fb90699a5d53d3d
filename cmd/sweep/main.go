package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"birdwatch/internal/config"
	"birdwatch/internal/logger"
	"birdwatch/internal/model"
	"birdwatch/internal/repository/sqlite"
	"birdwatch/internal/service/session"
)

// Removes captures recorded in the ledger by a server that is no longer
// running. Do not run it against the ledger of a live server.
func main() {
	cfg := config.Load()

	dbPath := flag.String("db", cfg.LedgerPath, "Artifact ledger path")
	dryRun := flag.Bool("dry-run", false, "List orphaned captures without deleting them")
	connection := flag.String("connection", "", "Only sweep the captures of this connection ID")
	flag.Parse()

	if *dbPath == "" {
		log.Fatalf("No ledger configured (set LEDGER_PATH or -db)")
	}
	if _, err := os.Stat(*dbPath); os.IsNotExist(err) {
		fmt.Printf("Ledger %s does not exist, nothing to sweep\n", *dbPath)
		return
	}

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	repo := sqlite.NewArtifactRepository(db)

	if *dryRun {
		var artifacts []model.Artifact
		if *connection != "" {
			artifacts, err = repo.GetByConnection(*connection)
		} else {
			artifacts, err = repo.GetAll()
		}
		if err != nil {
			log.Fatalf("Failed to read ledger: %v", err)
		}
		for _, a := range artifacts {
			fmt.Printf("%s\t%s\t%s\t%s\n", a.CreatedAt.Format("2006-01-02 15:04:05"), a.ConnectionID, a.Kind, a.Path)
		}
		total, err := repo.Count()
		if err != nil {
			log.Fatalf("Failed to count ledger rows: %v", err)
		}
		fmt.Printf("%d orphaned captures listed (%d in ledger)\n", len(artifacts), total)
		return
	}

	manager := session.NewManager(repo, logger.NewDiscard())
	var removed int
	if *connection != "" {
		removed, err = manager.SweepConnection(*connection)
	} else {
		removed, err = manager.SweepOrphans()
	}
	if err != nil {
		log.Fatalf("Sweep failed: %v", err)
	}
	fmt.Printf("Removed %d orphaned captures\n", removed)
}
