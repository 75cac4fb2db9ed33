package main

import (
	"context"
	"flag"
	"os"

	_ "github.com/go-sql-driver/mysql"
	"gitlab.com/dirk.krummacker/contacts-directory/internal/config"
	"gitlab.com/dirk.krummacker/contacts-directory/internal/logging"
	"gitlab.com/dirk.krummacker/contacts-directory/internal/store"
	"go.uber.org/zap"
)

// Usage example on the command line:
// > DBHOST=localhost:3306 DBUSER=dirk DBPWD=bullo92 go run main.go -file=../../scripts/database.sql
func main() {
	filePtr := flag.String("file", "database.sql", "the sql file to execute")
	flag.Parse()

	logger, err := logging.New(os.Getenv("LOG_MODE"))
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	db, err := store.Open(config.LoadDatabase().DSN())
	if err != nil {
		logger.Fatal("could not open database", zap.Error(err))
	}
	defer db.Close()

	readFile, err := os.Open(*filePtr) // nosemgrep
	if err != nil {
		logger.Fatal("could not open sql file", zap.String("file", *filePtr), zap.Error(err))
	}
	defer readFile.Close()

	statements, err := store.SplitStatements(readFile)
	if err != nil {
		logger.Fatal("could not read sql file", zap.String("file", *filePtr), zap.Error(err))
	}
	for i, statement := range statements {
		if _, err := db.ExecContext(context.Background(), statement); err != nil {
			logger.Fatal("statement failed", zap.Int("statement", i+1), zap.Error(err))
		}
	}
	logger.Info("migration finished", zap.String("file", *filePtr), zap.Int("statements", len(statements)))
}
