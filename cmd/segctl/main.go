// segctl is an operator tool for the segmentation engine: submit jobs,
// check their status, inspect exceptions, run migrations, and optionally
// schedule recurring segmentation runs without hand-writing HTTP requests.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/uptrace/bun"

	"github.com/voteops/segengine/internal/application/jobrunner"
	"github.com/voteops/segengine/internal/infrastructure/storage"
	"github.com/voteops/segengine/migrations"
)

const usage = `segctl - segmentation engine operator tool

USAGE:
    segctl <command> [options]

COMMANDS:
    submit      Queue a new segmentation job for a node
    status      Show a job's current status and result
    exceptions  List exceptions raised while processing a job
    migrate     Run database migrations (init, up, down, status, reset)
    schedule    Run a recurring submit on a cron schedule until interrupted

SUBMIT OPTIONS:
    -election <uuid>   Election id (required)
    -node <uuid>        Hierarchy node id to segment (required)
    -name <name>        Optional human-readable job name
    -created-by <who>   Optional operator identifier

STATUS OPTIONS:
    -job <uuid>         Job id (required)

EXCEPTIONS OPTIONS:
    -election <uuid>   Election id (required)
    -job <uuid>         Job id (required)

MIGRATE OPTIONS:
    -command <cmd>      One of: init, up, down, status, reset (default: up)

SCHEDULE OPTIONS:
    -election <uuid>   Election id (required)
    -node <uuid>        Hierarchy node id to segment (required)
    -cron <expr>        Standard 5-field cron expression (required)

CONNECTION:
    -database-url <url> PostgreSQL URL (overrides DATABASE_URL env var)
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	_ = godotenv.Load()

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "submit":
		err = runSubmit(args)
	case "status":
		err = runStatus(args)
	case "exceptions":
		err = runExceptions(args)
	case "migrate":
		err = runMigrate(args)
	case "schedule":
		err = runSchedule(args)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", command)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func openDB(flagURL string) (*bun.DB, error) {
	url := flagURL
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	if url == "" {
		return nil, fmt.Errorf("database URL is required (-database-url or DATABASE_URL)")
	}

	db, err := storage.NewDB(&storage.Config{
		DSN:             url,
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return db, nil
}

func runSubmit(args []string) error {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	electionStr := fs.String("election", "", "election id")
	nodeStr := fs.String("node", "", "node id")
	name := fs.String("name", "", "job name")
	createdBy := fs.String("created-by", "", "operator identifier")
	dbURL := fs.String("database-url", "", "database URL")
	if err := fs.Parse(args); err != nil {
		return err
	}

	electionID, nodeID, err := parseElectionNode(*electionStr, *nodeStr)
	if err != nil {
		return err
	}

	db, err := openDB(*dbURL)
	if err != nil {
		return err
	}
	defer storage.Close(db)

	jobRepo := storage.NewJobRepository(db)

	var namePtr, createdByPtr *string
	if *name != "" {
		namePtr = name
	}
	if *createdBy != "" {
		createdByPtr = createdBy
	}

	job, err := jobrunner.SubmitJob(context.Background(), jobRepo, electionID, nodeID, namePtr, createdByPtr)
	if err != nil {
		return fmt.Errorf("submitting job: %w", err)
	}

	return printJSON(job)
}

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	jobStr := fs.String("job", "", "job id")
	dbURL := fs.String("database-url", "", "database URL")
	if err := fs.Parse(args); err != nil {
		return err
	}

	jobID, err := uuid.Parse(*jobStr)
	if err != nil {
		return fmt.Errorf("invalid -job: %w", err)
	}

	db, err := openDB(*dbURL)
	if err != nil {
		return err
	}
	defer storage.Close(db)

	jobRepo := storage.NewJobRepository(db)
	job, err := jobRepo.FindByID(context.Background(), jobID)
	if err != nil {
		return fmt.Errorf("fetching job: %w", err)
	}

	return printJSON(job)
}

func runExceptions(args []string) error {
	fs := flag.NewFlagSet("exceptions", flag.ExitOnError)
	electionStr := fs.String("election", "", "election id")
	jobStr := fs.String("job", "", "job id")
	dbURL := fs.String("database-url", "", "database URL")
	if err := fs.Parse(args); err != nil {
		return err
	}

	electionID, err := uuid.Parse(*electionStr)
	if err != nil {
		return fmt.Errorf("invalid -election: %w", err)
	}
	jobID, err := uuid.Parse(*jobStr)
	if err != nil {
		return fmt.Errorf("invalid -job: %w", err)
	}

	db, err := openDB(*dbURL)
	if err != nil {
		return err
	}
	defer storage.Close(db)

	exceptionRepo := storage.NewExceptionRepository(db)
	exceptions, err := exceptionRepo.FindByJobID(context.Background(), electionID, jobID)
	if err != nil {
		return fmt.Errorf("fetching exceptions: %w", err)
	}

	return printJSON(exceptions)
}

func runMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	cmd := fs.String("command", "up", "init, up, down, status, reset")
	dbURL := fs.String("database-url", "", "database URL")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := openDB(*dbURL)
	if err != nil {
		return err
	}
	defer storage.Close(db)

	migrator, err := storage.NewMigrator(db, migrations.FS)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	switch *cmd {
	case "init":
		return migrator.Init(ctx)
	case "up":
		if err := migrator.Init(ctx); err != nil {
			return fmt.Errorf("init failed: %w", err)
		}
		return migrator.Up(ctx)
	case "down":
		return migrator.Down(ctx)
	case "status":
		return migrator.Status(ctx)
	case "reset":
		return migrator.Reset(ctx)
	default:
		return fmt.Errorf("unknown migrate command: %s", *cmd)
	}
}

func runSchedule(args []string) error {
	fs := flag.NewFlagSet("schedule", flag.ExitOnError)
	electionStr := fs.String("election", "", "election id")
	nodeStr := fs.String("node", "", "node id")
	cronExpr := fs.String("cron", "", "cron expression")
	dbURL := fs.String("database-url", "", "database URL")
	if err := fs.Parse(args); err != nil {
		return err
	}

	electionID, nodeID, err := parseElectionNode(*electionStr, *nodeStr)
	if err != nil {
		return err
	}
	if *cronExpr == "" {
		return fmt.Errorf("-cron is required")
	}

	db, err := openDB(*dbURL)
	if err != nil {
		return err
	}
	defer storage.Close(db)

	jobRepo := storage.NewJobRepository(db)

	scheduler := cron.New()
	_, err = scheduler.AddFunc(*cronExpr, func() {
		job, err := jobrunner.SubmitJob(context.Background(), jobRepo, electionID, nodeID, nil, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "scheduled submit failed: %v\n", err)
			return
		}
		fmt.Printf("scheduled job queued: %s\n", job.ID)
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	scheduler.Start()
	fmt.Printf("scheduler running with expression %q, press Ctrl+C to stop\n", *cronExpr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	stopCtx := scheduler.Stop()
	<-stopCtx.Done()
	return nil
}

func parseElectionNode(electionStr, nodeStr string) (uuid.UUID, uuid.UUID, error) {
	electionID, err := uuid.Parse(electionStr)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid -election: %w", err)
	}
	nodeID, err := uuid.Parse(nodeStr)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid -node: %w", err)
	}
	return electionID, nodeID, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
