package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-class-console/internal/models"
	"github.com/noah-isme/sma-class-console/internal/service"
	appErrors "github.com/noah-isme/sma-class-console/pkg/errors"
	"github.com/noah-isme/sma-class-console/pkg/upstream"
)

// entry is one class in the import file.
type entry struct {
	Class models.ClassDraft          `json:"class"`
	Slots []models.ScheduleSlotDraft `json:"slots"`
}

type config struct {
	Classes []entry `json:"classes"`
}

type outcome struct {
	Name     string
	ClassID  int64
	Created  int
	Total    int
	Code     string
	Message  string
	Duration time.Duration
}

func main() {
	var (
		baseURL  string
		token    string
		path     string
		schoolID int64
		dryRun   bool
		timeout  time.Duration
	)

	flag.StringVar(&baseURL, "base", "http://localhost:8080/api", "School backend base URL")
	flag.StringVar(&token, "token", os.Getenv("UPSTREAM_TOKEN"), "Bearer token of a principal (defaults to $UPSTREAM_TOKEN)")
	flag.StringVar(&path, "file", "classes.json", "Path to JSON file with {\"classes\": [{\"class\": {...}, \"slots\": [...]}]}")
	flag.Int64Var(&schoolID, "school-id", 0, "School id; looked up from the token's principal when zero")
	flag.BoolVar(&dryRun, "dry-run", false, "Validate only, do not submit")
	flag.DurationVar(&timeout, "timeout", 15*time.Second, "HTTP client timeout")
	flag.Parse()

	if strings.TrimSpace(token) == "" {
		log.Fatal("a bearer token is required (-token or UPSTREAM_TOKEN)")
	}

	entries, err := loadEntries(path)
	if err != nil {
		log.Fatalf("failed to load classes: %v", err)
	}

	logr, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx := context.Background()
	client := upstream.New(baseURL, timeout, upstream.WithLogger(logr))
	session := upstream.NewSession(token)

	if schoolID == 0 && !dryRun {
		principal, err := client.Me(ctx, session)
		if err != nil {
			log.Fatalf("failed to resolve school: %v", err)
		}
		schoolID = principal.SchoolID
	}

	validator := service.NewDraftValidator(false)
	submitter := service.NewSubmissionService(client, validator, nil, logr, 4)

	outcomes := make([]outcome, 0, len(entries))
	failed := 0
	for _, e := range entries {
		res := run(ctx, submitter, validator, session, schoolID, e, dryRun)
		if res.Code != "" {
			failed++
		}
		outcomes = append(outcomes, res)
		if !session.Active() {
			log.Print("session expired, stopping import")
			break
		}
	}

	printReport(outcomes)
	fmt.Printf("Classes: %d, Failed: %d\n", len(outcomes), failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func loadEntries(path string) ([]entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Classes) == 0 {
		return nil, fmt.Errorf("no classes defined in %s", path)
	}
	return cfg.Classes, nil
}

func run(ctx context.Context, submitter *service.SubmissionService, validator *service.DraftValidator, session *upstream.Session, schoolID int64, e entry, dryRun bool) outcome {
	res := outcome{Name: e.Class.Name, Total: len(e.Slots)}
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	if dryRun {
		if result := validator.Validate(e.Class, e.Slots); !result.Valid {
			res.Code = string(result.Kind)
			res.Message = result.Message
		}
		return res
	}

	submitted, err := submitter.Submit(ctx, session, service.SubmissionRequest{
		Mode:     models.DraftModeCreate,
		SchoolID: schoolID,
		Class:    e.Class,
		Slots:    e.Slots,
	})
	if submitted != nil {
		res.ClassID = submitted.ClassID
		res.Created = submitted.SlotCreated
	}
	if err != nil {
		appErr := appErrors.FromError(err)
		res.Code = appErr.Code
		res.Message = appErr.Message
	}
	return res
}

func printReport(outcomes []outcome) {
	fmt.Printf("%-24s %-8s %-9s %-26s %-10s\n", "CLASS", "ID", "SLOTS", "RESULT", "DURATION")
	for _, o := range outcomes {
		result := "ok"
		if o.Code != "" {
			result = o.Code
		}
		fmt.Printf("%-24s %-8d %3d/%-5d %-26s %-10s\n", truncate(o.Name, 24), o.ClassID, o.Created, o.Total, result, o.Duration.Round(time.Millisecond))
		if o.Message != "" {
			fmt.Printf("    %s\n", o.Message)
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
