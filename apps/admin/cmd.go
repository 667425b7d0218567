package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/trezcool/masomodb/core"
	"github.com/trezcool/masomodb/core/bootstrap"
	"github.com/trezcool/masomodb/core/entity"
)

var (
	readPasswordFunc = term.ReadPassword // mockable
	isTerminalFunc   = term.IsTerminal   // mockable

	errHelp            = errors.New("help provided")
	errBootstrapFailed = errors.New("bootstrap failed")
)

type (
	bootstrapper interface {
		Run(ctx context.Context, progress bootstrap.ProgressFunc) (bootstrap.InitializationReport, error)
		GetStatus(ctx context.Context) (bootstrap.Status, error)
		ResetState(ctx context.Context, includeUserData bool) (bootstrap.OperationResult, error)
	}

	accountStore interface {
		Initialize(ctx context.Context, rawURL, key string, opts core.ConnectOptions) error
		Query(ctx context.Context, kind entity.Kind, q core.Query) ([]core.Row, error)
	}
)

type commandLine struct {
	conf   *core.Config
	orch   bootstrapper
	users  accountStore
	openDB func() (*sql.DB, error) // remote Postgres database, for migrations
	out    io.Writer
	now    func() time.Time
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  bootstrap [-json]                   - verify the remote store and seed it")
	fmt.Fprintln(cli.out, "  status [-json]                      - print the migration state")
	fmt.Fprintln(cli.out, "  reset [-include-user-data]          - clear the migration state")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]              - run a goose command on the remote Postgres schema")
	fmt.Fprintln(cli.out, "  token -username USERNAME|EMAIL      - issue an API token for an admin account")
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	bootstrapCmd := cli.newFlagSet("bootstrap")
	bootstrapJSON := bootstrapCmd.Bool("json", false, "Print the report as JSON.")

	statusCmd := cli.newFlagSet("status")
	statusJSON := statusCmd.Bool("json", false, "Print the status as JSON.")

	resetCmd := cli.newFlagSet("reset")
	resetUserData := resetCmd.Bool("include-user-data", false, "Also request deletion of seeded rows (not supported; logged).")

	tokenCmd := cli.newFlagSet("token")
	tokenUname := tokenCmd.String("username", "", "The admin's username or email. The password will be prompted next.")
	tokenTTL := tokenCmd.Duration("ttl", 0, "Token lifetime (defaults to server.jwtExpirationDelta).")

	switch args[1] {
	case "bootstrap":
		if err := bootstrapCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		return cli.bootstrap(ctx, *bootstrapJSON)

	case "status":
		if err := statusCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		return cli.status(ctx, *statusJSON)

	case "reset":
		if err := resetCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		res, err := cli.orch.ResetState(ctx, *resetUserData)
		if err != nil {
			return err
		}
		fmt.Fprintln(cli.out, res.Message)
		return nil

	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *tokenUname == "" {
			tokenCmd.Usage()
			return errHelp
		}
		fmt.Fprint(cli.out, "Enter password:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Fprintln(cli.out)
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			tokenCmd.Usage()
			return errHelp
		}
		token, err := cli.issueToken(ctx, *tokenUname, string(pwd), *tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cli.out, token)
		return nil

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) bootstrap(ctx context.Context, asJSON bool) error {
	interactive := !asJSON && isTerminalFunc(int(os.Stdout.Fd()))
	progress := func(ev bootstrap.ProgressEvent) {
		if asJSON {
			return
		}
		if interactive {
			fmt.Fprintf(cli.out, "\r[%3d%%] %-20s", ev.PercentComplete, ev.StepName)
			return
		}
		fmt.Fprintf(cli.out, "[%3d%%] %s\n", ev.PercentComplete, ev.StepName)
	}

	report, err := cli.orch.Run(ctx, progress)
	if err != nil {
		return err
	}
	if interactive {
		fmt.Fprintln(cli.out)
	}

	if asJSON {
		if err := writeJSON(cli.out, report); err != nil {
			return err
		}
	} else {
		printReport(cli.out, report)
	}
	if !report.Success {
		return errBootstrapFailed
	}
	return nil
}

func printReport(w io.Writer, report bootstrap.InitializationReport) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tOUTCOME\tMESSAGE")
	for _, step := range report.Steps {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", step.Step, step.Outcome, step.Message)
	}
	_ = tw.Flush()

	for _, warning := range report.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
	if report.Success {
		fmt.Fprintf(w, "bootstrap succeeded in %dms\n", report.DurationMs)
	} else {
		fmt.Fprintf(w, "bootstrap failed in %dms: %s\n", report.DurationMs, report.ErrorMessage)
	}
}

func (cli *commandLine) status(ctx context.Context, asJSON bool) error {
	status, err := cli.orch.GetStatus(ctx)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(cli.out, status)
	}

	tw := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "tables verified\t%t\n", status.TablesVerified)
	fmt.Fprintf(tw, "grading seeded\t%t\n", status.GradingSeeded)
	fmt.Fprintf(tw, "default users seeded\t%t\n", status.DefaultUsersSeeded)
	fmt.Fprintf(tw, "sample data seeded\t%t\n", status.SampleDataSeeded)
	fmt.Fprintf(tw, "schema version\t%d/%d\n", status.SchemaVersion, status.CurrentVersion)
	fmt.Fprintf(tw, "completion\t%d%%\n", status.CompletionPercentage)
	return tw.Flush()
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
