package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/FACorreiaa/pennywise/internal/domain/credentials"
	"github.com/FACorreiaa/pennywise/internal/domain/import/acquirer"
	"github.com/FACorreiaa/pennywise/internal/domain/import/pdfdoc"
	importservice "github.com/FACorreiaa/pennywise/internal/domain/import/service"
	"github.com/FACorreiaa/pennywise/internal/domain/ledger"
)

// flags shared by every subcommand.
type flags struct {
	password string
	dob      string
	mobile   string
	account  string
	pan      string
	bank     string
	verbose  bool
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	cmd := &cobra.Command{
		Use:   "statementctl",
		Short: "Parse and categorize bank statements locally",
		Long: `statementctl runs PDF, CSV and XLSX bank statements through password
resolution, parsing, normalization and deduplication without a database.`,
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&f.password, "password", "", "PDF password to try first")
	pf.StringVar(&f.dob, "dob", "", "date of birth used to derive PDF passwords (YYYY-MM-DD or DD/MM/YYYY)")
	pf.StringVar(&f.mobile, "mobile", "", "mobile number used to derive PDF passwords")
	pf.StringVar(&f.account, "account", "", "account number used to derive PDF passwords")
	pf.StringVar(&f.pan, "pan", "", "PAN used to derive PDF passwords")
	pf.StringVar(&f.bank, "bank", "", "issuing bank when it cannot be detected")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "log pipeline progress")

	cmd.AddCommand(newParseCmd(f), newSummaryCmd(f))
	return cmd
}

// session is one in-memory run of the pipeline.
type session struct {
	owner  uuid.UUID
	store  *ledger.MemoryStore
	svc    *importservice.Service
	hints  credentials.PasswordHints
	bank   string
	logger *slog.Logger
}

func newSession(f *flags, stderr io.Writer) (*session, error) {
	hints, err := credentials.NewPasswordHints(f.password, f.dob, f.mobile, f.account, f.pan)
	if err != nil {
		return nil, err
	}

	level := slog.LevelWarn
	if f.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	store := ledger.NewMemoryStore()
	svc := importservice.NewService(newMemoryJobs(), ledger.NewReconciler(store, logger, nil), logger).
		WithPDFBackend(pdfdoc.Reader{}).
		WithWorkers(1)

	return &session{
		owner:  uuid.New(),
		store:  store,
		svc:    svc,
		hints:  hints,
		bank:   f.bank,
		logger: logger,
	}, nil
}

// ingest loads every file into the session ledger and reports per-file
// results on w. It fails only when no file could be read at all.
func (s *session) ingest(ctx context.Context, paths []string, w io.Writer) error {
	var ok int
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(w, "%s: %v\n", path, err)
			continue
		}

		doc, err := acquirer.FromUpload(filepath.Base(path), data, s.bank)
		if err != nil {
			fmt.Fprintf(w, "%s: %v\n", path, err)
			continue
		}

		res, err := s.svc.Upload(ctx, s.owner, doc, s.hints)
		if err != nil {
			fmt.Fprintf(w, "%s: %v\n", path, err)
			continue
		}
		ok++
		fmt.Fprintf(w, "%s: %d transactions, %d new, %d duplicates, %d rows skipped\n",
			path, res.TotalTransactions, res.Inserted, res.Duplicates, res.RowsSkipped)
	}

	if ok == 0 {
		return fmt.Errorf("none of the %d files could be imported", len(paths))
	}
	return nil
}

func (s *session) transactions(ctx context.Context) ([]ledger.Transaction, error) {
	return s.store.List(ctx, s.owner, s.store.Len(s.owner), 0)
}
