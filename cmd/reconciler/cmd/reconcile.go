package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"ledger-reconciliation-service/cmd/reconciler/config"
	"ledger-reconciliation-service/internal/reconciler"
	"ledger-reconciliation-service/internal/reporter"
	"ledger-reconciliation-service/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the reconcile command
var (
	configFile string

	leftFile  string
	rightFile string
	outDir    string

	idCol     string
	amountCol string
	statusCol string
	keepCols  string

	delimiter    string
	fileEncoding string
	decimalComma bool

	amountScale     int
	amountTolerance int64
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile CSV transaction files by identifier",
	Long: `Reconcile compares CSV transaction exports keyed by a transaction
identifier column and writes a report directory containing duplicate,
missing, and mismatch tables plus per-status totals and a run summary.

Two modes are supported:
- Two-file mode: --left and --right name the files, which share one
  column layout given by the column flags.
- Config mode: --config names a JSON file describing any number of
  files, each with its own columns, delimiter, and encoding.

Examples:
  # Two-file mode with default column names
  reconciler reconcile --left ours.csv --right theirs.csv --out report

  # European exports with a cent of tolerance
  reconciler reconcile --left ours.csv --right theirs.csv \
    --delimiter ';' --decimal-comma --amount-tolerance 1

  # Keep extra columns in the mismatch report
  reconciler reconcile --left ours.csv --right theirs.csv \
    --keep-cols merchant,currency

  # Multi-file run from a JSON config
  reconciler reconcile --config run.json`,

	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	// Mode selection flags
	reconcileCmd.Flags().StringVarP(&configFile, "config", "c", "", "path to JSON run configuration")
	reconcileCmd.Flags().StringVarP(&leftFile, "left", "l", "", "path to the left (primary) CSV file")
	reconcileCmd.Flags().StringVarP(&rightFile, "right", "r", "", "path to the right CSV file")
	reconcileCmd.Flags().StringVarP(&outDir, "out", "o", "out", "report output directory")

	// Column flags (two-file mode)
	reconcileCmd.Flags().StringVar(&idCol, "id-col", "transaction_id", "name of the transaction identifier column")
	reconcileCmd.Flags().StringVar(&amountCol, "amount-col", "amount", "name of the amount column")
	reconcileCmd.Flags().StringVar(&statusCol, "status-col", "status", "name of the status column (empty to disable)")
	reconcileCmd.Flags().StringVar(&keepCols, "keep-cols", "", "comma-separated extra columns to carry into reports")

	// Parsing flags (two-file mode)
	reconcileCmd.Flags().StringVar(&delimiter, "delimiter", ",", "CSV field delimiter (single character)")
	reconcileCmd.Flags().StringVar(&fileEncoding, "encoding", "utf-8", "input file encoding")
	reconcileCmd.Flags().BoolVar(&decimalComma, "decimal-comma", false, "treat comma as the decimal separator")

	// Matching flags
	reconcileCmd.Flags().IntVar(&amountScale, "amount-scale", 2, "decimal places amounts are scaled to (0-18)")
	reconcileCmd.Flags().Int64Var(&amountTolerance, "amount-tolerance", 0, "allowed amount difference in scaled units")

	// Bind flags to viper
	viper.BindPFlag("left", reconcileCmd.Flags().Lookup("left"))
	viper.BindPFlag("right", reconcileCmd.Flags().Lookup("right"))
	viper.BindPFlag("out", reconcileCmd.Flags().Lookup("out"))
	viper.BindPFlag("id-col", reconcileCmd.Flags().Lookup("id-col"))
	viper.BindPFlag("amount-col", reconcileCmd.Flags().Lookup("amount-col"))
	viper.BindPFlag("status-col", reconcileCmd.Flags().Lookup("status-col"))
	viper.BindPFlag("keep-cols", reconcileCmd.Flags().Lookup("keep-cols"))
	viper.BindPFlag("delimiter", reconcileCmd.Flags().Lookup("delimiter"))
	viper.BindPFlag("encoding", reconcileCmd.Flags().Lookup("encoding"))
	viper.BindPFlag("decimal-comma", reconcileCmd.Flags().Lookup("decimal-comma"))
	viper.BindPFlag("amount-scale", reconcileCmd.Flags().Lookup("amount-scale"))
	viper.BindPFlag("amount-tolerance", reconcileCmd.Flags().Lookup("amount-tolerance"))
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	// Pull values from viper so environment overrides apply
	leftFile = viper.GetString("left")
	rightFile = viper.GetString("right")
	outDir = viper.GetString("out")
	idCol = viper.GetString("id-col")
	amountCol = viper.GetString("amount-col")
	statusCol = viper.GetString("status-col")
	keepCols = viper.GetString("keep-cols")
	delimiter = viper.GetString("delimiter")
	fileEncoding = viper.GetString("encoding")
	decimalComma = viper.GetBool("decimal-comma")
	amountScale = viper.GetInt("amount-scale")
	amountTolerance = viper.GetInt64("amount-tolerance")

	if configFile != "" {
		if leftFile != "" || rightFile != "" {
			return fmt.Errorf("--config cannot be combined with --left/--right")
		}
		return validateFileExists(configFile, "config file")
	}

	if leftFile == "" || rightFile == "" {
		return fmt.Errorf("either --config or both --left and --right are required")
	}

	if err := validateFileExists(leftFile, "left file"); err != nil {
		return err
	}
	if err := validateFileExists(rightFile, "right file"); err != nil {
		return err
	}

	if amountScale < 0 || amountScale > 18 {
		return fmt.Errorf("amount scale must be between 0 and 18")
	}
	if amountTolerance < 0 {
		return fmt.Errorf("amount tolerance cannot be negative")
	}

	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return fmt.Errorf("%s path cannot be empty", description)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s does not exist: %s", description, filePath)
	}
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", description, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file: %s", description, filePath)
	}

	return nil
}

func buildRun() (*config.Run, error) {
	if configFile != "" {
		return config.Load(configFile)
	}
	return config.TwoFile(&config.TwoFileParams{
		Left:            leftFile,
		Right:           rightFile,
		OutDir:          outDir,
		IDCol:           idCol,
		AmountCol:       amountCol,
		StatusCol:       statusCol,
		KeepCols:        keepCols,
		Delimiter:       delimiter,
		Encoding:        fileEncoding,
		DecimalComma:    decimalComma,
		AmountScale:     amountScale,
		AmountTolerance: amountTolerance,
	})
}

func runReconcile(cmd *cobra.Command, args []string) error {
	configureLogging()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler := NewCLIErrorHandler()

	run, err := buildRun()
	if err != nil {
		os.Exit(handler.HandleError(err))
	}

	orchestrator, err := reconciler.NewOrchestrator(run.Config, nil)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}

	result, err := orchestrator.Run(ctx, run.Config)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}

	writer := reporter.NewWriter(run.OutDir, nil)
	summary, err := writer.WriteRun(result, reporter.Settings{
		AmountScale:           run.AmountScale,
		AmountToleranceScaled: run.Config.AmountTolerance,
	})
	if err != nil {
		os.Exit(handler.HandleError(err))
	}

	printRunSummary(summary)
	return nil
}

func configureLogging() {
	level := logger.WarnLevel
	if viper.GetBool("verbose") {
		level = logger.DebugLevel
	}

	log, err := logger.NewLogger(&logger.Config{
		Level:  level,
		Format: logger.TextFormat,
		Output: os.Stderr,
	})
	if err != nil {
		// fall back to the default global logger
		return
	}
	logger.SetGlobalLogger(log)
}

func printRunSummary(summary *reporter.Summary) {
	fmt.Printf("Reconciliation complete in %.2fs\n", summary.ElapsedSeconds)
	fmt.Printf("Report written to %s\n", summary.OutDir)
	for _, name := range sortedKeys(summary.Files) {
		fs := summary.Files[name]
		fmt.Printf("  %s: %d rows (%d bad id, %d bad amount)\n",
			name, fs.RowsTotal, fs.RowsBadID, fs.RowsBadAmount)
	}
	for _, pair := range sortedKeys(summary.Pairs) {
		ps := summary.Pairs[pair]
		fmt.Printf("  %s: %d mismatches, %d missing in %s, %d missing in other\n",
			pair, ps.Mismatches, ps.MissingInBase, summary.Primary, ps.MissingInOther)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
