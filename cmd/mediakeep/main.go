package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"mediakeep/internal/app"
	"mediakeep/internal/config"
	"mediakeep/internal/encryption"
	"mediakeep/internal/media"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and wires the application. The caller must defer
// a.Close().
func newApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := readConfig()
	if err != nil {
		return nil, err
	}
	a, err := app.New(cmd.Context(), cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing: %w", err)
	}
	return a, nil
}

func readConfig() (*config.Config, error) {
	paths, err := app.DefaultPaths()
	if err != nil {
		return nil, fmt.Errorf("resolving default paths: %w", err)
	}
	cfg, err := config.ReadFromFile(paths.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// confirm asks for a yes/no answer on the terminal. Non-interactive stdin
// counts as a refusal so scripted runs must pass --yes explicitly.
func confirm(prompt string) bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintln(os.Stderr, "stdin is not a terminal; pass --yes to proceed")
		return false
	}
	fmt.Printf("%s [y/N] ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleLight)
	return tw
}

var rootCmd = &cobra.Command{
	Use:   "mediakeep",
	Short: "Personal media library maintenance",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init [SOURCE_DIR]",
	Short: "Initialize configuration",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := app.DefaultPaths()
		if err != nil {
			return fmt.Errorf("resolving default paths: %w", err)
		}

		source := "."
		if len(args) > 0 {
			source = args[0]
		}
		absSource, err := filepath.Abs(source)
		if err != nil {
			return fmt.Errorf("resolving source: %w", err)
		}

		cfg := config.NewConfig(absSource, paths.BaseDir)
		if err := config.Init(paths.ConfigPath, cfg); err != nil {
			return fmt.Errorf("initializing config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", paths.ConfigPath)
		fmt.Printf("Source:  %s\n", cfg.SourceRoot)
		fmt.Printf("Archive: %s\n", cfg.ArchiveRoot)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := app.DefaultPaths()
		if err != nil {
			return fmt.Errorf("resolving default paths: %w", err)
		}
		cfg, err := config.ReadFromFile(paths.ConfigPath)
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", paths.ConfigPath)
		fmt.Printf("Source root:   %s\n", cfg.SourceRoot)
		fmt.Printf("Dest root:     %s\n", cfg.DestRoot)
		fmt.Printf("Archive root:  %s\n", cfg.ArchiveRoot)
		fmt.Printf("Home dir:      %s\n", cfg.HomeDir)
		fmt.Printf("Log dir:       %s\n", cfg.LogDir)
		fmt.Printf("Excluded:      %s\n", strings.Join(cfg.Excluded, ", "))
		fmt.Printf("JPEG quality:  %d\n", cfg.JPEGQuality)
		fmt.Printf("Tracking file: %s\n", cfg.Tracking.Path)
		if cfg.HashCache.Enabled {
			fmt.Printf("Hash cache:    %s\n", cfg.HashCache.Path)
		} else {
			fmt.Println("Hash cache:    disabled")
		}
		if cfg.Mirror.Enabled() {
			fmt.Printf("Mirror:        %s\n", cfg.Mirror.Type)
		} else {
			fmt.Println("Mirror:        disabled")
		}
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Generate the mirror encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}
		if !cfg.Encryption.Enabled() {
			return fmt.Errorf("encryption is not configured: set encryption.recipient_path and encryption.identity_path")
		}

		enc := encryption.NewAgeEncryptor(cfg.Encryption)
		if enc.IsConfigured() {
			return fmt.Errorf("recipient file already exists: %s", cfg.Encryption.RecipientPath)
		}
		if err := enc.Setup(); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}

		fmt.Printf("Recipient written to %s\n", cfg.Encryption.RecipientPath)
		fmt.Printf("Identity written to %s (keep this file safe)\n", cfg.Encryption.IdentityPath)
		return nil
	},
}

// scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the library and report what needs conversion",
	RunE: func(cmd *cobra.Command, args []string) error {
		byYear, _ := cmd.Flags().GetBool("by-year")
		organization, _ := cmd.Flags().GetBool("organization")
		nonMedia, _ := cmd.Flags().GetBool("non-media")

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		switch {
		case byYear:
			return runYearReport(cmd, a)
		case organization:
			return runOrganizationReport(cmd, a)
		case nonMedia:
			return runNonMediaReport(cmd, a)
		}

		sum, err := a.Service().ScanLibrary(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Scanned %d media files (%s)\n\n", sum.Total, humanize.Bytes(uint64(sum.TotalSize)))

		tw := newTable()
		tw.AppendHeader(table.Row{"Category", "Files", "Size"})
		tw.AppendRow(table.Row{"HEIC", len(sum.HEIC), humanize.Bytes(uint64(sum.HEICSize))})
		tw.AppendRow(table.Row{"Needs conversion", len(sum.NeedsConversion), humanize.Bytes(uint64(sum.ConversionSize))})
		tw.AppendRow(table.Row{"Already JPEG", len(sum.AlreadyJPEG), ""})
		tw.AppendRow(table.Row{"Videos", len(sum.Videos), ""})
		tw.Render()

		fmt.Println()
		tw = newTable()
		tw.AppendHeader(table.Row{"Extension", "Count"})
		exts := make([]string, 0, len(sum.ByExtension))
		for ext := range sum.ByExtension {
			exts = append(exts, ext)
		}
		sort.Strings(exts)
		for _, ext := range exts {
			tw.AppendRow(table.Row{ext, sum.ByExtension[ext]})
		}
		tw.Render()

		path, err := a.Reports().ScanSummary(sum)
		if err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		fmt.Printf("\nReport written to %s\n", path)
		return nil
	},
}

func runYearReport(cmd *cobra.Command, a *app.App) error {
	report, err := a.Service().ReportByYear(cmd.Context())
	if err != nil {
		return err
	}

	tw := newTable()
	tw.AppendHeader(table.Row{"Year", "Extension", "Count"})
	for _, year := range report.Years() {
		exts := make([]string, 0, len(report.Counts[year]))
		for ext := range report.Counts[year] {
			exts = append(exts, ext)
		}
		sort.Strings(exts)
		for _, ext := range exts {
			tw.AppendRow(table.Row{year, ext, report.Counts[year][ext]})
		}
	}
	tw.Render()

	if len(report.UnknownFiles) > 0 {
		fmt.Printf("\n%d file(s) with no determinable year; see the report for the list.\n", len(report.UnknownFiles))
	}

	path, err := a.Reports().YearReport(report)
	if err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	fmt.Printf("Report written to %s\n", path)
	return nil
}

func runOrganizationReport(cmd *cobra.Command, a *app.App) error {
	report, err := a.Service().AnalyzeOrganization(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("%d of %d files organized (%.1f%%)\n\n",
		report.OrganizedFiles, report.TotalFiles, report.Percentage())

	tw := newTable()
	tw.AppendHeader(table.Row{"Folder", "Files"})
	folders := make([]string, 0, len(report.FolderCounts))
	for f := range report.FolderCounts {
		folders = append(folders, f)
	}
	sort.Strings(folders)
	for _, f := range folders {
		tw.AppendRow(table.Row{f, report.FolderCounts[f]})
	}
	tw.Render()

	if len(report.UnorganizedFiles) > 0 {
		fmt.Printf("\nUnorganized files (%d):\n", len(report.UnorganizedFiles))
		for _, p := range report.UnorganizedFiles {
			fmt.Printf("  %s\n", p)
		}
	}
	return nil
}

func runNonMediaReport(cmd *cobra.Command, a *app.App) error {
	groups, err := a.Service().NonMediaFiles(cmd.Context())
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		fmt.Println("No non-media files found.")
		return nil
	}

	exts := make([]string, 0, len(groups))
	for ext := range groups {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	for _, ext := range exts {
		fmt.Printf("%s (%d):\n", ext, len(groups[ext]))
		for _, p := range groups[ext] {
			fmt.Printf("  %s\n", p)
		}
	}
	return nil
}

// organize command
var organizeCmd = &cobra.Command{
	Use:   "organize",
	Short: "Move files into YYYY/MM folders by capture date",
	RunE: func(cmd *cobra.Command, args []string) error {
		allowMtime, _ := cmd.Flags().GetBool("allow-mtime")
		yes, _ := cmd.Flags().GetBool("yes")

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if !yes && !confirm(fmt.Sprintf("Organize files under %s?", a.Config().SourceRoot)) {
			fmt.Println("Aborted.")
			return nil
		}

		outcome, err := a.Service().OrganizeByDate(cmd.Context(), allowMtime)
		if err != nil {
			return err
		}

		fmt.Printf("Moved %d file(s), skipped %d without a date, %d collision(s), %d error(s)\n",
			len(outcome.Moved), len(outcome.SkippedNoDate), len(outcome.Collisions), len(outcome.Errors))
		if len(outcome.SkippedNoDate) > 0 && !allowMtime {
			fmt.Println("Re-run with --allow-mtime to file the skipped files by modification time.")
		}

		path, err := a.Reports().OrganizeReport(outcome)
		if err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		fmt.Printf("Report written to %s\n", path)
		return nil
	},
}

// convert command
var convertCmd = &cobra.Command{
	Use:   "convert [FILE]",
	Short: "Convert HEIC/PNG/TIFF images to JPEG",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		year, _ := cmd.Flags().GetString("year")
		month, _ := cmd.Flags().GetString("month")

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if len(args) == 1 {
			result, err := a.Service().ConvertFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !result.Success {
				return fmt.Errorf("conversion failed: %s", result.Reason)
			}
			marker := ""
			if !result.ExifPreserved {
				marker = " (metadata not preserved)"
			}
			fmt.Printf("Converted to %s (%s)%s\n", result.Dest, humanize.Bytes(uint64(result.DestSize)), marker)
			return nil
		}

		var bar *progressbar.ProgressBar
		opts := media.ConvertOptions{
			DryRun: dryRun,
			Year:   year,
			Month:  month,
			Progress: func(done, total int) {
				if bar == nil {
					bar = progressbar.Default(int64(total), "converting")
				}
				bar.Set(done)
			},
		}

		outcome, err := a.Service().ConvertAll(cmd.Context(), opts)
		if err != nil {
			return err
		}

		if dryRun {
			fmt.Printf("Would convert %d file(s):\n", len(outcome.Planned))
			for _, p := range outcome.Planned {
				fmt.Printf("  %s -> %s\n", p.Source, p.Dest)
			}
			return nil
		}

		fmt.Printf("\nConverted %d file(s), %d with metadata preserved, %d failed\n",
			len(outcome.Converted), outcome.Preserved(), len(outcome.Failed))
		for _, f := range outcome.Failed {
			fmt.Printf("  FAILED %s: %s\n", f.Source, f.Reason)
		}

		path, err := a.Reports().ConversionLog(outcome)
		if err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		fmt.Printf("Report written to %s\n", path)
		return nil
	},
}

// dupes command
var dupesCmd = &cobra.Command{
	Use:   "dupes",
	Short: "Find byte-identical duplicate files",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Service().FindDuplicates(cmd.Context())
		if err != nil {
			return err
		}

		if len(report.Groups) == 0 {
			fmt.Printf("No duplicates found (%d candidate group(s) checked).\n", report.CandidateGroups)
			return nil
		}

		var wasted int64
		tw := newTable()
		tw.AppendHeader(table.Row{"Hash", "Copies", "Size"})
		for _, g := range report.Groups {
			tw.AppendRow(table.Row{g.Hash[:12], len(g.Files), humanize.Bytes(uint64(g.Size))})
			wasted += g.Size * int64(len(g.Files)-1)
		}
		tw.Render()
		fmt.Printf("\n%d duplicate group(s), %s recoverable\n", len(report.Groups), humanize.Bytes(uint64(wasted)))

		path, err := a.Reports().DuplicateReport(report)
		if err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		fmt.Printf("Report written to %s\n", path)
		return nil
	},
}

// reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Compare HEIC originals against converted JPEGs",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		summary, err := a.Service().Reconcile(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("HEIC originals:    %d\n", summary.TotalHEIC)
		fmt.Printf("Converted pairs:   %d\n", len(summary.Pairs))
		fmt.Printf("Ready to archive:  %d\n", summary.ReadyForArchive)
		fmt.Printf("Already archived:  %d\n", summary.AlreadyArchived)
		fmt.Printf("Unconverted:       %d\n", len(summary.Unconverted))
		fmt.Printf("Orphaned JPEGs:    %d\n", len(summary.OrphanedJPEG))

		path, err := a.Reports().ReconcileReport(summary)
		if err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		fmt.Printf("\nReport written to %s\n", path)
		return nil
	},
}

// archive command
var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Move converted HEIC originals into the archive tree",
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		yes, _ := cmd.Flags().GetBool("yes")

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if !dryRun && !yes && !confirm(fmt.Sprintf("Archive converted originals to %s?", a.Config().ArchiveRoot)) {
			fmt.Println("Aborted.")
			return nil
		}

		outcome, err := a.Service().ArchiveConverted(cmd.Context(), dryRun)
		if err != nil {
			return err
		}

		if dryRun {
			fmt.Printf("Would archive %d file(s):\n", len(outcome.Planned))
			for _, f := range outcome.Planned {
				fmt.Printf("  %s -> %s\n", f.Source, f.ArchivePath)
			}
			return nil
		}

		mirrored := 0
		for _, f := range outcome.Archived {
			if f.Mirrored {
				mirrored++
			}
		}
		fmt.Printf("Archived %d file(s), %d error(s)\n", len(outcome.Archived), len(outcome.Errors))
		if a.Config().Mirror.Enabled() {
			fmt.Printf("Mirrored %d of %d\n", mirrored, len(outcome.Archived))
		}
		for _, e := range outcome.Errors {
			fmt.Printf("  FAILED %s: %s\n", e.Path, e.Err)
		}

		path, err := a.Reports().ArchiveReport(outcome, dryRun)
		if err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		fmt.Printf("Report written to %s\n", path)
		return nil
	},
}

// restore command
var restoreCmd = &cobra.Command{
	Use:   "restore FILENAME",
	Short: "Restore an archived original to its source location",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		restored, err := a.Service().RestoreFromArchive(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Restored to %s\n", restored)
		return nil
	},
}

// mirror command
var mirrorCmd = &cobra.Command{
	Use:   "mirror",
	Short: "Work with the offsite archive mirror",
}

var mirrorFetchCmd = &cobra.Command{
	Use:   "fetch KEY [DEST]",
	Short: "Download one archived file from the mirror",
	Long: "KEY is the archive-relative path (as shown in the archive report). " +
		"Encrypted payloads are decrypted with the configured identity file.",
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if a.Mirror() == nil {
			return fmt.Errorf("no mirror configured")
		}

		key := args[0]
		dest := filepath.Base(key)
		if len(args) == 2 {
			dest = args[1]
		}

		f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
		if err != nil {
			return fmt.Errorf("creating %s: %w", dest, err)
		}
		if err := media.FetchFromMirror(cmd.Context(), a.Mirror(), a.Encryptor(), key, f); err != nil {
			f.Close()
			os.Remove(dest)
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Printf("Fetched %s to %s\n", key, dest)
		return nil
	},
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show tracking state and any inconsistencies",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		roots := a.Service().Roots()
		fmt.Printf("Source:  %s\n", roots.Source)
		fmt.Printf("Dest:    %s\n", roots.Dest)
		fmt.Printf("Archive: %s\n", roots.Archive)

		var originalBytes int64
		entries := a.Entries()
		for _, e := range entries {
			originalBytes += e.OriginalSize
		}
		fmt.Printf("\nArchived originals tracked: %d (%s)\n", len(entries), humanize.Bytes(uint64(originalBytes)))

		desyncs := a.Desyncs()
		if len(desyncs) > 0 {
			fmt.Printf("\nWARNING: %d tracking entr(ies) out of sync with the archive:\n", len(desyncs))
			for _, d := range desyncs {
				switch {
				case d.Confirmed:
					fmt.Printf("  %s (recorded as archived, archive file missing)\n", d.Original)
				case d.ArchiveExists:
					fmt.Printf("  %s (interrupted run, archive file present)\n", d.Original)
				default:
					fmt.Printf("  %s (interrupted run, archive file missing)\n", d.Original)
				}
			}
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configKeysCmd)
	rootCmd.AddCommand(configCmd)

	scanCmd.Flags().Bool("by-year", false, "Report file counts per year")
	scanCmd.Flags().Bool("organization", false, "Report how much of the tree is date-organized")
	scanCmd.Flags().Bool("non-media", false, "List files outside the known media set")
	rootCmd.AddCommand(scanCmd)

	organizeCmd.Flags().Bool("allow-mtime", false, "Use file modification time when no capture date is embedded")
	organizeCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	rootCmd.AddCommand(organizeCmd)

	convertCmd.Flags().Bool("dry-run", false, "List planned conversions without converting")
	convertCmd.Flags().String("year", "", "Restrict to a YYYY folder (requires --month)")
	convertCmd.Flags().String("month", "", "Restrict to an MM folder (requires --year)")
	rootCmd.AddCommand(convertCmd)

	rootCmd.AddCommand(dupesCmd)
	rootCmd.AddCommand(reconcileCmd)

	archiveCmd.Flags().Bool("dry-run", false, "List what would be archived without moving")
	archiveCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	rootCmd.AddCommand(archiveCmd)

	rootCmd.AddCommand(restoreCmd)

	mirrorCmd.AddCommand(mirrorFetchCmd)
	rootCmd.AddCommand(mirrorCmd)

	rootCmd.AddCommand(statusCmd)
}
