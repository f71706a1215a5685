package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/NHSDigital/ndr-upload-client/internal/batch"
	"github.com/NHSDigital/ndr-upload-client/internal/config"
	"github.com/NHSDigital/ndr-upload-client/internal/gateway"
	"github.com/NHSDigital/ndr-upload-client/internal/journey"
	"github.com/NHSDigital/ndr-upload-client/internal/lgname"
	"github.com/NHSDigital/ndr-upload-client/internal/model"
	"github.com/NHSDigital/ndr-upload-client/internal/pdfkit"
	"github.com/NHSDigital/ndr-upload-client/internal/uploader"
	"github.com/NHSDigital/ndr-upload-client/internal/validate"
)

var (
	patientNHSNumber string
	patientName      string
	patientDOB       string
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "ndrctl: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ndrctl",
		Short: "Upload and manage digital patient records",
		Long: `ndrctl drives the digital patient record gateway: it validates and uploads
Lloyd George record files, views and downloads stored records, and deletes them.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&patientNHSNumber, "nhs-number", "", "Verified patient NHS number (10 digits)")
	cmd.PersistentFlags().StringVar(&patientName, "patient-name", "", "Verified patient full name")
	cmd.PersistentFlags().StringVar(&patientDOB, "dob", "", "Verified patient date of birth (DD-MM-YYYY)")
	cmd.AddCommand(
		newUploadCmd(),
		newViewCmd(),
		newDownloadCmd(),
		newDeleteCmd(),
	)
	return cmd
}

// app bundles the wired components behind each command.
type app struct {
	cfg    *config.Config
	client *gateway.Client
	up     *uploader.Uploader
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	client, err := gateway.NewClient(gateway.ClientConfig{
		BaseURL:   cfg.GatewayURL,
		AuthToken: cfg.AuthToken,
		Timeout:   cfg.RequestTimeout,
	})
	if err != nil {
		return nil, err
	}

	up := uploader.New(client, uploader.Options{
		MaxAttempts:  cfg.MaxAttempts,
		PollInterval: cfg.PollInterval,
		PollCeiling:  cfg.PollCeiling,
		Observer:     logDocumentProgress,
	})

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr)
	}
	return &app{cfg: cfg, client: client, up: up}, nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	slog.Info("metrics endpoint listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("metrics endpoint failed", "error", err)
	}
}

// progressMu guards lastLoggedProgress: the orchestrator invokes the
// observer from one goroutine per document.
var (
	progressMu         sync.Mutex
	lastLoggedProgress = map[string]int{}
)

// logDocumentProgress reports document transitions, throttling byte-level
// progress to 10% steps to keep the log readable.
func logDocumentProgress(doc model.UploadDocument) {
	if doc.State == model.DocStateUploading && doc.Progress > 0 {
		progressMu.Lock()
		skip := doc.Progress-lastLoggedProgress[doc.ID] < 10 && doc.Progress != 100
		if !skip {
			lastLoggedProgress[doc.ID] = doc.Progress
		}
		progressMu.Unlock()
		if skip {
			return
		}
		slog.Info("uploading", "filename", doc.Filename, "progress", doc.Progress)
		return
	}
	slog.Info("document state changed", "filename", doc.Filename, "state", doc.State)
}

func parsePatient() (model.PatientDetails, error) {
	if patientNHSNumber == "" || patientName == "" || patientDOB == "" {
		return model.PatientDetails{}, fmt.Errorf("--nhs-number, --patient-name and --dob are required")
	}
	dob, err := time.Parse("02-01-2006", patientDOB)
	if err != nil {
		return model.PatientDetails{}, fmt.Errorf("invalid --dob %q, expected DD-MM-YYYY", patientDOB)
	}
	names := strings.Fields(patientName)
	if len(names) < 2 {
		return model.PatientDetails{}, fmt.Errorf("--patient-name must include given and family names")
	}
	return model.PatientDetails{
		NHSNumber:  patientNHSNumber,
		GivenNames: names[:len(names)-1],
		FamilyName: names[len(names)-1],
		BirthDate:  dob,
	}, nil
}

func newUploadCmd() *cobra.Command {
	var docTypeFlag string
	var existingCount int
	cmd := &cobra.Command{
		Use:   "upload [file...]",
		Short: "Validate and upload record files for a verified patient",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			patient, err := parsePatient()
			if err != nil {
				return err
			}
			docType, err := parseDocType(docTypeFlag)
			if err != nil {
				return err
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.up.Tracker().Wait(ctx)

			ctrl, err := journey.New(journey.Config{
				Patient:       patient,
				Checker:       validate.New(pdfkit.NewInspector(), a.cfg.MaxFileSize),
				Merger:        pdfkit.NewMerger(),
				Orch:          journey.NewOrchestrator(a.up),
				WorkDir:       a.cfg.WorkDir,
				ExistingCount: existingCount,
			})
			if err != nil {
				return err
			}
			defer ctrl.Close()

			return runUploadJourney(ctx, ctrl, args, docType)
		},
	}
	cmd.Flags().StringVar(&docTypeFlag, "doc-type", "lg", "Document type: lg (Lloyd George) or arf")
	cmd.Flags().IntVar(&existingCount, "existing-count", 0, "Number of documents already stored when appending to an existing record")
	return cmd
}

func runUploadJourney(ctx context.Context, ctrl *journey.Controller, paths []string, docType model.DocType) error {
	files := make([]batch.FileMeta, 0, len(paths))
	for _, p := range paths {
		meta, err := fileMetaFor(p)
		if err != nil {
			return err
		}
		files = append(files, meta)
	}
	if _, err := ctrl.AddFiles(files, docType); err != nil {
		return err
	}

	if err := ctrl.Submit(); err != nil {
		if ctrl.Stage() == journey.StageFileErrors {
			for _, doc := range ctrl.Selection().All() {
				if doc.Issue != nil {
					fmt.Fprintf(os.Stderr, "  %s: %s\n", doc.Filename, doc.Issue.Message)
				}
			}
		}
		return err
	}

	// Without an ordering screen, order by the index in each filename.
	if ctrl.Stage() == journey.StageOrder {
		ctrl.Selection().AutoAssign(docType, fileIndex)
		if err := ctrl.ConfirmOrder(); err != nil {
			return err
		}
	}

	if err := ctrl.Upload(ctx); err != nil {
		switch ctrl.Stage() {
		case journey.StageInfected:
			fmt.Fprintln(os.Stderr, "Upload abandoned: a virus was detected in the following files:")
			for _, name := range ctrl.InfectedFiles() {
				fmt.Fprintf(os.Stderr, "  %s\n", name)
			}
		case journey.StageSessionExpired:
			fmt.Fprintln(os.Stderr, "Your session has expired. Sign in again and restart the upload.")
		}
		return err
	}

	if !ctrl.VerifyComplete() {
		return fmt.Errorf("upload reported success but not every document settled")
	}
	fmt.Println("Record uploaded successfully.")
	return nil
}

// fileMetaFor stats a selected file and sniffs its content type, so ARF
// attachments that are not PDFs are reported with their real type.
func fileMetaFor(path string) (batch.FileMeta, error) {
	info, err := os.Stat(path)
	if err != nil {
		return batch.FileMeta{}, fmt.Errorf("reading %s: %w", path, err)
	}
	contentType := "application/octet-stream"
	if mt, err := mimetype.DetectFile(path); err == nil {
		contentType = mt.String()
	}
	return batch.FileMeta{
		Path:        path,
		Filename:    filepath.Base(path),
		Size:        info.Size(),
		ContentType: contentType,
	}, nil
}

func fileIndex(doc *model.UploadDocument) int {
	// Unparseable names fall back to selection order; those were already
	// rejected during validation for Lloyd George batches.
	parts, err := lgname.Parse(doc.Filename)
	if err != nil {
		return 0
	}
	return parts.Index
}

func newViewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Fetch the viewing URL for a patient's stored record",
		RunE: func(cmd *cobra.Command, args []string) error {
			if patientNHSNumber == "" {
				return fmt.Errorf("--nhs-number is required")
			}
			a, err := newApp()
			if err != nil {
				return err
			}
			result, err := a.client.Stitch(cmd.Context(), patientNHSNumber)
			if err != nil {
				return err
			}
			fmt.Printf("Record URL:   %s\n", result.PresignedURL)
			fmt.Printf("Parts:        %d\n", result.NumberOfFiles)
			fmt.Printf("Size:         %d bytes\n", result.TotalFileSizeInBytes)
			fmt.Printf("Last updated: %s\n", result.LastUpdated.Format(time.RFC3339))
			return nil
		},
	}
	return cmd
}

func newDownloadCmd() *cobra.Command {
	var output string
	var docTypeFlags []string
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download a patient's stored records as a zip bundle",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if patientNHSNumber == "" {
				return fmt.Errorf("--nhs-number is required")
			}
			docTypes := make([]model.DocType, 0, len(docTypeFlags))
			for _, f := range docTypeFlags {
				dt, err := parseDocType(f)
				if err != nil {
					return err
				}
				docTypes = append(docTypes, dt)
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			bundleURL, err := a.client.Manifest(ctx, patientNHSNumber, docTypes)
			if err != nil {
				return err
			}
			err = a.client.FetchBundle(ctx, bundleURL, output, func(p int) {
				if p >= 0 {
					slog.Info("downloading bundle", "progress", p)
				}
			})
			if err != nil {
				return err
			}
			fmt.Printf("Saved %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "record-bundle.zip", "Destination path for the zip bundle")
	cmd.Flags().StringSliceVar(&docTypeFlags, "doc-type", []string{"lg"}, "Document types to include: lg, arf")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	var docTypeFlag string
	var confirmed bool
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a patient's stored records",
		RunE: func(cmd *cobra.Command, args []string) error {
			if patientNHSNumber == "" {
				return fmt.Errorf("--nhs-number is required")
			}
			if !confirmed {
				return fmt.Errorf("deletion is permanent; re-run with --yes to confirm")
			}
			docType, err := parseDocType(docTypeFlag)
			if err != nil {
				return err
			}
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.client.DeleteDocuments(cmd.Context(), patientNHSNumber, docType); err != nil {
				return err
			}
			fmt.Println("Records deleted.")
			return nil
		},
	}
	cmd.Flags().StringVar(&docTypeFlag, "doc-type", "lg", "Document type to delete: lg or arf")
	cmd.Flags().BoolVar(&confirmed, "yes", false, "Confirm permanent deletion")
	return cmd
}

func parseDocType(s string) (model.DocType, error) {
	switch strings.ToLower(s) {
	case "lg", "lloyd-george":
		return model.DocTypeLloydGeorge, nil
	case "arf":
		return model.DocTypeARF, nil
	}
	return "", fmt.Errorf("unknown doc type %q (expected lg or arf)", s)
}
