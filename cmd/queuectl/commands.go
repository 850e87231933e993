package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/campus-request-api/internal/models"
	"github.com/noah-isme/campus-request-api/internal/service"
	"github.com/noah-isme/campus-request-api/pkg/storage"
)

type statsReport struct {
	Status     models.QueueStats               `json:"status" yaml:"status"`
	ByCategory map[string]models.CategoryStats `json:"byCategory" yaml:"byCategory"`
}

func (r statsReport) rows() map[string]string {
	rows := make(map[string]string, len(r.Status)+len(r.ByCategory))
	for status, n := range r.Status {
		rows["status."+string(status)] = strconv.Itoa(n)
	}
	for category, s := range r.ByCategory {
		rows["category."+category] = fmt.Sprintf("%d pending / %d total", s.Pending, s.Total)
	}
	return rows
}

func newStatsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show queue counts by status and category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			byStatus, err := app.Requests.QueueStats(cmd.Context())
			if err != nil {
				return err
			}
			byCategory, err := app.Requests.QueueStatsByCategory(cmd.Context())
			if err != nil {
				return err
			}
			report := statsReport{Status: byStatus, ByCategory: byCategory}
			return opts.printer(cmd).print(report, report.rows())
		},
	}
}

func requestRows(req *models.Request) map[string]string {
	rows := map[string]string{
		"id":        req.ID,
		"owner":     req.Owner,
		"category":  req.Category,
		"status":    string(req.Status),
		"submitted": req.SubmittedAt.Format(time.RFC3339),
		"estimated": req.EstimatedCompletion.Format(time.RFC3339),
	}
	if req.Details != "" {
		rows["details"] = req.Details
	}
	return rows
}

func newPickCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pick",
		Short: "Pick a random pending request for triage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			req, err := app.Requests.PickRandomPending(cmd.Context())
			if err != nil {
				return err
			}
			return opts.printer(cmd).print(req, requestRows(req))
		},
	}
}

func newExportCommand(opts *rootOptions) *cobra.Command {
	var (
		kind     string
		category string
		dirPath  string
		name     string
		prune    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write requests to a CSV or PDF file in the export directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			dir, err := storage.NewDir(dirPath, nil)
			if err != nil {
				return err
			}
			result := map[string]string{}
			if prune > 0 {
				removed, err := dir.Prune(prune)
				if err != nil {
					return err
				}
				result["pruned"] = strconv.Itoa(len(removed))
			}

			meta, err := app.Exports.Meta(kind, category)
			if err != nil {
				return err
			}
			if name == "" {
				name = meta.Filename
			}
			f, path, err := dir.Create(name)
			if err != nil {
				return err
			}
			defer f.Close()

			meta, err = app.Exports.Export(cmd.Context(), f, kind, category)
			if err != nil {
				return err
			}
			result["file"] = path
			result["contentType"] = meta.ContentType
			result["rows"] = strconv.Itoa(meta.Rows)
			return opts.printer(cmd).print(result, result)
		},
	}
	cmd.Flags().StringVar(&kind, "type", service.ExportFormatCSV, "export type (csv|pdf)")
	cmd.Flags().StringVar(&category, "category", "", "limit to one category")
	cmd.Flags().StringVar(&dirPath, "dir", "./exports", "export directory")
	cmd.Flags().StringVarP(&name, "name", "n", "", "file name inside the export directory (defaults to a generated name)")
	cmd.Flags().DurationVar(&prune, "prune", 0, "first delete exports older than this age")
	return cmd
}
