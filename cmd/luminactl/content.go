package main

import (
	"encoding/json"
	"fmt"
	"io"
	"lumina/internal/config"
	"lumina/internal/db"
	"lumina/internal/services"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var (
	flagExportOut   string
	flagResetYes    bool
	flagImportCat   string
	flagImportLimit int
	flagImportFull  bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Dump every stored key as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		conn, err := db.Open(cfg.Database.URL)
		if err != nil {
			return err
		}
		blobs, err := db.NewBlobStore(conn).All(cmd.Context())
		if err != nil {
			return err
		}

		var out io.Writer = cmd.OutOrStdout()
		if flagExportOut != "" {
			f, err := os.Create(flagExportOut)
			if err != nil {
				return fmt.Errorf("creating %s: %w", flagExportOut, err)
			}
			defer f.Close()
			out = f
		}

		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(blobs); err != nil {
			return fmt.Errorf("encoding export: %w", err)
		}
		if flagExportOut != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d key(s) to %s.\n", len(blobs), flagExportOut)
		}
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the default articles and clear all visitor engagement",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !flagResetYes {
			return fmt.Errorf("reset deletes all content; rerun with --yes to confirm")
		}
		_, st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		if err := st.Reset(cmd.Context()); err != nil {
			return fmt.Errorf("resetting: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Content restored to the default dataset.")
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show content and engagement totals",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		s := services.Summarize(st.Articles(), st.Comments())
		visible := services.ListVisible(st.Articles(), time.Now(), "")

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Published: %d (visible now: %d)\n", s.Published, len(visible))
		fmt.Fprintf(w, "Scheduled: %d\n", s.Scheduled)
		fmt.Fprintf(w, "Drafts:    %d\n", s.Drafts)
		fmt.Fprintf(w, "Comments:  %d\n", s.TotalComments)
		fmt.Fprintf(w, "Likes:     %d / Dislikes: %d\n", s.TotalLikes, s.TotalDislikes)
		fmt.Fprintf(w, "Ratings:   %d (avg %.1f)\n", s.TotalRatings, s.AverageRating)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <feed-url>",
	Short: "Import the newest feed items as draft articles",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		crawler := services.NewCrawlerService(cfg.ImportTimeout())
		importer := services.NewFeedImporter(st, crawler, cfg.ImportTimeout(), cfg.Import.MaxItems)

		res, err := importer.Import(cmd.Context(), services.ImportRequest{
			URL:      args[0],
			Category: flagImportCat,
			Limit:    flagImportLimit,
			FullText: flagImportFull,
		})
		if err != nil {
			return fmt.Errorf("importing: %w", err)
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%s: %d draft(s) created, %d skipped.\n", res.FeedTitle, len(res.Created), res.Skipped)
		for _, a := range res.Created {
			fmt.Fprintf(w, "  %s  %s\n", a.ID, a.Title)
		}
		return nil
	},
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password <password>",
	Short: "Print a bcrypt hash for admin.password_hash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if args[0] == "" {
			return fmt.Errorf("password must not be empty")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hashing password: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(hash))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&flagExportOut, "out", "o", "", "write to file instead of stdout")
	resetCmd.Flags().BoolVar(&flagResetYes, "yes", false, "confirm the reset")
	importCmd.Flags().StringVar(&flagImportCat, "category", "", "category for imported drafts (default: taken from the feed)")
	importCmd.Flags().IntVar(&flagImportLimit, "limit", services.DefaultImportLimit, "number of feed items to import")
	importCmd.Flags().BoolVar(&flagImportFull, "full-text", false, "fetch full article text from each item's link")
}
