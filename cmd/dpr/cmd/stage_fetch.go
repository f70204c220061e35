package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/dpr-pipeline/internal/archive"
	"github.com/Aman-CERP/dpr-pipeline/internal/fetch"
	"github.com/Aman-CERP/dpr-pipeline/internal/model"
)

func runFetchStage(c *cobra.Command, sc *stageContext) error {
	var plan model.QueryPlan
	if err := archive.ReadJSON(archive.PlanPath(sc.root), &plan); err != nil {
		return fmt.Errorf("read plan: %w", err)
	}

	// --fetch-ignore-seen re-admits previously seen papers for this run
	// without discarding the real SeenSet: it opens a throwaway copy that
	// starts empty and is never committed.
	seenPath := archive.SeenSetPath(stageFlags.configDir)
	if stageFlags.fetchIgnoreSeen {
		seenPath += ".ignored"
	}

	seen, err := archive.OpenSeenSet(seenPath)
	if err != nil {
		return fmt.Errorf("open seen set: %w", err)
	}
	if err := seen.Lock(); err != nil {
		return fmt.Errorf("lock seen set: %w", err)
	}
	defer seen.Unlock()

	var mirror *fetch.SupabaseClient
	if sc.cfg.Supabase.Enabled {
		mirror = fetch.NewSupabaseClient(sc.cfg.Supabase.URL, sc.cfg.Supabase.AnonKey,
			sc.cfg.Supabase.PapersTable, sc.cfg.Supabase.Schema,
			sc.cfg.Supabase.VectorRPC, sc.cfg.Supabase.BM25RPC, 0)
	}

	arxivClient := fetch.NewArxivClient("")
	f := fetch.New(arxivClient, mirror, fetch.Config{
		DaysWindow:         stageFlags.fetchDays,
		PreferSupabaseRead: sc.cfg.Supabase.Enabled && sc.cfg.ArxivPaperSetting.PreferSupabaseRead,
	})

	papers, err := f.Run(c.Context(), plan, time.Now().UTC(), seen)
	if err != nil {
		return fmt.Errorf("run fetcher: %w", err)
	}

	if err := archive.WriteJSON(archive.PapersPath(sc.root), papers); err != nil {
		return fmt.Errorf("write papers: %w", err)
	}

	if !stageFlags.fetchIgnoreSeen {
		if err := seen.Commit(); err != nil {
			return fmt.Errorf("commit seen set: %w", err)
		}
	}

	slog.Info("fetch stage complete", "papers", len(papers))
	return nil
}
