package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"persona-research/internal/app"
	"persona-research/internal/config"
	"persona-research/internal/domain/model"
	"persona-research/internal/infra/api"
	"persona-research/internal/infra/logging"
)

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.String("config"), c.Bool("dev"))
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func RunAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	// job logs go to stderr so stdout stays clean for the persona
	logger := logging.NewWithWriter(cfg.Log, cfg.Runtime.Dev, os.Stderr)

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("wait"))
	defer cancel()

	engine, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer engine.Close()
	engine.Start(ctx)

	id, err := engine.Research.StartJob(ctx, model.UserInputs{
		WebsiteURL:     c.String("website"),
		MarketplaceURL: c.String("marketplace"),
		Keywords:       model.ParseKeywords(c.String("keywords")),
		CompetitorURLs: c.StringSlice("competitor"),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "job %s queued\n", id)

	job, err := waitTerminal(ctx, engine, id)
	if err != nil {
		return err
	}
	view, err := engine.Status.JobStatus(ctx, id)
	if err != nil {
		return err
	}

	if c.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Job    *model.Job           `json:"job"`
			Status *model.JobStatusView `json:"status"`
		}{job, view})
	}

	printSources(os.Stderr, view)
	if job.Status == model.JobStatusFailed {
		return fmt.Errorf("job %s failed: %s", id, job.LastError)
	}
	fmt.Fprintf(os.Stderr, "confidence: %s (quality %.2f)\n\n", job.Persona.Confidence, job.Persona.Quality)
	fmt.Println(job.Persona.Content)
	return nil
}

func waitTerminal(ctx context.Context, engine *app.Engine, id string) (*model.Job, error) {
	tick := time.NewTicker(time.Second)
	defer tick.Stop()
	for {
		job, err := engine.Research.GetJob(ctx, id)
		if err != nil {
			return nil, err
		}
		if job.Status.IsTerminal() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("job %s still %s: %w", id, job.Status, ctx.Err())
		case <-tick.C:
		}
	}
}

func StatusAction(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return errors.New("job id is required")
	}
	base := strings.TrimRight(c.String("server"), "/")
	path := "/api/v1/jobs/" + url.PathEscape(id) + "/status"
	if c.Bool("debug") {
		path = "/api/v1/jobs/" + url.PathEscape(id) + "/debug"
	}

	ctx, cancel := context.WithTimeout(c.Context, 15*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
	if err != nil {
		return err
	}
	if tok := c.String("token"); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	if c.Bool("debug") {
		_, err = os.Stdout.Write(body)
		return err
	}
	var view model.JobStatusView
	if err := json.Unmarshal(body, &view); err != nil {
		return fmt.Errorf("decode status: %w", err)
	}
	printSources(os.Stdout, &view)
	return nil
}

func TokenAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	auth := api.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if !auth.Enabled() {
		return errors.New("auth.jwt_secret (or JWT_SECRET) is not set")
	}
	tok, err := auth.Mint(c.String("subject"))
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}

func printSources(w io.Writer, view *model.JobStatusView) {
	fmt.Fprintf(w, "job %s: %s\n", view.JobID, view.Status)
	if view.Error != "" {
		fmt.Fprintf(w, "error: %s\n", view.Error)
	}
	fmt.Fprintf(w, "%-22s %-18s %-7s %-14s %s\n", "SOURCE", "STATUS", "ITEMS", "METHOD", "ERROR")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for _, s := range view.Sources {
		fmt.Fprintf(w, "%-22s %-18s %-7d %-14s %s\n", s.Source, s.Status, s.ItemCount, s.ExtractionMethod, s.Error)
	}
	fmt.Fprintln(w)
}
